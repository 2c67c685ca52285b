// Command pallocbench inspects the pool allocator's layout and simulates
// connection workloads against it.
package main

func main() {
	execute()
}
