package palloc

import (
	"fmt"
)

type cleanupKind int

const (
	cleanupHandler    cleanupKind = iota // Generic handler; skipped while nil.
	cleanupFileClose                     // Close a file descriptor.
	cleanupFileDelete                    // Delete a file, then close its descriptor.
	cleanupSpent                         // Already run out of band.
)

func (k cleanupKind) String() string {
	switch k {
	case cleanupHandler:
		return "handler"
	case cleanupFileClose:
		return "fileClose"
	case cleanupFileDelete:
		return "fileDelete"
	case cleanupSpent:
		return "spent"
	default:
		return fmt.Sprintf("cleanupKind(%d)", k)
	}
}

// Cleanup is a finalizer registered with a pool. It runs once, when the pool is
// destroyed, and never on Reset.
type Cleanup struct {
	// Handler is called with Data when the pool is destroyed. It is nil after
	// registration and a nil Handler is skipped.
	Handler func(data []byte)

	// Data is the payload allocated from the pool along with the entry, if any.
	// Like all pool memory it must not hold pointers into the Go heap; capture
	// such values in Handler instead.
	Data []byte

	kind cleanupKind
	file *FileCleanup
	next *Cleanup
}

// File returns the file record of a file cleanup, or nil.
func (c *Cleanup) File() *FileCleanup {
	return c.file
}

// pending reports whether the entry still has work to do on destroy.
func (c *Cleanup) pending() bool {
	switch c.kind {
	case cleanupHandler:
		return c.Handler != nil
	case cleanupFileClose, cleanupFileDelete:
		return true
	default:
		return false
	}
}

func (c *Cleanup) run() {
	switch c.kind {
	case cleanupHandler:
		if c.Handler != nil {
			c.Handler(c.Data)
		}
	case cleanupFileClose:
		CloseFile(c.file)
	case cleanupFileDelete:
		DeleteFile(c.file)
	}
}

// AddCleanup registers a new cleanup entry with a payload of size bytes, zero for none.
// The caller sets Handler. Entries run on Destroy in reverse order of registration.
//
// If allocating the payload fails, the entry is left unregistered and its memory is
// reclaimed with the rest of the pool.
func (p *Pool) AddCleanup(size int) (*Cleanup, error) {
	c, data, err := p.addCleanup(size)
	if err != nil {
		return nil, err
	}
	c.Data = data
	return c, nil
}

// addCleanup charges a cleanup entry and its payload to the pool and links the entry
// at the head of the cleanup list.
func (p *Pool) addCleanup(size int) (*Cleanup, []byte, error) {
	p.checkLive()
	if size < 0 {
		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if _, err := p.Alloc(cleanupEntrySize); err != nil {
		return nil, nil, err
	}
	var data []byte
	if size > 0 {
		var err error
		if data, err = p.Alloc(size); err != nil {
			return nil, nil, err
		}
	}

	c := &Cleanup{next: p.cleanup}
	p.cleanup = c
	p.logger.Debug("add cleanup", "cleanup", fmt.Sprintf("%p", c))
	return c, data, nil
}
