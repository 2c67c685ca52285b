package palloc

import "errors"

var (
	// ErrNoMemory indicates that the heap could not satisfy a request.
	ErrNoMemory = errors.New("palloc: out of memory")

	// ErrInvalidSize indicates a negative allocation size.
	ErrInvalidSize = errors.New("palloc: invalid allocation size")

	// ErrInvalidAlignment indicates an alignment that is not a power of two.
	ErrInvalidAlignment = errors.New("palloc: alignment must be a power of two")

	// ErrInvalidConfig is wrapped by every error returned from Config.Validate.
	ErrInvalidConfig = errors.New("palloc: invalid config")

	// ErrPoolDestroyed is the panic value for any use of a destroyed pool.
	ErrPoolDestroyed = errors.New("palloc: use of destroyed pool")
)
