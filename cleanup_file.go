package palloc

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sys/unix"
)

// FileCleanup is the record of a file cleanup: the descriptor to close and, for
// deleting cleanups, the name of the file to remove first.
type FileCleanup struct {
	FD     int
	Name   string
	Logger *slog.Logger // Nil selects slog.Default.
}

func (f *FileCleanup) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

// AddFileCleanup registers a cleanup that closes fd when the pool is destroyed. If
// unlink is set, the file called name is deleted before fd is closed. Failures are
// reported to the pool's logger.
func (p *Pool) AddFileCleanup(fd int, name string, unlink bool) (*Cleanup, error) {
	c, _, err := p.addCleanup(fileCleanupSize)
	if err != nil {
		return nil, err
	}
	c.kind = cleanupFileClose
	if unlink {
		c.kind = cleanupFileDelete
	}
	c.file = &FileCleanup{FD: fd, Name: name, Logger: p.logger}
	return c, nil
}

// RunFileCleanup runs the closing (not deleting) file cleanup registered for fd right
// away, so that Destroy skips it. It reports whether such a cleanup was pending.
func (p *Pool) RunFileCleanup(fd int) bool {
	p.checkLive()
	for c := p.cleanup; c != nil; c = c.next {
		if c.kind == cleanupFileClose && c.file.FD == fd {
			c.run()
			c.kind = cleanupSpent
			return true
		}
	}
	return false
}

// CloseFile closes the descriptor of f, logging a failure at LevelAlert.
func CloseFile(f *FileCleanup) {
	logger := f.logger()
	logger.Debug("file cleanup", "fd", f.FD)
	closeFile(logger, f)
}

// DeleteFile deletes the file named by f and closes its descriptor. A file that no
// longer exists is not an error; other delete failures are logged at LevelCritical.
func DeleteFile(f *FileCleanup) {
	logger := f.logger()
	logger.Debug("file cleanup", "fd", f.FD, "name", f.Name)
	if err := unix.Unlink(f.Name); err != nil && !errors.Is(err, unix.ENOENT) {
		logger.Log(context.Background(), LevelCritical, "delete file failed", "name", f.Name, "error", err)
	}
	closeFile(logger, f)
}

func closeFile(logger *slog.Logger, f *FileCleanup) {
	if err := unix.Close(f.FD); err != nil {
		logger.Log(context.Background(), LevelAlert, "close file failed", "name", f.Name, "fd", f.FD, "error", err)
	}
}
