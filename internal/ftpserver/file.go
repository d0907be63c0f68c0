package ftpserver

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

var errSeekUnsupported = errors.New("seek not supported")

// trackedFile counts the bytes moved through an open file and calls done
// exactly once when it is closed. eof tells whether a reader reached the end
// of the file.
type trackedFile struct {
	rw io.ReadWriteCloser

	n    atomic.Int64
	eof  atomic.Bool
	once sync.Once
	done func(n int64, eof bool)
}

func newTrackedFile(rw io.ReadWriteCloser, done func(n int64, eof bool)) *trackedFile {
	return &trackedFile{rw: rw, done: done}
}

func (f *trackedFile) Read(p []byte) (int, error) {
	n, err := f.rw.Read(p)
	f.n.Add(int64(n))
	if errors.Is(err, io.EOF) {
		f.eof.Store(true)
	}
	return n, err
}

func (f *trackedFile) Write(p []byte) (int, error) {
	n, err := f.rw.Write(p)
	f.n.Add(int64(n))
	return n, err
}

// Seek keeps REST working: the engine only resumes transfers on files that
// implement io.Seeker.
func (f *trackedFile) Seek(offset int64, whence int) (int64, error) {
	s, ok := f.rw.(io.Seeker)
	if !ok {
		return 0, errSeekUnsupported
	}
	return s.Seek(offset, whence)
}

func (f *trackedFile) Close() error {
	err := f.rw.Close()
	f.once.Do(func() { f.done(f.n.Load(), f.eof.Load()) })
	return err
}
