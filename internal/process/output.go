package process

import (
	"io"
	"os"
	"sync"
)

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// SharedOutput prepares stdout and stderr writers to be handed to both
// processes of a pair. Writers that are not *os.File are fed by os/exec copy
// goroutines, one per process and stream, so they are serialized behind a
// single lock. Files are returned unchanged and inherited by the children.
func SharedOutput(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	mu := &sync.Mutex{}
	wrap := func(w io.Writer) io.Writer {
		switch w.(type) {
		case nil, *os.File:
			return w
		}
		return &lockedWriter{mu: mu, w: w}
	}
	return wrap(stdout), wrap(stderr)
}
