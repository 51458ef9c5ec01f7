package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// maxLineSize bounds a single newline-delimited frame. CDP payloads
// (screenshots aside, which are out of this library's domain scope)
// are small; this generously covers pathological cases without letting
// a runaway peer exhaust memory.
const maxLineSize = 64 * 1024 * 1024

// Pipe is the local, file-descriptor-pair transport variant: two
// io.Reader/io.WriteCloser halves carrying one newline-delimited JSON
// frame per line. It exists for embedding cdpwire next to a browser
// launched with its own stdio-piped debugging channel, and for tests
// that want a transport without a real socket.
type Pipe struct {
	r io.Reader
	w io.WriteCloser
	c io.Closer // optional extra closer for the read half

	scanner *bufio.Scanner
	writeMu sync.Mutex
	closed  bool
	closeMu sync.Mutex
}

// NewPipe wraps a reader/writer pair as a Conn. If r also implements
// io.Closer it is closed alongside w on Close.
func NewPipe(r io.Reader, w io.WriteCloser) *Pipe {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	p := &Pipe{r: r, w: w, scanner: scanner}
	if rc, ok := r.(io.Closer); ok {
		p.c = rc
	}
	return p
}

// Read blocks until the next newline-delimited frame arrives or ctx is
// done, whichever comes first. The scan itself runs in a goroutine and
// is not stopped when ctx ends (bufio.Scanner has no cancellation
// hook). This matches the pipe transport's use case: a cooperating
// local process, not an adversarial network peer.
func (p *Pipe) Read(ctx context.Context) (MessageType, []byte, error) {
	type result struct {
		line []byte
		err  error
	}

	done := make(chan result, 1)
	go func() {
		if p.scanner.Scan() {
			line := append([]byte(nil), p.scanner.Bytes()...)
			done <- result{line: line}
			return
		}
		err := p.scanner.Err()
		if err == nil {
			err = io.EOF
		}
		done <- result{err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return 0, nil, newError("read", r.err)
		}
		return MessageText, r.line, nil
	case <-ctx.Done():
		return 0, nil, newError("read", ctx.Err())
	}
}

// Write sends data as a single line, appending a newline. Binary
// frames are rejected: newline-delimited framing cannot carry raw
// bytes containing '\n' unescaped, and CDP never sends binary frames.
func (p *Pipe) Write(ctx context.Context, typ MessageType, data []byte) error {
	if typ == MessageBinary {
		return newError("write", fmt.Errorf("pipe transport does not support binary frames"))
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err := p.w.Write(append(data, '\n')); err != nil {
		return newError("write", err)
	}
	return nil
}

// Close closes the write half (and the read half, if closeable).
// Safe to call more than once.
func (p *Pipe) Close(_ StatusCode, _ string) error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	err := p.w.Close()
	if p.c != nil {
		if cerr := p.c.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return newError("close", err)
	}
	return nil
}
