// Package serialtest provides an in-memory serial port for tests of code
// built on the serial package.
package serialtest

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	goserial "github.com/tarm/serial"

	serialpkg "github.com/CK6170/handcontroller-go/serial"
)

// FakePort behaves like a tarm/serial port with a short read timeout.
type FakePort struct {
	mu      sync.Mutex
	in      bytes.Buffer
	written bytes.Buffer
	readErr error
	closed  bool
	opens   int
}

// Feed queues bytes for the reader.
func (p *FakePort) Feed(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.in.WriteString(s)
}

// Fail makes every following read return err, like an unplugged device.
func (p *FakePort) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
}

// Written returns everything written so far.
func (p *FakePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// Closed reports whether the most recent open was closed.
func (p *FakePort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Opens counts how often the port was opened.
func (p *FakePort) Opens() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

func (p *FakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return 0, io.ErrClosedPipe
	case p.readErr != nil:
		err := p.readErr
		p.mu.Unlock()
		return 0, err
	case p.in.Len() > 0:
		defer p.mu.Unlock()
		return p.in.Read(b)
	}
	p.mu.Unlock()
	time.Sleep(time.Millisecond)
	return 0, io.EOF
}

func (p *FakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *FakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *FakePort) open() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	p.closed = false
	p.readErr = nil
}

// Install routes serial.OpenPort to ports for the rest of the test. Names
// missing from ports fail to open.
func Install(tb testing.TB, ports map[string]*FakePort) {
	tb.Helper()
	prev := serialpkg.OpenPort
	serialpkg.OpenPort = func(cfg *goserial.Config) (serialpkg.Port, error) {
		p, ok := ports[cfg.Name]
		if !ok {
			return nil, io.ErrUnexpectedEOF
		}
		p.open()
		return p, nil
	}
	tb.Cleanup(func() { serialpkg.OpenPort = prev })
}
