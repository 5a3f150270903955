package serial

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	goserial "github.com/tarm/serial"
)

// fakePort behaves like a tarm/serial port with a read timeout: Read returns
// no data after a short wait when nothing is buffered.
type fakePort struct {
	mu      sync.Mutex
	in      bytes.Buffer
	written bytes.Buffer
	readErr error
	closed  bool
	block   chan struct{}
}

func (p *fakePort) feed(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.in.WriteString(s)
}

func (p *fakePort) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	if p.readErr != nil {
		err := p.readErr
		p.mu.Unlock()
		return 0, err
	}
	if p.in.Len() > 0 {
		defer p.mu.Unlock()
		return p.in.Read(b)
	}
	p.mu.Unlock()
	time.Sleep(time.Millisecond)
	return 0, io.EOF
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) sent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// useFakePorts routes OpenPort to fakes for the duration of the test. Names
// missing from ports fail to open.
func useFakePorts(t *testing.T, ports map[string]*fakePort) {
	t.Helper()
	prev := OpenPort
	OpenPort = func(cfg *goserial.Config) (Port, error) {
		p, ok := ports[cfg.Name]
		if !ok {
			return nil, io.ErrUnexpectedEOF
		}
		return p, nil
	}
	t.Cleanup(func() { OpenPort = prev })
}
