package controller

import (
	"time"

	"github.com/pkg/errors"

	"github.com/CK6170/handcontroller-go/models"
	serialpkg "github.com/CK6170/handcontroller-go/serial"
)

// Session is one connection to the hand controller.
type Session struct {
	Params    *models.PARAMETERS
	Transport *serialpkg.Transport
}

// Connect opens the configured port. Received lines are pushed onto queue.
func Connect(p *models.PARAMETERS, queue *serialpkg.LineQueue) (*Session, error) {
	if p == nil || p.SERIAL == nil {
		return nil, errors.New("missing SERIAL section")
	}
	t, err := serialpkg.Open(serialpkg.Config{
		Port:    p.SERIAL.PORT,
		Baud:    p.SERIAL.BAUDRATE,
		Timeout: time.Duration(p.SERIAL.TIMEOUTMS) * time.Millisecond,
	}, queue)
	if err != nil {
		return nil, err
	}
	return &Session{Params: p, Transport: t}, nil
}

// Connected reports whether the port is still usable. A nil session is not
// connected.
func (s *Session) Connected() bool {
	return s != nil && s.Transport != nil && s.Transport.Connected()
}

// Send writes one command line.
func (s *Session) Send(command string) error {
	if !s.Connected() {
		return ErrNotConnected
	}
	return s.Transport.Send(command)
}

// Port is the device name, or "" when not connected.
func (s *Session) Port() string {
	if s == nil || s.Transport == nil {
		return ""
	}
	return s.Transport.Name()
}

func (s *Session) Close() error {
	if s == nil || s.Transport == nil {
		return nil
	}
	return s.Transport.Close()
}
