package main

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/CK6170/handcontroller-go/controller"
	"github.com/CK6170/handcontroller-go/models"
	serialpkg "github.com/CK6170/handcontroller-go/serial"
)

// engine wires one line queue, processor and dispatcher to whichever session
// is currently open. The processor outlives individual connections.
type engine struct {
	params *models.PARAMETERS
	queue  *serialpkg.LineQueue
	proc   *controller.Processor
	disp   *controller.Dispatcher
	lost   chan error

	cancel context.CancelFunc
	group  *errgroup.Group

	// connMu serializes connect and disconnect; mu guards sess.
	connMu sync.Mutex
	mu     sync.Mutex
	sess   *controller.Session
}

func newEngine(params *models.PARAMETERS) *engine {
	params.Normalize()
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	e := &engine{
		params: params,
		queue:  serialpkg.NewLineQueue(),
		proc:   controller.NewProcessor(nil, time.Duration(params.CALIBRATIONTIMEOUTS)*time.Second),
		disp:   controller.NewDispatcher(),
		lost:   make(chan error, 1),
		cancel: cancel,
		group:  group,
	}
	group.Go(func() error { return e.proc.Run(ctx, e.queue) })
	return e
}

// connect opens port, replacing any current session. An empty port uses the
// configured one. Connects and disconnects are serialized.
func (e *engine) connect(port string) error {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	if err := e.disconnectLocked(); err != nil {
		log.Warn().Err(err).Msg("closing previous session")
	}
	if port != "" {
		e.params.SERIAL.PORT = port
	}
	sess, err := controller.Connect(e.params, e.queue)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.sess = sess
	e.mu.Unlock()
	e.disp.Attach(sess)

	e.group.Go(func() error {
		err := sess.Transport.Wait()
		if err == nil {
			return nil
		}
		e.mu.Lock()
		current := e.sess == sess
		e.mu.Unlock()
		if current {
			select {
			case e.lost <- err:
			default:
			}
		}
		return nil
	})
	return nil
}

// disconnect closes the current session, if any, and resets per-connection
// parsing state.
func (e *engine) disconnect() error {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	return e.disconnectLocked()
}

func (e *engine) disconnectLocked() error {
	e.mu.Lock()
	sess := e.sess
	e.sess = nil
	e.mu.Unlock()
	if sess == nil {
		return nil
	}
	e.disp.Detach()
	err := sess.Close()
	// The read loop has stopped; whatever it queued belongs to the old
	// connection.
	if n := e.queue.Drain(); n > 0 {
		log.Debug().Int("lines", n).Msg("dropped lines of closed session")
	}
	e.proc.Reset()
	return err
}

func (e *engine) connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Connected()
}

func (e *engine) port() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Port()
}

// Lost delivers the read error of a session that dropped on its own.
func (e *engine) Lost() <-chan error { return e.lost }

// close disconnects and stops the processor.
func (e *engine) close() error {
	err := e.disconnect()
	e.cancel()
	return multierr.Combine(err, e.group.Wait())
}

// connectConfigured resolves the port (auto-detecting when unset) and
// connects, for the non-interactive commands.
func (e *engine) connectConfigured(ctx context.Context, configPath string) error {
	if _, err := controller.EnsureSerialPort(ctx, configPath, e.params, true); err != nil {
		return errors.Wrap(err, "select serial port")
	}
	return e.connect("")
}
