package serial

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	goserial "github.com/tarm/serial"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// PollInterval is how long the read loop sleeps when the port had no data.
const PollInterval = 10 * time.Millisecond

var (
	// ErrClosed is returned when sending on a transport that is not connected.
	ErrClosed = errors.New("serial transport is not connected")
	// ErrWriteTimeout is returned when a write did not complete in time.
	ErrWriteTimeout = errors.New("serial write timed out")
)

// Port is the subset of a serial port used by the transport.
type Port interface {
	io.ReadWriteCloser
}

// OpenPort opens a device. Tests replace it to substitute a fake port.
var OpenPort = func(cfg *goserial.Config) (Port, error) {
	return goserial.OpenPort(cfg)
}

// Config selects the device and link settings. The line format is fixed at
// 8 data bits, no parity, one stop bit.
type Config struct {
	Port    string
	Baud    int
	Timeout time.Duration
}

func (c Config) portConfig() *goserial.Config {
	return &goserial.Config{
		Name:        c.Port,
		Baud:        c.Baud,
		Parity:      goserial.ParityNone,
		Size:        8,
		StopBits:    goserial.Stop1,
		ReadTimeout: c.Timeout,
	}
}

// Transport is one open serial connection. Commands go out through Send;
// a background loop splits incoming bytes into lines and pushes them onto
// the queue given to Open.
type Transport struct {
	cfg       Config
	port      Port
	queue     *LineQueue
	connected *atomic.Bool

	writeMu   sync.Mutex
	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
	closeErr  error
}

// Open connects to cfg.Port and starts the read loop.
func Open(cfg Config, queue *LineQueue) (*Transport, error) {
	if strings.TrimSpace(cfg.Port) == "" {
		return nil, errors.New("missing serial port")
	}
	if queue == nil {
		return nil, errors.New("missing line queue")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	port, err := OpenPort(cfg.portConfig())
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", cfg.Port)
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	t := &Transport{
		cfg:       cfg,
		port:      port,
		queue:     queue,
		connected: atomic.NewBool(true),
		cancel:    cancel,
		group:     group,
	}
	group.Go(func() error { return t.readLoop(ctx) })
	log.Info().Str("port", cfg.Port).Int("baud", cfg.Baud).Msg("serial port opened")
	return t, nil
}

// Name is the device path or COM name.
func (t *Transport) Name() string { return t.cfg.Port }

// Connected reports whether the port is open and the read loop is running.
func (t *Transport) Connected() bool { return t.connected.Load() }

// Send writes command followed by a newline. A write that does not finish
// within the configured timeout is reported as lost.
func (t *Transport) Send(command string) error {
	if !t.connected.Load() {
		return ErrClosed
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := t.port.Write([]byte(command + "\n"))
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return errors.Wrapf(err, "write %q", command)
		}
	case <-time.After(t.cfg.Timeout):
		return errors.Wrapf(ErrWriteTimeout, "write %q", command)
	}
	log.Debug().Str("command", command).Msg("sent")
	return nil
}

// Close stops the read loop and closes the port. It is safe to call more
// than once.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.connected.Store(false)
		t.cancel()
		err := t.port.Close()
		if err != nil {
			err = errors.Wrapf(err, "close %s", t.cfg.Port)
		}
		t.closeErr = multierr.Combine(err, t.group.Wait())
		log.Info().Str("port", t.cfg.Port).Msg("serial port closed")
	})
	return t.closeErr
}

// Wait blocks until the read loop exits and returns its error, if any.
func (t *Transport) Wait() error {
	return t.group.Wait()
}

func (t *Transport) readLoop(ctx context.Context) error {
	buf := make([]byte, 512)
	var pending []byte
	lastData := time.Now()
	for t.connected.Load() {
		n, err := t.port.Read(buf)
		if n > 0 {
			pending = t.emitLines(append(pending, buf[:n]...))
			lastData = time.Now()
		}
		if err != nil && !errors.Is(err, io.EOF) {
			if !t.connected.Load() || ctx.Err() != nil {
				return nil
			}
			t.connected.Store(false)
			log.Warn().Err(err).Str("port", t.cfg.Port).Msg("serial read failed")
			return errors.Wrapf(err, "read %s", t.cfg.Port)
		}
		if n > 0 {
			continue
		}
		// A prompt or partial line with nothing after it is delivered once
		// the line has been idle for a full read timeout.
		if len(pending) > 0 && time.Since(lastData) >= t.cfg.Timeout {
			t.push(pending)
			pending = nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(PollInterval):
		}
	}
	return nil
}

// emitLines pushes every complete line in data and returns the remainder.
func (t *Transport) emitLines(data []byte) []byte {
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return data
		}
		t.push(data[:i])
		data = data[i+1:]
	}
}

func (t *Transport) push(raw []byte) {
	line := strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
	if line == "" {
		return
	}
	t.queue.Push(line)
}
