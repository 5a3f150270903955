package controller

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/CK6170/handcontroller-go/models"
	"github.com/CK6170/handcontroller-go/protocol"
	serialpkg "github.com/CK6170/handcontroller-go/serial"
)

// PopTimeout bounds each wait on the line queue; calibration timeouts are
// checked at this granularity.
const PopTimeout = 100 * time.Millisecond

// Event is published for every cleaned device line and for calibration state
// changes that happen without a line (timeouts, resets). Config and
// Calibration are snapshots taken after the line was applied.
type Event struct {
	At          time.Time
	Line        string
	Kind        protocol.Kind
	Changes     protocol.Changes
	Config      models.HandConfig
	Calibration protocol.CalibrationState
	// CalibrationChanged is set when this event moved the calibration state.
	CalibrationChanged bool
}

// Processor consumes raw lines, keeps the configuration cache current and
// publishes Events. It is the only writer of the configuration.
type Processor struct {
	clock   clock.Clock
	parser  *protocol.Parser
	tracker *protocol.CalibrationTracker
	events  chan Event
	reset   chan struct{}

	mu  sync.RWMutex
	cfg models.HandConfig
}

// NewProcessor starts from the default configuration. A nil clock uses wall
// time.
func NewProcessor(clk clock.Clock, calibrationTimeout time.Duration) *Processor {
	if clk == nil {
		clk = clock.New()
	}
	return &Processor{
		clock:   clk,
		parser:  protocol.NewParser(),
		tracker: protocol.NewCalibrationTracker(clk, calibrationTimeout),
		events:  make(chan Event, 256),
		reset:   make(chan struct{}, 1),
		cfg:     models.DefaultHandConfig(),
	}
}

// Events delivers published events. The channel is closed when Run returns.
func (p *Processor) Events() <-chan Event { return p.events }

// Config returns a copy of the current configuration.
func (p *Processor) Config() models.HandConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// Reset asks the processor to drop block and calibration state, typically
// after a disconnect. It is applied before the next line is handled, even if
// that line was already being waited for.
func (p *Processor) Reset() {
	select {
	case p.reset <- struct{}{}:
	default:
	}
}

// Run processes lines from queue until ctx is done.
func (p *Processor) Run(ctx context.Context, queue *serialpkg.LineQueue) error {
	defer close(p.events)
	for {
		raw, err := queue.Pop(ctx, PopTimeout)
		// A reset requested while waiting applies before the line that
		// ended the wait, which belongs to the next connection.
		if perr := p.applyReset(ctx); perr != nil {
			return nil
		}
		switch {
		case errors.Is(err, serialpkg.ErrEmpty):
			if p.tracker.Tick() {
				log.Warn().Msg("throttle calibration timed out")
				if err := p.publish(ctx, Event{CalibrationChanged: true}); err != nil {
					return nil
				}
			}
			continue
		case err != nil:
			return nil
		}
		for _, ev := range p.Handle(raw) {
			if err := p.publish(ctx, ev); err != nil {
				return nil
			}
		}
	}
}

// Handle applies one raw line and returns the events it produces, without
// publishing them. Noise lines produce none. It must not be called while Run
// is active.
func (p *Processor) Handle(raw string) []Event {
	text, ok := protocol.Clean(raw)
	if !ok {
		return nil
	}
	p.mu.Lock()
	changes := p.parser.Parse(text, &p.cfg)
	cfg := p.cfg
	p.mu.Unlock()
	if len(changes) > 0 {
		log.Debug().Interface("fields", changes).Msg("configuration updated")
	}

	var out []Event
	for _, line := range strings.Split(text, "\n") {
		moved := p.tracker.Observe(line)
		out = append(out, Event{
			At:                 p.clock.Now(),
			Line:               line,
			Kind:               protocol.Classify(line),
			Config:             cfg,
			Calibration:        p.tracker.State(),
			CalibrationChanged: moved,
		})
	}
	out[0].Changes = changes
	return out
}

func (p *Processor) applyReset(ctx context.Context) error {
	select {
	case <-p.reset:
	default:
		return nil
	}
	p.parser.Reset()
	p.tracker.Reset()
	return p.publish(ctx, Event{CalibrationChanged: true})
}

func (p *Processor) publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = p.clock.Now()
		ev.Config = p.Config()
		ev.Calibration = p.tracker.State()
	}
	select {
	case p.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

