package controller

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/CK6170/handcontroller-go/models"
	"github.com/CK6170/handcontroller-go/protocol"
	serialpkg "github.com/CK6170/handcontroller-go/serial"
)

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		test.That(t, ok, test.ShouldBeTrue)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
	return Event{}
}

func TestProcessorHandle(t *testing.T) {
	p := NewProcessor(clock.NewMock(), 15*time.Second)

	test.That(t, p.Handle("I (1234) USB_SERIAL: Processing command: get_config"), test.ShouldBeEmpty)
	test.That(t, p.Handle(">"), test.ShouldBeEmpty)

	evs := p.Handle("\x1b[0;32mLevel assistant: ENABLED\x1b[0m")
	test.That(t, len(evs), test.ShouldEqual, 1)
	test.That(t, evs[0].Line, test.ShouldEqual, "Level assistant: ENABLED")
	test.That(t, evs[0].Kind, test.ShouldEqual, protocol.KindOK)
	test.That(t, evs[0].Changes, test.ShouldResemble, protocol.Changes{models.FieldLevelAssistant})
	test.That(t, evs[0].Config.LevelAssistant, test.ShouldBeTrue)
	test.That(t, p.Config().LevelAssistant, test.ShouldBeTrue)

	p.Handle("=== Level Assistant PID Parameters ===")
	p.Handle("Kp (Proportional): 1.200")
	evs = p.Handle("Output Max: 60.0")
	test.That(t, evs[0].Config.PIDKp, test.ShouldEqual, 1.2)
	test.That(t, evs[0].Config.PIDOutputMax, test.ShouldEqual, 60.0)

	evs = p.Handle("Unknown command: foo")
	test.That(t, evs[0].Kind, test.ShouldEqual, protocol.KindError)
	test.That(t, evs[0].Changes, test.ShouldBeEmpty)
}

func TestProcessorRun(t *testing.T) {
	clk := clock.NewMock()
	p := NewProcessor(clk, 15*time.Second)
	queue := serialpkg.NewLineQueue()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, queue) }()

	queue.Push("Motor pulley teeth set to: 20")
	ev := nextEvent(t, p.Events())
	test.That(t, ev.Config.MotorPulley, test.ShouldEqual, 20)
	test.That(t, ev.At, test.ShouldEqual, clk.Now())

	queue.Push("=== Throttle Calibration ===")
	ev = nextEvent(t, p.Events())
	test.That(t, ev.Kind, test.ShouldEqual, protocol.KindHeader)
	test.That(t, ev.CalibrationChanged, test.ShouldBeTrue)
	test.That(t, ev.Calibration.Phase, test.ShouldEqual, protocol.PhaseCalibrating)

	clk.Add(16 * time.Second)
	ev = nextEvent(t, p.Events())
	test.That(t, ev.Line, test.ShouldBeEmpty)
	test.That(t, ev.Calibration.Phase, test.ShouldEqual, protocol.PhaseFailed)
	test.That(t, ev.Calibration.Reason, test.ShouldEqual, protocol.ReasonTimeout)

	p.Reset()
	ev = nextEvent(t, p.Events())
	test.That(t, ev.CalibrationChanged, test.ShouldBeTrue)
	test.That(t, ev.Calibration.Phase, test.ShouldEqual, protocol.PhaseIdle)
	test.That(t, ev.Config.MotorPulley, test.ShouldEqual, 20)

	cancel()
	test.That(t, <-done, test.ShouldBeNil)
	_, ok := <-p.Events()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestProcessorResetBeforeNextLine(t *testing.T) {
	p := NewProcessor(clock.NewMock(), 15*time.Second)
	p.Handle("=== Level Assistant PID Parameters ===")

	// The PID block from the previous connection must not capture lines of
	// the next one.
	p.Reset()
	queue := serialpkg.NewLineQueue()
	queue.Push("Kp (Proportional): 2.000")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx, queue)

	ev := nextEvent(t, p.Events())
	test.That(t, ev.Line, test.ShouldBeEmpty)
	test.That(t, ev.CalibrationChanged, test.ShouldBeTrue)

	ev = nextEvent(t, p.Events())
	test.That(t, ev.Line, test.ShouldEqual, "Kp (Proportional): 2.000")
	test.That(t, ev.Changes, test.ShouldBeEmpty)
	test.That(t, ev.Config.PIDKp, test.ShouldEqual, 0.8)
}
