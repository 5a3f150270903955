package main

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/CK6170/handcontroller-go/controller"
	"github.com/CK6170/handcontroller-go/models"
	"github.com/CK6170/handcontroller-go/serial/serialtest"
)

func newTestEngine(t *testing.T, port string) *engine {
	t.Helper()
	p := models.DefaultParameters()
	p.SERIAL.PORT = port
	e := newEngine(p)
	t.Cleanup(func() { test.That(t, e.close(), test.ShouldBeNil) })
	return e
}

// eventMatching waits for the first event accepted by ok.
func eventMatching(t *testing.T, e *engine, ok func(controller.Event) bool) controller.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-e.proc.Events():
			if ok(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("expected event did not arrive")
		}
	}
}

func TestEngineLifecycle(t *testing.T) {
	port := &serialtest.FakePort{}
	serialtest.Install(t, map[string]*serialtest.FakePort{"COM3": port})
	e := newTestEngine(t, "COM3")

	_, err := e.disp.GetConfig()
	test.That(t, err, test.ShouldEqual, controller.ErrNotConnected)

	test.That(t, e.connect(""), test.ShouldBeNil)
	test.That(t, e.connected(), test.ShouldBeTrue)
	test.That(t, e.port(), test.ShouldEqual, "COM3")

	line, err := e.disp.GetConfig()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, line, test.ShouldEqual, "get_config")
	test.That(t, port.Written(), test.ShouldEqual, "get_config\n")

	port.Feed("Motor pulley teeth set to: 20\n")
	ev := eventMatching(t, e, func(ev controller.Event) bool { return ev.Line != "" })
	test.That(t, ev.Line, test.ShouldEqual, "Motor pulley teeth set to: 20")
	test.That(t, ev.Config.MotorPulley, test.ShouldEqual, 20)
	test.That(t, e.proc.Config().MotorPulley, test.ShouldEqual, 20)

	port.Fail(errors.New("device unplugged"))
	select {
	case err := <-e.Lost():
		test.That(t, err.Error(), test.ShouldContainSubstring, "device unplugged")
	case <-time.After(2 * time.Second):
		t.Fatal("lost connection was not reported")
	}
	test.That(t, e.connected(), test.ShouldBeFalse)
	_, err = e.disp.GetConfig()
	test.That(t, err, test.ShouldEqual, controller.ErrNotConnected)

	// The read error was already reported through Lost.
	test.That(t, e.disconnect(), test.ShouldNotBeNil)
	test.That(t, e.port(), test.ShouldEqual, "")

	test.That(t, e.connect(""), test.ShouldBeNil)
	test.That(t, port.Opens(), test.ShouldEqual, 2)
	test.That(t, e.disconnect(), test.ShouldBeNil)
	test.That(t, port.Closed(), test.ShouldBeTrue)
}

func TestEngineConcurrentConnect(t *testing.T) {
	for round := 0; round < 10; round++ {
		a, b := &serialtest.FakePort{}, &serialtest.FakePort{}
		serialtest.Install(t, map[string]*serialtest.FakePort{"COM3": a, "COM4": b})
		e := newEngine(models.DefaultParameters())

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, name := range []string{"COM3", "COM4"} {
			wg.Add(1)
			go func(i int, name string) {
				defer wg.Done()
				errs[i] = e.connect(name)
			}(i, name)
		}
		wg.Wait()
		test.That(t, errs, test.ShouldResemble, []error{nil, nil})

		// The session that lost the race was closed, not leaked.
		test.That(t, a.Closed() != b.Closed(), test.ShouldBeTrue)
		if a.Closed() {
			test.That(t, e.port(), test.ShouldEqual, "COM4")
		} else {
			test.That(t, e.port(), test.ShouldEqual, "COM3")
		}
		test.That(t, e.close(), test.ShouldBeNil)
		test.That(t, a.Closed() && b.Closed(), test.ShouldBeTrue)
	}
}
