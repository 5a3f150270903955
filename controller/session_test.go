package controller

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/CK6170/handcontroller-go/models"
	serialpkg "github.com/CK6170/handcontroller-go/serial"
	"github.com/CK6170/handcontroller-go/serial/serialtest"
)

func TestSession(t *testing.T) {
	port := &serialtest.FakePort{}
	serialtest.Install(t, map[string]*serialtest.FakePort{"COM3": port})

	p := models.DefaultParameters()
	p.SERIAL.PORT = "COM3"
	queue := serialpkg.NewLineQueue()
	sess, err := Connect(p, queue)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sess.Connected(), test.ShouldBeTrue)
	test.That(t, sess.Port(), test.ShouldEqual, "COM3")

	test.That(t, sess.Send("get_config"), test.ShouldBeNil)
	test.That(t, port.Written(), test.ShouldEqual, "get_config\n")

	port.Feed("Motor poles set to: 12\n")
	line, err := queue.Pop(context.Background(), 2*time.Second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, line, test.ShouldEqual, "Motor poles set to: 12")

	test.That(t, sess.Close(), test.ShouldBeNil)
	test.That(t, port.Closed(), test.ShouldBeTrue)
	test.That(t, sess.Connected(), test.ShouldBeFalse)
	test.That(t, sess.Send("help"), test.ShouldEqual, ErrNotConnected)
	test.That(t, port.Written(), test.ShouldEqual, "get_config\n")
}

func TestSessionErrors(t *testing.T) {
	serialtest.Install(t, map[string]*serialtest.FakePort{})

	_, err := Connect(nil, serialpkg.NewLineQueue())
	test.That(t, err, test.ShouldNotBeNil)

	p := models.DefaultParameters()
	p.SERIAL.PORT = "COM9"
	_, err = Connect(p, serialpkg.NewLineQueue())
	test.That(t, err, test.ShouldNotBeNil)

	var sess *Session
	test.That(t, sess.Connected(), test.ShouldBeFalse)
	test.That(t, sess.Port(), test.ShouldEqual, "")
	test.That(t, sess.Close(), test.ShouldBeNil)
	test.That(t, sess.Send("help"), test.ShouldEqual, ErrNotConnected)
}
