package serial

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.viam.com/test"
)

func popN(t *testing.T, q *LineQueue, n int) []string {
	t.Helper()
	var out []string
	for len(out) < n {
		line, err := q.Pop(context.Background(), 2*time.Second)
		test.That(t, err, test.ShouldBeNil)
		out = append(out, line)
	}
	return out
}

func TestTransport(t *testing.T) {
	t.Run("splits lines across reads", func(t *testing.T) {
		port := &fakePort{}
		useFakePorts(t, map[string]*fakePort{"/dev/ttyACM0": port})
		q := NewLineQueue()
		tr, err := Open(Config{Port: "/dev/ttyACM0", Baud: 115200, Timeout: time.Second}, q)
		test.That(t, err, test.ShouldBeNil)
		defer tr.Close()

		port.feed("Motor pulley te")
		port.feed("eth set to: 20\r\n\r\nPID Kp set to: 1.5\n")
		test.That(t, popN(t, q, 2), test.ShouldResemble,
			[]string{"Motor pulley teeth set to: 20", "PID Kp set to: 1.5"})
		test.That(t, tr.Connected(), test.ShouldBeTrue)
		test.That(t, tr.Name(), test.ShouldEqual, "/dev/ttyACM0")
	})

	t.Run("flushes an idle partial line", func(t *testing.T) {
		port := &fakePort{}
		useFakePorts(t, map[string]*fakePort{"COM3": port})
		q := NewLineQueue()
		tr, err := Open(Config{Port: "COM3", Baud: 115200, Timeout: 20 * time.Millisecond}, q)
		test.That(t, err, test.ShouldBeNil)
		defer tr.Close()

		port.feed("> ")
		test.That(t, popN(t, q, 1), test.ShouldResemble, []string{">"})
	})

	t.Run("send appends newline", func(t *testing.T) {
		port := &fakePort{}
		useFakePorts(t, map[string]*fakePort{"COM3": port})
		tr, err := Open(Config{Port: "COM3", Baud: 115200}, NewLineQueue())
		test.That(t, err, test.ShouldBeNil)

		test.That(t, tr.Send("set_pid_kp 1.5"), test.ShouldBeNil)
		test.That(t, port.sent(), test.ShouldEqual, "set_pid_kp 1.5\n")

		test.That(t, tr.Close(), test.ShouldBeNil)
		test.That(t, tr.Close(), test.ShouldBeNil)
		test.That(t, tr.Connected(), test.ShouldBeFalse)
		test.That(t, tr.Send("get_config"), test.ShouldEqual, ErrClosed)
	})

	t.Run("write timeout", func(t *testing.T) {
		port := &fakePort{block: make(chan struct{})}
		defer close(port.block)
		useFakePorts(t, map[string]*fakePort{"COM3": port})
		tr, err := Open(Config{Port: "COM3", Baud: 115200, Timeout: 10 * time.Millisecond}, NewLineQueue())
		test.That(t, err, test.ShouldBeNil)
		defer tr.Close()

		err = tr.Send("help")
		test.That(t, errors.Is(err, ErrWriteTimeout), test.ShouldBeTrue)
	})

	t.Run("read failure disconnects", func(t *testing.T) {
		port := &fakePort{}
		useFakePorts(t, map[string]*fakePort{"COM3": port})
		tr, err := Open(Config{Port: "COM3", Baud: 115200}, NewLineQueue())
		test.That(t, err, test.ShouldBeNil)

		port.fail(errors.New("device unplugged"))
		err = tr.Wait()
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "device unplugged")
		test.That(t, tr.Connected(), test.ShouldBeFalse)
	})

	t.Run("open errors", func(t *testing.T) {
		useFakePorts(t, map[string]*fakePort{})
		_, err := Open(Config{Port: "COM9"}, NewLineQueue())
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "open COM9")

		_, err = Open(Config{}, NewLineQueue())
		test.That(t, err, test.ShouldNotBeNil)
		_, err = Open(Config{Port: "COM3"}, nil)
		test.That(t, err, test.ShouldNotBeNil)
	})
}
