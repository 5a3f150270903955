package protocol

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestFormatInt(t *testing.T) {
	for _, v := range []int{0, 256, -1} {
		_, err := FormatInt(CommandSetMotorPulley, v)
		test.That(t, err, test.ShouldNotBeNil)
		var re *RangeError
		test.That(t, errors.As(err, &re), test.ShouldBeTrue)
		test.That(t, re.Command, test.ShouldEqual, CommandSetMotorPulley)
	}
	for _, v := range []int{1, 255} {
		line, err := FormatInt(CommandSetMotorPulley, v)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, line, test.ShouldStartWith, "set_motor_pulley ")
	}
	line, err := FormatInt(CommandSetWheelSize, 115)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, line, test.ShouldEqual, "set_wheel_size 115")

	_, err = FormatInt(CommandSetPIDKp, 1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFormatFloat(t *testing.T) {
	for _, tc := range []struct {
		name string
		v    float64
		want string
	}{
		{CommandSetPIDKp, 1.25, "set_pid_kp 1.25"},
		{CommandSetPIDKp, 0, "set_pid_kp 0.0"},
		{CommandSetPIDKp, 10, "set_pid_kp 10.0"},
		{CommandSetPIDKi, 2, "set_pid_ki 2.0"},
		{CommandSetPIDKd, 0.05, "set_pid_kd 0.05"},
		{CommandSetPIDOutputMax, 48, "set_pid_output_max 48.0"},
	} {
		got, err := FormatFloat(tc.name, tc.v)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldEqual, tc.want)
	}
	for _, tc := range []struct {
		name string
		v    float64
	}{
		{CommandSetPIDKp, -0.1},
		{CommandSetPIDKp, 10.01},
		{CommandSetPIDKi, 2.5},
		{CommandSetPIDKd, 1.1},
		{CommandSetPIDOutputMax, 9.9},
		{CommandSetPIDOutputMax, 100.5},
		{CommandSetPIDKp, math.NaN()},
	} {
		_, err := FormatFloat(tc.name, tc.v)
		test.That(t, err, test.ShouldNotBeNil)
	}
}

func TestParseCommand(t *testing.T) {
	line, err := Parse("get_config", "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, line, test.ShouldEqual, "get_config")

	line, err = Parse("set_motor_poles", " 14 ")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, line, test.ShouldEqual, "set_motor_poles 14")

	line, err = Parse("set_pid_kd", "0.075")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, line, test.ShouldEqual, "set_pid_kd 0.075")

	_, err = Parse("set_motor_poles", "many")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = Parse("get_config", "1")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = Parse("reboot", "")
	test.That(t, errors.Is(err, ErrUnknownCommand), test.ShouldBeTrue)
	_, err = Format(CommandSetPIDKp)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSpecs(t *testing.T) {
	names := map[string]bool{}
	for _, s := range Specs() {
		names[s.Name] = true
	}
	for _, n := range []string{
		"invert_throttle", "level_assistant", "reset_odometer", "set_motor_pulley",
		"set_wheel_pulley", "set_wheel_size", "set_motor_poles", "get_config",
		"calibrate_throttle", "get_calibration", "set_pid_kp", "set_pid_ki",
		"set_pid_kd", "set_pid_output_max", "get_pid_params", "help",
	} {
		test.That(t, names[n], test.ShouldBeTrue)
	}
}
