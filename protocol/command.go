package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Console commands understood by the firmware.
const (
	CommandInvertThrottle    = "invert_throttle"
	CommandLevelAssistant    = "level_assistant"
	CommandResetOdometer     = "reset_odometer"
	CommandSetMotorPulley    = "set_motor_pulley"
	CommandSetWheelPulley    = "set_wheel_pulley"
	CommandSetWheelSize      = "set_wheel_size"
	CommandSetMotorPoles     = "set_motor_poles"
	CommandGetConfig         = "get_config"
	CommandCalibrateThrottle = "calibrate_throttle"
	CommandGetCalibration    = "get_calibration"
	CommandSetPIDKp          = "set_pid_kp"
	CommandSetPIDKi          = "set_pid_ki"
	CommandSetPIDKd          = "set_pid_kd"
	CommandSetPIDOutputMax   = "set_pid_output_max"
	CommandGetPIDParams      = "get_pid_params"
	CommandSavePIDNVS        = "save_pid_nvs"
	CommandResetPIDDefaults  = "reset_pid_defaults"
	CommandHelp              = "help"
)

// ArgKind is the argument a command takes.
type ArgKind int

const (
	ArgNone ArgKind = iota
	ArgInt
	ArgFloat
)

// Spec describes one command and the range its argument must fall in.
type Spec struct {
	Name  string
	Arg   ArgKind
	Min   float64
	Max   float64
	Usage string
}

var specs = []Spec{
	{Name: CommandInvertThrottle, Usage: "Toggle throttle inversion"},
	{Name: CommandLevelAssistant, Usage: "Toggle level assistant"},
	{Name: CommandResetOdometer, Usage: "Reset trip distance to 0"},
	{Name: CommandSetMotorPulley, Arg: ArgInt, Min: 1, Max: 255, Usage: "Set motor pulley teeth count"},
	{Name: CommandSetWheelPulley, Arg: ArgInt, Min: 1, Max: 255, Usage: "Set wheel pulley teeth count"},
	{Name: CommandSetWheelSize, Arg: ArgInt, Min: 1, Max: 255, Usage: "Set wheel diameter in mm"},
	{Name: CommandSetMotorPoles, Arg: ArgInt, Min: 1, Max: 255, Usage: "Set motor pole count"},
	{Name: CommandGetConfig, Usage: "Show current configuration"},
	{Name: CommandCalibrateThrottle, Usage: "Start 6 s throttle calibration"},
	{Name: CommandGetCalibration, Usage: "Show calibration values"},
	{Name: CommandSetPIDKp, Arg: ArgFloat, Min: 0, Max: 10, Usage: "Set PID proportional gain"},
	{Name: CommandSetPIDKi, Arg: ArgFloat, Min: 0, Max: 2, Usage: "Set PID integral gain"},
	{Name: CommandSetPIDKd, Arg: ArgFloat, Min: 0, Max: 1, Usage: "Set PID derivative gain"},
	{Name: CommandSetPIDOutputMax, Arg: ArgFloat, Min: 10, Max: 100, Usage: "Set PID max output"},
	{Name: CommandGetPIDParams, Usage: "Show current PID parameters"},
	{Name: CommandSavePIDNVS, Usage: "Save current PID parameters to flash"},
	{Name: CommandResetPIDDefaults, Usage: "Reset PID parameters to defaults"},
	{Name: CommandHelp, Usage: "Show device help"},
}

// ErrUnknownCommand is returned for names outside the command set.
var ErrUnknownCommand = errors.New("unknown command")

// RangeError reports an argument outside the range the device accepts.
type RangeError struct {
	Command string
	Value   float64
	Min     float64
	Max     float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: value %s must be between %s and %s",
		e.Command, formatNumber(e.Value), formatNumber(e.Min), formatNumber(e.Max))
}

// Specs returns the command table in menu order.
func Specs() []Spec {
	out := make([]Spec, len(specs))
	copy(out, specs)
	return out
}

// Lookup finds the spec for name.
func Lookup(name string) (Spec, bool) {
	for _, s := range specs {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// Format validates and renders a command without an argument.
func Format(name string) (string, error) {
	s, ok := Lookup(name)
	if !ok {
		return "", errors.Wrap(ErrUnknownCommand, name)
	}
	if s.Arg != ArgNone {
		return "", errors.Errorf("%s requires a value", name)
	}
	return name, nil
}

// FormatInt validates and renders a command with an integer argument.
func FormatInt(name string, v int) (string, error) {
	s, ok := Lookup(name)
	if !ok {
		return "", errors.Wrap(ErrUnknownCommand, name)
	}
	if s.Arg != ArgInt {
		return "", errors.Errorf("%s does not take an integer", name)
	}
	if err := s.check(float64(v)); err != nil {
		return "", err
	}
	return name + " " + strconv.Itoa(v), nil
}

// FormatFloat validates and renders a command with a decimal argument.
func FormatFloat(name string, v float64) (string, error) {
	s, ok := Lookup(name)
	if !ok {
		return "", errors.Wrap(ErrUnknownCommand, name)
	}
	if s.Arg != ArgFloat {
		return "", errors.Errorf("%s does not take a decimal value", name)
	}
	if err := s.check(v); err != nil {
		return "", err
	}
	return name + " " + formatDecimal(v), nil
}

// Parse builds a command line from a name and its textual argument, as typed
// by a user.
func Parse(name, arg string) (string, error) {
	s, ok := Lookup(strings.TrimSpace(name))
	if !ok {
		return "", errors.Wrap(ErrUnknownCommand, name)
	}
	arg = strings.TrimSpace(arg)
	switch s.Arg {
	case ArgInt:
		n, err := strconv.Atoi(arg)
		if err != nil {
			return "", errors.Errorf("%s: %q is not a whole number", s.Name, arg)
		}
		return FormatInt(s.Name, n)
	case ArgFloat:
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return "", errors.Errorf("%s: %q is not a number", s.Name, arg)
		}
		return FormatFloat(s.Name, v)
	}
	if arg != "" {
		return "", errors.Errorf("%s takes no value", s.Name)
	}
	return s.Name, nil
}

func (s Spec) check(v float64) error {
	if math.IsNaN(v) || v < s.Min || v > s.Max {
		return &RangeError{Command: s.Name, Value: v, Min: s.Min, Max: s.Max}
	}
	return nil
}

// formatDecimal renders v with the fewest digits that round-trip, keeping
// at least one decimal place ("48.0", "1.25").
func formatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
