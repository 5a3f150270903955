package controller

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/CK6170/handcontroller-go/protocol"
)

// ErrNotConnected is returned when a command is dispatched with no open
// connection. Nothing is written.
var ErrNotConnected = errors.New("not connected to a device")

// Sender writes one command line to the device.
type Sender interface {
	Send(command string) error
	Connected() bool
}

// Dispatcher validates commands and forwards them to the attached
// connection. Every method returns the exact line that was written so the
// caller can echo it. Arguments are range checked before anything is sent.
type Dispatcher struct {
	mu   sync.Mutex
	conn Sender
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Attach routes subsequent commands to s. Passing nil detaches.
func (d *Dispatcher) Attach(s Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conn = s
}

func (d *Dispatcher) Detach() { d.Attach(nil) }

// Connected reports whether a live connection is attached.
func (d *Dispatcher) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil && d.conn.Connected()
}

func (d *Dispatcher) send(command string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil || !conn.Connected() {
		return "", ErrNotConnected
	}
	if err := conn.Send(command); err != nil {
		log.Warn().Err(err).Str("command", command).Msg("command not sent")
		return "", err
	}
	return command, nil
}

func (d *Dispatcher) plain(name string) (string, error) {
	return d.send(protocol.Format(name))
}

func (d *Dispatcher) InvertThrottle() (string, error) {
	return d.plain(protocol.CommandInvertThrottle)
}

func (d *Dispatcher) LevelAssistant() (string, error) {
	return d.plain(protocol.CommandLevelAssistant)
}

func (d *Dispatcher) ResetOdometer() (string, error) {
	return d.plain(protocol.CommandResetOdometer)
}

// SetMotorPulley sets the motor pulley tooth count (1-255).
func (d *Dispatcher) SetMotorPulley(teeth int) (string, error) {
	return d.send(protocol.FormatInt(protocol.CommandSetMotorPulley, teeth))
}

// SetWheelPulley sets the wheel pulley tooth count (1-255).
func (d *Dispatcher) SetWheelPulley(teeth int) (string, error) {
	return d.send(protocol.FormatInt(protocol.CommandSetWheelPulley, teeth))
}

// SetWheelSize sets the wheel diameter in millimetres (1-255).
func (d *Dispatcher) SetWheelSize(mm int) (string, error) {
	return d.send(protocol.FormatInt(protocol.CommandSetWheelSize, mm))
}

// SetMotorPoles sets the motor pole count (1-255).
func (d *Dispatcher) SetMotorPoles(poles int) (string, error) {
	return d.send(protocol.FormatInt(protocol.CommandSetMotorPoles, poles))
}

func (d *Dispatcher) GetConfig() (string, error) {
	return d.plain(protocol.CommandGetConfig)
}

func (d *Dispatcher) CalibrateThrottle() (string, error) {
	return d.plain(protocol.CommandCalibrateThrottle)
}

func (d *Dispatcher) GetCalibration() (string, error) {
	return d.plain(protocol.CommandGetCalibration)
}

// SetPIDKp sets the proportional gain (0-10).
func (d *Dispatcher) SetPIDKp(v float64) (string, error) {
	return d.send(protocol.FormatFloat(protocol.CommandSetPIDKp, v))
}

// SetPIDKi sets the integral gain (0-2).
func (d *Dispatcher) SetPIDKi(v float64) (string, error) {
	return d.send(protocol.FormatFloat(protocol.CommandSetPIDKi, v))
}

// SetPIDKd sets the derivative gain (0-1).
func (d *Dispatcher) SetPIDKd(v float64) (string, error) {
	return d.send(protocol.FormatFloat(protocol.CommandSetPIDKd, v))
}

// SetPIDOutputMax sets the output limit (10-100).
func (d *Dispatcher) SetPIDOutputMax(v float64) (string, error) {
	return d.send(protocol.FormatFloat(protocol.CommandSetPIDOutputMax, v))
}

func (d *Dispatcher) GetPIDParams() (string, error) {
	return d.plain(protocol.CommandGetPIDParams)
}

func (d *Dispatcher) SavePIDNVS() (string, error) {
	return d.plain(protocol.CommandSavePIDNVS)
}

func (d *Dispatcher) ResetPIDDefaults() (string, error) {
	return d.plain(protocol.CommandResetPIDDefaults)
}

func (d *Dispatcher) Help() (string, error) {
	return d.plain(protocol.CommandHelp)
}

// Dispatch sends a command given by name with its argument as typed.
func (d *Dispatcher) Dispatch(name, arg string) (string, error) {
	return d.send(protocol.Parse(name, arg))
}
