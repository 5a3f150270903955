package models

// HandConfig is the client-side cache of the configuration reported by the
// device. It is only authoritative right after the device echoed a value.
type HandConfig struct {
	InvertThrottle  bool    `json:"invert_throttle"`
	LevelAssistant  bool    `json:"level_assistant"`
	MotorPulley     int     `json:"motor_pulley"`
	WheelPulley     int     `json:"wheel_pulley"`
	WheelDiameterMM int     `json:"wheel_diameter_mm"`
	MotorPoles      int     `json:"motor_poles"`
	BLEConnected    bool    `json:"ble_connected"`
	PIDKp           float64 `json:"pid_kp"`
	PIDKi           float64 `json:"pid_ki"`
	PIDKd           float64 `json:"pid_kd"`
	PIDOutputMax    float64 `json:"pid_output_max"`
}

// DefaultHandConfig returns the values shown before the device reports anything.
func DefaultHandConfig() HandConfig {
	return HandConfig{
		MotorPulley:     15,
		WheelPulley:     33,
		WheelDiameterMM: 115,
		MotorPoles:      14,
		PIDKp:           0.8,
		PIDKi:           0.5,
		PIDKd:           0.05,
		PIDOutputMax:    48.0,
	}
}

// Field identifies one configuration entry.
type Field string

const (
	FieldInvertThrottle  Field = "invert_throttle"
	FieldLevelAssistant  Field = "level_assistant"
	FieldMotorPulley     Field = "motor_pulley"
	FieldWheelPulley     Field = "wheel_pulley"
	FieldWheelDiameterMM Field = "wheel_diameter_mm"
	FieldMotorPoles      Field = "motor_poles"
	FieldBLEConnected    Field = "ble_connected"
	FieldPIDKp           Field = "pid_kp"
	FieldPIDKi           Field = "pid_ki"
	FieldPIDKd           Field = "pid_kd"
	FieldPIDOutputMax    Field = "pid_output_max"
)

// Fields lists every field in display order.
var Fields = []Field{
	FieldInvertThrottle,
	FieldLevelAssistant,
	FieldMotorPulley,
	FieldWheelPulley,
	FieldWheelDiameterMM,
	FieldMotorPoles,
	FieldBLEConnected,
	FieldPIDKp,
	FieldPIDKi,
	FieldPIDKd,
	FieldPIDOutputMax,
}

// Label is the human readable name used by the UIs.
func (f Field) Label() string {
	switch f {
	case FieldInvertThrottle:
		return "Throttle Inverted"
	case FieldLevelAssistant:
		return "Level Assistant"
	case FieldMotorPulley:
		return "Motor Pulley Teeth"
	case FieldWheelPulley:
		return "Wheel Pulley Teeth"
	case FieldWheelDiameterMM:
		return "Wheel Diameter"
	case FieldMotorPoles:
		return "Motor Poles"
	case FieldBLEConnected:
		return "BLE Connected"
	case FieldPIDKp:
		return "PID Kp"
	case FieldPIDKi:
		return "PID Ki"
	case FieldPIDKd:
		return "PID Kd"
	case FieldPIDOutputMax:
		return "PID Output Max"
	}
	return string(f)
}
