package models

// Serial link defaults for the hand controller's USB console.
const (
	DefaultBaudRate  = 115200
	DefaultTimeoutMS = 1000
	// DefaultCalibrationTimeoutS covers the firmware's 6 s sampling window
	// plus the time it takes to persist the result.
	DefaultCalibrationTimeoutS = 15
)

// SERIAL describes the serial connection to the device.
type SERIAL struct {
	PORT      string `json:"PORT"`
	BAUDRATE  int    `json:"BAUDRATE"`
	TIMEOUTMS int    `json:"TIMEOUTMS"`
}

// PARAMETERS is the on-disk settings file of the tool.
type PARAMETERS struct {
	SERIAL              *SERIAL `json:"SERIAL"`
	DEBUG               bool    `json:"DEBUG"`
	LOGFILE             string  `json:"LOGFILE,omitempty"`
	CALIBRATIONTIMEOUTS int     `json:"CALIBRATIONTIMEOUTS,omitempty"`
}

// DefaultParameters returns settings used when no file exists.
func DefaultParameters() *PARAMETERS {
	return &PARAMETERS{
		SERIAL: &SERIAL{
			BAUDRATE:  DefaultBaudRate,
			TIMEOUTMS: DefaultTimeoutMS,
		},
		CALIBRATIONTIMEOUTS: DefaultCalibrationTimeoutS,
	}
}

// Normalize fills zero values with defaults.
func (p *PARAMETERS) Normalize() {
	if p.SERIAL == nil {
		p.SERIAL = &SERIAL{}
	}
	if p.SERIAL.BAUDRATE <= 0 {
		p.SERIAL.BAUDRATE = DefaultBaudRate
	}
	if p.SERIAL.TIMEOUTMS <= 0 {
		p.SERIAL.TIMEOUTMS = DefaultTimeoutMS
	}
	if p.CALIBRATIONTIMEOUTS <= 0 {
		p.CALIBRATIONTIMEOUTS = DefaultCalibrationTimeoutS
	}
}
