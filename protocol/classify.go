package protocol

import "strings"

// Kind tags a console line for presentation.
type Kind int

const (
	KindPlain Kind = iota
	KindSent
	KindOK
	KindError
	KindWarning
	KindProgress
	KindStatus
	KindSafety
	KindDetail
	KindHeader
)

// SentPrefix marks locally generated lines that echo a dispatched command.
const SentPrefix = "Sent:"

// Tag is the bracketed prefix the log views print for k, or "" when the line
// is shown as is.
func (k Kind) Tag() string {
	switch k {
	case KindOK:
		return "[OK]"
	case KindError:
		return "[ERROR]"
	case KindWarning:
		return "[WARN]"
	case KindProgress:
		return "[PROGRESS]"
	case KindStatus:
		return "[STATUS]"
	case KindSafety:
		return "[SAFETY]"
	}
	return ""
}

// Indented reports whether lines of kind k are shown indented under the
// preceding line.
func (k Kind) Indented() bool {
	return k == KindSent || k == KindDetail
}

var helpCommandWords = []string{
	CommandInvertThrottle, CommandLevelAssistant, CommandResetOdometer,
	CommandSetMotorPulley, CommandSetWheelPulley, CommandSetWheelSize,
	CommandSetMotorPoles, CommandGetConfig, CommandCalibrateThrottle,
	CommandGetCalibration, CommandSetPIDKp, CommandSetPIDKi, CommandSetPIDKd,
	CommandSetPIDOutputMax, CommandGetPIDParams, CommandSavePIDNVS,
	CommandResetPIDDefaults,
}

var calibrationDetails = []string{
	"Raw range:",
	"Calibrated range:",
	"Current ADC Reading:",
	"Current Mapped Value:",
	"Calibrated Min Value:",
	"Calibrated Max Value:",
	"Calibrated Range:",
}

// Classify decides how a cleaned line is presented.
func Classify(line string) Kind {
	switch {
	case strings.HasPrefix(line, SentPrefix):
		return KindSent
	case isHeader(line):
		return KindHeader
	case strings.Contains(line, "Unknown command:"),
		strings.HasPrefix(line, "Error:"),
		strings.Contains(line, "Calibration failed"),
		strings.Contains(line, "calibration failed"),
		strings.HasPrefix(line, "Failed"):
		return KindError
	case strings.HasPrefix(line, "Warning:"):
		return KindWarning
	case strings.Contains(line, "Calibration progress:"):
		return KindProgress
	case strings.Contains(line, "Calibration Status:"):
		return KindStatus
	case strings.Contains(line, "Throttle signals were set to neutral during calibration"):
		return KindSafety
	case strings.Contains(line, "set to:"),
		strings.Contains(line, "Throttle inversion:"),
		strings.Contains(line, "Level assistant:"),
		strings.Contains(line, "Odometer reset"),
		strings.Contains(line, "Calibration complete!"),
		strings.Contains(line, "calibration completed successfully"),
		strings.Contains(line, "saved to NVS successfully"),
		strings.Contains(line, "reset to defaults"):
		return KindOK
	}
	for _, d := range calibrationDetails {
		if strings.Contains(line, d) {
			return KindDetail
		}
	}
	if isHelpLine(line) {
		return KindDetail
	}
	return KindPlain
}

// isHelpLine matches the "  command <arg>   - description" rows of help.
func isHelpLine(line string) bool {
	if !strings.Contains(line, " - ") {
		return false
	}
	first := firstToken(line)
	if first == CommandHelp {
		return true
	}
	for _, c := range helpCommandWords {
		if first == c {
			return true
		}
	}
	return false
}
