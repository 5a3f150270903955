// Package protocol understands the hand controller's console output: it
// strips terminal noise, recognises configuration echoes and calibration
// messages, and formats the commands the device accepts.
//
// The firmware speaks free text. Every marker below is matched verbatim and
// is a compatibility contract with the firmware's wording.
package protocol

import (
	"regexp"
	"strings"
)

var ansiEscape = regexp.MustCompile(`\x1B(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)

const promptMarker = ">"

// noiseMarkers are ESP-IDF log prefixes and duplicate log lines the device
// emits next to its plain console replies.
var noiseMarkers = []string{
	"I (",
	"USB_SERIAL: Processing command:",
	"USB_SERIAL: Parsed command type:",
	"USB_SERIAL: Motor pulley teeth set to:",
	"USB_SERIAL: Wheel pulley teeth set to:",
	"USB_SERIAL: Wheel diameter set to:",
	"USB_SERIAL: Motor poles set to:",
	"USB_SERIAL: Throttle inversion:",
	"USB_SERIAL: Level assistant:",
	"USB_SERIAL: Odometer reset",
	"USB_SERIAL: Configuration:",
	"USB_SERIAL: Available commands:",
	"USB_SERIAL: Unknown command:",
}

// StripANSI removes terminal color and cursor escape sequences. Removal is
// repeated until no sequence is left so that the result is stable.
func StripANSI(s string) string {
	for ansiEscape.MatchString(s) {
		s = ansiEscape.ReplaceAllString(s, "")
	}
	return s
}

// Clean removes escape codes, prompts, blank lines and log noise from a raw
// chunk. It reports false when nothing is left.
func Clean(raw string) (string, bool) {
	lines := strings.Split(StripANSI(raw), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || line == promptMarker {
			continue
		}
		if isNoise(line) {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, "\n"), true
}

func isNoise(line string) bool {
	for _, m := range noiseMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}
