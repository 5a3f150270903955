// Package ui renders console lines for the plain terminal views.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/CK6170/handcontroller-go/models"
	"github.com/CK6170/handcontroller-go/protocol"
)

var (
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	safetyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle   = lipgloss.NewStyle().Bold(true)
	labelStyle    = lipgloss.NewStyle().Width(20)
)

// StyleFor returns the style lines of kind k are drawn with.
func StyleFor(k protocol.Kind) lipgloss.Style {
	switch k {
	case protocol.KindOK:
		return okStyle
	case protocol.KindError:
		return errorStyle
	case protocol.KindWarning:
		return warnStyle
	case protocol.KindProgress:
		return progressStyle
	case protocol.KindStatus:
		return statusStyle
	case protocol.KindSafety:
		return safetyStyle
	case protocol.KindSent, protocol.KindDetail:
		return dimStyle
	case protocol.KindHeader:
		return headerStyle
	}
	return lipgloss.NewStyle()
}

// FormatLine prefixes line with its tag (or an indent) without styling.
func FormatLine(line string, k protocol.Kind) string {
	if tag := k.Tag(); tag != "" {
		return tag + " " + line
	}
	if k.Indented() {
		return "  " + line
	}
	return line
}

// RenderLine formats and styles one console line.
func RenderLine(line string, k protocol.Kind) string {
	return StyleFor(k).Render(FormatLine(line, k))
}

// PrintLine writes one styled console line to w.
func PrintLine(w io.Writer, line string, k protocol.Kind) {
	fmt.Fprintln(w, RenderLine(line, k))
}

// SentLine is the local echo of a dispatched command.
func SentLine(command string) string {
	return protocol.SentPrefix + " " + command
}

// FieldValue renders one configuration value for display.
func FieldValue(cfg models.HandConfig, f models.Field) string {
	switch f {
	case models.FieldInvertThrottle:
		return onOff(cfg.InvertThrottle)
	case models.FieldLevelAssistant:
		return onOff(cfg.LevelAssistant)
	case models.FieldMotorPulley:
		return fmt.Sprint(cfg.MotorPulley)
	case models.FieldWheelPulley:
		return fmt.Sprint(cfg.WheelPulley)
	case models.FieldWheelDiameterMM:
		return fmt.Sprintf("%d mm", cfg.WheelDiameterMM)
	case models.FieldMotorPoles:
		return fmt.Sprint(cfg.MotorPoles)
	case models.FieldBLEConnected:
		if cfg.BLEConnected {
			return "Connected"
		}
		return "Disconnected"
	case models.FieldPIDKp:
		return fmt.Sprintf("%.3f", cfg.PIDKp)
	case models.FieldPIDKi:
		return fmt.Sprintf("%.3f", cfg.PIDKi)
	case models.FieldPIDKd:
		return fmt.Sprintf("%.3f", cfg.PIDKd)
	case models.FieldPIDOutputMax:
		return fmt.Sprintf("%.1f", cfg.PIDOutputMax)
	}
	return ""
}

// ConfigTable renders every field as "Label  value" rows. Fields in
// highlight are styled as just updated.
func ConfigTable(cfg models.HandConfig, highlight protocol.Changes) string {
	var b strings.Builder
	for i, f := range models.Fields {
		if i > 0 {
			b.WriteByte('\n')
		}
		value := FieldValue(cfg, f)
		if highlight.Has(f) {
			value = okStyle.Render(value)
		}
		b.WriteString(labelStyle.Render(f.Label()))
		b.WriteString(value)
	}
	return b.String()
}

// PrintConfig writes the configuration table to w.
func PrintConfig(w io.Writer, cfg models.HandConfig) {
	fmt.Fprintln(w, headerStyle.Render("Configuration"))
	fmt.Fprintln(w, ConfigTable(cfg, nil))
}

// CalibrationSummary is a one-line description of the calibration state.
func CalibrationSummary(st protocol.CalibrationState) string {
	switch st.Phase {
	case protocol.PhaseCalibrating:
		return fmt.Sprintf("Calibrating... %d%%", st.Progress)
	case protocol.PhaseComplete:
		if st.Range > 0 {
			return fmt.Sprintf("Calibration complete (%d - %d)", st.Min, st.Max)
		}
		return "Calibration complete"
	case protocol.PhaseFailed:
		return "Calibration failed: " + st.Reason
	}
	if !st.Known {
		return "Calibration unknown"
	}
	if st.Calibrated {
		return fmt.Sprintf("Calibrated (%d - %d)", st.Min, st.Max)
	}
	return "Not calibrated"
}

func onOff(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}
