package protocol

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/CK6170/handcontroller-go/models"
)

var (
	enabledWords   = []string{"yes", "enabled", "true"}
	connectedWords = []string{"yes", "connected", "true"}
)

// displayKeys maps the labels printed by get_config (and their sentence
// cased variants) to configuration fields.
var displayKeys = map[string]models.Field{
	"Throttle Inverted":  models.FieldInvertThrottle,
	"Throttle inversion": models.FieldInvertThrottle,
	"Level Assistant":    models.FieldLevelAssistant,
	"Level assistant":    models.FieldLevelAssistant,
	"Motor Pulley Teeth": models.FieldMotorPulley,
	"Motor pulley teeth": models.FieldMotorPulley,
	"Wheel Pulley Teeth": models.FieldWheelPulley,
	"Wheel pulley teeth": models.FieldWheelPulley,
	"Wheel Diameter":     models.FieldWheelDiameterMM,
	"Wheel diameter":     models.FieldWheelDiameterMM,
	"Motor Poles":        models.FieldMotorPoles,
	"Motor poles":        models.FieldMotorPoles,
	"BLE Connected":      models.FieldBLEConnected,
	"BLE connected":      models.FieldBLEConnected,
}

// ParseDisplay applies every "key: value" line of text to cfg. Lines with
// unknown keys are skipped. A line that fails to parse is logged and does
// not stop the remaining lines; fields parsed before it stay updated.
func ParseDisplay(text string, cfg *models.HandConfig) Changes {
	var ch Changes
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		field, known := displayKeys[key]
		if !known {
			continue
		}
		if err := applyDisplayValue(cfg, field, value); err != nil {
			log.Debug().Err(err).Str("line", line).Msg("display line not applied")
			continue
		}
		ch.add(field)
	}
	return ch
}

func applyDisplayValue(cfg *models.HandConfig, field models.Field, value string) error {
	switch field {
	case models.FieldInvertThrottle:
		cfg.InvertThrottle = oneOf(value, enabledWords)
	case models.FieldLevelAssistant:
		cfg.LevelAssistant = oneOf(value, enabledWords)
	case models.FieldBLEConnected:
		cfg.BLEConnected = oneOf(value, connectedWords)
	case models.FieldWheelDiameterMM:
		n, err := parseInt(firstToken(value))
		if err != nil {
			return errors.Wrapf(err, "%s", field)
		}
		cfg.WheelDiameterMM = n
	default:
		n, err := parseInt(value)
		if err != nil {
			return errors.Wrapf(err, "%s", field)
		}
		setInt(cfg, field, n)
	}
	return nil
}

func setInt(cfg *models.HandConfig, field models.Field, n int) {
	switch field {
	case models.FieldMotorPulley:
		cfg.MotorPulley = n
	case models.FieldWheelPulley:
		cfg.WheelPulley = n
	case models.FieldWheelDiameterMM:
		cfg.WheelDiameterMM = n
	case models.FieldMotorPoles:
		cfg.MotorPoles = n
	}
}

func setFloat(cfg *models.HandConfig, field models.Field, v float64) {
	switch field {
	case models.FieldPIDKp:
		cfg.PIDKp = v
	case models.FieldPIDKi:
		cfg.PIDKi = v
	case models.FieldPIDKd:
		cfg.PIDKd = v
	case models.FieldPIDOutputMax:
		cfg.PIDOutputMax = v
	}
}

func oneOf(value string, words []string) bool {
	v := strings.ToLower(value)
	for _, w := range words {
		if v == w {
			return true
		}
	}
	return false
}

func firstToken(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return s
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(err, "parse integer %q", s)
	}
	return n, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse float %q", s)
	}
	return v, nil
}
