package protocol

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/CK6170/handcontroller-go/models"
)

const (
	pidBlockHeader    = "=== Level Assistant PID Parameters ==="
	configBlockMarker = "Current Configuration"
	configMarker      = "Configuration:"
	wheelDiameterEcho = "Wheel diameter set to:"
	wheelDiameterUnit = "mm"
)

type echo struct {
	marker string
	field  models.Field
}

var floatEchoes = []echo{
	{"PID Kp set to:", models.FieldPIDKp},
	{"PID Ki set to:", models.FieldPIDKi},
	{"PID Kd set to:", models.FieldPIDKd},
	{"PID Output Max set to:", models.FieldPIDOutputMax},
}

var intEchoes = []echo{
	{"Motor pulley teeth set to:", models.FieldMotorPulley},
	{"Wheel pulley teeth set to:", models.FieldWheelPulley},
	{"Motor poles set to:", models.FieldMotorPoles},
}

var pidBlockLabels = []echo{
	{"Kp (Proportional):", models.FieldPIDKp},
	{"Ki (Integral):", models.FieldPIDKi},
	{"Kd (Derivative):", models.FieldPIDKd},
	{"Output Max:", models.FieldPIDOutputMax},
}

var displayLabels = []string{
	"Throttle Inverted:",
	"Motor Pulley Teeth:",
	"Wheel Pulley Teeth:",
	"Wheel Diameter:",
	"Motor Poles:",
	"BLE Connected:",
}

// pidSummary matches the line printed after save_pid_nvs and reset_pid_defaults.
var pidSummary = regexp.MustCompile(`Kp=([-+0-9.]+),\s*Ki=([-+0-9.]+),\s*Kd=([-+0-9.]+),\s*OutMax=([-+0-9.]+)`)

type blockMode int

const (
	blockNone blockMode = iota
	blockPID
	blockConfig
)

// Parser applies cleaned device output to a HandConfig. It remembers which
// multi-line block ("=== ... ===" section) the device is printing so that
// blocks delivered one line at a time are understood as a whole.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	block blockMode
}

// NewParser returns a Parser outside of any block.
func NewParser() *Parser {
	return &Parser{}
}

// Parse updates cfg from text and reports the fields it touched. It never
// fails: unparseable payloads are logged and leave the field unchanged.
func (p *Parser) Parse(text string, cfg *models.HandConfig) Changes {
	var ch Changes
	display := isDisplayResponse(text)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if isHeader(line) {
			p.enterBlock(line)
		}
		p.parseLine(line, cfg, &ch)
		if p.block == blockConfig && !display {
			ch.merge(ParseDisplay(line, cfg))
		}
	}
	if display {
		ch.merge(ParseDisplay(text, cfg))
	}
	return ch
}

// Reset forgets any open block.
func (p *Parser) Reset() {
	p.block = blockNone
}

func (p *Parser) enterBlock(header string) {
	switch {
	case strings.Contains(header, pidBlockHeader):
		p.block = blockPID
	case strings.Contains(header, configBlockMarker):
		p.block = blockConfig
	default:
		p.block = blockNone
	}
}

func (p *Parser) parseLine(line string, cfg *models.HandConfig, ch *Changes) {
	switch {
	case strings.Contains(line, "Throttle inversion: ENABLED"):
		cfg.InvertThrottle = true
		ch.add(models.FieldInvertThrottle)
	case strings.Contains(line, "Throttle inversion: DISABLED"):
		cfg.InvertThrottle = false
		ch.add(models.FieldInvertThrottle)
	}
	switch {
	case strings.Contains(line, "Level assistant: ENABLED"):
		cfg.LevelAssistant = true
		ch.add(models.FieldLevelAssistant)
	case strings.Contains(line, "Level assistant: DISABLED"):
		cfg.LevelAssistant = false
		ch.add(models.FieldLevelAssistant)
	}

	for _, e := range floatEchoes {
		if v, ok := valueAfter(line, e.marker); ok {
			applyFloat(cfg, e.field, v, ch)
		}
	}
	if p.block == blockPID {
		for _, e := range pidBlockLabels {
			if !strings.Contains(line, e.marker) {
				continue
			}
			_, v, _ := strings.Cut(line, ":")
			applyFloat(cfg, e.field, v, ch)
		}
	}
	if m := pidSummary.FindStringSubmatch(line); m != nil {
		for i, f := range []models.Field{models.FieldPIDKp, models.FieldPIDKi, models.FieldPIDKd, models.FieldPIDOutputMax} {
			applyFloat(cfg, f, m[i+1], ch)
		}
	}

	for _, e := range intEchoes {
		if v, ok := valueAfter(line, e.marker); ok {
			applyInt(cfg, e.field, v, ch)
		}
	}
	if v, ok := valueAfter(line, wheelDiameterEcho); ok {
		before, _, _ := strings.Cut(v, wheelDiameterUnit)
		applyInt(cfg, models.FieldWheelDiameterMM, firstToken(before), ch)
	}
}

func applyFloat(cfg *models.HandConfig, field models.Field, raw string, ch *Changes) {
	v, err := parseFloat(raw)
	if err != nil {
		log.Debug().Err(err).Str("field", string(field)).Msg("echo value not applied")
		return
	}
	setFloat(cfg, field, v)
	ch.add(field)
}

func applyInt(cfg *models.HandConfig, field models.Field, raw string, ch *Changes) {
	n, err := parseInt(raw)
	if err != nil {
		log.Debug().Err(err).Str("field", string(field)).Msg("echo value not applied")
		return
	}
	setInt(cfg, field, n)
	ch.add(field)
}

// valueAfter returns the trimmed remainder of line following marker.
func valueAfter(line, marker string) (string, bool) {
	i := strings.Index(line, marker)
	if i < 0 {
		return "", false
	}
	return strings.TrimSpace(line[i+len(marker):]), true
}

func isHeader(line string) bool {
	return len(line) > 6 && strings.HasPrefix(line, "===") && strings.HasSuffix(line, "===")
}

func isDisplayResponse(text string) bool {
	if strings.Contains(text, configBlockMarker) || strings.Contains(text, configMarker) {
		return true
	}
	for _, l := range displayLabels {
		if strings.Contains(text, l) {
			return true
		}
	}
	return false
}

// Changes lists the configuration fields touched by one parse, in the order
// they were first touched.
type Changes []models.Field

func (c *Changes) add(f models.Field) {
	if c.Has(f) {
		return
	}
	*c = append(*c, f)
}

func (c *Changes) merge(other Changes) {
	for _, f := range other {
		c.add(f)
	}
}

// Has reports whether f was touched.
func (c Changes) Has(f models.Field) bool {
	for _, x := range c {
		if x == f {
			return true
		}
	}
	return false
}
