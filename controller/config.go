package controller

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/CK6170/handcontroller-go/models"
	serialpkg "github.com/CK6170/handcontroller-go/serial"
)

// autoDetectPort is replaced in tests.
var autoDetectPort = serialpkg.AutoDetectPort

// LoadParameters reads the settings file at path. A missing file yields the
// defaults; a file that exists but cannot be decoded is an error.
func LoadParameters(path string) (*models.PARAMETERS, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("path", path).Msg("no settings file, using defaults")
		return models.DefaultParameters(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var p models.PARAMETERS
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	p.Normalize()
	return &p, nil
}

func PersistParameters(path string, p *models.PARAMETERS) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode settings")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// EnsureSerialPort auto-detects the serial port if none is configured. When
// persist is set and the settings file already exists, the detected port is
// written back to it.
func EnsureSerialPort(ctx context.Context, configPath string, p *models.PARAMETERS, persist bool) (changed bool, err error) {
	if p == nil || p.SERIAL == nil {
		return false, errors.New("missing SERIAL section")
	}
	if strings.TrimSpace(p.SERIAL.PORT) != "" {
		return false, nil
	}
	port, err := autoDetectPort(ctx)
	if err != nil {
		return false, err
	}
	p.SERIAL.PORT = port
	log.Info().Str("port", port).Msg("serial port auto-detected")
	if !persist || configPath == "" {
		return true, nil
	}
	if _, statErr := os.Stat(configPath); statErr != nil {
		return true, nil
	}
	return true, PersistParameters(configPath, p)
}
