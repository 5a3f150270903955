package serial

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial/enumerator"
	"golang.org/x/sync/errgroup"
)

// EspressifVID is the USB vendor ID of the ESP32-S3/C3 built-in USB serial.
const EspressifVID = "303A"

const probeParallelism = 8

// PortInfo describes a serial device that could be opened.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

func (p PortInfo) String() string {
	if !p.IsUSB {
		return p.Name
	}
	desc := strings.TrimSpace(p.Product)
	if desc == "" {
		desc = "USB"
	}
	return fmt.Sprintf("%s (%s %s:%s)", p.Name, desc, p.VID, p.PID)
}

// Espressif reports whether the port belongs to an ESP32 USB interface.
func (p PortInfo) Espressif() bool {
	return p.IsUSB && strings.EqualFold(p.VID, EspressifVID)
}

// Variables so tests can replace platform lookups.
var (
	detailedPorts = enumerator.GetDetailedPortsList
	globPorts     = filepath.Glob
	goos          = runtime.GOOS
)

// Candidates returns the device paths worth probing on this platform.
func Candidates() []string {
	switch goos {
	case "windows":
		out := make([]string, 0, 256)
		for i := 1; i <= 256; i++ {
			out = append(out, fmt.Sprintf("COM%d", i))
		}
		return out
	case "darwin":
		matches, _ := globPorts("/dev/tty.*")
		return matches
	default:
		matches, _ := globPorts("/dev/tty[A-Za-z]*")
		return matches
	}
}

// ListPorts merges the OS enumerator's USB details with the platform
// candidates and keeps only ports that can actually be opened. USB ports
// sort first.
func ListPorts(ctx context.Context) ([]PortInfo, error) {
	byName := map[string]PortInfo{}
	var order []string
	add := func(p PortInfo) {
		if _, ok := byName[p.Name]; !ok {
			order = append(order, p.Name)
		}
		byName[p.Name] = p
	}

	details, err := detailedPorts()
	if err != nil {
		log.Debug().Err(err).Msg("port enumerator unavailable, falling back to device scan")
	}
	for _, d := range details {
		add(PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	for _, name := range Candidates() {
		if _, ok := byName[name]; !ok {
			add(PortInfo{Name: name})
		}
	}

	usable := make([]bool, len(order))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(probeParallelism)
	for i, name := range order {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			usable[i] = ProbePort(name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "probe serial ports")
	}

	out := make([]PortInfo, 0, len(order))
	for i, name := range order {
		if usable[i] {
			out = append(out, byName[name])
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].IsUSB && !out[b].IsUSB
	})
	return out, nil
}

// ProbePort reports whether name can be opened at the device baud rate.
func ProbePort(name string) bool {
	cfg := Config{Port: name, Baud: 115200, Timeout: time.Second}
	p, err := OpenPort(cfg.portConfig())
	if err != nil {
		return false
	}
	_ = p.Close()
	return true
}

// AutoDetectPort picks the most likely hand controller port: an Espressif USB
// device, then any USB device, then the first port that opens.
func AutoDetectPort(ctx context.Context) (string, error) {
	ports, err := ListPorts(ctx)
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", errors.New("could not auto-detect serial port")
	}
	for _, p := range ports {
		if p.Espressif() {
			return p.Name, nil
		}
	}
	// ListPorts sorts USB ports first.
	return ports[0].Name, nil
}
