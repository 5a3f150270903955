// Command handctl configures the hand controller over its USB serial console.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/CK6170/handcontroller-go/controller"
	"github.com/CK6170/handcontroller-go/internal/logging"
	"github.com/CK6170/handcontroller-go/models"
	"github.com/CK6170/handcontroller-go/protocol"
	serialpkg "github.com/CK6170/handcontroller-go/serial"
	"github.com/CK6170/handcontroller-go/ui"
)

const (
	flagConfig  = "config"
	flagPort    = "port"
	flagBaud    = "baud"
	flagDebug   = "debug"
	flagLogFile = "log-file"
	flagWait    = "wait"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "handctl",
		Usage: "configure the hand controller over USB serial",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Value:   "handctl.json",
				EnvVars: []string{"HANDCTL_CONFIG"},
				Usage:   "load settings from `FILE`",
			},
			&cli.StringFlag{
				Name:    flagPort,
				Aliases: []string{"p"},
				EnvVars: []string{"HANDCTL_PORT"},
				Usage:   "serial `PORT` (auto-detected when empty)",
			},
			&cli.IntFlag{
				Name:    flagBaud,
				EnvVars: []string{"HANDCTL_BAUD"},
				Usage:   "baud rate",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				EnvVars: []string{"HANDCTL_DEBUG"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:    flagLogFile,
				EnvVars: []string{"HANDCTL_LOG_FILE"},
				Usage:   "write logs to `FILE`",
			},
		},
		Action: func(c *cli.Context) error {
			if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				return runTUI(c)
			}
			return runMonitor(c)
		},
		Commands: []*cli.Command{
			{
				Name:   "ports",
				Usage:  "list serial ports that can be opened",
				Action: runPorts,
			},
			{
				Name:   "monitor",
				Usage:  "stream device output; single keys send common commands",
				Action: runMonitor,
			},
			{
				Name:        "send",
				Usage:       "send one command and print the responses",
				ArgsUsage:   "COMMAND [VALUE]",
				Description: commandList(),
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  flagWait,
						Value: 2 * time.Second,
						Usage: "how long to collect responses",
					},
				},
				Action: runSend,
			},
		},
	}
}

// loadSettings reads the settings file and applies command line overrides.
func loadSettings(c *cli.Context) (*models.PARAMETERS, error) {
	p, err := controller.LoadParameters(c.String(flagConfig))
	if err != nil {
		return nil, err
	}
	if port := strings.TrimSpace(c.String(flagPort)); port != "" {
		p.SERIAL.PORT = port
	}
	if c.IsSet(flagBaud) {
		p.SERIAL.BAUDRATE = c.Int(flagBaud)
	}
	if c.Bool(flagDebug) {
		p.DEBUG = true
	}
	if f := c.String(flagLogFile); f != "" {
		p.LOGFILE = f
	}
	p.Normalize()
	return p, nil
}

func runPorts(c *cli.Context) error {
	p, err := loadSettings(c)
	if err != nil {
		return err
	}
	closeLog := logging.Setup(logging.Options{Debug: p.DEBUG, File: p.LOGFILE})
	defer closeLog()

	ports, err := serialpkg.ListPorts(c.Context)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(c.App.Writer, "no serial ports found")
		return nil
	}
	for _, port := range ports {
		fmt.Fprintln(c.App.Writer, port.String())
	}
	return nil
}

func runSend(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("usage: handctl send COMMAND [VALUE]", 1)
	}
	p, err := loadSettings(c)
	if err != nil {
		return err
	}
	closeLog := logging.Setup(logging.Options{Debug: p.DEBUG, File: p.LOGFILE})
	defer closeLog()

	name, arg := c.Args().Get(0), c.Args().Get(1)
	// Reject bad input before the port is opened.
	if _, err := protocol.Parse(name, arg); err != nil {
		return err
	}

	e := newEngine(p)
	defer e.close()
	if err := e.connectConfigured(c.Context, c.String(flagConfig)); err != nil {
		return err
	}
	line, err := e.disp.Dispatch(name, arg)
	if err != nil {
		return err
	}
	out := c.App.Writer
	ui.PrintLine(out, ui.SentLine(line), protocol.KindSent)

	deadline := time.After(c.Duration(flagWait))
	cfg := e.proc.Config()
	for {
		select {
		case ev, ok := <-e.proc.Events():
			if !ok {
				return nil
			}
			cfg = ev.Config
			if ev.Line != "" {
				ui.PrintLine(out, ev.Line, ev.Kind)
			}
		case err := <-e.Lost():
			return err
		case <-deadline:
			fmt.Fprintln(out)
			ui.PrintConfig(out, cfg)
			return nil
		case <-c.Context.Done():
			return nil
		}
	}
}

func runMonitor(c *cli.Context) error {
	p, err := loadSettings(c)
	if err != nil {
		return err
	}
	closeLog := logging.Setup(logging.Options{Debug: p.DEBUG, File: p.LOGFILE})
	defer closeLog()

	e := newEngine(p)
	defer e.close()
	if err := e.connectConfigured(c.Context, c.String(flagConfig)); err != nil {
		return err
	}
	out := c.App.Writer
	fmt.Fprintf(out, "Connected on %s. Keys: g config, p PID, k calibration, h help, t invert, l level assist, q quit\n", e.port())

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	keys, err := ui.KeyEvents(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("keyboard shortcuts unavailable")
	} else {
		ui.DrainKeys(keys)
	}
	send := func(fn func() (string, error)) {
		line, err := fn()
		if err != nil {
			ui.PrintLine(out, err.Error(), protocol.KindError)
			return
		}
		ui.PrintLine(out, ui.SentLine(line), protocol.KindSent)
	}
	send(e.disp.GetConfig)

	for {
		select {
		case ev, ok := <-e.proc.Events():
			if !ok {
				return nil
			}
			if ev.Line != "" {
				ui.PrintLine(out, ev.Line, ev.Kind)
			} else if ev.CalibrationChanged {
				ui.PrintLine(out, ui.CalibrationSummary(ev.Calibration), protocol.KindStatus)
			}
		case err := <-e.Lost():
			return err
		case r, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			switch r {
			case 'q', ui.KeyEsc, ui.KeyCtrlC:
				return nil
			case 'g':
				send(e.disp.GetConfig)
			case 'p':
				send(e.disp.GetPIDParams)
			case 'k':
				send(e.disp.GetCalibration)
			case 'h':
				send(e.disp.Help)
			case 't':
				send(e.disp.InvertThrottle)
			case 'l':
				send(e.disp.LevelAssistant)
			}
		case <-c.Context.Done():
			return nil
		}
	}
}

// commandList describes every command the device accepts.
func commandList() string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, s := range protocol.Specs() {
		name := s.Name
		switch s.Arg {
		case protocol.ArgInt, protocol.ArgFloat:
			name = fmt.Sprintf("%s <%g-%g>", s.Name, s.Min, s.Max)
		}
		fmt.Fprintf(&b, "   %-32s %s\n", name, s.Usage)
	}
	return b.String()
}

// defaultLogFile is where the TUI logs when no file is configured.
func defaultLogFile() string {
	return filepath.Join(os.TempDir(), "handctl.log")
}
