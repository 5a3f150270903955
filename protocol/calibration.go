package protocol

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// Phase is the state of a throttle calibration run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCalibrating
	PhaseComplete
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseCalibrating:
		return "calibrating"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	}
	return "idle"
}

// ReasonTimeout is the failure reason recorded when the device never
// reported an outcome.
const ReasonTimeout = "timed out waiting for the device"

// CalibrationState is a snapshot of what is known about throttle calibration.
type CalibrationState struct {
	Phase     Phase
	Progress  int
	Reason    string
	StartedAt time.Time

	// Reported by get_calibration; Known is false until the device answered.
	Known         bool
	Calibrated    bool
	Min, Max      int64
	Range         int64
	CurrentADC    int64
	CurrentMapped int64

	// Reported at the end of calibrate_throttle.
	RawMin, RawMax int64
}

var (
	progressRe = regexp.MustCompile(`Calibration progress:\s*(\d+)\s*%`)
	rangeRe    = regexp.MustCompile(`(-?\d+)\s*-\s*(-?\d+)`)
)

// CalibrationTracker turns calibration related console lines into an
// explicit Idle -> Calibrating -> Complete|Failed state machine. A run that
// reports nothing conclusive within the timeout fails.
//
// A CalibrationTracker is not safe for concurrent use.
type CalibrationTracker struct {
	clock   clock.Clock
	timeout time.Duration
	state   CalibrationState
	// lastSeen is refreshed by every calibration line so that progress
	// reports keep a slow run alive.
	lastSeen time.Time
}

// NewCalibrationTracker returns an idle tracker. A nil clock uses wall time.
func NewCalibrationTracker(clk clock.Clock, timeout time.Duration) *CalibrationTracker {
	if clk == nil {
		clk = clock.New()
	}
	return &CalibrationTracker{clock: clk, timeout: timeout}
}

// State returns a copy of the current state.
func (t *CalibrationTracker) State() CalibrationState {
	return t.state
}

// Reset returns to idle and forgets reported values.
func (t *CalibrationTracker) Reset() {
	t.state = CalibrationState{}
	t.lastSeen = time.Time{}
}

// Observe feeds one cleaned line and reports whether the state changed.
func (t *CalibrationTracker) Observe(line string) bool {
	now := t.clock.Now()
	switch {
	case strings.Contains(line, "=== Throttle Calibration ==="),
		strings.Contains(line, "Starting manual throttle calibration"):
		t.start(now)
		return true
	case progressRe.MatchString(line):
		if t.state.Phase != PhaseCalibrating {
			t.start(now)
		}
		n, _ := strconv.Atoi(progressRe.FindStringSubmatch(line)[1])
		t.state.Progress = n
		t.lastSeen = now
		return true
	case strings.Contains(line, "Calibration complete!"),
		strings.Contains(line, "Throttle calibration completed successfully"):
		t.state.Phase = PhaseComplete
		t.state.Progress = 100
		t.state.Reason = ""
		t.lastSeen = now
		return true
	case strings.Contains(line, "Calibration failed"),
		strings.Contains(line, "Throttle calibration failed"):
		t.state.Phase = PhaseFailed
		t.state.Reason = line
		t.lastSeen = now
		return true
	case strings.Contains(line, "Raw range:"):
		t.state.RawMin, t.state.RawMax = parseRange(line)
		return true
	case strings.Contains(line, "Calibration Status:"):
		_, v, _ := strings.Cut(line, ":")
		v = strings.TrimSpace(v)
		t.state.Known = true
		t.state.Calibrated = strings.EqualFold(v, "Calibrated")
		return true
	case strings.Contains(line, "No calibration data available"):
		t.state.Known = true
		t.state.Calibrated = false
		return true
	}
	if v, ok := valueAfter(line, "Calibrated Min Value:"); ok {
		return t.setInt(&t.state.Min, v)
	}
	if v, ok := valueAfter(line, "Calibrated Max Value:"); ok {
		return t.setInt(&t.state.Max, v)
	}
	if v, ok := valueAfter(line, "Calibrated Range:"); ok {
		return t.setInt(&t.state.Range, v)
	}
	if v, ok := valueAfter(line, "Calibrated range:"); ok {
		lo, hi := parseRange(v)
		t.state.Min, t.state.Max, t.state.Range = lo, hi, hi-lo
		return true
	}
	if v, ok := valueAfter(line, "Current ADC Reading:"); ok {
		return t.setInt(&t.state.CurrentADC, v)
	}
	if v, ok := valueAfter(line, "Current Mapped Value:"); ok {
		return t.setInt(&t.state.CurrentMapped, v)
	}
	return false
}

// Tick fails a run that has gone quiet for longer than the timeout and
// reports whether that happened.
func (t *CalibrationTracker) Tick() bool {
	if t.state.Phase != PhaseCalibrating || t.timeout <= 0 {
		return false
	}
	if t.clock.Since(t.lastSeen) < t.timeout {
		return false
	}
	t.state.Phase = PhaseFailed
	t.state.Reason = ReasonTimeout
	return true
}

func (t *CalibrationTracker) start(now time.Time) {
	t.state.Phase = PhaseCalibrating
	t.state.Progress = 0
	t.state.Reason = ""
	t.state.StartedAt = now
	t.lastSeen = now
}

func (t *CalibrationTracker) setInt(dst *int64, raw string) bool {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return false
	}
	*dst = n
	t.state.Known = true
	return true
}

func parseRange(s string) (int64, int64) {
	m := rangeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0
	}
	lo, _ := strconv.ParseInt(m[1], 10, 64)
	hi, _ := strconv.ParseInt(m[2], 10, 64)
	return lo, hi
}
