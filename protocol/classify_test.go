package protocol

import (
	"testing"

	"go.viam.com/test"
)

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		line string
		want Kind
	}{
		{"Sent: get_config", KindSent},
		{"=== Current Configuration ===", KindHeader},
		{"Motor pulley teeth set to: 16", KindOK},
		{"Throttle inversion: ENABLED", KindOK},
		{"Odometer reset successfully", KindOK},
		{"PID parameters saved to NVS successfully", KindOK},
		{"✓ Throttle calibration completed successfully!", KindOK},
		{"Unknown command: foo", KindError},
		{"Error: No value provided", KindError},
		{"Calibration failed - no valid readings detected", KindError},
		{"Failed to save PID parameters: ESP_FAIL", KindError},
		{"Warning: Failed to save setting to memory", KindWarning},
		{"Calibration progress: 30%", KindProgress},
		{"Calibration Status: Calibrated", KindStatus},
		{"Throttle signals were set to neutral during calibration.", KindSafety},
		{"Raw range: 1 - 2", KindDetail},
		{"Current ADC Reading: 1200", KindDetail},
		{"set_motor_pulley <teeth>      - Set motor pulley teeth count", KindDetail},
		{"help                          - Show this help message", KindDetail},
		{"Motor Poles: 14", KindPlain},
		{"Type 'help' for available commands", KindPlain},
	} {
		t.Run(tc.line, func(t *testing.T) {
			test.That(t, Classify(tc.line), test.ShouldEqual, tc.want)
		})
	}

	test.That(t, KindOK.Tag(), test.ShouldEqual, "[OK]")
	test.That(t, KindPlain.Tag(), test.ShouldEqual, "")
	test.That(t, KindSent.Indented(), test.ShouldBeTrue)
}
