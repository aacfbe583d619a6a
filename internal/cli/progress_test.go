package cli

import (
	"strings"
	"testing"

	"voltest/internal/tester"
)

// render pushes events through a channelListener and returns everything the
// renderer printed, mirroring the engine/renderer split of a real run.
func render(t *testing.T, emit func(l tester.Listener)) string {
	t.Helper()

	events := make(chan event, eventBufferSize)
	listener := newChannelListener(events)

	go func() {
		defer close(events)
		emit(listener)
	}()

	var out strings.Builder

	renderEvents(NewIO(&out, &out), events)

	return out.String()
}

// TestRenderEvents_SuccessfulRun verifies the phase banners and final verdict
// for a clean run.
func TestRenderEvents_SuccessfulRun(t *testing.T) {
	out := render(t, func(l tester.Listener) {
		l.InitializationStarted(10 * tester.MiB)
		l.Initialized(4*tester.MiB, 120.0)
		l.Initialized(10*tester.MiB, 130.0)
		l.WriteStarted()
		l.Written(10*tester.MiB, 42.0)
		l.VerifyStarted()
		l.Verified(10*tester.MiB, 55.0)
		l.Succeeded()
		l.Finished()
	})

	for _, want := range []string{
		"initializing 10.0 MiB",
		"writing test pattern",
		"verifying",
		"PASSED: 10.0 MiB written and verified",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

// TestRenderEvents_VerifyFailure verifies the data-loss message carries the
// byte offset.
func TestRenderEvents_VerifyFailure(t *testing.T) {
	out := render(t, func(l tester.Listener) {
		l.InitializationStarted(10 * tester.MiB)
		l.VerifyFailed(6*tester.MiB, tester.MiB)
		l.Failed(tester.FailVerify)
		l.Finished()
	})

	if !strings.Contains(out, "verification failed at byte 6291456") {
		t.Fatalf("output missing offset:\n%s", out)
	}

	if !strings.Contains(out, "loses data starting there") {
		t.Fatalf("output missing data-loss hint:\n%s", out)
	}

	if !strings.Contains(out, "FAILED (verify)") {
		t.Fatalf("output missing verdict:\n%s", out)
	}
}

// TestRenderEvents_CanceledRun verifies a lone abort renders as canceled,
// not as a device failure.
func TestRenderEvents_CanceledRun(t *testing.T) {
	out := render(t, func(l tester.Listener) {
		l.InitializationStarted(10 * tester.MiB)
		l.WriteStarted()
		l.Failed(tester.FailAborted)
		l.Finished()
	})

	if !strings.Contains(out, "canceled") {
		t.Fatalf("output missing canceled notice:\n%s", out)
	}

	if strings.Contains(out, "FAILED") {
		t.Fatalf("canceled run must not render as FAILED:\n%s", out)
	}
}

// TestFormatBytes pins the unit boundaries.
func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1 << 10, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{10 << 20, "10.0 MiB"},
		{1 << 30, "1.0 GiB"},
		{1 << 40, "1.0 TiB"},
		{3 << 40, "3.0 TiB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Fatalf("formatBytes(%d)=%q, want=%q", tt.n, got, tt.want)
		}
	}
}
