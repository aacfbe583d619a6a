package cli

import (
	"fmt"

	"voltest/internal/tester"
)

// eventKind discriminates the progress events crossing from the engine's
// worker goroutine to the rendering goroutine.
type eventKind int

const (
	evInitStarted eventKind = iota
	evInitialized
	evWriteStarted
	evWritten
	evVerifyStarted
	evVerified
	evCreateFailed
	evWriteFailed
	evVerifyFailed
	evSucceeded
	evFailed
	evFinished
)

// event is one engine notification. Which fields are meaningful depends on
// the kind.
type event struct {
	kind      eventKind
	bytes     int64
	mbps      float64
	fileIndex int
	offset    int64
	size      int64
	failure   tester.Failure
}

// channelListener forwards engine events into a channel so the host can
// render them on its own goroutine. The engine invokes listeners
// synchronously; the channel should be buffered so slow terminals do not
// stall the I/O loop.
type channelListener struct {
	events chan<- event
}

func newChannelListener(events chan<- event) *channelListener {
	return &channelListener{events: events}
}

func (l *channelListener) InitializationStarted(totalBytes int64) {
	l.events <- event{kind: evInitStarted, bytes: totalBytes}
}

func (l *channelListener) Initialized(bytes int64, avgMBps float64) {
	l.events <- event{kind: evInitialized, bytes: bytes, mbps: avgMBps}
}

func (l *channelListener) WriteStarted() {
	l.events <- event{kind: evWriteStarted}
}

func (l *channelListener) Written(bytes int64, avgMBps float64) {
	l.events <- event{kind: evWritten, bytes: bytes, mbps: avgMBps}
}

func (l *channelListener) VerifyStarted() {
	l.events <- event{kind: evVerifyStarted}
}

func (l *channelListener) Verified(bytes int64, avgMBps float64) {
	l.events <- event{kind: evVerified, bytes: bytes, mbps: avgMBps}
}

func (l *channelListener) CreateFailed(fileIndex int, offset int64) {
	l.events <- event{kind: evCreateFailed, fileIndex: fileIndex, offset: offset}
}

func (l *channelListener) WriteFailed(offset, size int64) {
	l.events <- event{kind: evWriteFailed, offset: offset, size: size}
}

func (l *channelListener) VerifyFailed(offset, size int64) {
	l.events <- event{kind: evVerifyFailed, offset: offset, size: size}
}

func (l *channelListener) Succeeded() {
	l.events <- event{kind: evSucceeded}
}

func (l *channelListener) Failed(failure tester.Failure) {
	l.events <- event{kind: evFailed, failure: failure}
}

func (l *channelListener) Finished() {
	l.events <- event{kind: evFinished}
}

// Compile-time interface check.
var _ tester.Listener = (*channelListener)(nil)

// renderEvents drains the event channel and prints a live progress display.
// Returns once the channel closes.
func renderEvents(o *IO, events <-chan event) {
	var total int64

	progressLine := func(verb string, bytes int64, mbps float64) {
		o.Printf("\r  %s %s / %s (%.1f MB/s)", verb, formatBytes(bytes), formatBytes(total), mbps)
	}

	for ev := range events {
		switch ev.kind {
		case evInitStarted:
			total = ev.bytes
			o.Printf("initializing %s\n", formatBytes(total))
		case evInitialized:
			progressLine("initialized", ev.bytes, ev.mbps)
		case evWriteStarted:
			o.Printf("\nwriting test pattern\n")
		case evWritten:
			progressLine("written", ev.bytes, ev.mbps)
		case evVerifyStarted:
			o.Printf("\nverifying\n")
		case evVerified:
			progressLine("verified", ev.bytes, ev.mbps)
		case evCreateFailed:
			o.Printf("\ncannot create test file %d (byte %d)\n", ev.fileIndex, ev.offset)
		case evWriteFailed:
			o.Printf("\nwrite failed at byte %d (%s)\n", ev.offset, formatBytes(ev.size))
		case evVerifyFailed:
			o.Printf("\nverification failed at byte %d (%s): this device loses data starting there\n",
				ev.offset, formatBytes(ev.size))
		case evSucceeded:
			o.Printf("\nPASSED: %s written and verified\n", formatBytes(total))
		case evFailed:
			if ev.failure == tester.FailAborted {
				o.Printf("\ncanceled\n")
			} else {
				o.Printf("\nFAILED (%s)\n", ev.failure)
			}
		case evFinished:
			// Channel closes right after; nothing left to print.
		}
	}
}

// formatBytes renders a byte count in binary units.
func formatBytes(n int64) string {
	switch {
	case n >= 1<<40:
		return fmt.Sprintf("%.1f TiB", float64(n)/(1<<40))
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
