package tester

// Listener receives progress and outcome events from a [Tester] run.
//
// All methods are invoked synchronously on the worker goroutine driving the
// run, strictly ordered by the phase sequence. Implementations must not
// block for long; a listener that needs to hand events to another goroutine
// should publish to a buffered channel and return.
//
// Exactly one of Succeeded or Failed is delivered per run, immediately
// followed by exactly one Finished.
type Listener interface {
	// InitializationStarted is delivered once before any file is created.
	InitializationStarted(totalBytes int64)
	// Initialized is delivered after each file's initialization with the
	// cumulative bytes claimed and the running average throughput in MB/s.
	Initialized(bytes int64, avgMBps float64)

	// WriteStarted is delivered once before the first block write.
	WriteStarted()
	// Written is delivered after each block write with the cumulative bytes
	// written and the running average throughput in MB/s.
	Written(bytes int64, avgMBps float64)

	// VerifyStarted is delivered once before the first block readback.
	VerifyStarted()
	// Verified is delivered after each block readback with the cumulative
	// bytes verified and the running average throughput in MB/s.
	Verified(bytes int64, avgMBps float64)

	// CreateFailed reports that the file at fileIndex could not be created.
	CreateFailed(fileIndex int, offset int64)
	// WriteFailed reports an incomplete write covering [offset, offset+size).
	WriteFailed(offset, size int64)
	// VerifyFailed reports a readback mismatch covering [offset, offset+size).
	VerifyFailed(offset, size int64)

	// Succeeded is delivered when all three phases completed cleanly.
	Succeeded()
	// Failed is delivered with the accumulated failure flags, including a
	// lone FailAborted for a canceled run.
	Failed(failure Failure)
	// Finished is always delivered exactly once at the end of a run,
	// immediately after Succeeded or Failed.
	Finished()
}

// NopListener implements [Listener] with no-ops. Embed it to implement only
// the events of interest.
type NopListener struct{}

func (NopListener) InitializationStarted(int64) {}

func (NopListener) Initialized(int64, float64) {}

func (NopListener) WriteStarted() {}

func (NopListener) Written(int64, float64) {}

func (NopListener) VerifyStarted() {}

func (NopListener) Verified(int64, float64) {}

func (NopListener) CreateFailed(int, int64) {}

func (NopListener) WriteFailed(int64, int64) {}

func (NopListener) VerifyFailed(int64, int64) {}

func (NopListener) Succeeded() {}

func (NopListener) Failed(Failure) {}

func (NopListener) Finished() {}

// Compile-time interface check.
var _ Listener = NopListener{}
