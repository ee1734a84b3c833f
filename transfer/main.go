package transfer

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"stream_sender/journal"
	"stream_sender/logger"
	"stream_sender/pool"
	"stream_sender/wrapper"

	"golang.org/x/time/rate"
)

var _ io.Closer = &Transfer{}

// Result describes one finished transfer.
type Result struct {
	Checksum string
	Bytes    int64
	Duration time.Duration
	Err      error
}

type Options struct {
	// Limit caps the copy rate in bytes per second. Zero means unlimited.
	Limit rate.Limit

	// Journal records the outcome when set.
	Journal *journal.Journal
}

// Transfer sends the window of a wrapped stream to a destination on its own
// goroutine. The checksum is taken before the copy so the receiver can verify
// the payload. When the copy finishes the wrapper is marked done, which
// closes the stream if it was handed over with closeOnDone.
type Transfer struct {
	window      *wrapper.Wrapper
	destination io.Writer

	options Options

	context context.Context
	cancel  context.CancelFunc

	logger *logger.Logger

	result chan Result

	wg *sync.WaitGroup
}

func New(window *wrapper.Wrapper, destination io.Writer, options Options) *Transfer {
	logger, err := logger.NewLogger("Transfer")
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	transfer := &Transfer{
		window:      window,
		destination: destination,

		options: options,

		context: ctx,
		cancel:  cancel,

		logger: logger,

		result: make(chan Result, 1),

		wg: &sync.WaitGroup{},
	}

	transfer.wg.Add(1)

	go transfer.start()

	return transfer
}

func (transfer *Transfer) start() {
	defer transfer.wg.Done()

	started := time.Now()

	result := transfer.send()
	result.Duration = time.Since(started)

	if result.Err != nil {
		transfer.logger.Error("Transfer failed", result.Err)
	}

	if err := transfer.window.Done(); err != nil {
		transfer.logger.Error("Error releasing stream", err)
	}

	transfer.record(result)

	transfer.result <- result
}

func (transfer *Transfer) send() Result {
	checksum, err := transfer.window.Checksum()
	if err != nil {
		return Result{Err: fmt.Errorf("failed to checksum window: %w", err)}
	}

	destination := transfer.destination

	if transfer.options.Limit > 0 {
		burst := pool.BufferSize
		if int(transfer.options.Limit) > burst {
			burst = int(transfer.options.Limit)
		}

		destination = &limitedWriter{
			destination: transfer.destination,
			limiter:     rate.NewLimiter(transfer.options.Limit, burst),
			context:     transfer.context,
		}
	}

	copied, err := transfer.window.CopyTo(destination)

	return Result{
		Checksum: checksum,
		Bytes:    copied,
		Err:      err,
	}
}

func (transfer *Transfer) record(result Result) {
	if transfer.options.Journal == nil {
		return
	}

	entry := journal.Transfer{
		Checksum: result.Checksum,
		Bytes:    result.Bytes,
		Duration: result.Duration,
	}

	if result.Err != nil {
		entry.Error = result.Err.Error()
	}

	if err := transfer.options.Journal.Record(entry); err != nil {
		transfer.logger.Error("Error recording transfer", err)
	}
}

// Result delivers the outcome exactly once.
func (transfer *Transfer) Result() <-chan Result {
	return transfer.result
}

// Close cancels an in-flight copy and waits for the transfer goroutine to
// finish.
func (transfer *Transfer) Close() error {
	transfer.cancel()

	transfer.wg.Wait()

	return nil
}

// limitedWriter throttles writes through a token bucket and aborts once the
// transfer context is cancelled.
type limitedWriter struct {
	destination io.Writer
	limiter     *rate.Limiter
	context     context.Context
}

func (writer *limitedWriter) Write(p []byte) (int, error) {
	if err := writer.limiter.WaitN(writer.context, len(p)); err != nil {
		return 0, err
	}

	return writer.destination.Write(p)
}
