package wrapper

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"

	"stream_sender/stream"
)

// Wrapper bounds a window of a synchronized stream for sending. The sender
// only ever sees the window, and signals completion through Done so the
// stream can be closed when it was handed over with closeOnDone set.
type Wrapper struct {
	stream *stream.Stream

	start  int64
	length int64

	done atomic.Bool
}

// New wraps the window [start, start+length) of the given stream. The window
// must sit inside the current stream length.
func New(handle *stream.Stream, start int64, length int64) (*Wrapper, error) {
	if start < 0 || length < 0 {
		return nil, fmt.Errorf("invalid window: start %d, length %d", start, length)
	}

	streamLength, err := handle.Length()
	if err != nil {
		return nil, err
	}

	if start+length > streamLength {
		return nil, fmt.Errorf("window [%d, %d) exceeds stream length %d", start, start+length, streamLength)
	}

	return &Wrapper{
		stream: handle,
		start:  start,
		length: length,
	}, nil
}

// Whole wraps the full current content of the stream.
func Whole(handle *stream.Stream) (*Wrapper, error) {
	length, err := handle.Length()
	if err != nil {
		return nil, err
	}

	return New(handle, 0, length)
}

func (wrapper *Wrapper) Start() int64 {
	return wrapper.start
}

func (wrapper *Wrapper) Length() int64 {
	return wrapper.length
}

// ToBytes reads the window into a fresh buffer.
func (wrapper *Wrapper) ToBytes() ([]byte, error) {
	var destination bytes.Buffer
	destination.Grow(int(wrapper.length))

	if _, err := wrapper.stream.CopyTo(&destination, wrapper.start, wrapper.length); err != nil {
		return nil, err
	}

	return destination.Bytes(), nil
}

// Checksum returns the MD5 digest of the window as uppercase hex.
func (wrapper *Wrapper) Checksum() (string, error) {
	return wrapper.stream.ChecksumRange(wrapper.start, wrapper.length)
}

// CopyTo copies the window into destination and returns the number of bytes
// copied. A window past the available data copies short without an error.
func (wrapper *Wrapper) CopyTo(destination io.Writer) (int64, error) {
	return wrapper.stream.CopyTo(destination, wrapper.start, wrapper.length)
}

// Done signals that the consumer finished sending this window. The stream is
// closed iff it was constructed with closeOnDone. Repeated calls are no-ops.
func (wrapper *Wrapper) Done() error {
	if !wrapper.done.CompareAndSwap(false, true) {
		return nil
	}

	if wrapper.stream.CloseOnDone() {
		return wrapper.stream.Close()
	}

	return nil
}
