package stream

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"stream_sender/pool"
)

var ErrSizeUnsupported = errors.New("resource size exceeds the 32 bit limit")
var ErrClosed = errors.New("stream is closed")

var _ io.ReaderAt = &Stream{}
var _ io.Closer = &Stream{}

// Stream owns a seekable resource and serializes every access to it behind a
// single mutex. The resource exposes one shared cursor, so every operation
// seeks to the position it needs while holding the lock and never relies on
// where a previous caller left the cursor.
type Stream struct {
	resource io.ReadWriteSeeker

	closeOnDone bool

	version atomic.Uint64

	mu sync.Mutex

	closed atomic.Bool
}

// New takes exclusive ownership of the resource. The caller must not touch
// the resource directly afterwards. Resources longer than what a signed 32
// bit integer can represent are rejected with ErrSizeUnsupported.
//
// When closeOnDone is set the consumer that finishes sending the stream is
// expected to close it, see CloseOnDone.
func New(resource io.ReadWriteSeeker, closeOnDone bool) (*Stream, error) {
	stream := &Stream{
		resource:    resource,
		closeOnDone: closeOnDone,
	}

	length, err := stream.length()
	if err != nil {
		return nil, fmt.Errorf("failed to measure resource: %w", err)
	}

	if length > math.MaxInt32 {
		return nil, ErrSizeUnsupported
	}

	return stream, nil
}

func (stream *Stream) length() (int64, error) {
	return stream.resource.Seek(0, io.SeekEnd)
}

func (stream *Stream) Length() (int64, error) {
	stream.mu.Lock()
	defer stream.mu.Unlock()

	if stream.closed.Load() {
		return 0, ErrClosed
	}

	return stream.length()
}

func (stream *Stream) Position() (int64, error) {
	stream.mu.Lock()
	defer stream.mu.Unlock()

	if stream.closed.Load() {
		return 0, ErrClosed
	}

	return stream.resource.Seek(0, io.SeekCurrent)
}

// CloseOnDone reports whether the resource should be closed once its consumer
// is done with it. The flag is fixed at construction and only consulted by
// callers, closing is never tied to garbage collection.
func (stream *Stream) CloseOnDone() bool {
	return stream.closeOnDone
}

// Version increments on every Write. Read caches use it to detect that their
// copies went stale.
func (stream *Stream) Version() uint64 {
	return stream.version.Load()
}

// ToBytes reads the whole resource into a fresh buffer of size
// length+prefixZeroCount. The first prefixZeroCount bytes are left zero, the
// content follows.
func (stream *Stream) ToBytes(prefixZeroCount int64) ([]byte, error) {
	if prefixZeroCount < 0 {
		return nil, fmt.Errorf("negative prefix size: %d", prefixZeroCount)
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()

	if stream.closed.Load() {
		return nil, ErrClosed
	}

	length, err := stream.length()
	if err != nil {
		return nil, err
	}

	if _, err := stream.resource.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	buffer := make([]byte, length+prefixZeroCount)

	if _, err := io.ReadFull(stream.resource, buffer[prefixZeroCount:]); err != nil {
		return nil, err
	}

	return buffer, nil
}

// Checksum returns the MD5 digest of the full content as uppercase hex.
func (stream *Stream) Checksum() (string, error) {
	stream.mu.Lock()
	defer stream.mu.Unlock()

	if stream.closed.Load() {
		return "", ErrClosed
	}

	length, err := stream.length()
	if err != nil {
		return "", err
	}

	return stream.checksum(0, length)
}

// ChecksumRange returns the MD5 digest of the window starting at start. A
// window reaching past the end digests only the available bytes.
func (stream *Stream) ChecksumRange(start int64, length int64) (string, error) {
	if start < 0 || length < 0 {
		return "", fmt.Errorf("invalid range: start %d, length %d", start, length)
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()

	if stream.closed.Load() {
		return "", ErrClosed
	}

	return stream.checksum(start, length)
}

func (stream *Stream) checksum(start int64, length int64) (string, error) {
	hash := md5.New()

	if _, err := stream.copyTo(hash, start, length); err != nil {
		return "", err
	}

	return fmt.Sprintf("%X", hash.Sum(nil)), nil
}

// Write puts data into the resource starting at startPosition, overwriting
// existing bytes. Whether writing past the end extends the resource or fails
// is up to the resource.
func (stream *Stream) Write(data []byte, startPosition int64) error {
	if startPosition < 0 {
		return fmt.Errorf("negative write position: %d", startPosition)
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()

	if stream.closed.Load() {
		return ErrClosed
	}

	if _, err := stream.resource.Seek(startPosition, io.SeekStart); err != nil {
		return err
	}

	if _, err := stream.resource.Write(data); err != nil {
		return err
	}

	stream.version.Add(1)

	return nil
}

// CopyTo copies length bytes starting at startPosition into destination in
// chunks and returns the number of bytes copied. A source that runs out
// before length bytes stops the copy without an error, callers that need the
// full window must check the returned count.
func (stream *Stream) CopyTo(destination io.Writer, startPosition int64, length int64) (int64, error) {
	if startPosition < 0 || length < 0 {
		return 0, fmt.Errorf("invalid range: start %d, length %d", startPosition, length)
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()

	if stream.closed.Load() {
		return 0, ErrClosed
	}

	return stream.copyTo(destination, startPosition, length)
}

func (stream *Stream) copyTo(destination io.Writer, startPosition int64, length int64) (int64, error) {
	if _, err := stream.resource.Seek(startPosition, io.SeekStart); err != nil {
		return 0, err
	}

	buffer := pool.GetBuffer()
	defer pool.PutBuffer(buffer)

	var copied int64

	for copied < length {
		chunkSize := int64(len(buffer))
		if remaining := length - copied; remaining < chunkSize {
			chunkSize = remaining
		}

		read, readErr := stream.resource.Read(buffer[:chunkSize])

		if read > 0 {
			written, writeErr := destination.Write(buffer[:read])

			copied += int64(written)

			if writeErr != nil {
				return copied, writeErr
			}

			if written < read {
				return copied, io.ErrShortWrite
			}
		}

		if readErr == io.EOF {
			break
		}

		if readErr != nil {
			return copied, readErr
		}

		if read == 0 {
			break
		}
	}

	return copied, nil
}

// ReadAt implements io.ReaderAt under the stream lock.
func (stream *Stream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative read position: %d", off)
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()

	if stream.closed.Load() {
		return 0, ErrClosed
	}

	if _, err := stream.resource.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}

	read, err := io.ReadFull(stream.resource, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}

	return read, err
}

// Close releases the resource if it is closable. Repeated calls are no-ops,
// the resource is closed at most once. Operations after Close fail with
// ErrClosed.
func (stream *Stream) Close() error {
	if !stream.closed.CompareAndSwap(false, true) {
		return nil
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()

	if closer, ok := stream.resource.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}
