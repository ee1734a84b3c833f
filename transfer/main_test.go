package transfer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"stream_sender/journal"
	"stream_sender/stream"
	"stream_sender/wrapper"
)

type memoryResource struct {
	data     []byte
	position int64
	closes   int
}

func (resource *memoryResource) Read(p []byte) (int, error) {
	if resource.position >= int64(len(resource.data)) {
		return 0, io.EOF
	}

	read := copy(p, resource.data[resource.position:])
	resource.position += int64(read)

	return read, nil
}

func (resource *memoryResource) Write(p []byte) (int, error) {
	end := resource.position + int64(len(p))

	if end > int64(len(resource.data)) {
		grown := make([]byte, end)
		copy(grown, resource.data)
		resource.data = grown
	}

	copy(resource.data[resource.position:], p)
	resource.position = end

	return len(p), nil
}

func (resource *memoryResource) Seek(offset int64, whence int) (int64, error) {
	var position int64

	switch whence {
	case io.SeekStart:
		position = offset
	case io.SeekCurrent:
		position = resource.position + offset
	case io.SeekEnd:
		position = int64(len(resource.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}

	if position < 0 {
		return 0, fmt.Errorf("negative position: %d", position)
	}

	resource.position = position

	return position, nil
}

func (resource *memoryResource) Close() error {
	resource.closes++

	return nil
}

func newWindow(t *testing.T, content string, closeOnDone bool) (*wrapper.Wrapper, *memoryResource) {
	t.Helper()

	resource := &memoryResource{data: []byte(content)}

	handle, err := stream.New(resource, closeOnDone)
	if err != nil {
		t.Fatalf("Expected nil, got %s", err)
	}

	window, err := wrapper.Whole(handle)
	if err != nil {
		t.Fatalf("Expected nil, got %s", err)
	}

	return window, resource
}

func TestTransfer(t *testing.T) {
	window, resource := newWindow(t, "abc", true)

	var destination bytes.Buffer

	transfer := New(window, &destination, Options{})
	defer transfer.Close()

	result := <-transfer.Result()

	if result.Err != nil {
		t.Fatalf("Expected nil, got %s", result.Err)
	}

	if result.Bytes != 3 {
		t.Errorf("Expected 3, got %d", result.Bytes)
	}

	if result.Checksum != "900150983CD24FB0D6963F7D28E17F72" {
		t.Errorf("Expected 900150983CD24FB0D6963F7D28E17F72, got %s", result.Checksum)
	}

	if destination.String() != "abc" {
		t.Errorf("Expected abc, got %s", destination.String())
	}

	if resource.closes != 1 {
		t.Errorf("Expected 1, got %d", resource.closes)
	}
}

func TestTransferLeavesStreamOpen(t *testing.T) {
	window, resource := newWindow(t, "abc", false)

	var destination bytes.Buffer

	transfer := New(window, &destination, Options{})
	defer transfer.Close()

	result := <-transfer.Result()

	if result.Err != nil {
		t.Fatalf("Expected nil, got %s", result.Err)
	}

	if resource.closes != 0 {
		t.Errorf("Expected 0, got %d", resource.closes)
	}
}

func TestTransferRateLimited(t *testing.T) {
	window, _ := newWindow(t, "0123456789", false)

	var destination bytes.Buffer

	transfer := New(window, &destination, Options{Limit: 1024 * 1024})
	defer transfer.Close()

	result := <-transfer.Result()

	if result.Err != nil {
		t.Fatalf("Expected nil, got %s", result.Err)
	}

	if destination.String() != "0123456789" {
		t.Errorf("Expected 0123456789, got %s", destination.String())
	}
}

type failingWriter struct{}

func (writer *failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("destination failed")
}

func TestTransferDestinationError(t *testing.T) {
	window, _ := newWindow(t, "abc", false)

	transfer := New(window, &failingWriter{}, Options{})
	defer transfer.Close()

	result := <-transfer.Result()

	if result.Err == nil {
		t.Fatal("Expected error, got nil")
	}

	if result.Bytes != 0 {
		t.Errorf("Expected 0, got %d", result.Bytes)
	}
}

func TestTransferJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	transferJournal, err := journal.Open(path)
	if err != nil {
		t.Fatalf("Expected nil, got %s", err)
	}
	defer transferJournal.Close()

	window, _ := newWindow(t, "abc", false)

	var destination bytes.Buffer

	transfer := New(window, &destination, Options{Journal: transferJournal})
	defer transfer.Close()

	result := <-transfer.Result()

	if result.Err != nil {
		t.Fatalf("Expected nil, got %s", result.Err)
	}

	transfers, err := transferJournal.List()
	if err != nil {
		t.Fatalf("Expected nil, got %s", err)
	}

	if len(transfers) != 1 {
		t.Fatalf("Expected 1, got %d", len(transfers))
	}

	if transfers[0].Checksum != result.Checksum {
		t.Errorf("Expected %s, got %s", result.Checksum, transfers[0].Checksum)
	}

	if transfers[0].Bytes != 3 {
		t.Errorf("Expected 3, got %d", transfers[0].Bytes)
	}
}
