package cache

import (
	"io"
	"sync"

	"stream_sender/stream"

	lru "github.com/hashicorp/golang-lru/v2"
)

var _ io.ReaderAt = &Cache{}
var _ io.Closer = &Cache{}

// Cache is a chunked read cache over a synchronized stream. Repeated sends of
// the same window are served from cached chunks instead of contending on the
// stream lock. Writes to the stream bump its version, which drops every
// cached chunk on the next read.
type Cache struct {
	lruCache  *lru.Cache[int64, []byte]
	stream    *stream.Stream
	chunkSize int64
	version   uint64
	mu        sync.Mutex
}

type Options struct {
	ChunkSize int64
	CacheSize int
}

func DefaultOptions() *Options {
	return &Options{
		ChunkSize: 4 * 1024 * 1024,
		CacheSize: 16,
	}
}

func New(handle *stream.Stream, options *Options) (*Cache, error) {
	if options == nil {
		options = DefaultOptions()
	}

	lruCache, err := lru.New[int64, []byte](options.CacheSize)
	if err != nil {
		return nil, err
	}

	return &Cache{
		lruCache:  lruCache,
		stream:    handle,
		chunkSize: options.ChunkSize,
		version:   handle.Version(),
	}, nil
}

// getChunk returns the chunk starting at chunkOffset, loading it from the
// stream on a miss.
func (cache *Cache) getChunk(chunkOffset int64, length int64) ([]byte, error) {
	if data, found := cache.lruCache.Get(chunkOffset); found {
		return data, nil
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()

	if data, found := cache.lruCache.Get(chunkOffset); found {
		return data, nil
	}

	readSize := cache.chunkSize
	if chunkOffset+readSize > length {
		readSize = length - chunkOffset
	}

	buffer := make([]byte, readSize)

	read, err := cache.stream.ReadAt(buffer, chunkOffset)
	if err != nil && err != io.EOF {
		return nil, err
	}

	buffer = buffer[:read]

	cache.lruCache.Add(chunkOffset, buffer)

	return buffer, nil
}

// invalidate drops every chunk when the stream was written to since the last
// read.
func (cache *Cache) invalidate() {
	version := cache.stream.Version()

	cache.mu.Lock()
	defer cache.mu.Unlock()

	if version != cache.version {
		cache.lruCache.Purge()
		cache.version = version
	}
}

// ReadAt implements io.ReaderAt over the cached chunks.
func (cache *Cache) ReadAt(p []byte, off int64) (int, error) {
	cache.invalidate()

	length, err := cache.stream.Length()
	if err != nil {
		return 0, err
	}

	if off >= length {
		return 0, io.EOF
	}

	totalRead := 0
	currentOffset := off

	for totalRead < len(p) && currentOffset < length {
		chunkOffset := (currentOffset / cache.chunkSize) * cache.chunkSize

		chunkData, err := cache.getChunk(chunkOffset, length)
		if err != nil {
			return totalRead, err
		}

		chunkPosition := int(currentOffset - chunkOffset)

		bytesToCopy := len(chunkData) - chunkPosition
		if bytesToCopy > len(p)-totalRead {
			bytesToCopy = len(p) - totalRead
		}

		if bytesToCopy <= 0 {
			break
		}

		copy(p[totalRead:totalRead+bytesToCopy], chunkData[chunkPosition:chunkPosition+bytesToCopy])

		totalRead += bytesToCopy
		currentOffset += int64(bytesToCopy)
	}

	if totalRead < len(p) {
		return totalRead, io.EOF
	}

	return totalRead, nil
}

// Close drops the cached chunks and closes the underlying stream.
func (cache *Cache) Close() error {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.lruCache.Purge()

	return cache.stream.Close()
}
