package pool

import "sync"

// BufferSize is the chunk size used by every bulk copy in this module.
const BufferSize = 8 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, BufferSize)
	},
}

func GetBuffer() []byte {
	return bufferPool.Get().([]byte)
}

func PutBuffer(buffer []byte) {
	bufferPool.Put(buffer)
}
