package twisim

import "sync"

// Memory is a register-file target: the first byte of a write sets the
// register pointer, later bytes are stored at it, and reads return bytes
// from it. The pointer auto-increments and wraps.
type Memory struct {
	mu    sync.Mutex
	bank  []byte
	ptr   int
	first bool

	// NackAfter, when positive, NACKs written data bytes past that many.
	NackAfter int
	written   int
}

// NewMemory returns a zeroed memory of size bytes (at least one).
func NewMemory(size int) *Memory {
	if size < 1 {
		size = 1
	}
	return &Memory{bank: make([]byte, size)}
}

func (m *Memory) Begin(read bool) {
	m.mu.Lock()
	m.first = !read
	m.written = 0
	m.mu.Unlock()
}

func (m *Memory) Write(b byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.first {
		m.first = false
		m.ptr = int(b) % len(m.bank)
		return true
	}
	if m.NackAfter > 0 && m.written >= m.NackAfter {
		return false
	}
	m.bank[m.ptr] = b
	m.ptr = (m.ptr + 1) % len(m.bank)
	m.written++
	return true
}

func (m *Memory) Read() byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bank[m.ptr]
	m.ptr = (m.ptr + 1) % len(m.bank)
	return b
}

func (m *Memory) End() {}

// Bytes returns a copy of the memory contents.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.bank...)
}

// Load copies b into the memory at off.
func (m *Memory) Load(off int, b []byte) {
	m.mu.Lock()
	copy(m.bank[off%len(m.bank):], b)
	m.mu.Unlock()
}
