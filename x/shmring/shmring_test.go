package shmring

import "testing"

func TestOrderAcrossWrapWithPartialProgress(t *testing.T) {
	r := New(64)

	const N = 2000
	src := make([]byte, N)
	for i := range src {
		src[i] = byte(i)
	}

	// Producer accepts at most 7 bytes per step, consumer drains 5, forcing
	// frequent wraps and split copies.
	p := src
	dst := make([]byte, N)
	off := 0
	for off < N {
		if len(p) > 0 {
			step := 7
			if step > len(p) {
				step = len(p)
			}
			n := r.WriteFrom(p[:step])
			p = p[n:]
		}
		off += r.ReadInto(dst[off:min(off+5, N)])
	}
	for i := range dst {
		if dst[i] != byte(i) {
			t.Fatalf("byte %d = %d, want %d", i, dst[i], byte(i))
		}
	}
}

func TestWriteRecordAllOrNothing(t *testing.T) {
	r := New(4)
	if !r.WriteRecord([]byte{1, 2}) || !r.WriteRecord([]byte{3, 4}) {
		t.Fatal("records should fit")
	}
	if r.WriteRecord([]byte{5, 6}) {
		t.Fatal("third record should not fit")
	}
	if r.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", r.Dropped())
	}
	if r.Available() != 4 {
		t.Fatalf("available = %d, want 4", r.Available())
	}
	var out [4]byte
	if n := r.ReadInto(out[:]); n != 4 || out != [4]byte{1, 2, 3, 4} {
		t.Fatalf("read %d %v", n, out)
	}
}

func TestReadableEdge(t *testing.T) {
	r := New(8)
	r.WriteFrom([]byte{1})
	select {
	case <-r.Readable():
	default:
		t.Fatal("expected readable edge on 0->1")
	}
	r.WriteFrom([]byte{2})
	select {
	case <-r.Readable():
		t.Fatal("no edge expected while non-empty")
	default:
	}
}

func TestNewPanicsOnBadSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New(6)
}
