// Package regfile is a responder policy that exposes a bank of byte
// registers to a remote controller, the way most I²C peripherals do.
//
// A write's first byte selects the register; following bytes are stored
// from there with the pointer advancing and wrapping. A read returns bytes
// from the pointer. General-call writes are refused.
package regfile

import (
	"sync/atomic"

	"github.com/noassemblyrequired/twi/drivers/twi"
	"github.com/noassemblyrequired/twi/x/shmring"
)

// Bank implements twi.Responder. The policy methods run in interrupt
// context; Get and Set may be called from any goroutine.
type Bank struct {
	regs     []atomic.Uint32
	readOnly [8]uint32 // bitset, fixed before the bank is installed
	changes  *shmring.Ring

	ptr       int
	selecting bool
	refusing  bool
}

// New returns a bank of size registers (1..256). If changes is non-nil,
// every accepted remote write appends a (register, value) record to it.
func New(size int, changes *shmring.Ring) *Bank {
	if size < 1 {
		size = 1
	}
	if size > 256 {
		size = 256
	}
	return &Bank{regs: make([]atomic.Uint32, size), changes: changes}
}

// SetReadOnly marks registers the remote controller may not write. Call
// it before installing the bank.
func (b *Bank) SetReadOnly(regs ...uint8) {
	for _, r := range regs {
		b.readOnly[r>>5] |= 1 << (r & 31)
	}
}

// Len returns the number of registers.
func (b *Bank) Len() int { return len(b.regs) }

// Get returns register r.
func (b *Bank) Get(r uint8) byte { return byte(b.regs[int(r)%len(b.regs)].Load()) }

// Set stores v in register r.
func (b *Bank) Set(r uint8, v byte) { b.regs[int(r)%len(b.regs)].Store(uint32(v)) }

func (b *Bank) writable(r int) bool { return b.readOnly[r>>5]&(1<<(r&31)) == 0 }

func (b *Bank) OnAddressMatch(_ uint8, st twi.Status) twi.Action {
	switch st {
	case twi.StatusSRGCallAck, twi.StatusSRArbLostGCallAck:
		b.refusing = true
		return twi.ActionNack
	case twi.StatusSRAddrAck, twi.StatusSRArbLostAddrAck:
		b.refusing = false
		b.selecting = true
	}
	return twi.ActionAck
}

func (b *Bank) OnByteReceived(v byte, st twi.Status) twi.Action {
	switch st {
	case twi.StatusSRDataNack, twi.StatusSRGCallDataNack:
		// Not addressed any more; re-arm for the next transfer.
		return twi.ActionAck
	}
	if b.refusing {
		return twi.ActionNack
	}
	if b.selecting {
		b.selecting = false
		b.ptr = int(v) % len(b.regs)
		return twi.ActionAck
	}
	if b.writable(b.ptr) {
		b.regs[b.ptr].Store(uint32(v))
		if b.changes != nil {
			rec := [2]byte{byte(b.ptr), v}
			b.changes.WriteRecord(rec[:])
		}
	}
	b.advance()
	return twi.ActionAck
}

func (b *Bank) OnStop() twi.Action {
	b.selecting = false
	b.refusing = false
	return twi.ActionAck
}

func (b *Bank) OnByteRequested(out *byte) twi.Action {
	*out = byte(b.regs[b.ptr].Load())
	b.advance()
	return twi.ActionAck
}

func (b *Bank) OnLastByte(twi.Status) twi.Action { return twi.ActionAck }

func (b *Bank) advance() { b.ptr = (b.ptr + 1) % len(b.regs) }
