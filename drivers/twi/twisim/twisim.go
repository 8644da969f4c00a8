// Package twisim is a host-side model of the TWI peripheral: a register
// file that behaves like the hardware for the commands the driver writes,
// a bus with simulated targets behind it, and a remote controller that can
// address the peripheral's responder side.
//
// Interrupts are delivered on their own goroutine, one at a time, the way
// the hardware serialises them.
package twisim

import (
	"sync"
	"time"

	"github.com/noassemblyrequired/twi/drivers/twi"
	"github.com/noassemblyrequired/twi/errcode"
)

// Target is a device on the simulated bus.
type Target interface {
	// Begin is called when the target is addressed.
	Begin(read bool)
	// Write delivers a byte from the controller and reports whether the
	// target acknowledges it.
	Write(b byte) bool
	// Read returns the next byte for the controller.
	Read() byte
	// End is called on a stop or repeated start.
	End()
}

type phase uint8

const (
	phaseIdle phase = iota
	phaseStarted
	phaseTransmit
	phaseReceive
	phaseHalted // NACK seen; waiting for stop or repeated start
	phaseResponder
)

// ReplyTimeout bounds how long the remote controller waits for the
// driver to answer a responder interrupt.
var ReplyTimeout = time.Second

// Sim implements twi.Registers.
type Sim struct {
	mu    sync.Mutex // register state
	irqMu sync.Mutex // serialises handler calls

	handler func()

	ctrl      twi.Control // TWINT kept in flag
	flag      bool
	status    twi.Status
	data      byte
	baud      uint8
	pre       twi.Prescaler
	addr      twi.Address
	mask      uint8
	pullups   bool
	stuckStop bool

	phase   phase
	cur     Target
	targets map[uint8]Target

	reply chan twi.Control
}

// New returns a powered-down peripheral with an empty bus.
func New() *Sim {
	return &Sim{
		targets: map[uint8]Target{},
		reply:   make(chan twi.Control, 1),
	}
}

// OnInterrupt installs the interrupt handler, normally
// (*twi.Driver).HandleInterrupt.
func (s *Sim) OnInterrupt(h func()) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Attach places t on the bus at the 7-bit address addr.
func (s *Sim) Attach(addr uint8, t Target) {
	s.mu.Lock()
	s.targets[addr&0x7F] = t
	s.mu.Unlock()
}

// Detach removes the target at addr.
func (s *Sim) Detach(addr uint8) {
	s.mu.Lock()
	delete(s.targets, addr&0x7F)
	s.mu.Unlock()
}

// SetStuckStop makes the hardware never clear its stop bit.
func (s *Sim) SetStuckStop(on bool) {
	s.mu.Lock()
	s.stuckStop = on
	if !on {
		s.ctrl &^= twi.CtrlStop
	}
	s.mu.Unlock()
}

// Pullups reports whether the bus pull-ups are enabled.
func (s *Sim) Pullups() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pullups
}

// Addressing returns the responder address and mask registers.
func (s *Sim) Addressing() (twi.Address, uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr, s.mask
}

// BusError drops the current transfer and reports an illegal bus
// condition.
func (s *Sim) BusError() {
	s.mu.Lock()
	s.endTarget()
	s.phase = phaseIdle
	s.raise(twi.StatusBusError)
	s.mu.Unlock()
}

// ---- twi.Registers ----

func (s *Sim) Control() twi.Control {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.ctrl
	if s.flag {
		c |= twi.CtrlInterrupt
	}
	return c
}

func (s *Sim) SetControl(c twi.Control) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keepStop := s.ctrl & twi.CtrlStop
	s.ctrl = c &^ twi.CtrlInterrupt
	if c&twi.CtrlEnable == 0 {
		// Disabling the module abandons the bus.
		s.endTarget()
		s.phase = phaseIdle
		s.flag = false
		s.ctrl &^= twi.CtrlStop
		return
	}
	if c&twi.CtrlInterrupt == 0 {
		// Writing zero leaves the flag alone; re-enabling the interrupt
		// with the flag set delivers it.
		s.ctrl |= keepStop
		if s.flag && c&twi.CtrlInterruptEnable != 0 {
			go s.deliver()
		}
		return
	}
	s.flag = false

	if s.phase == phaseResponder {
		select {
		case s.reply <- c:
		default:
		}
		return
	}
	s.step(c)
}

func (s *Sim) Status() twi.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status | twi.Status(s.pre)
}

func (s *Sim) Data() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

func (s *Sim) SetData(b byte) {
	s.mu.Lock()
	s.data = b
	s.mu.Unlock()
}

func (s *Sim) Timing() (uint8, twi.Prescaler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baud, s.pre
}

func (s *Sim) SetTiming(baud uint8, p twi.Prescaler) {
	s.mu.Lock()
	s.baud, s.pre = baud, p&3
	s.mu.Unlock()
}

func (s *Sim) SetAddress(a twi.Address) {
	s.mu.Lock()
	s.addr = a
	s.mu.Unlock()
}

func (s *Sim) SetAddressMask(m uint8) {
	s.mu.Lock()
	s.mask = m
	s.mu.Unlock()
}

func (s *Sim) SetPullups(on bool) {
	s.mu.Lock()
	s.pullups = on
	s.mu.Unlock()
}

// ---- controller side ----

// step carries out a command written with the interrupt flag cleared.
// Called with mu held.
func (s *Sim) step(c twi.Control) {
	if c&twi.CtrlStop != 0 {
		s.endTarget()
		s.phase = phaseIdle
		if !s.stuckStop {
			s.ctrl &^= twi.CtrlStop
		}
		if c&twi.CtrlStart == 0 {
			return
		}
	}
	if c&twi.CtrlStart != 0 {
		st := twi.StatusStart
		if s.phase != phaseIdle {
			st = twi.StatusRepStart
		}
		s.endTarget()
		s.phase = phaseStarted
		s.raise(st)
		return
	}

	switch s.phase {
	case phaseStarted:
		addr, read := s.data>>1, s.data&1 == 1
		t := s.targets[addr]
		if t == nil {
			s.phase = phaseHalted
			if read {
				s.raise(twi.StatusMRAddrNack)
			} else {
				s.raise(twi.StatusMTAddrNack)
			}
			return
		}
		s.cur = t
		t.Begin(read)
		if read {
			s.phase = phaseReceive
			s.raise(twi.StatusMRAddrAck)
		} else {
			s.phase = phaseTransmit
			s.raise(twi.StatusMTAddrAck)
		}
	case phaseTransmit:
		if s.cur.Write(s.data) {
			s.raise(twi.StatusMTDataAck)
		} else {
			s.raise(twi.StatusMTDataNack)
		}
	case phaseReceive:
		s.data = s.cur.Read()
		if c&twi.CtrlAck != 0 {
			s.raise(twi.StatusMRDataAck)
		} else {
			s.phase = phaseHalted
			s.raise(twi.StatusMRDataNack)
		}
	}
}

func (s *Sim) endTarget() {
	if s.cur != nil {
		s.cur.End()
		s.cur = nil
	}
}

// raise reports st and schedules the interrupt. Called with mu held.
func (s *Sim) raise(st twi.Status) {
	s.status = st
	s.flag = true
	if s.ctrl&twi.CtrlInterruptEnable != 0 {
		go s.deliver()
	}
}

func (s *Sim) deliver() {
	s.irqMu.Lock()
	defer s.irqMu.Unlock()

	s.mu.Lock()
	h := s.handler
	live := s.flag && s.ctrl&twi.CtrlInterruptEnable != 0
	s.mu.Unlock()
	if h != nil && live {
		h()
	}
}

// ---- remote controller ----

// RemoteWrite plays another controller writing data to addr. It returns
// how many bytes the peripheral acknowledged.
func (s *Sim) RemoteWrite(addr uint8, data []byte) (int, error) {
	st := twi.StatusSRAddrAck
	if addr == 0 {
		st = twi.StatusSRGCallAck
	}
	c, err := s.address(addr, false, st)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, b := range data {
		st := twi.StatusSRDataAck
		if addr == 0 {
			st = twi.StatusSRGCallDataAck
		}
		if c&twi.CtrlAck == 0 {
			st = twi.StatusSRDataNack
			if addr == 0 {
				st = twi.StatusSRGCallDataNack
			}
		}
		if c, err = s.exchange(st, b); err != nil {
			return n, err
		}
		if st == twi.StatusSRDataNack || st == twi.StatusSRGCallDataNack {
			s.release()
			return n, nil
		}
		n++
	}
	if _, err = s.exchange(twi.StatusSRStop, 0); err != nil {
		return n, err
	}
	s.release()
	return n, nil
}

// RemoteRead plays another controller reading n bytes from addr. Bytes the
// peripheral declines to send read as 0xFF.
func (s *Sim) RemoteRead(addr uint8, n int) ([]byte, error) {
	c, err := s.address(addr, true, twi.StatusSTAddrAck)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, n)
	last, told := false, false
	for len(out) < n {
		if last {
			out = append(out, 0xFF)
			continue
		}
		out = append(out, s.Data())
		last = c&twi.CtrlAck == 0
		if len(out) == n {
			break
		}
		if last {
			// We acknowledge a byte the peripheral said was its last.
			told = true
			if _, err = s.exchange(twi.StatusSTLastData, 0); err != nil {
				return out, err
			}
			continue
		}
		if c, err = s.exchange(twi.StatusSTDataAck, 0); err != nil {
			return out, err
		}
	}
	if !told {
		if _, err = s.exchange(twi.StatusSTDataNack, 0); err != nil {
			return out, err
		}
	}
	s.release()
	return out, nil
}

// address raises the address match for addr and returns the driver's
// answer.
func (s *Sim) address(addr uint8, read bool, st twi.Status) (twi.Control, error) {
	s.mu.Lock()
	if !s.matches(addr) || s.ctrl&(twi.CtrlEnable|twi.CtrlAck) != twi.CtrlEnable|twi.CtrlAck || s.phase != phaseIdle {
		s.mu.Unlock()
		return 0, &errcode.E{C: errcode.Nack, Op: "remote", Msg: "address not acknowledged"}
	}
	s.phase = phaseResponder
	s.data = addr << 1
	if read {
		s.data |= 1
	}
	s.raise(st)
	s.mu.Unlock()
	return s.await()
}

func (s *Sim) exchange(st twi.Status, b byte) (twi.Control, error) {
	s.mu.Lock()
	s.data = b
	s.raise(st)
	s.mu.Unlock()
	return s.await()
}

func (s *Sim) await() (twi.Control, error) {
	select {
	case c := <-s.reply:
		return c, nil
	case <-time.After(ReplyTimeout):
		s.release()
		return 0, &errcode.E{C: errcode.Timeout, Op: "remote", Msg: "no reply from driver"}
	}
}

func (s *Sim) release() {
	s.mu.Lock()
	s.phase = phaseIdle
	s.mu.Unlock()
}

// matches applies the address and mask registers. Called with mu held.
func (s *Sim) matches(addr uint8) bool {
	if addr == 0 {
		return s.addr&1 != 0
	}
	own := uint8(s.addr) >> 1
	ignore := s.mask >> 1
	return (addr^own)&^ignore == 0
}
