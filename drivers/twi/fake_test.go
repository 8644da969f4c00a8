package twi

import (
	"testing"
	"time"
)

// fakeRegs is a register file with no bus behind it. Bus conditions are
// injected by the harness.
type fakeRegs struct {
	ctrl      Control
	status    Status
	data      byte
	baud      uint8
	pre       Prescaler
	addr      Address
	mask      uint8
	pullups   bool
	stuckStop bool // hardware never clears TWSTO

	writes []Control
	sent   []byte
}

func (f *fakeRegs) Control() Control {
	c := f.ctrl &^ CtrlInterrupt
	if !f.stuckStop {
		c &^= CtrlStop
	}
	return c
}
func (f *fakeRegs) SetControl(c Control)           { f.ctrl = c; f.writes = append(f.writes, c) }
func (f *fakeRegs) Status() Status                 { return f.status }
func (f *fakeRegs) Data() byte                     { return f.data }
func (f *fakeRegs) SetData(b byte)                 { f.data = b; f.sent = append(f.sent, b) }
func (f *fakeRegs) Timing() (uint8, Prescaler)     { return f.baud, f.pre }
func (f *fakeRegs) SetTiming(b uint8, p Prescaler) { f.baud, f.pre = b, p }
func (f *fakeRegs) SetAddress(a Address)           { f.addr = a }
func (f *fakeRegs) SetAddressMask(m uint8)         { f.mask = m }
func (f *fakeRegs) SetPullups(on bool)             { f.pullups = on }

func (f *fakeRegs) wrote(c Control) bool {
	for _, w := range f.writes {
		if w == c {
			return true
		}
	}
	return false
}

type event struct {
	st   Status
	data byte
}

// harness fires one scripted bus condition per sleep of the driver's
// bounded waits, standing in for the interrupt.
type harness struct {
	t      *testing.T
	regs   *fakeRegs
	d      *Driver
	script []event
	after  []Control // control register after each fired event
	sleeps int
}

func newHarness(t *testing.T, timeout uint16, policy Controller) *harness {
	t.Helper()
	h := &harness{t: t, regs: &fakeRegs{}}
	h.d = New(h.regs, Config{Sleep: h.sleep})
	if st := h.d.InitializeController(ControllerConfig{Timeout: timeout, Policy: policy}); st != StatusOK {
		t.Fatalf("InitializeController = %v", st)
	}
	return h
}

func (h *harness) run(evs ...event) { h.script = append(h.script, evs...) }

func (h *harness) sleep(time.Duration) {
	h.sleeps++
	if len(h.script) == 0 {
		return
	}
	ev := h.script[0]
	h.script = h.script[1:]
	h.fire(ev)
}

// fire delivers one condition. The raw status carries prescaler bits, as
// the hardware register does.
func (h *harness) fire(ev event) {
	h.regs.status = ev.st | Status(h.regs.pre)
	h.regs.data = ev.data
	h.d.HandleInterrupt()
	h.after = append(h.after, h.regs.ctrl)
	if h.d.cursor > len(h.d.buf) {
		h.t.Fatalf("cursor %d past buffer length %d after %v", h.d.cursor, len(h.d.buf), ev.st)
	}
}

func (h *harness) lastAfter() Control {
	if len(h.after) == 0 {
		h.t.Fatal("no event fired")
	}
	return h.after[len(h.after)-1]
}
