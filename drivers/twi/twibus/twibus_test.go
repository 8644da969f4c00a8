package twibus

import (
	"bytes"
	"errors"
	"testing"
	"time"

	expi2c "golang.org/x/exp/io/i2c"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ds3231"

	"github.com/noassemblyrequired/twi/drivers/twi"
	"github.com/noassemblyrequired/twi/drivers/twi/twisim"
	"github.com/noassemblyrequired/twi/errcode"
)

func newBus(t *testing.T) (*Bus, *twisim.Sim, *twisim.Memory) {
	t.Helper()
	s := twisim.New()
	d := twi.New(s, twi.Config{WaitStep: 20 * time.Microsecond})
	s.OnInterrupt(d.HandleInterrupt)
	b := New("twi0", d)
	if err := b.Configure(Config{Timeout: 50000}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	mem := twisim.NewMemory(32)
	s.Attach(0x50, mem)
	return b, s, mem
}

func TestTxWriteThenRead(t *testing.T) {
	b, _, mem := newBus(t)
	mem.Load(8, []byte{0xCA, 0xFE})

	var bus drivers.I2C = b
	r := make([]byte, 2)
	if err := bus.Tx(0x50, []byte{0x08}, r); err != nil {
		t.Fatalf("Tx: %v", err)
	}
	if !bytes.Equal(r, []byte{0xCA, 0xFE}) {
		t.Fatalf("read % x", r)
	}
	if role := b.Driver().Role(); role != twi.Idle {
		t.Fatalf("role = %v", role)
	}
}

func TestTxProbe(t *testing.T) {
	b, _, _ := newBus(t)
	if err := b.Tx(0x50, nil, nil); err != nil {
		t.Fatalf("probe present: %v", err)
	}
	err := b.Tx(0x51, nil, nil)
	if !errors.Is(err, errcode.Nack) {
		t.Fatalf("probe absent: %v", err)
	}
	var e *errcode.E
	if !errors.As(err, &e) || e.Op != "tx" || e.Msg != "mt_addr_nack" {
		t.Fatalf("error detail %#v", err)
	}
}

func TestTxReadNack(t *testing.T) {
	b, _, _ := newBus(t)
	err := b.Tx(0x51, nil, make([]byte, 1))
	if errcode.Of(err) != errcode.Nack {
		t.Fatalf("read absent: %v", err)
	}
}

func TestTenBitUnsupported(t *testing.T) {
	b, _, _ := newBus(t)
	if err := b.Tx(0x250, []byte{1}, nil); errcode.Of(err) != errcode.Unsupported {
		t.Fatalf("Tx: %v", err)
	}
	if _, err := expi2c.Open(b, expi2c.TenBit(0x50)); errcode.Of(err) != errcode.Unsupported {
		t.Fatalf("Open: %v", err)
	}
}

func TestPeriphRecord(t *testing.T) {
	b, _, mem := newBus(t)
	rec := &i2ctest.Record{Bus: b}
	dev := &i2c.Dev{Bus: rec, Addr: 0x50}

	if _, err := dev.Write([]byte{0x00, 1, 2, 3}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	r := make([]byte, 3)
	if err := dev.Tx([]byte{0x00}, r); err != nil {
		t.Fatalf("Tx: %v", err)
	}
	if !bytes.Equal(r, []byte{1, 2, 3}) || !bytes.Equal(mem.Bytes()[:3], []byte{1, 2, 3}) {
		t.Fatalf("read % x memory % x", r, mem.Bytes()[:3])
	}
	want := []i2ctest.IO{
		{Addr: 0x50, W: []byte{0x00, 1, 2, 3}},
		{Addr: 0x50, W: []byte{0x00}, R: []byte{1, 2, 3}},
	}
	if len(rec.Ops) != len(want) {
		t.Fatalf("ops %+v", rec.Ops)
	}
	for i := range want {
		if rec.Ops[i].Addr != want[i].Addr || !bytes.Equal(rec.Ops[i].W, want[i].W) || !bytes.Equal(rec.Ops[i].R, want[i].R) {
			t.Fatalf("op %d = %+v, want %+v", i, rec.Ops[i], want[i])
		}
	}
}

func TestSetSpeed(t *testing.T) {
	b, s, _ := newBus(t)
	if err := b.SetSpeed(400 * physic.KiloHertz); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	if baud, _ := s.Timing(); baud != 12 {
		t.Fatalf("baud %d", baud)
	}
	if b.String() != "twi0" {
		t.Fatalf("String = %q", b.String())
	}
}

func TestExpDevice(t *testing.T) {
	b, _, mem := newBus(t)
	dev, err := expi2c.Open(b, 0x50)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close()

	if err := dev.WriteReg(0x10, []byte{0xAB, 0xCD}); err != nil {
		t.Fatalf("WriteReg: %v", err)
	}
	if got := mem.Bytes()[0x10:0x12]; !bytes.Equal(got, []byte{0xAB, 0xCD}) {
		t.Fatalf("memory % x", got)
	}
	buf := make([]byte, 2)
	if err := dev.ReadReg(0x10, buf); err != nil {
		t.Fatalf("ReadReg: %v", err)
	}
	if !bytes.Equal(buf, []byte{0xAB, 0xCD}) {
		t.Fatalf("ReadReg % x", buf)
	}
}

func TestCloseShutsDown(t *testing.T) {
	b, s, _ := newBus(t)
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if s.Pullups() {
		t.Fatal("pull-ups still on")
	}
	if err := b.Tx(0x50, []byte{1}, nil); errcode.Of(err) != errcode.NotInitialized {
		t.Fatalf("Tx after Close: %v", err)
	}
}

func TestHandleCloseKeepsBus(t *testing.T) {
	b, s, _ := newBus(t)
	h := b.Handle()
	if h.String() != "twi0" {
		t.Fatalf("String = %q", h.String())
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if !s.Pullups() {
		t.Fatal("handle Close shut the bus down")
	}
	if err := h.Tx(0x50, []byte{0}, nil); err != nil {
		t.Fatalf("Tx through handle: %v", err)
	}
}

func TestDS3231OverBus(t *testing.T) {
	b, s, _ := newBus(t)
	rtcRegs := twisim.NewMemory(32)
	rtcRegs.Load(ds3231.REG_STATUS, []byte{1 << ds3231.OSF})
	rtcRegs.Load(ds3231.REG_TEMP, []byte{0x19, 0x40})
	s.Attach(ds3231.Address, rtcRegs)

	rtc := ds3231.New(b)
	rtc.Configure()
	if rtc.IsTimeValid() {
		t.Fatal("oscillator-stop flag ignored")
	}
	want := time.Date(2026, time.October, 17, 13, 45, 30, 0, time.UTC)
	if err := rtc.SetTime(want); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	if !rtc.IsTimeValid() {
		t.Fatal("SetTime did not clear the oscillator-stop flag")
	}
	got, err := rtc.ReadTime()
	if err != nil {
		t.Fatalf("ReadTime: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("ReadTime = %v, want %v", got, want)
	}
	if bcd := rtcRegs.Bytes()[ds3231.REG_TIMEDATE:3]; !bytes.Equal(bcd, []byte{0x30, 0x45, 0x13}) {
		t.Fatalf("time registers % x", bcd)
	}
	mc, err := rtc.ReadTemperature()
	if err != nil || mc != 25250 {
		t.Fatalf("ReadTemperature = %d, %v", mc, err)
	}
}
