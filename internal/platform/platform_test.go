//go:build !avr

package platform

import (
	"bytes"
	"context"
	"testing"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"

	"github.com/noassemblyrequired/twi/config"
	"github.com/noassemblyrequired/twi/drivers/twi"
	"github.com/noassemblyrequired/twi/drivers/twi/twisim"
	"github.com/noassemblyrequired/twi/errcode"
)

func hostBus(t *testing.T) config.Bus {
	t.Helper()
	b, err := config.Load("host")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	c, ok := b.Find("twi0")
	if !ok {
		t.Fatal("no twi0")
	}
	return c
}

func open(t *testing.T, c config.Bus) *Bus {
	t.Helper()
	b, err := Open(context.Background(), c)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestOpenRegistersBus(t *testing.T) {
	b := open(t, hostBus(t))
	if b.Driver.Role() != twi.Idle {
		t.Fatalf("role %v", b.Driver.Role())
	}

	bc, err := i2creg.Open("twi0")
	if err != nil {
		t.Fatalf("i2creg.Open: %v", err)
	}
	dev := &i2c.Dev{Bus: bc, Addr: 0x50}
	if _, err := dev.Write([]byte{0x20, 7, 8}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	r := make([]byte, 2)
	if err := dev.Tx([]byte{0x20}, r); err != nil {
		t.Fatalf("Tx: %v", err)
	}
	if !bytes.Equal(r, []byte{7, 8}) {
		t.Fatalf("read % x", r)
	}
	if err := bc.Close(); err != nil {
		t.Fatal(err)
	}
	if b.Driver.Role() != twi.Idle {
		t.Fatal("closing a registry handle shut the bus down")
	}
}

func TestOpenTwiceFails(t *testing.T) {
	c := hostBus(t)
	open(t, c)
	if _, err := Open(context.Background(), c); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("second Open: %v", err)
	}
}

func TestCloseUnregisters(t *testing.T) {
	c := hostBus(t)
	b, err := Open(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if b.Driver.Role() != twi.Uninitialized {
		t.Fatalf("role %v", b.Driver.Role())
	}
	if _, err := i2creg.Open("twi0"); err == nil {
		t.Fatal("bus still registered")
	}
}

func TestResponderChangesAndTrace(t *testing.T) {
	b := open(t, hostBus(t))
	s := b.HW.(*twisim.Sim)

	if _, err := s.RemoteWrite(42, []byte{3, 0xAA, 0xBB}); err != nil {
		t.Fatalf("RemoteWrite: %v", err)
	}
	if b.Bank.Get(3) != 0xAA || b.Bank.Get(4) != 0xBB {
		t.Fatalf("bank %x %x", b.Bank.Get(3), b.Bank.Get(4))
	}
	var got [][2]byte
	if n := b.DrainChanges(func(reg, val byte) { got = append(got, [2]byte{reg, val}) }); n != 2 {
		t.Fatalf("changes %v", got)
	}
	if got[0] != [2]byte{3, 0xAA} || got[1] != [2]byte{4, 0xBB} {
		t.Fatalf("changes %v", got)
	}

	var first twi.Status
	n := b.DrainTrace(func(st twi.Status, _ twi.Control) {
		if first == 0 {
			first = st
		}
	})
	if n == 0 || first != twi.StatusSRAddrAck {
		t.Fatalf("trace n=%d first=%v", n, first)
	}
}

func TestHostTargetsOverride(t *testing.T) {
	old := HostTargets
	HostTargets = func(string, *twisim.Sim) {}
	t.Cleanup(func() { HostTargets = old })

	b := open(t, hostBus(t))
	if err := b.I2C.Tx(0x50, nil, nil); errcode.Of(err) != errcode.Nack {
		t.Fatalf("probe on empty bus: %v", err)
	}
}

func TestOpenAll(t *testing.T) {
	board, err := config.Load("host")
	if err != nil {
		t.Fatal(err)
	}
	buses, err := OpenAll(context.Background(), board)
	if err != nil {
		t.Fatalf("OpenAll: %v", err)
	}
	if len(buses) != 1 {
		t.Fatalf("%d buses", len(buses))
	}
	for _, b := range buses {
		b.Close()
	}
}
