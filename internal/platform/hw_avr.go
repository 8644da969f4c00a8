//go:build avr

package platform

import (
	"device/avr"
	"machine"
	"runtime/interrupt"

	"github.com/noassemblyrequired/twi/drivers/twi"
	"github.com/noassemblyrequired/twi/errcode"
)

// isr is the handler bound to the TWI vector. Set once, before the
// peripheral's interrupt is enabled.
var isr func()

func registers(name string) (twi.Registers, func(func()), error) {
	if name != "twi0" {
		return nil, nil, &errcode.E{C: errcode.Unsupported, Op: "open", Msg: "no such peripheral: " + name}
	}
	interrupt.New(avr.IRQ_TWI, func(interrupt.Interrupt) {
		if h := isr; h != nil {
			h()
		}
	})
	return avrTWI{}, func(h func()) { isr = h }, nil
}

// avrTWI maps twi.Registers onto TWCR, TWSR, TWDR, TWBR, TWAR and TWAMR.
type avrTWI struct{}

func (avrTWI) Control() twi.Control     { return twi.Control(avr.TWCR.Get()) }
func (avrTWI) SetControl(c twi.Control) { avr.TWCR.Set(uint8(c)) }
func (avrTWI) Status() twi.Status       { return twi.Status(avr.TWSR.Get()) }
func (avrTWI) Data() byte               { return avr.TWDR.Get() }
func (avrTWI) SetData(b byte)           { avr.TWDR.Set(b) }
func (avrTWI) SetAddress(a twi.Address) { avr.TWAR.Set(uint8(a)) }
func (avrTWI) SetAddressMask(m uint8)   { avr.TWAMR.Set(m) }

func (avrTWI) Timing() (uint8, twi.Prescaler) {
	return avr.TWBR.Get(), twi.Prescaler(avr.TWSR.Get() & 0x03)
}

// SetTiming writes the prescaler bits; the status bits of TWSR are
// read-only.
func (avrTWI) SetTiming(baud uint8, p twi.Prescaler) {
	avr.TWBR.Set(baud)
	avr.TWSR.Set(uint8(p) & 0x03)
}

// SetPullups drives the internal pull-ups on SDA (PC4) and SCL (PC5).
func (avrTWI) SetPullups(on bool) {
	mode := machine.PinInput
	if on {
		mode = machine.PinInputPullup
	}
	machine.PC4.Configure(machine.PinConfig{Mode: mode})
	machine.PC5.Configure(machine.PinConfig{Mode: mode})
}
