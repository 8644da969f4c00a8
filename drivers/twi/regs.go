package twi

// Control is the peripheral's control register (TWCR layout).
type Control uint8

const (
	CtrlInterruptEnable Control = 1 << 0 // TWIE
	CtrlEnable          Control = 1 << 2 // TWEN
	CtrlWriteCollision  Control = 1 << 3 // TWWC
	CtrlStop            Control = 1 << 4 // TWSTO
	CtrlStart           Control = 1 << 5 // TWSTA
	CtrlAck             Control = 1 << 6 // TWEA
	CtrlInterrupt       Control = 1 << 7 // TWINT; writing one clears the flag
)

// ctrlBase clears the interrupt flag and keeps the peripheral and its
// interrupt enabled. Every command written by the driver includes it.
const ctrlBase = CtrlInterrupt | CtrlEnable | CtrlInterruptEnable

// Prescaler selects the bit-rate prescaler (TWPS bits).
type Prescaler uint8

const (
	Prescaler1 Prescaler = iota
	Prescaler4
	Prescaler16
	Prescaler64
)

// Divisor returns the prescaler's division factor.
func (p Prescaler) Divisor() uint32 { return 1 << (2 * uint32(p&3)) }

// Address is the responder address register value: the 7-bit address in
// bits 7..1 and the general-call enable in bit 0.
type Address uint8

// GeneralCall returns addr with general-call recognition enabled.
func GeneralCall(addr uint8) Address { return Address(addr<<1 | 1) }

// NoGeneralCall returns addr with general-call recognition disabled.
func NoGeneralCall(addr uint8) Address { return Address(addr << 1) }

// Registers is the hardware boundary. Implementations map each method onto
// the peripheral's registers; the host build uses twisim.
//
// Status returns the raw status register; the driver masks the prescaler
// bits. The dispatcher reads it before writing Control, since clearing the
// interrupt flag invalidates it.
type Registers interface {
	Control() Control
	SetControl(c Control)
	Status() Status
	Data() byte
	SetData(b byte)
	Timing() (baud uint8, p Prescaler)
	SetTiming(baud uint8, p Prescaler)
	SetAddress(a Address)
	SetAddressMask(m uint8)
	SetPullups(on bool)
}
