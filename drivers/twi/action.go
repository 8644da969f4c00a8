package twi

// Action is returned by policy callbacks to steer the dispatcher. Bits
// combine; which bits are honoured depends on the bus condition that
// triggered the callback.
type Action uint8

const (
	ActionAck      Action = 0x01 // issue or enable acknowledge
	ActionNack     Action = 0x02 // issue NACK or disable acknowledge
	ActionStart    Action = 0x04 // issue a (repeated) start condition
	ActionStop     Action = 0x08 // issue a stop condition
	ActionContinue Action = 0x10 // carry on with the transfer
)

// Has reports whether all bits of f are set in a.
func (a Action) Has(f Action) bool { return a&f == f && f != 0 }
