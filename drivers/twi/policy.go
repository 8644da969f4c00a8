package twi

// Controller is the controller-role policy. The dispatcher calls it from
// interrupt context; implementations must not block.
type Controller interface {
	// OnComplete is called when a transfer has used up its buffer.
	// ActionStop issues a stop, ActionStart a repeated start; both together
	// issue stop followed by start as a single command.
	OnComplete(st Status) Action

	// OnNack is called on an address or data NACK and on arbitration loss.
	//
	//	st                 ActionStop        ActionStart       ActionContinue
	//	MTAddrNack         stop [default]    repeated start    send next byte
	//	MTDataNack         stop [default]    repeated start    send next byte
	//	MRAddrNack         stop [default]    repeated start    n/a
	//	ArbLost            release [default] start             n/a
	OnNack(st Status) Action
}

// Responder is the responder-role policy. Like Controller it runs in
// interrupt context. OnByteRequested has no sensible default; embed
// DefaultResponder and provide it.
type Responder interface {
	// OnAddressMatch is called when the peripheral's address (or the general
	// call address, reported as 0) is matched. For receive matches
	// ActionAck acknowledges the next byte; for transmit matches the result
	// is ignored.
	OnAddressMatch(addr uint8, st Status) Action

	// OnByteReceived is called for every received byte. With an
	// acknowledged byte ActionAck acknowledges the next one. With a NACKed
	// byte ActionAck re-enables address recognition and ActionStart asserts
	// a start condition.
	OnByteReceived(b byte, st Status) Action

	// OnStop is called on a stop or repeated start while addressed.
	// ActionAck re-enables address recognition, ActionStart asserts a start.
	OnStop() Action

	// OnByteRequested stores the next byte to send in *out. ActionAck means
	// the controller is expected to acknowledge it.
	OnByteRequested(out *byte) Action

	// OnLastByte is called when the controller NACKed a byte or the last
	// byte went out. ActionAck re-enables address recognition, ActionStart
	// asserts a start.
	OnLastByte(st Status) Action
}

// DefaultController stops the bus on completion and on any NACK, and
// releases it on arbitration loss.
type DefaultController struct{}

func (DefaultController) OnComplete(Status) Action { return ActionStop }
func (DefaultController) OnNack(Status) Action     { return ActionStop }

// DefaultResponder acknowledges its address, NACKs data, and re-arms
// address recognition after a stop or the last transmitted byte. Its
// OnByteRequested sends 0xFF and expects a NACK.
type DefaultResponder struct{}

func (DefaultResponder) OnAddressMatch(uint8, Status) Action { return ActionAck }
func (DefaultResponder) OnByteReceived(byte, Status) Action  { return ActionNack }
func (DefaultResponder) OnStop() Action                      { return ActionAck }
func (DefaultResponder) OnLastByte(Status) Action            { return ActionAck }

func (DefaultResponder) OnByteRequested(out *byte) Action {
	*out = 0xFF
	return ActionNack
}

// ControllerFuncs adapts optional functions to Controller. Nil fields fall
// back to DefaultController.
type ControllerFuncs struct {
	Complete func(st Status) Action
	Nack     func(st Status) Action
}

func (f ControllerFuncs) OnComplete(st Status) Action {
	if f.Complete == nil {
		return DefaultController{}.OnComplete(st)
	}
	return f.Complete(st)
}

func (f ControllerFuncs) OnNack(st Status) Action {
	if f.Nack == nil {
		return DefaultController{}.OnNack(st)
	}
	return f.Nack(st)
}

// ResponderFuncs adapts optional functions to Responder. Nil fields fall
// back to DefaultResponder.
type ResponderFuncs struct {
	AddressMatch  func(addr uint8, st Status) Action
	ByteReceived  func(b byte, st Status) Action
	Stop          func() Action
	ByteRequested func(out *byte) Action
	LastByte      func(st Status) Action
}

func (f ResponderFuncs) OnAddressMatch(addr uint8, st Status) Action {
	if f.AddressMatch == nil {
		return DefaultResponder{}.OnAddressMatch(addr, st)
	}
	return f.AddressMatch(addr, st)
}

func (f ResponderFuncs) OnByteReceived(b byte, st Status) Action {
	if f.ByteReceived == nil {
		return DefaultResponder{}.OnByteReceived(b, st)
	}
	return f.ByteReceived(b, st)
}

func (f ResponderFuncs) OnStop() Action {
	if f.Stop == nil {
		return DefaultResponder{}.OnStop()
	}
	return f.Stop()
}

func (f ResponderFuncs) OnByteRequested(out *byte) Action {
	if f.ByteRequested == nil {
		return DefaultResponder{}.OnByteRequested(out)
	}
	return f.ByteRequested(out)
}

func (f ResponderFuncs) OnLastByte(st Status) Action {
	if f.LastByte == nil {
		return DefaultResponder{}.OnLastByte(st)
	}
	return f.LastByte(st)
}
