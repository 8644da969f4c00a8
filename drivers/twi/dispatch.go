package twi

// HandleInterrupt is the peripheral's interrupt handler. It reacts to
// exactly one bus condition and issues at most one command. It never
// blocks. The hardware does not deliver the next condition until the
// command has been written, so calls are serialised; HandleInterrupt must
// not be called concurrently with itself.
func (d *Driver) HandleInterrupt() {
	st := d.hw.Status() & statusMask
	d.lastEvent.Store(uint32(st))
	d.issued = 0

	switch st {
	case StatusStart, StatusRepStart:
		d.onStart()

	// Controller transmitter.
	case StatusMTAddrAck, StatusMTDataAck:
		d.sendNext()
	case StatusMTAddrNack, StatusMTDataNack:
		a := d.ctrl.OnNack(st)
		if a&ActionContinue != 0 {
			d.sendNext()
			break
		}
		d.stopOrRestart(a, ctrlBase|CtrlAck)
	case StatusArbLost:
		a := d.ctrl.OnNack(st)
		if a&ActionStart != 0 {
			d.issue(ctrlBase | CtrlAck | CtrlStart)
			d.setRole(RepeatedStartPending)
			break
		}
		d.issue(ctrlBase | CtrlAck)
		d.setRole(Idle)

	// Controller receiver.
	case StatusMRDataAck:
		d.store()
		d.ackRemaining()
	case StatusMRAddrAck:
		d.ackRemaining()
	case StatusMRAddrNack:
		d.stopOrRestart(d.ctrl.OnNack(st), ctrlBase|CtrlAck)
	case StatusMRDataNack:
		d.store()
		d.complete(st)

	// Responder receiver.
	case StatusSRAddrAck, StatusSRArbLostAddrAck, StatusSRGCallAck, StatusSRArbLostGCallAck:
		d.mode.Store(uint32(ModeResponderReceive))
		d.releaseOnArbLost(st)
		a := d.resp.OnAddressMatch(d.hw.Data()>>1, st)
		d.issue(withAck(ctrlBase, a))
	case StatusSRDataAck, StatusSRGCallDataAck:
		a := d.resp.OnByteReceived(d.hw.Data(), st)
		d.issue(withAck(ctrlBase, a))
	case StatusSRStop:
		a := d.resp.OnStop()
		d.issue(withStart(withAck(ctrlBase, a), a))
	case StatusSRDataNack, StatusSRGCallDataNack:
		a := d.resp.OnByteReceived(d.hw.Data(), st)
		d.issue(withStart(withAck(ctrlBase, a), a))

	// Responder transmitter.
	case StatusSTAddrAck, StatusSTArbLostAddrAck:
		d.mode.Store(uint32(ModeResponderTransmit))
		d.releaseOnArbLost(st)
		d.resp.OnAddressMatch(d.hw.Data()>>1, st)
		d.sendRequested()
	case StatusSTDataAck:
		d.sendRequested()
	case StatusSTDataNack, StatusSTLastData:
		a := d.resp.OnLastByte(st)
		d.issue(withStart(withAck(ctrlBase, a), a))

	case StatusBusError:
		d.stopFromInterrupt()
	}

	if d.cfg.Trace != nil {
		rec := [2]byte{byte(st), byte(d.issued)}
		d.cfg.Trace.WriteRecord(rec[:])
	}
}

// issue writes a command to the control register.
func (d *Driver) issue(c Control) {
	d.issued = c
	d.hw.SetControl(c)
}

// onStart loads the target address if a transfer is armed. Otherwise the
// start is parked: the interrupt is masked with the flag left set, holding
// the bus until the orchestrator publishes a transfer and claims it.
//
// The mask goes out first: once the start is parked the orchestrator may
// claim it and write the next command at any time.
func (d *Driver) onStart() {
	d.issue(CtrlEnable | CtrlAck)
	for {
		switch d.handoff.Load() {
		case handoffArmed:
			if d.handoff.CompareAndSwap(handoffArmed, handoffClaimed) {
				d.setRole(Busy)
				d.sendAddress()
				return
			}
		case handoffNone:
			if d.handoff.CompareAndSwap(handoffNone, handoffParked) {
				return
			}
		default:
			return
		}
	}
}

// sendAddress writes SLA+R/W and releases the hand-off. The caller must
// hold the hand-off in handoffClaimed.
func (d *Driver) sendAddress() {
	d.hw.SetData(d.target)
	d.handoff.Store(handoffNone)
	d.issue(ctrlBase | CtrlAck)
}

// sendNext loads the next buffered byte, or runs the completion sequence
// when the buffer is used up.
func (d *Driver) sendNext() {
	if d.cursor >= len(d.buf) {
		d.complete(d.LastEvent())
		return
	}
	d.hw.SetData(d.buf[d.cursor])
	d.cursor++
	d.issue(ctrlBase | CtrlAck)
}

// store saves a received byte at the cursor. Bytes beyond the buffer are
// dropped so the cursor never passes its length.
func (d *Driver) store() {
	if d.cursor < len(d.buf) {
		d.buf[d.cursor] = d.hw.Data()
		d.cursor++
	}
}

// ackRemaining continues a controller receive, acknowledging the next byte
// unless it is the last slot in the buffer.
func (d *Driver) ackRemaining() {
	c := ctrlBase
	if d.cursor+1 < len(d.buf) {
		c |= CtrlAck
	}
	d.issue(c)
}

// complete runs the completion sequence. Stop and start requested together
// go out as one command.
func (d *Driver) complete(st Status) {
	d.stopOrRestart(d.ctrl.OnComplete(st), ctrlBase|CtrlAck)
}

// stopOrRestart issues c with the stop and start bits requested by a, then
// moves the role accordingly. With neither bit the role is left alone.
func (d *Driver) stopOrRestart(a Action, c Control) {
	role := d.Role()
	if a&ActionStop != 0 {
		c |= CtrlStop
		role = Idle
	}
	if a&ActionStart != 0 {
		c |= CtrlStart
		role = RepeatedStartPending
	}
	d.issue(c)
	d.setRole(role)
}

// sendRequested asks the responder policy for the next byte to transmit.
func (d *Driver) sendRequested() {
	var b byte
	a := d.resp.OnByteRequested(&b)
	d.hw.SetData(b)
	d.issue(withAck(ctrlBase, a))
}

// releaseOnArbLost ends a controller transfer that lost arbitration to the
// controller now addressing us. The orchestrator sees the arbitration-lost
// condition as its result.
func (d *Driver) releaseOnArbLost(st Status) {
	switch st {
	case StatusSRArbLostAddrAck, StatusSRArbLostGCallAck, StatusSTArbLostAddrAck:
		if d.Role() == Busy {
			d.setRole(Idle)
		}
	}
}

func withAck(c Control, a Action) Control {
	if a&ActionAck != 0 {
		c |= CtrlAck
	}
	return c
}

func withStart(c Control, a Action) Control {
	if a&ActionStart != 0 {
		c |= CtrlStart
	}
	return c
}
