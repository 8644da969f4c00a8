package twi

// Stop issues a stop condition and waits, bounded by the timeout budget in
// stop steps, for the hardware to send it. On timeout the peripheral is
// reset and StatusTimedOut returned; otherwise the driver is Idle and
// StatusOK returned. Without an initialized controller it returns
// StatusNotInitialized and leaves the hardware alone.
func (d *Driver) Stop() Status {
	if d.Role() == Uninitialized {
		return StatusNotInitialized
	}
	d.setRole(Stopping)
	d.hw.SetControl(ctrlBase | CtrlAck | CtrlStop)
	d.handoff.Store(handoffNone)
	if !d.stop.Until(int(d.timeout), d.stopSent) {
		d.Reset()
		return StatusTimedOut
	}
	d.stopPending.Store(false)
	d.setRole(Idle)
	return StatusOK
}

// stopSent reports whether the hardware has cleared its stop-pending bit.
func (d *Driver) stopSent() bool { return d.hw.Control()&CtrlStop == 0 }

// stopFromInterrupt is the interrupt-context half of Stop: it issues the
// stop and marks it pending, leaving the bounded wait to caller context
// (the orchestrator's quiescence wait or the Recovery worker).
func (d *Driver) stopFromInterrupt() {
	d.busErrors.Add(1)
	d.issue(ctrlBase | CtrlAck | CtrlStop)
	d.handoff.Store(handoffNone)
	if d.Role() != Uninitialized {
		d.setRole(Stopping)
	}
	d.stopPending.Store(true)
	if d.recovery != nil {
		d.recovery.notify()
	}
}

// settleStop completes a pending interrupt-context stop once the hardware
// has sent it. It reports whether this call settled it.
func (d *Driver) settleStop() bool {
	if !d.stopPending.Load() || !d.stopSent() {
		return false
	}
	if !d.stopPending.CompareAndSwap(true, false) {
		return false
	}
	d.role.CompareAndSwap(uint32(Stopping), uint32(Idle))
	return true
}
