package twi

import (
	"context"
	"sync/atomic"
	"time"
)

// RecoveryEvent reports how a bus-error stop was finished.
type RecoveryEvent struct {
	// Status is StatusOK when the stop went out, StatusTimedOut when the
	// peripheral had to be reset.
	Status    Status
	BusErrors uint32
	TS        time.Time
}

// Recovery finishes the stops the dispatcher issues on a bus error. The
// interrupt handler cannot wait for the stop to go out, so it posts a
// notice and the worker completes the bounded wait in task context.
type Recovery struct {
	d *Driver

	// Written by the interrupt handler; must not block it.
	isrQ    chan struct{}
	outQ    chan RecoveryEvent
	stopped chan struct{}

	drops atomic.Uint32
}

// NewRecovery attaches a recovery worker to d. Call it before the
// peripheral is armed. buf sizes both queues; zero or less means 4.
func NewRecovery(d *Driver, buf int) *Recovery {
	if buf <= 0 {
		buf = 4
	}
	r := &Recovery{
		d:       d,
		isrQ:    make(chan struct{}, buf),
		outQ:    make(chan RecoveryEvent, buf),
		stopped: make(chan struct{}),
	}
	d.recovery = r
	return r
}

// Start runs the worker until ctx is cancelled.
func (r *Recovery) Start(ctx context.Context) {
	go func() {
		defer close(r.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.isrQ:
				r.handle()
			}
		}
	}()
}

// Events delivers one event per finished recovery. Events are dropped if
// the consumer falls behind.
func (r *Recovery) Events() <-chan RecoveryEvent { return r.outQ }

// Done is closed when the worker has exited.
func (r *Recovery) Done() <-chan struct{} { return r.stopped }

// Drops returns the number of notices lost because the queue was full.
func (r *Recovery) Drops() uint32 { return r.drops.Load() }

// BusErrors returns the driver's bus error count.
func (r *Recovery) BusErrors() uint32 { return r.d.BusErrors() }

// notify is called from interrupt context.
func (r *Recovery) notify() {
	select {
	case r.isrQ <- struct{}{}:
	default:
		r.drops.Add(1)
	}
}

func (r *Recovery) handle() {
	d := r.d
	if !d.stopPending.Load() {
		// A caller-context wait got there first.
		return
	}
	st := StatusOK
	if !d.stop.Until(int(d.timeout), d.settleStop) && d.stopPending.Load() {
		println("[twi] stop after bus error timed out, resetting")
		d.Reset()
		st = StatusTimedOut
	}
	select {
	case r.outQ <- RecoveryEvent{Status: st, BusErrors: d.BusErrors(), TS: time.Now()}:
	default:
	}
}
