// Command twi-demo brings up the board's TWI buses, probes the configured
// addresses and then runs a line console on stdin:
//
//	scan
//	read  <addr> <reg> <n>
//	write <addr> <reg> <byte>...
//	regs
//	trace
//	rtc   [set <RFC3339 time>]
package main

import (
	"bufio"
	"context"
	"os"
	"time"

	"github.com/noassemblyrequired/twi/config"
	"github.com/noassemblyrequired/twi/internal/platform"
)

func main() {
	println("[twi] boot …")
	time.Sleep(500 * time.Millisecond)

	board, err := config.Load(device)
	if err != nil {
		println("[twi] config:", err.Error())
		return
	}
	ctx := context.Background()
	buses, err := platform.OpenAll(ctx, board)
	if err != nil {
		println("[twi] open:", err.Error())
		return
	}
	if len(buses) == 0 {
		println("[twi] no buses configured")
		return
	}

	for i, b := range buses {
		go watch(b)
		probe(b, board.Buses[i].Scan)
	}

	c := &console{bus: buses[0], out: os.Stdout}
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		c.exec(sc.Text())
	}
}

// watch reports bus-error recoveries until the worker exits.
func watch(b *platform.Bus) {
	for {
		select {
		case ev := <-b.Recovery.Events():
			println("[twi]", b.Name, "recovered:", ev.Status.String(), "bus errors:", ev.BusErrors)
		case <-b.Recovery.Done():
			return
		}
	}
}

func probe(b *platform.Bus, addrs []uint8) {
	for _, a := range addrs {
		if err := b.I2C.Tx(uint16(a), nil, nil); err != nil {
			println("[twi]", b.Name, "probe", hex8(a), "absent:", err.Error())
			continue
		}
		println("[twi]", b.Name, "probe", hex8(a), "present")
	}
}
