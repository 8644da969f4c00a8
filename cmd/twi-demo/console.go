package main

import (
	"io"
	"strconv"
	"time"

	"github.com/google/shlex"
	expi2c "golang.org/x/exp/io/i2c"
	"tinygo.org/x/drivers/ds3231"

	"github.com/noassemblyrequired/twi/drivers/twi"
	"github.com/noassemblyrequired/twi/internal/platform"
	"github.com/noassemblyrequired/twi/x/conv"
)

type console struct {
	bus *platform.Bus
	out io.Writer
}

func (c *console) exec(line string) {
	args, err := shlex.Split(line)
	if err != nil {
		c.say("parse: ", err.Error())
		return
	}
	if len(args) == 0 {
		return
	}
	switch args[0] {
	case "scan":
		c.scan()
	case "read":
		c.read(args[1:])
	case "write":
		c.write(args[1:])
	case "regs":
		c.regs()
	case "trace":
		c.trace()
	case "rtc":
		c.rtc(args[1:])
	default:
		c.say("unknown command: ", args[0])
	}
}

func (c *console) scan() {
	n := 0
	for a := uint16(0x08); a < 0x78; a++ {
		if c.bus.I2C.Tx(a, nil, nil) == nil {
			c.say("found ", hex8(uint8(a)))
			n++
		}
	}
	c.say("devices: ", strconv.Itoa(n))
}

func (c *console) read(args []string) {
	if len(args) != 3 {
		c.say("usage: read <addr> <reg> <n>")
		return
	}
	v, ok := c.numbers(args)
	if !ok {
		return
	}
	dev, err := expi2c.Open(c.bus.I2C, int(v[0]))
	if err != nil {
		c.say("open: ", err.Error())
		return
	}
	defer dev.Close()
	buf := make([]byte, v[2])
	if err := dev.ReadReg(byte(v[1]), buf); err != nil {
		c.say("read: ", err.Error())
		return
	}
	c.say(hexBytes(buf))
}

func (c *console) write(args []string) {
	if len(args) < 3 {
		c.say("usage: write <addr> <reg> <byte>...")
		return
	}
	v, ok := c.numbers(args)
	if !ok {
		return
	}
	dev, err := expi2c.Open(c.bus.I2C, int(v[0]))
	if err != nil {
		c.say("open: ", err.Error())
		return
	}
	defer dev.Close()
	data := make([]byte, 0, len(v)-2)
	for _, b := range v[2:] {
		data = append(data, byte(b))
	}
	if err := dev.WriteReg(byte(v[1]), data); err != nil {
		c.say("write: ", err.Error())
		return
	}
	c.say("ok")
}

// regs shows the responder bank and any remote writes since the last call.
func (c *console) regs() {
	b := c.bus.Bank
	if b == nil {
		c.say("no responder")
		return
	}
	buf := make([]byte, b.Len())
	for i := range buf {
		buf[i] = b.Get(uint8(i))
	}
	c.say(hexBytes(buf))
	c.bus.DrainChanges(func(reg, val byte) {
		c.say("remote wrote ", hex8(reg), " = ", hex8(val))
	})
}

func (c *console) trace() {
	n := c.bus.DrainTrace(func(st twi.Status, issued twi.Control) {
		c.say(st.String(), " -> ", hex8(uint8(issued)))
	})
	if n == 0 {
		c.say("trace empty")
	}
}

// rtc reads, or with "set <RFC3339 time>" sets, the DS3231 on the bus.
func (c *console) rtc(args []string) {
	dev := ds3231.New(c.bus.I2C)
	dev.Configure()
	if len(args) == 2 && args[0] == "set" {
		ts, err := time.Parse(time.RFC3339, args[1])
		if err != nil {
			c.say("bad time: ", args[1])
			return
		}
		if err := dev.SetTime(ts.UTC()); err != nil {
			c.say("rtc: ", err.Error())
			return
		}
		c.say("ok")
		return
	}
	if len(args) != 0 {
		c.say("usage: rtc [set <time>]")
		return
	}
	ts, err := dev.ReadTime()
	if err != nil {
		c.say("rtc: ", err.Error())
		return
	}
	mc, err := dev.ReadTemperature()
	if err != nil {
		c.say("rtc: ", err.Error())
		return
	}
	valid := ""
	if !dev.IsTimeValid() {
		valid = " (oscillator stopped)"
	}
	c.say(ts.Format(time.RFC3339), " ", strconv.Itoa(int(mc)), " mC", valid)
}

// numbers parses args as bytes; 0x and 0b prefixes are accepted.
func (c *console) numbers(args []string) ([]uint64, bool) {
	out := make([]uint64, len(args))
	for i, a := range args {
		v, err := strconv.ParseUint(a, 0, 8)
		if err != nil {
			c.say("bad number: ", a)
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func (c *console) say(parts ...string) {
	for _, p := range parts {
		io.WriteString(c.out, p)
	}
	io.WriteString(c.out, "\n")
}

func hex8(v uint8) string {
	var buf [4]byte
	buf[0], buf[1] = '0', 'x'
	conv.U8Hex(buf[2:], v)
	return string(buf[:])
}

func hexBytes(b []byte) string {
	out := make([]byte, 0, 3*len(b))
	var buf [2]byte
	for i, v := range b {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, conv.U8Hex(buf[:], v)...)
	}
	return string(out)
}
