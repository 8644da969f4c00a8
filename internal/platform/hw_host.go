//go:build !avr

package platform

import (
	"github.com/noassemblyrequired/twi/drivers/twi"
	"github.com/noassemblyrequired/twi/drivers/twi/twisim"
)

// HostTargets populates each simulated bus. The default attaches two
// 256-byte EEPROMs at 0x50 and 0x51 and a 32-byte register device at 0x68.
var HostTargets = func(name string, s *twisim.Sim) {
	s.Attach(0x50, twisim.NewMemory(256))
	s.Attach(0x51, twisim.NewMemory(256))
	s.Attach(0x68, twisim.NewMemory(32))
}

// registers returns a fresh simulated peripheral for every bus name.
func registers(name string) (twi.Registers, func(func()), error) {
	s := twisim.New()
	HostTargets(name, s)
	return s, s.OnInterrupt, nil
}
