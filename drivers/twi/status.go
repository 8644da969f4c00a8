package twi

import (
	"github.com/noassemblyrequired/twi/errcode"
	"github.com/noassemblyrequired/twi/x/conv"
)

// Status is a bus condition code as reported by the peripheral's status
// register (prescaler bits masked off), or one of the driver-level results
// StatusOK, StatusNotInitialized, StatusNoWait and StatusTimedOut.
//
// Controller operations return the last reported bus condition on success,
// so a caller can tell "address acknowledged" from "address not
// acknowledged" when its NACK policy chose to report rather than recover.
type Status uint8

// Bus conditions. Values match the ATmega TWSR encoding.
const (
	StatusBusError Status = 0x00
	StatusStart    Status = 0x08
	StatusRepStart Status = 0x10

	// Controller transmitter.
	StatusMTAddrAck  Status = 0x18
	StatusMTAddrNack Status = 0x20
	StatusMTDataAck  Status = 0x28
	StatusMTDataNack Status = 0x30

	// Arbitration lost, controller transmitter or receiver.
	StatusArbLost Status = 0x38

	// Controller receiver.
	StatusMRAddrAck  Status = 0x40
	StatusMRAddrNack Status = 0x48
	StatusMRDataAck  Status = 0x50
	StatusMRDataNack Status = 0x58

	// Responder receiver.
	StatusSRAddrAck         Status = 0x60
	StatusSRArbLostAddrAck  Status = 0x68
	StatusSRGCallAck        Status = 0x70
	StatusSRArbLostGCallAck Status = 0x78
	StatusSRDataAck         Status = 0x80
	StatusSRDataNack        Status = 0x88
	StatusSRGCallDataAck    Status = 0x90
	StatusSRGCallDataNack   Status = 0x98
	StatusSRStop            Status = 0xA0

	// Responder transmitter.
	StatusSTAddrAck        Status = 0xA8
	StatusSTArbLostAddrAck Status = 0xB0
	StatusSTDataAck        Status = 0xB8
	StatusSTDataNack       Status = 0xC0
	StatusSTLastData       Status = 0xC8
	StatusNoInfo           Status = 0xF8
)

// Driver results that are not bus conditions.
const (
	StatusOK             Status = 0x01
	StatusNotInitialized Status = 0xFD
	StatusNoWait         Status = 0xFE
	StatusTimedOut       Status = 0xFF
)

// statusMask drops the prescaler bits from the raw status register.
const statusMask = 0xF8

var statusNames = map[Status]string{
	StatusBusError:          "bus_error",
	StatusStart:             "start",
	StatusRepStart:          "rep_start",
	StatusMTAddrAck:         "mt_addr_ack",
	StatusMTAddrNack:        "mt_addr_nack",
	StatusMTDataAck:         "mt_data_ack",
	StatusMTDataNack:        "mt_data_nack",
	StatusArbLost:           "arb_lost",
	StatusMRAddrAck:         "mr_addr_ack",
	StatusMRAddrNack:        "mr_addr_nack",
	StatusMRDataAck:         "mr_data_ack",
	StatusMRDataNack:        "mr_data_nack",
	StatusSRAddrAck:         "sr_addr_ack",
	StatusSRArbLostAddrAck:  "sr_arb_lost_addr_ack",
	StatusSRGCallAck:        "sr_gcall_ack",
	StatusSRArbLostGCallAck: "sr_arb_lost_gcall_ack",
	StatusSRDataAck:         "sr_data_ack",
	StatusSRDataNack:        "sr_data_nack",
	StatusSRGCallDataAck:    "sr_gcall_data_ack",
	StatusSRGCallDataNack:   "sr_gcall_data_nack",
	StatusSRStop:            "sr_stop",
	StatusSTAddrAck:         "st_addr_ack",
	StatusSTArbLostAddrAck:  "st_arb_lost_addr_ack",
	StatusSTDataAck:         "st_data_ack",
	StatusSTDataNack:        "st_data_nack",
	StatusSTLastData:        "st_last_data",
	StatusNoInfo:            "no_info",
	StatusOK:                "ok",
	StatusNotInitialized:    "not_initialized",
	StatusNoWait:            "no_wait",
	StatusTimedOut:          "timed_out",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	var buf [2]byte
	return "status(0x" + string(conv.U8Hex(buf[:], uint8(s))) + ")"
}

// Err maps a status to an errcode. Acknowledged conditions, StatusOK and
// StatusNoWait map to nil.
func (s Status) Err() error {
	switch s {
	case StatusOK, StatusNoWait,
		StatusMTAddrAck, StatusMTDataAck,
		StatusMRAddrAck, StatusMRDataAck, StatusMRDataNack,
		StatusStart, StatusRepStart:
		return nil
	case StatusNotInitialized:
		return errcode.NotInitialized
	case StatusTimedOut:
		return errcode.Timeout
	case StatusMTAddrNack, StatusMTDataNack, StatusMRAddrNack:
		return errcode.Nack
	case StatusArbLost,
		StatusSRArbLostAddrAck, StatusSRArbLostGCallAck, StatusSTArbLostAddrAck:
		return errcode.ArbitrationLost
	case StatusBusError:
		return errcode.BusError
	}
	return errcode.Error
}
