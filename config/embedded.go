package config

// Embedded board configurations.
// Key: device name. Val: raw JSON for that device.

const cfgUno = `{
  "device": "uno",
  "twi": [
    {
      "name": "twi0",
      "cpu_hz": 16000000,
      "frequency_hz": 100000,
      "timeout": 200,
      "responder": {"address": 42, "registers": 16},
      "scan": [80, 104]
    }
  ]
}`

const cfgHost = `{
  "device": "host",
  "twi": [
    {
      "name": "twi0",
      "frequency_hz": 400000,
      "timeout": 20000,
      "wait_step_us": 20,
      "stop_step_us": 20,
      "trace_size": 64,
      "responder": {"address": 42, "general_call": true},
      "scan": [80, 81, 104]
    }
  ]
}`

var embedded = map[string][]byte{
	"uno":  []byte(cfgUno),
	"host": []byte(cfgHost),
}
