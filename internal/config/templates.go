package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "bridge":
		return bridgeTemplate, nil
	case "loopback":
		return loopbackTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const bridgeTemplate = `[client]
address = "192.168.0.10:502"
max_connect_attempts = 5
auto_reconnect = true
connect_timeout = "5s"
read_timeout = "5s"
write_timeout = "5s"
rate_hz = 10.0
watchdog = "2s"
alert_threshold = 5
log_entries = 1000
log_file = ""

[client.backoff]
initial = "250ms"
multiplier = 2.0
max = "2s"
jitter = false

[server]
listen = "0.0.0.0:502"
max_conns = 16
idle_timeout = "0s"
write_timeout = "5s"
handler = "process"

[admin]
listen = ""

[schema]
byte_order = "big"

[[schema.fields]]
name = "counter"
type = "DINT"
default = 0

[[schema.fields]]
name = "temperature"
type = "REAL"
default = 20.5

[[schema.fields]]
name = "motor_on"
type = "BOOL"
default = false

[[schema.fields]]
name = "status"
type = "STRING(16)"
default = "idle"
`

const loopbackTemplate = `[client]
address = "127.0.0.1:5020"
max_connect_attempts = 0
rate_hz = 50.0

[client.backoff]
initial = "100ms"
multiplier = 1.0

[server]
listen = "127.0.0.1:5020"
max_conns = 1
handler = "echo"

[admin]
listen = "127.0.0.1:9102"

[schema]
byte_order = "little"

[[schema.fields]]
name = "seq"
type = "I"

[[schema.fields]]
name = "setpoint"
type = "d"
default = 1.5

[[schema.fields]]
name = "tag"
type = "8s"
default = "loop"
`
