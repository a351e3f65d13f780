package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		return clientTemplate, nil
	case "companion":
		return companionTemplate, nil
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

// Validate loads path as kind and runs its validation.
func Validate(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		_, err := LoadClientConfig(path)
		return err
	case "companion":
		cfg, err := LoadCompanionConfig(path)
		if err != nil {
			return err
		}
		_, err = cfg.Companion()
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

const clientTemplate = `app = "dashctl"
transport = "websocket"
addr = "ws://localhost:8787/ws"
nats_url = ""
send_delay = "200ms"
reply_timeout = "10s"
library_version = "1.2"
log_requests = false
`

const companionTemplate = `id = "companion.local"
addr = ":8787"
version = "1.2"
reply_delay = "0s"
cors_origins = ["http://localhost:3000"]
permit = []
admin_token = ""

[redis]
addr = ""
password = ""
db = 0
key = "dashlink:permissions"

[nats]
url = ""
app = "*"
`
