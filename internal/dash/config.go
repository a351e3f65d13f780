package dash

import (
	"time"

	"github.com/danmuck/dashlink/internal/protocol"
)

// Config defines exchange timing and header defaults.
type Config struct {
	SendDelay       time.Duration
	ReplyTimeout    time.Duration
	LibraryVersion  string
	MaxAppNameBytes int
	LogRequests     bool
}

func DefaultConfig() Config {
	return Config{
		SendDelay:       200 * time.Millisecond,
		ReplyTimeout:    10 * time.Second,
		LibraryVersion:  protocol.DefaultLibraryVersion,
		MaxAppNameBytes: protocol.MaxAppNameBytes,
	}
}

// withDefaults fills unset fields. A zero SendDelay is kept since it is a
// legitimate "send on next tick" setting.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SendDelay < 0 {
		c.SendDelay = def.SendDelay
	}
	if c.ReplyTimeout <= 0 {
		c.ReplyTimeout = def.ReplyTimeout
	}
	if c.LibraryVersion == "" {
		c.LibraryVersion = def.LibraryVersion
	}
	if c.MaxAppNameBytes <= 0 || c.MaxAppNameBytes > protocol.MaxAppNameBytes {
		c.MaxAppNameBytes = protocol.MaxAppNameBytes
	}
	return c
}
