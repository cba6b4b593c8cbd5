package server

import (
	"fmt"
	"time"
)

// Config holds server configuration
type Config struct {
	// Network settings
	ListenAddr string
	MaxClients int
	// Token, when set, must be passed as the "token" query parameter.
	Token string

	// Simulation loop period
	TickRate time.Duration

	// Message settings
	MaxMessageSize int64
	SendBuffer     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration

	// Number of race events replayed to joining clients
	HistorySize int
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:     "127.0.0.1:8080",
		MaxClients:     16,
		TickRate:       time.Second / 60,
		MaxMessageSize: 4 * 1024,
		SendBuffer:     256,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		HistorySize:    64,
	}
}

func (c Config) Validate() error {
	switch {
	case c.ListenAddr == "":
		return fmt.Errorf("%w: listen address is required", ErrInvalidConfig)
	case c.MaxClients <= 0:
		return fmt.Errorf("%w: max clients must be positive", ErrInvalidConfig)
	case c.TickRate <= 0:
		return fmt.Errorf("%w: tick rate must be positive", ErrInvalidConfig)
	case c.MaxMessageSize <= 0:
		return fmt.Errorf("%w: max message size must be positive", ErrInvalidConfig)
	case c.SendBuffer <= 0:
		return fmt.Errorf("%w: send buffer must be positive", ErrInvalidConfig)
	case c.WriteTimeout <= 0:
		return fmt.Errorf("%w: write timeout must be positive", ErrInvalidConfig)
	case c.PingInterval <= 0:
		return fmt.Errorf("%w: ping interval must be positive", ErrInvalidConfig)
	case c.HistorySize < 0:
		return fmt.Errorf("%w: history size must not be negative", ErrInvalidConfig)
	}
	return nil
}
