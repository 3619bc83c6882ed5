package store

import "time"

// Config selects and configures the backends Open connects
type Config struct {
	// AppName is reported to Postgres as application_name and to ClickHouse as the client role
	AppName string

	PG PGConfig
	CH CHConfig
}

// PGConfig configures the Postgres pool behind rules, quota, audit and poll state
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// ConnectRetries bounds the pings Open makes before giving up; zero means 20
	ConnectRetries int
	// PingTimeout bounds each ping; zero means 3s
	PingTimeout time.Duration
}

// CHConfig configures the ClickHouse audit mirror
type CHConfig struct {
	Enabled bool
	URL     string
}

func (c PGConfig) retries() int {
	if c.ConnectRetries <= 0 {
		return 20
	}
	return c.ConnectRetries
}

func (c PGConfig) pingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 3 * time.Second
	}
	return c.PingTimeout
}
