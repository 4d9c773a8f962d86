// internal/workers/board/list-applications/config.go
package listapplications

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
	}
}
