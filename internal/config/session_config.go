package config

import "time"

type Session struct {
	Timeout time.Duration `env:"SESSION_TIMEOUT" envDefault:"30m"` // Sliding session lifetime
}

var _ SessionConfig = Session{}

func (s Session) GetSessionTimeout() time.Duration {
	return s.Timeout
}
