package config

import (
	"strings"

	"github.com/rs/zerolog"
)

type EnvVars struct {
	Port      string `env:"PORT" envDefault:"8080"`
	AppName   string `env:"APP_NAME" envDefault:"Trading Portfolio"`
	Env       string `env:"ENV" envDefault:"DEV"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	StaticDir string `env:"STATIC_DIR"` // empty serves the embedded placeholder page
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	if strings.HasPrefix(e.Port, ":") {
		return e.Port
	}
	return ":" + e.Port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

func (e EnvVars) GetLogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(e.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func (e EnvVars) GetStaticDir() string {
	return e.StaticDir
}
