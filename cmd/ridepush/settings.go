package main

import (
	"strings"
	"time"
)

type Settings struct {
	Port        int    `env:"PORT,default=8000"`
	BasePath    string `env:"BASE_PATH,default=/ridepush"`
	LogEncoding string `env:"LOG_ENCODING,default=console"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	JWTSecret   string `env:"JWT_SECRET,required=true"`
	JWTAudience string `env:"JWT_AUDIENCE,default=ridepush"`
	APIKeys     string `env:"API_KEYS"`

	MongoURI      string `env:"MONGO_URI,default=mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE,default=ridepush"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
	AllowAnonymous bool   `env:"ALLOW_ANONYMOUS,default=false"`
	MaxFrameSize   int64  `env:"MAX_FRAME_SIZE,default=4096"`

	WriteTimeoutSeconds      int `env:"WRITE_TIMEOUT_SECONDS,default=10"`
	IdleTimeoutSeconds       int `env:"IDLE_TIMEOUT_SECONDS,default=0"`
	IdleCheckIntervalSeconds int `env:"IDLE_CHECK_INTERVAL_SECONDS,default=60"`
}

func (s Settings) APIKeyList() []string {
	return splitList(s.APIKeys)
}

func (s Settings) AllowedOriginList() []string {
	return splitList(s.AllowedOrigins)
}

func (s Settings) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// IdleTimeout is zero when idle reaping is disabled.
func (s Settings) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSeconds) * time.Second
}

func (s Settings) IdleCheckInterval() time.Duration {
	return time.Duration(s.IdleCheckIntervalSeconds) * time.Second
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
