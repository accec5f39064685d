// Package config loads client settings from the environment.
package config

import (
	"fmt"
	"strings"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/samber/lo"

	"github.com/rudransh-shrivastava/peer-room/internal/filecodec"
	"github.com/rudransh-shrivastava/peer-room/internal/transport/webrtc"
)

type Config struct {
	SignalURL     string `env:"ROOM_SIGNAL_URL" validate:"required,url"`
	ParticipantID string `env:"ROOM_PARTICIPANT_ID" validate:"required"`
	// STUNServers is a comma separated list.
	STUNServers string `env:"ROOM_STUN_SERVERS"`
	LogLevel    string `env:"ROOM_LOG_LEVEL,default=info" validate:"oneof=trace debug info warn warning error"`
	HistoryDB   string `env:"ROOM_HISTORY_DB,default=room-history.sqlite3" validate:"required"`
	MaxFileSize int64  `env:"ROOM_MAX_FILE_SIZE" validate:"gt=0"`
}

// Load reads an optional .env file, then the environment. Unset optional values
// get defaults; a random participant id is generated when none is given.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}

	if cfg.ParticipantID == "" {
		cfg.ParticipantID = uuid.NewString()
	}
	if cfg.STUNServers == "" {
		cfg.STUNServers = strings.Join(webrtc.DefaultSTUNServers, ",")
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = filecodec.DefaultMaxSize
	}
	return cfg, nil
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) STUNList() []string {
	return lo.Compact(lo.Map(strings.Split(c.STUNServers, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}
