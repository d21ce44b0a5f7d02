package config

// Config is the full on-disk configuration.
//
// All durations are Go duration strings (e.g. "5s", "1m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Menu     MenuConfig     `json:"menu"`
	AutoPost AutoPostConfig `json:"auto_post"`
	Metrics  MetricsConfig  `json:"metrics,omitempty"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied via TELEGRAM_BOT_TOKEN.
	Token string `json:"token"`
	// ChannelID is the default destination for autonomous posts. May be
	// supplied via CANTINA_CHANNEL_ID. Required.
	ChannelID int64 `json:"channel_id"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram mirrors warnings and errors into the configured channel,
// rate limited so a failing fetch loop can't flood the chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// MenuConfig tunes the fetch-render pipeline.
type MenuConfig struct {
	// Timezone for all calendar decisions. Default "Europe/Bucharest".
	Timezone string `json:"timezone,omitempty"`
	// Retries is the number of full candidate rounds per resolution. Default 3.
	Retries int `json:"retries,omitempty"`
	// RetryDelay is the sleep between rounds. Default "5s".
	RetryDelay string `json:"retry_delay,omitempty"`
	// FetchTimeout bounds one document download. Default "60s".
	FetchTimeout string `json:"fetch_timeout,omitempty"`
	// Discovery enables scraping the uploads index page for extra candidate
	// URLs when the static naming schemes miss. Default off.
	Discovery bool `json:"discovery,omitempty"`
}

// AutoPostConfig tunes the autonomous posting loop.
type AutoPostConfig struct {
	Enabled bool `json:"enabled"`
	// RetryDelay after a failed attempt. Default "5m".
	RetryDelay string `json:"retry_delay,omitempty"`
	// PollInterval caps one scheduler sleep. Default "60s".
	PollInterval string `json:"poll_interval,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:9180"
}

// StorageConfig controls the optional post-history database.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./cantinabot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}
