package storage

import (
	"fmt"
	"strings"

	logx "cantinabot/pkg/logx"
)

// Open creates a Store for the configured driver. A disabled config returns
// (nil, nil); callers must treat a nil Store as "no history".
func Open(cfg Config, log logx.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return nil, nil
	case "sqlite":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
