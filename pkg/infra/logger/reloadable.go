package logger

import (
	"fmt"
	"sync"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/option"
	"github.com/spf13/viper"

	logopts "github.com/kart-io/discovery-search/pkg/options/logger"
)

// ReloadableLogger re-initialises the global logger from the "log" section
// of the configuration whenever the config file changes.
// Only level, format and development mode are hot reloadable.
type ReloadableLogger struct {
	mu   sync.Mutex
	opts *logopts.Options
	key  string
}

// NewReloadableLogger creates a new reloadable logger manager.
func NewReloadableLogger(opts *logopts.Options, key string) *ReloadableLogger {
	if key == "" {
		key = "log"
	}
	return &ReloadableLogger{opts: opts, key: key}
}

// Reload reads the logger section from v and applies it. On failure the
// previous settings are restored and the error is returned.
func (rl *ReloadableLogger) Reload(v *viper.Viper) error {
	next := &logopts.Options{LogOption: option.DefaultLogOption()}
	if err := v.UnmarshalKey(rl.key, next); err != nil {
		return fmt.Errorf("failed to decode %q section: %w", rl.key, err)
	}
	if errs := next.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid logger configuration: %w", errs[0])
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	old := *rl.opts.LogOption
	if old.Level == next.Level && old.Format == next.Format && old.Development == next.Development {
		return nil
	}

	rl.opts.Level = next.Level
	rl.opts.Format = next.Format
	rl.opts.Development = next.Development

	if err := rl.opts.Init(); err != nil {
		*rl.opts.LogOption = old
		return fmt.Errorf("failed to apply logger config: %w", err)
	}

	logger.Infow("Logger configuration reloaded",
		"level", rl.opts.Level,
		"format", rl.opts.Format,
		"development", rl.opts.Development,
	)
	return nil
}

// Level returns the current log level.
func (rl *ReloadableLogger) Level() string {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.opts.Level
}
