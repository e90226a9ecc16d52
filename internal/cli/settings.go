package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mark3labs/yapi2zod/internal/config"
	"github.com/mark3labs/yapi2zod/internal/logger"
	"github.com/mark3labs/yapi2zod/internal/store"
)

// loadSettings resolves defaults, the config file and the environment.
// Without --config the default file is optional.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	path = strings.TrimSpace(path)
	required := path != ""
	if !required {
		path = config.DefaultFileName
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return nil, asUsageError(err)
	}
	return cfg, nil
}

// applySettingsFlagOverrides copies every changed flag onto cfg and
// re-validates it.
func applySettingsFlagOverrides(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed("server") {
		value, err := flags.GetString("server")
		if err != nil {
			return err
		}
		cfg.Server = value
	}
	if flags.Changed("out") {
		value, err := flags.GetString("out")
		if err != nil {
			return err
		}
		cfg.Out = value
	}
	if flags.Changed("concurrency") {
		value, err := flags.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = value
	}
	if flags.Changed("timeout") {
		value, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = value
	}
	if flags.Changed("state-file") {
		value, err := flags.GetString("state-file")
		if err != nil {
			return err
		}
		cfg.StateFile = value
	}
	if flags.Changed("dry-run") {
		value, err := flags.GetBool("dry-run")
		if err != nil {
			return err
		}
		cfg.DryRun = value
	}
	if flags.Changed("force") {
		value, err := flags.GetBool("force")
		if err != nil {
			return err
		}
		cfg.Force = value
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return asUsageError(err)
	}
	return nil
}

// newLogger writes to the command's stderr so generated output on stdout
// stays clean.
func newLogger(cmd *cobra.Command, cfg *config.Config, verbose bool) zerolog.Logger {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return logger.NewWithWriter(cmd.ErrOrStderr(), level, true)
}

// warnUnknownKeys reports config keys that were ignored.
func warnUnknownKeys(log zerolog.Logger, cfg *config.Config) {
	for _, key := range cfg.Unknown {
		ev := log.Warn().Str("key", key).Str("file", cfg.Path)
		if strings.EqualFold(key, "genRequest") {
			ev = ev.Str("hint", "use requestTemplate")
		}
		ev.Msg("ignoring unknown config key")
	}
}

// stateFilePath expands "~/" and applies the default location.
func stateFilePath(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && raw != "~" && !strings.HasPrefix(raw, "~/") {
		return raw, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if raw == "" || raw == "~" {
		return filepath.Join(home, ".yapi2zod", "state.db"), nil
	}
	return filepath.Join(home, strings.TrimPrefix(raw, "~/")), nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.SQLite, error) {
	path, err := stateFilePath(cfg.StateFile)
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, path)
}
