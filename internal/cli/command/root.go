// Package command provides CLI command definitions for stashkv.
package command

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/stashkv/internal/cli/output"
	"github.com/yndnr/stashkv/internal/config"
	"github.com/yndnr/stashkv/internal/infra/buildinfo"
	"github.com/yndnr/stashkv/internal/infra/confloader"
	"github.com/yndnr/stashkv/internal/telemetry/logger"
)

// Metadata keys set by the Before hook.
const (
	metaConfig = "config"
	metaLogger = "logger"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "stashkv",
		Usage:                "Persistent key-value store with TTL, expiry scheduling and value encryption",
		Version:              buildinfo.Version,
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			GetCommand(),
			SetCommand(),
			RemoveCommand(),
			KeysCommand(),
			LengthCommand(),
			ClearCommand(),
			MetaCommand(),
			SweepCommand(),
			StatusCommand(),
			WatchCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			lc := cfg.LoggerConfig()
			lc.Output = c.App.ErrWriter
			log, err := logger.New(lc)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			if c.App.Metadata == nil {
				c.App.Metadata = make(map[string]any)
			}
			c.App.Metadata[metaConfig] = cfg
			c.App.Metadata[metaLogger] = log
			return nil
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file (YAML, JSON or TOML)",
			EnvVars: []string{"STASHKV_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "namespace",
			Aliases: []string{"n"},
			Usage:   "Namespace to operate on (default from storage.namespace)",
		},
		&cli.StringFlag{
			Name:  "driver",
			Usage: "Storage driver: memory, badger, sqlite",
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Data directory for the badger and sqlite drivers",
		},
		&cli.StringFlag{
			Name:  "strategy",
			Usage: "Expiration strategy: immediate, background, hybrid, proactive",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.BoolFlag{
			Name:  "no-headers",
			Usage: "Omit table headers",
		},
	}
}

// flagKeys maps global flags to the configuration keys they override.
var flagKeys = map[string]string{
	"namespace": "storage.namespace",
	"driver":    "storage.driver",
	"data-dir":  "storage.data_dir",
	"strategy":  "expiration.strategy",
	"log-level": "log.level",
}

// loadConfig builds the effective configuration: defaults, then the
// config file, then STASHKV_ environment variables, then flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	loader := confloader.NewLoader(confloader.WithConfigFile(c.String("config")))
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	overrides := make(map[string]any)
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			overrides[key] = c.String(flag)
		}
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, err
		}
		if err := loader.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("apply flags: %w", err)
		}
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// GetConfig retrieves the effective configuration from context.
func GetConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

// GetLogger retrieves the logger from context.
func GetLogger(c *cli.Context) *slog.Logger {
	if l, ok := c.App.Metadata[metaLogger].(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// namespace returns the namespace selected by flag or configuration.
func namespace(c *cli.Context) string {
	return GetConfig(c).Storage.Namespace
}

// render writes data in the format chosen by --output.
func render(c *cli.Context, data any) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	return output.NewFormatter(format, c.Bool("no-headers")).Format(writer(c), data)
}

func writer(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return io.Discard
}

// requireArgs fails unless exactly n positional arguments were given.
func requireArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return cli.Exit(fmt.Sprintf("%s: expected %d argument(s): %s", c.Command.Name, n, c.Command.ArgsUsage), 2)
	}
	return nil
}
