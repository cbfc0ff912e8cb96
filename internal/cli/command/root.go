package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/HookbaseApp/cli/internal/cli/config"
	"github.com/HookbaseApp/cli/internal/cli/connection"
	"github.com/HookbaseApp/cli/internal/cli/output"
	"github.com/HookbaseApp/cli/internal/infra/buildinfo"
	"github.com/HookbaseApp/cli/internal/telemetry/logger"
)

// App creates the CLI application.
func App() *cli.App {
	app := &cli.App{
		Name:    "hookbase",
		Usage:   "Expose a local HTTP service to hosted webhook traffic",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ListenCommand(),
			TunnelCommand(),
			ConfigCommand(),
		},
		Before: func(c *cli.Context) error {
			spec, err := loadSpec(c)
			if err != nil {
				return err
			}
			c.App.Metadata["spec"] = spec

			log, err := logger.New(logger.Config{
				Level:  spec.Log.Level,
				Format: spec.Log.Format,
			})
			if err != nil {
				return err
			}
			logger.SetDefault(log)
			return nil
		},
	}

	return app
}

// globalFlags returns the flags shared by all commands. Each maps
// onto a config key; flags win over environment and file values.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Config file path",
			EnvVars: []string{"HOOKBASE_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "api-url",
			Usage:   "Control-plane base URL",
			EnvVars: []string{"HOOKBASE_API_URL"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Account API key (hbak_...)",
			EnvVars: []string{"HOOKBASE_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			EnvVars: []string{
				"HOOKBASE_LOG_LEVEL",
			},
		},
	}
}

// loadSpec resolves the effective configuration: file, environment,
// then flags.
func loadSpec(c *cli.Context) (*config.Spec, error) {
	spec, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if v := c.String("api-url"); v != "" {
		spec.API.URL = v
	}
	if v := c.String("api-key"); v != "" {
		spec.API.Key = v
	}
	if v := c.String("log-level"); v != "" {
		spec.Log.Level = v
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// getSpec retrieves the resolved configuration from app metadata.
func getSpec(c *cli.Context) *config.Spec {
	if spec, ok := c.App.Metadata["spec"].(*config.Spec); ok {
		return spec
	}
	return config.Default()
}

// apiClient builds a control-plane client from the resolved config.
func apiClient(c *cli.Context) *connection.Client {
	spec := getSpec(c)
	return connection.NewClient(spec.API.URL, spec.API.Key)
}

// formatter builds the output formatter selected by --output.
func formatter(c *cli.Context) (output.Formatter, error) {
	return output.NewFormatter(output.Format(c.String("output")))
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
