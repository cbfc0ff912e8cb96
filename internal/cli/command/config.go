package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/HookbaseApp/cli/internal/cli/config"
	"github.com/HookbaseApp/cli/internal/cli/output"
)

// ConfigCommand returns the config command group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect and manage the CLI configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration (secrets redacted)",
				Action: configShowAction,
			},
			{
				Name:   "path",
				Usage:  "Print the config file path",
				Action: configPathAction,
			},
			{
				Name:   "init",
				Usage:  "Write a default config file",
				Action: configInitAction,
			},
		},
	}
}

func configShowAction(c *cli.Context) error {
	spec := getSpec(c)

	f, err := formatter(c)
	if err != nil {
		return err
	}

	redacted := *spec
	redacted.API.Key = maskSecret(spec.API.Key)

	if _, ok := f.(*output.TableFormatter); !ok {
		return f.Format(c.App.Writer, redacted)
	}

	table := output.NewTable("KEY", "VALUE")
	table.AddRow("api.url", redacted.API.URL)
	table.AddRow("api.key", output.OrDash(redacted.API.Key))
	table.AddRow("tunnel.id", output.OrDash(redacted.Tunnel.ID))
	table.AddRow("tunnel.port", output.OrDash(zeroAsEmpty(redacted.Tunnel.Port)))
	table.AddRow("tunnel.subdomain", output.OrDash(redacted.Tunnel.Subdomain))
	table.AddRow("log.level", redacted.Log.Level)
	table.AddRow("log.format", redacted.Log.Format)
	table.AddRow("metrics.addr", output.OrDash(redacted.Metrics.Addr))
	return f.Format(c.App.Writer, table)
}

func configPathAction(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		path = config.DefaultPath()
	}
	fmt.Fprintln(c.App.Writer, path)
	return nil
}

func configInitAction(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		path = config.DefaultPath()
	}

	if err := config.Save(config.Default(), path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}

// maskSecret keeps enough of a key to identify it without exposing it.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:8] + "..."
}

func zeroAsEmpty(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprint(n)
}
