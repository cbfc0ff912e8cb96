package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/HookbaseApp/cli/internal/cli/connection"
	"github.com/HookbaseApp/cli/internal/cli/output"
)

// TunnelCommand returns the tunnel management command group.
func TunnelCommand() *cli.Command {
	return &cli.Command{
		Name:  "tunnel",
		Usage: "Manage tunnel records on the control plane",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a named tunnel",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "subdomain",
						Usage: "Requested public subdomain",
					},
				},
				Action: tunnelCreateAction,
			},
			{
				Name:   "list",
				Usage:  "List tunnels for the account",
				Action: tunnelListAction,
			},
			{
				Name:      "inspect",
				Usage:     "Show one tunnel record",
				ArgsUsage: "TUNNEL_ID",
				Action:    tunnelInspectAction,
			},
			{
				Name:      "rotate",
				Usage:     "Rotate a tunnel's token",
				ArgsUsage: "TUNNEL_ID",
				Action:    tunnelRotateAction,
			},
			{
				Name:      "delete",
				Usage:     "Delete a tunnel and release its subdomain",
				ArgsUsage: "TUNNEL_ID",
				Action:    tunnelDeleteAction,
			},
			{
				Name:      "logs",
				Usage:     "Show recent deliveries for a tunnel",
				ArgsUsage: "TUNNEL_ID",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum entries to fetch",
						Value:   50,
					},
				},
				Action: tunnelLogsAction,
			},
		},
	}
}

func tunnelCreateAction(c *cli.Context) error {
	tun, err := apiClient(c).CreateTunnel(c.Context, connection.CreateTunnelRequest{
		Subdomain: c.String("subdomain"),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Created %s\n", tun.ID)
	fmt.Fprintf(c.App.Writer, "Public URL: %s\n", tun.PublicURL)
	// The initial token is shown exactly once; it is not retrievable
	// afterwards, only rotatable.
	fmt.Fprintf(c.App.Writer, "Token: %s\n", tun.Token)
	return nil
}

func tunnelListAction(c *cli.Context) error {
	tunnels, err := apiClient(c).ListTunnels(c.Context)
	if err != nil {
		return err
	}

	f, err := formatter(c)
	if err != nil {
		return err
	}
	if _, ok := f.(*output.TableFormatter); !ok {
		return f.Format(c.App.Writer, tunnels)
	}

	table := output.NewTable("ID", "SUBDOMAIN", "PUBLIC URL", "LAST CONNECTED", "REQUESTS")
	for _, t := range tunnels {
		table.AddRow(
			t.ID,
			output.OrDash(t.Subdomain),
			output.OrDash(t.PublicURL),
			output.UnixMillis(t.LastConnectedAt),
			fmt.Sprint(t.TotalRequests),
		)
	}
	return f.Format(c.App.Writer, table)
}

func tunnelInspectAction(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("tunnel id required")
	}

	tun, err := apiClient(c).GetTunnel(c.Context, id)
	if err != nil {
		return err
	}

	f, err := formatter(c)
	if err != nil {
		return err
	}
	if _, ok := f.(*output.TableFormatter); !ok {
		return f.Format(c.App.Writer, tun)
	}

	table := output.NewTable("FIELD", "VALUE")
	table.AddRow("id", tun.ID)
	table.AddRow("subdomain", output.OrDash(tun.Subdomain))
	table.AddRow("public_url", output.OrDash(tun.PublicURL))
	table.AddRow("created_at", output.UnixMillis(tun.CreatedAt))
	table.AddRow("last_connected_at", output.UnixMillis(tun.LastConnectedAt))
	table.AddRow("total_requests", fmt.Sprint(tun.TotalRequests))
	return f.Format(c.App.Writer, table)
}

func tunnelRotateAction(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("tunnel id required")
	}

	tun, err := apiClient(c).RotateToken(c.Context, id)
	if err != nil {
		return err
	}

	// The fresh token is shown exactly once; it is not retrievable
	// afterwards.
	fmt.Fprintf(c.App.Writer, "Token rotated for %s\n", tun.ID)
	fmt.Fprintf(c.App.Writer, "New token: %s\n", tun.Token)
	return nil
}

func tunnelDeleteAction(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("tunnel id required")
	}

	if err := apiClient(c).DeleteTunnel(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Deleted %s\n", id)
	return nil
}

func tunnelLogsAction(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("tunnel id required")
	}

	logs, err := apiClient(c).DeliveryLogs(c.Context, id, c.Int("limit"))
	if err != nil {
		return err
	}

	f, err := formatter(c)
	if err != nil {
		return err
	}
	if _, ok := f.(*output.TableFormatter); !ok {
		return f.Format(c.App.Writer, logs)
	}

	table := output.NewTable("RECEIVED", "METHOD", "PATH", "STATUS", "DURATION")
	for _, l := range logs {
		table.AddRow(
			output.UnixMillis(l.ReceivedAt),
			l.Method,
			l.Path,
			fmt.Sprint(l.Status),
			output.Millis(l.DurationMS),
		)
	}
	return f.Format(c.App.Writer, table)
}
