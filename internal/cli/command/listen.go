package command

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/HookbaseApp/cli/internal/cli/config"
	"github.com/HookbaseApp/cli/internal/cli/connection"
	"github.com/HookbaseApp/cli/internal/core/domain"
	"github.com/HookbaseApp/cli/internal/infra/confloader"
	"github.com/HookbaseApp/cli/internal/infra/shutdown"
	"github.com/HookbaseApp/cli/internal/telemetry/logger"
	"github.com/HookbaseApp/cli/internal/telemetry/metric"
	"github.com/HookbaseApp/cli/internal/tunnel"
)

// shutdownTimeout bounds the whole teardown, including the tunnel
// drain and the ephemeral tunnel delete.
const shutdownTimeout = 10 * time.Second

// ListenCommand returns the listen command.
func ListenCommand() *cli.Command {
	return &cli.Command{
		Name:      "listen",
		Usage:     "Forward webhook traffic to a local HTTP service",
		ArgsUsage: "[PORT]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Local port to forward to",
			},
			&cli.StringFlag{
				Name:    "tunnel",
				Aliases: []string{"t"},
				Usage:   "Existing tunnel id (hbtn-...); default creates an ephemeral tunnel",
			},
			&cli.StringFlag{
				Name:  "subdomain",
				Usage: "Requested subdomain when creating an ephemeral tunnel",
			},
			&cli.DurationFlag{
				Name:  "request-timeout",
				Usage: "Per-request forward deadline",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9090)",
				EnvVars: []string{"HOOKBASE_METRICS_ADDR"},
			},
		},
		Action: listenAction,
	}
}

func listenAction(c *cli.Context) error {
	spec := getSpec(c)
	log := logger.Default()

	port, err := resolvePort(c)
	if err != nil {
		return err
	}

	client := apiClient(c)

	tun, transportURL, ephemeral, err := resolveTunnel(c, client, port)
	if err != nil {
		return err
	}

	handler := shutdown.NewHandler(shutdownTimeout)
	if ephemeral {
		handler.OnShutdown(func(ctx context.Context) error {
			if err := client.DeleteTunnel(ctx, tun.ID); err != nil {
				log.Warn("failed to delete ephemeral tunnel", "tunnel_id", tun.ID, "error", err)
			}
			return nil
		})
	}

	metrics := metric.New()
	metricsAddr := c.String("metrics-addr")
	if metricsAddr == "" {
		metricsAddr = spec.Metrics.Addr
	}

	requestTimeout := c.Duration("request-timeout")
	if requestTimeout == 0 {
		requestTimeout = spec.Tunnel.Timeout
	}

	out := c.App.Writer
	fatalCh := make(chan error, 1)

	agent, err := tunnel.New(tunnel.Config{
		TransportURL:   transportURL,
		LocalPort:      port,
		RequestTimeout: requestTimeout,
		Metrics:        metrics,
		Logger:         log,
		Hooks: tunnel.Hooks{
			OnConnect: func() {
				fmt.Fprintf(out, "Forwarding %s -> http://127.0.0.1:%d\n", tun.PublicURL, port)
			},
			OnDisconnect: func(err error) {
				fmt.Fprintf(out, "Connection lost (%v), reconnecting...\n", err)
			},
			OnRequest: func(stat tunnel.RequestStat) {
				fmt.Fprintf(out, "%s %s %d %s\n",
					stat.Method, stat.Path, stat.Status, stat.Duration.Round(time.Millisecond))
			},
			OnError: func(err error) {
				select {
				case fatalCh <- err:
				default:
				}
			},
		},
	})
	if err != nil {
		handler.Trigger()
		return err
	}

	handler.OnShutdown(func(ctx context.Context) error {
		return agent.Close()
	})

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "addr", metricsAddr, "error", err)
			}
		}()
		handler.OnShutdown(srv.Shutdown)
		log.Info("serving metrics", "addr", metricsAddr)
	}

	if w := watchLogLevel(c, log); w != nil {
		handler.OnShutdown(func(ctx context.Context) error { return w.Stop() })
	}

	if err := agent.Connect(c.Context); err != nil {
		handler.Trigger()
		return fmt.Errorf("connect tunnel: %w", err)
	}

	sigDone := make(chan error, 1)
	go func() { sigDone <- handler.Wait() }()

	select {
	case err := <-fatalCh:
		// Auth rejection or another terminal failure; tear down and
		// surface the cause.
		handler.Trigger()
		return err
	case err := <-sigDone:
		fmt.Fprintln(out, "Tunnel closed")
		return err
	}
}

// watchLogLevel reloads log.level from the config file on change, so
// a long-running listen can be switched to debug without a restart.
// Returns nil when there is no config file to watch.
func watchLogLevel(c *cli.Context, log logger.Logger) *confloader.Watcher {
	path := c.String("config")
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		log.Warn("config watcher unavailable", "error", err)
		return nil
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil
	}

	w.OnChange(func(changed string) {
		if filepath.Base(changed) != filepath.Base(path) {
			return
		}
		spec, err := config.Load(path)
		if err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		logger.SetLevel(spec.Log.Level)
		log.Info("log level reloaded", "level", spec.Log.Level)
	})
	w.StartAsync()
	return w
}

// resolvePort picks the local port: positional arg, then --port, then
// the config file default.
func resolvePort(c *cli.Context) (int, error) {
	if arg := c.Args().First(); arg != "" {
		port, err := strconv.Atoi(arg)
		if err != nil {
			return 0, fmt.Errorf("invalid port %q", arg)
		}
		return port, nil
	}
	if port := c.Int("port"); port != 0 {
		return port, nil
	}
	if port := getSpec(c).Tunnel.Port; port != 0 {
		return port, nil
	}
	return 0, fmt.Errorf("local port required: hookbase listen 3000")
}

// resolveTunnel returns the tunnel record and transport URL to dial.
// Without --tunnel (or tunnel.id in config) it creates an ephemeral
// tunnel that is deleted on shutdown.
func resolveTunnel(c *cli.Context, client *connection.Client, port int) (*domain.Tunnel, string, bool, error) {
	spec := getSpec(c)

	id := c.String("tunnel")
	if id == "" {
		id = spec.Tunnel.ID
	}

	if id != "" {
		tun, err := client.GetTunnel(c.Context, id)
		if err != nil {
			return nil, "", false, err
		}
		sess, err := client.OpenSession(c.Context, id)
		if err != nil {
			return nil, "", false, err
		}
		return tun, sess.TransportURL, false, nil
	}

	subdomain := c.String("subdomain")
	if subdomain == "" {
		subdomain = spec.Tunnel.Subdomain
	}

	tun, err := client.CreateTunnel(c.Context, connection.CreateTunnelRequest{
		Subdomain: subdomain,
		LocalPort: port,
	})
	if err != nil {
		return nil, "", false, err
	}
	return tun, tun.TransportURL, true, nil
}
