package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xr-emulator/backend/internal/config"
	"github.com/xr-emulator/backend/internal/emulator"
	"github.com/xr-emulator/backend/internal/host"
	"github.com/xr-emulator/backend/internal/logging"
	"github.com/xr-emulator/backend/internal/mock"
	"github.com/xr-emulator/backend/internal/ws"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type serveOptions struct {
	configPath string
	port       int
	profile    string
	logLevel   string
	panelDir   string
	mock       bool
}

func newRootCmd() *cobra.Command {
	opts := &serveOptions{}
	rootCmd := &cobra.Command{
		Use:   "xr-emulator",
		Short: "Emulated immersive XR device",
		Long: `xr-emulator runs an emulated headset or handheld AR device.

A control panel connects over /ws to drive poses and buttons; pages and
tests use the HTTP session API to open sessions and read per-frame views.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&opts.profile, "profile", "", "Override device profile")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newProfilesCmd(opts),
	)
	addServeFlags(rootCmd, opts)
	return rootCmd
}

func addServeFlags(cmd *cobra.Command, opts *serveOptions) {
	cmd.Flags().IntVar(&opts.port, "port", 0, "Override server port")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Override log level (info, debug, trace)")
	cmd.Flags().StringVar(&opts.panelDir, "panel-dir", "", "Serve control panel files from this directory")
	cmd.Flags().BoolVar(&opts.mock, "mock", false, "Drive the device with synthetic motion")
}

func newServeCmd(opts *serveOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the emulator server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	addServeFlags(cmd, opts)
	return cmd
}

func newProfilesCmd(opts *serveOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List available device profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return printProfiles(cmd.OutOrStdout(), cfg)
		},
	}
}

// loadConfig reads the config file and applies flag overrides. A missing
// file is only an error when --config was given explicitly.
func loadConfig(cmd *cobra.Command, opts *serveOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cmd.Flags().Changed("config") {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.LoadOrDefault(opts.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}
	if opts.profile != "" {
		cfg.Device.Profile = opts.profile
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.panelDir != "" {
		cfg.Server.PanelDir = opts.panelDir
	}
	return cfg, nil
}

func printProfiles(w io.Writer, cfg *config.Config) error {
	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}
	for _, id := range catalog.IDs() {
		p, _ := catalog.Lookup(id)
		modes := make([]string, len(p.Modes))
		for i, m := range p.Modes {
			modes[i] = m.String()
		}
		marker := " "
		if id == cfg.Device.Profile {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-18s %-12s %-28s %dx%d\n", marker, id, p.Kind(), strings.Join(modes, ","),
			p.Resolution.Width, p.Resolution.Height)
	}
	return nil
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)

	token := cfg.Server.AuthToken
	if token == config.AutoToken {
		if token, err = config.GenerateToken(); err != nil {
			return fmt.Errorf("generate auth token: %w", err)
		}
		logger.Info("generated auth token", "token", token)
	}

	profile, err := cfg.Profile()
	if err != nil {
		return err
	}

	broadcaster := ws.NewBroadcaster(cfg.Broadcast.Throttle, cfg.Broadcast.SnapshotInterval, 0, logger)
	defer broadcaster.Stop()

	engine := emulator.New(profile, emulator.Options{
		EyeOffset: cfg.Frame.EyeOffset,
		Logger:    logger,
		Notifier:  broadcaster,
		Inputs:    broadcaster.InputEvent,
		Observer:  broadcaster.SessionEvent,
	})
	loop := host.New(engine, cfg.Frame.Interval, logger)
	broadcaster.SetSnapshotSource(func(ctx context.Context) (emulator.Snapshot, error) {
		var snap emulator.Snapshot
		err := loop.Do(ctx, func(e *emulator.Engine) { snap = e.Snapshot() })
		return snap, err
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go loop.Run(ctx)

	if opts.mock {
		logger.Info("starting in mock mode")
		mock.NewGenerator(loop, mock.DefaultInterval, logger).Start(ctx)
	}

	server := ws.NewServer(loop, engine.Registry(), broadcaster, cfg.Server.AllowedOrigins, token, logger)
	if cfg.Server.PanelDir != "" {
		server.ServePanel(cfg.Server.PanelDir)
	}

	logger.Info("emulating device", "profile", profile.ID, "kind", profile.Kind(), "stereo", profile.Stereo)
	if err := ws.ListenAndServe(ctx, cfg.Addr(), server.Handler(), logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}
