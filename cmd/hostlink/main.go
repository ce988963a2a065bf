package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/hostlink/internal/config"
	"codeberg.org/mutker/hostlink/internal/errors"
	"codeberg.org/mutker/hostlink/internal/frame"
	"codeberg.org/mutker/hostlink/internal/host"
	"codeberg.org/mutker/hostlink/internal/logger"
	"codeberg.org/mutker/hostlink/internal/pid"
	"codeberg.org/mutker/hostlink/internal/transport"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "hostlink",
	Short:         "Stream host state to a companion device",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}

		return run(cmd.Context(), cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hostlink %s\n", version)
	},
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the frame types and their wire tags",
	Run: func(cmd *cobra.Command, args []string) {
		for _, t := range frame.Types() {
			size, _ := frame.PayloadLen(t)
			fmt.Printf("0x%02x  %-16s %d byte payload\n", byte(t), t, size)
		}
	},
}

func init() {
	config.RegisterFlags(rootCmd.Flags())

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(typesCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "hostlink: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := logger.Init(cfg.GetLogLevel().String(), logger.IsService()); err != nil {
		return err
	}
	logger.Debug().Strs("providers", cfg.GetProviders()).Msg("Config loaded")

	if path := cfg.GetPIDFile(); path != "" {
		if err := pid.Write(path); err != nil {
			return err
		}
		defer func() {
			if err := pid.Remove(path); err != nil {
				logger.Warn().Err(err).Msg("Failed to remove PID file")
			}
		}()
	}

	sink, err := transport.Open(ctx, cfg.GetTransport())
	if err != nil {
		return err
	}

	h := host.New(cfg, sink, host.DefaultRegistry())
	if err := h.Start(context.WithoutCancel(ctx)); err != nil {
		shutdown(h)
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("Received termination signal")
	case <-h.Done():
		logger.Info().Str("link", h.State().String()).Msg("Link closed")
	}

	err = shutdown(h)
	if hostErr := h.Err(); hostErr != nil {
		return hostErr
	}

	return err
}

func shutdown(h *host.Host) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := h.Shutdown(ctx); err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.ErrorWithCode(appErr).Msg("Shutdown incomplete")
		}
		return err
	}

	logger.Info().Msg("Exiting...")

	return nil
}
