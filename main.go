package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Zachkp/folio/internal/buildinfo"
	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/contact"
	"github.com/Zachkp/folio/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:          "folio",
		Short:        "Portfolio site backend: stats proxy and contact relay",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	load := func() (config.Config, error) {
		return config.Load(envFile)
	}

	cmd.AddCommand(
		newServeCmd(load),
		newStatsCmd(load),
		newSendCmd(load),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
			},
		},
	)
	return cmd
}

func newServeCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log := logger.Setup(logger.Config{Level: cfg.LogLevel})

			srv, err := newServer(cfg, log)
			if err != nil {
				return err
			}
			defer srv.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			srv.start(ctx)

			httpServer := &http.Server{
				Addr:              cfg.Addr(),
				Handler:           srv.routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				log.Info("server.listening", "addr", cfg.Addr(), "mode", gin.Mode(), "version", buildinfo.Version)
				errc <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Info("server.shutdown")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
}

func newStatsCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Fetch the configured account's stats once and print them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger.Setup(logger.Config{Level: cfg.LogLevel, Output: cmd.ErrOrStderr()})

			res, err := newStatsFetcher(cfg).Fetch(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}

func newSendCmd(load func() (config.Config, error)) *cobra.Command {
	var sub contact.Submission

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Relay one contact message through the configured provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sub.Validate(); err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			log := logger.Setup(logger.Config{Level: cfg.LogLevel, Output: cmd.ErrOrStderr()})

			out := newRelay(cfg, log).Deliver(cmd.Context(), sub)
			if !out.Delivered() {
				return errors.New(out.UserMessage())
			}
			msg := contact.SuccessMessage
			if out.Simulated {
				msg += " (simulated: offline demo mode)"
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&sub.Name, "name", "", "sender name")
	cmd.Flags().StringVar(&sub.Email, "email", "", "sender email")
	cmd.Flags().StringVar(&sub.Message, "message", "", "message body")
	return cmd
}
