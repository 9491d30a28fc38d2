package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/armtemiy/armlab"
	"github.com/armtemiy/armlab/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (and the payment bot when polling is enabled)",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fail("Error loading config: %v", err)
		}

		app, err := cli.Build(cmd.Context(), cfg)
		if err != nil {
			fail("Error initializing armlab: %v", err)
		}
		defer app.Close()
		logger := app.Logger

		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           app.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			ref := app.Catalog.Current()
			logger.Info("starting armlab server",
				"addr", srv.Addr,
				"version", armlab.Version,
				"tree_id", ref.Tree.ID,
				"tree_source", ref.Source,
				"storage", cfg.Storage.Driver,
			)
			serverErrors <- srv.ListenAndServe()
		}()

		if app.PaymentBot != nil {
			go app.PaymentBot.Start()
			logger.Info("payment bot polling")
		}

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server error", "err", err)
				app.Close()
				os.Exit(1)
			}

		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())

			if app.PaymentBot != nil {
				app.PaymentBot.Stop()
			}

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful shutdown did not complete", "timeout", cfg.HTTP.ShutdownTimeout, "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("error killing server", "err", err)
				}
			}
			logger.Info("armlab server stopped")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
}
