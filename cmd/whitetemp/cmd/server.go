package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/whitetemp/api"
	"github.com/jmcleod/whitetemp/command"
	"github.com/jmcleod/whitetemp/gate"
	"github.com/jmcleod/whitetemp/internal/config"
	"github.com/jmcleod/whitetemp/internal/listlock"
	"github.com/jmcleod/whitetemp/storage/file"
)

var (
	listen    string
	tlsCert   string
	tlsKey    string
	noConsole bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the whitelist service with its admin API and operator console",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer memguard.Purge()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("listen") {
			cfg.Listen = listen
		}
		logger := newLogger(cfg)

		store, closeStore, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		lock, previous, err := listlock.Acquire(cfg.ListPath)
		if err != nil {
			return err
		}
		defer lock.Release()
		if previous != 0 {
			logger.Warn("took over a whitelist lock left by another process", "pid", previous, "lock", listlock.Path(cfg.ListPath))
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if cfg.Backend == config.BackendFile {
			// Pick up edits made by hand.
			err := file.Watch(ctx, cfg.ListPath, file.DefaultDebounce, logger, func() {
				if store.Load() == nil {
					logger.Debug("whitelist reloaded after external change")
				}
			})
			if err != nil {
				logger.Warn("not watching the whitelist file", "error", err)
			}
		}

		surface := command.New(store, command.WithLogger(logger))
		out := cmd.OutOrStdout()

		done := make(chan error, 1)
		var server *http.Server
		if cfg.Listen != "" {
			token, err := cfg.AdminToken()
			if err != nil {
				return err
			}
			if token == "" {
				logger.Warn("no admin token configured, the admin API will reject every request", "env", config.TokenEnv)
			}

			proxies, err := api.WithTrustedProxies(cfg.TrustedProxies)
			if err != nil {
				return err
			}
			a := api.New(store, gate.New(store, gate.WithLogger(logger)), surface,
				proxies,
				api.WithLogger(logger),
				api.WithAdminToken(token),
				api.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
				api.WithAuditWebhook(cfg.AuditWebhookURL, cfg.AuditWebhookHeader),
			)
			defer a.Close()

			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(middleware.Recoverer)

			r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("OK"))
			})
			r.Mount("/api/v1", a.Router())

			server = &http.Server{
				Addr:              cfg.Listen,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if tlsCert != "" && tlsKey != "" {
				cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
				if err != nil {
					return fmt.Errorf("failed to load TLS key pair: %w", err)
				}
				server.TLSConfig = &tls.Config{
					Certificates: []tls.Certificate{cert},
					MinVersion:   tls.VersionTLS12,
				}
			}

			go func() {
				var err error
				if server.TLSConfig != nil {
					err = server.ListenAndServeTLS("", "")
				} else {
					err = server.ListenAndServe()
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					done <- fmt.Errorf("server failed: %w", err)
					return
				}
				done <- nil
			}()
		}

		printBanner(out)
		fmt.Fprintf(out, "Whitelist: %s (%s backend, %d entries)\n", cfg.ListPath, cfg.Backend, store.Len())
		if server != nil {
			fmt.Fprintf(out, "Admin API listening on %s\n", cfg.Listen)
		}

		stop := make(chan struct{})
		if !noConsole {
			go func() {
				quit, err := runConsole(surface, out)
				if err != nil {
					logger.Error("console stopped", "error", err)
				}
				if quit {
					close(stop)
				}
			}()
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		case <-stop:
		case err := <-done:
			if err != nil {
				return err
			}
		}

		if server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
		}
		// Flush anything a failed mutation could not write earlier.
		if err := store.Save(); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVar(&listen, "listen", "", `Admin API address, "" disables it (overrides listen)`)
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
	serverCmd.Flags().BoolVar(&noConsole, "no-console", false, "Do not read operator commands from stdin")
}
