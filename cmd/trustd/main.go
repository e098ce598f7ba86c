// Command trustd runs the identity-trust reputation server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackyblack/identity-server/internal/action"
	"github.com/blackyblack/identity-server/internal/api"
	"github.com/blackyblack/identity-server/internal/bootstrap"
	"github.com/blackyblack/identity-server/internal/config"
	"github.com/blackyblack/identity-server/internal/discovery"
	"github.com/blackyblack/identity-server/internal/engine"
	"github.com/blackyblack/identity-server/internal/middleware"
	"github.com/blackyblack/identity-server/internal/nonce"
	"github.com/blackyblack/identity-server/internal/obsv"
	"github.com/blackyblack/identity-server/internal/query"
	"github.com/blackyblack/identity-server/internal/roles"
	"github.com/blackyblack/identity-server/internal/trust"
	"github.com/blackyblack/identity-server/internal/wsfeed"
)

func main() {
	root := &cobra.Command{
		Use:   "trustd",
		Short: "identity-trust reputation server",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(checkBootstrapCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(logLevel)
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")
	return cmd
}

func runServe(logLevel string) error {
	cfg := config.Load()
	log := obsv.NewLogger(logLevel)

	trustStore, nonceStore, closeStore, err := openStores(cfg, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeStore()

	roleStore := roles.NewStore()
	bootstrap.LoadRoles(cfg.BootstrapDir, roleStore, log)
	bootstrap.LoadGenesis(cfg.BootstrapDir, trustStore, func() int64 { return time.Now().Unix() }, log)

	eng := engine.New(trustStore)
	hub := wsfeed.New(eng, log)
	actions := action.New(nonce.NewRegistry(nonceStore), roleStore, trustStore, eng, hub)
	queries := query.New(eng, roleStore)

	srv := api.New(actions, queries, log)
	srv.WSHandler = http.HandlerFunc(hub.ServeHTTP)

	limiter := middleware.NewIPRateLimiter(cfg.RateLimitPerMinute)
	handler := middleware.Chain(srv.Router(),
		middleware.RequestID,
		middleware.Metrics,
		middleware.RateLimit(limiter, log),
		middleware.BodySizeLimit(cfg.MaxBodySizeBytes),
	)

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: handler,
	}

	var announcer *discovery.Announcer
	if cfg.DiscoveryEnabled {
		port, err := portOf(cfg.Port)
		if err != nil {
			log.Warn("discovery: could not parse port, skipping announce", slog.String("err", err.Error()))
		} else if a, err := discovery.Announce("trustd", port, log); err != nil {
			log.Warn("discovery: announce failed", slog.String("err", err.Error()))
		} else {
			announcer = a
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("trustd listening", slog.String("addr", cfg.Addr()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info("shutting down")
	}

	if announcer != nil {
		announcer.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

// openStores selects the memory or sqlite backend per cfg.StoreDriver and
// returns a matching nonce store sharing the same backend, plus a close
// func for the caller to defer.
func openStores(cfg *config.Config, log *slog.Logger) (trust.Store, nonce.Store, func(), error) {
	switch cfg.StoreDriver {
	case "sqlite":
		sqlStore, err := trust.OpenSQLStore(cfg.SqliteDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		nonceStore := trust.NewSQLNonceStore(sqlStore.DB())
		return sqlStore, nonceStore, func() {}, nil
	default:
		if cfg.StoreDriver != "memory" {
			log.Warn("unknown STORE_DRIVER, falling back to memory", slog.String("driver", cfg.StoreDriver))
		}
		return trust.NewMemoryStore(), nonce.NewMemoryStore(), func() {}, nil
	}
}

func portOf(portStr string) (int, error) {
	var port int
	_, err := fmt.Sscanf(portStr, "%d", &port)
	return port, err
}

func checkBootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap-check",
		Short: "load admins.json/moderators.json/genesis.json and print the admin and moderator sets that would be applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := obsv.NewLogger("info")

			roleStore := roles.NewStore()
			bootstrap.LoadRoles(cfg.BootstrapDir, roleStore, log)

			trustStore := trust.NewMemoryStore()
			bootstrap.LoadGenesis(cfg.BootstrapDir, trustStore, func() int64 { return time.Now().Unix() }, log)

			fmt.Printf("admins: %v\n", roleStore.ListAdmins())
			fmt.Printf("moderators: %v\n", roleStore.ListModerators())
			return nil
		},
	}
}
