// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/medtrack/medtrack/internal/api"
	"github.com/medtrack/medtrack/internal/auth"
	"github.com/medtrack/medtrack/internal/auth/repository"
	"github.com/medtrack/medtrack/internal/config"
	"github.com/medtrack/medtrack/internal/logging"
	"github.com/medtrack/medtrack/internal/notify"
	"github.com/medtrack/medtrack/internal/observability"
	"github.com/medtrack/medtrack/internal/store"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MedTrack API server",
		Long: `Start the HTTP API server together with the metrics and health
probe listener. The server shuts down gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	cmd.Flags().String("addr", ":8080", "API listen address")
	addStorageFlags(cmd)
	cmd.Flags().Bool("auto-migrate", false, "apply pending migrations before serving (postgres only)")
	cmd.Flags().Duration("session-ttl", time.Hour, "absolute session lifetime")
	cmd.Flags().String("log-format", "json", "log format (json or text)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")

	return cmd
}

// runServeWithDeps runs the API server until ctx is cancelled, a shutdown
// signal arrives or a listener fails. If deps is nil, default
// implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(logging.Options{
		Service: "medtrack",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
	})

	if cfg.Storage.AutoMigrate && cfg.Storage.Backend == store.BackendPostgres {
		if err := migrateUp(deps, cfg.Storage.URL); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	st, err := deps.StoreOpener(ctx, cfg.Storage.Backend, cfg.Storage.URL)
	if err != nil {
		return oops.Code("STORE_OPEN_FAILED").With("backend", cfg.Storage.Backend).Wrap(err)
	}
	defer st.Close()
	logger.Info("storage ready", "backend", cfg.Storage.Backend)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		obsServer ObservabilityServer
		metrics   *observability.Metrics
	)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, st.Ping)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	handler, err := buildAPI(ctx, cfg, st, metrics, logger)
	if err != nil {
		stopObservability(obsServer)
		return err
	}

	listener, err := deps.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		stopObservability(obsServer)
		return oops.Code("API_LISTEN_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	apiErrChan := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			apiErrChan <- err
		}
		close(apiErrChan)
	}()
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	cmd.Println("MedTrack API listening on " + listener.Addr().String())
	logger.Info("api server started", "addr", listener.Addr().String())

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return oops.Code("SERVER_FAILED").Wrap(cause)
	}
	logger.Info("shutdown complete")
	return nil
}

// buildAPI wires the auth stack, notifier and records behind the HTTP API.
func buildAPI(ctx context.Context, cfg *config.Config, st store.Store, metrics *observability.Metrics, logger *slog.Logger) (http.Handler, error) {
	channels, err := buildChannels(ctx, cfg.Notify, logger)
	if err != nil {
		return nil, err
	}
	dispatcher := notify.NewDispatcher(channels,
		notify.WithTimeout(cfg.Notify.Timeout),
		notify.WithAttempts(cfg.Notify.Attempts),
		notify.WithLogger(logger),
		notify.WithFailureRecorder(metrics.RecordNotificationFailure),
	)

	users := repository.NewUserRepository(st)
	sessions, err := auth.NewSessionManager(repository.NewSessionRepository(st), users, cfg.Session.TTL,
		auth.WithSessionLogger(logger))
	if err != nil {
		return nil, err
	}
	hasher := auth.NewArgon2idHasher(auth.Argon2Params{
		Time:    cfg.Auth.Argon2.Time,
		Memory:  cfg.Auth.Argon2.MemoryKiB,
		Threads: cfg.Auth.Argon2.Threads,
	})
	limiter := auth.NewLoginLimiter(cfg.Auth.LockoutThreshold, cfg.Auth.LockoutWindow)
	svc, err := auth.NewService(users, hasher, limiter, sessions,
		auth.WithNotifier(dispatcher),
		auth.WithLogger(logger),
		auth.WithAppName(cfg.Server.AppName))
	if err != nil {
		return nil, err
	}
	gate, err := auth.NewGate(sessions)
	if err != nil {
		return nil, err
	}

	h, err := api.NewHandler(api.Deps{
		Auth:          svc,
		Gate:          gate,
		Users:         users,
		Store:         st,
		Notifier:      dispatcher,
		Metrics:       metrics,
		Logger:        logger,
		AppName:       cfg.Server.AppName,
		SecureCookies: cfg.Server.SecureCookies,
	})
	if err != nil {
		return nil, err
	}
	return h.Routes(), nil
}

// buildChannels creates the configured notification channels. With none
// configured, notifications are logged.
func buildChannels(ctx context.Context, cfg config.NotifyConfig, logger *slog.Logger) ([]notify.Channel, error) {
	var channels []notify.Channel
	if cfg.HasChannel(config.ChannelLog) || len(cfg.Channels) == 0 {
		channels = append(channels, notify.NewLogChannel(logger))
	}
	if cfg.HasChannel(config.ChannelSMTP) {
		ch, err := notify.NewSMTPChannel(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	if cfg.HasChannel(config.ChannelSNS) {
		ch, err := notify.NewSNSChannel(ctx, notify.SNSConfig{
			Region:          cfg.SNS.Region,
			TopicARN:        cfg.SNS.TopicARN,
			Endpoint:        cfg.SNS.Endpoint,
			AccessKeyID:     cfg.SNS.AccessKeyID,
			SecretAccessKey: cfg.SNS.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

func migrateUp(deps *ServeDeps, databaseURL string) error {
	m, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()
	return m.Up()
}

func stopObservability(obsServer ObservabilityServer) {
	if obsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := obsServer.Stop(ctx); err != nil {
		slog.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// monitorServerErrors cancels ctx with the first error a server reports. It
// exits when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelCauseFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel(oops.With("server", serverName).Wrap(err))
		}
	case <-ctx.Done():
	}
}

// defaultListen is net.Listen behind the Listener factory signature.
func defaultListen(network, address string) (net.Listener, error) {
	return net.Listen(network, address)
}
