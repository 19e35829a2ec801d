package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jackc/pgx/v5"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anicoll/knx-integration/internal/pkg/browser"
	"github.com/anicoll/knx-integration/internal/pkg/config"
	"github.com/anicoll/knx-integration/internal/pkg/database"
	"github.com/anicoll/knx-integration/internal/pkg/database/migration"
	"github.com/anicoll/knx-integration/internal/pkg/discovery"
	"github.com/anicoll/knx-integration/internal/pkg/knx"
	"github.com/anicoll/knx-integration/internal/pkg/mapper"
	"github.com/anicoll/knx-integration/internal/pkg/mqtt"
	"github.com/anicoll/knx-integration/internal/pkg/publisher"
	"github.com/anicoll/knx-integration/internal/pkg/registry"
	"github.com/anicoll/knx-integration/internal/pkg/server"
	"github.com/anicoll/knx-integration/internal/pkg/state"
	"github.com/anicoll/knx-integration/pkg/sockets"
)

const historyRetention = 30 * 24 * time.Hour

func BridgeCommand(ctx *cli.Context) error {
	cfg := &config.Config{
		KnxCfg: &config.KnxConfig{
			BaseURL:        ctx.String("base-url"),
			MappingsPath:   ctx.String("mappings-file"),
			SkipTLSVerify:  ctx.Bool("skip-tls-verify"),
			RequestTimeout: ctx.Duration("request-timeout"),
			LoginTimeout:   ctx.Duration("login-timeout"),
			Headless:       ctx.Bool("headless"),
		},
		MqttCfg: &config.MqttConfig{
			Host:     ctx.String("mqtt-host"),
			Username: ctx.String("mqtt-user"),
			Password: ctx.String("mqtt-pass"),
		},
		APICfg: &config.APIConfig{
			Addr:      ctx.String("api-addr"),
			TokenHash: ctx.String("api-token-hash"),
		},
		LogLevel: ctx.String("log-level"),
	}

	return run(ctx.Context, cfg, ctx.String("database-url"), ctx.String("migrations-folder"))
}

func run(ctx context.Context, cfg *config.Config, databaseURL, migrationsFolder string) error {
	errorChan := make(chan error, 1000)
	var err error

	logCfg := zap.NewProductionConfig()
	logCfg.Level, err = zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	logger := zap.Must(logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)))
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()
	zap.ReplaceGlobals(logger)

	mappings, err := mapper.Load(cfg.KnxCfg.MappingsPath)
	if err != nil {
		return err
	}
	logger.Info("command mappings loaded", zap.Int("count", mappings.Len()))

	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}

	browserSvc := browser.New(cfg.KnxCfg.BaseURL, creds, cfg.KnxCfg.Headless)
	knxSvc := knx.New(cfg.KnxCfg, browserSvc.Login)

	var db *database.Database
	if databaseURL != "" {
		if err := migration.Migrate(databaseURL, migrationsFolder); err != nil {
			return err
		}
		conn, err := pgx.Connect(ctx, databaseURL)
		if err != nil {
			return err
		}
		db = database.NewDatabase(conn)
		defer db.Close()
		if err := publisher.Register("postgres", db); err != nil {
			return err
		}
	}

	if cfg.MqttCfg.Host != "" {
		opts := paho_mqtt.NewClientOptions().
			AddBroker(cfg.MqttCfg.Host).
			SetUsername(cfg.MqttCfg.Username).
			SetPassword(cfg.MqttCfg.Password).
			SetAutoReconnect(true)
		mqttSvc := mqtt.New(paho_mqtt.NewClient(opts))
		if err := mqttSvc.Connect(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		if err := publisher.Register("mqtt", mqttSvc); err != nil {
			return err
		}
	}

	hub := sockets.NewHub(
		sockets.WithPingIntervalSec(30),
		sockets.OnError(func(err error) {
			zap.L().Warn("websocket client dropped", zap.Error(err))
		}),
	)
	defer hub.Close()
	if err := publisher.Register("websocket", server.NewStatePusher(hub)); err != nil {
		return err
	}

	if err := knxSvc.Reauthenticate(ctx); err != nil {
		return err
	}

	manager := state.New(registry.New(), mappings, knxSvc)
	if err := manager.Initialize(ctx, discovery.New(knxSvc)); err != nil {
		return err
	}

	if db != nil {
		latest, err := db.GetLatestStates(ctx)
		if err != nil {
			return err
		}
		manager.RestoreStates(latest)
	}

	return serve(ctx, cfg, knxSvc, manager, db, hub, errorChan)
}

// serve runs the long lived pieces until the context is cancelled or one of
// them fails.
func serve(ctx context.Context, cfg *config.Config, session SessionService, states StateService, db *database.Database, stream http.Handler, errorChan chan error) error {
	eg, ctx := errgroup.WithContext(ctx)
	logger := zap.L()

	var srv *http.Server
	if db != nil {
		srv = &http.Server{Handler: server.New(states, db, stream).Router(cfg.APICfg.TokenHash)}
	} else {
		srv = &http.Server{Handler: server.New(states, nil, stream).Router(cfg.APICfg.TokenHash)}
	}
	srv.Addr = cfg.APICfg.Addr
	srv.WriteTimeout = 15 * time.Second
	srv.ReadTimeout = 15 * time.Second

	eg.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		return cronMaintenance(ctx, session, db, errorChan)
	})

	eg.Go(func() error {
		// handle any async errors from service
		for {
			select {
			case err := <-errorChan:
				if errors.Is(err, errCron) {
					logger.Error("cron error", zap.Error(err))
					return err
				}
			case <-ctx.Done():
				logger.Info("context done")
				return ctx.Err()
			}
		}
	})

	return eg.Wait()
}

var errCron = errors.New("cron error")

// cronMaintenance prunes old history nightly and probes the session every
// quarter hour so an expired token is replaced before the next command
// needs it.
func cronMaintenance(ctx context.Context, session SessionService, db *database.Database, errChan chan error) error {
	c := cron.New()

	if db != nil {
		if err := db.Cleanup(ctx, historyRetention); err != nil {
			return err
		}
		if _, err := c.AddFunc("0 3 * * *", func() {
			if err := db.Cleanup(context.Background(), historyRetention); err != nil {
				zap.L().Error("error pruning state history", zap.Error(err))
				errChan <- errCron
				return
			}
			zap.L().Info("state history pruned")
		}); err != nil {
			return err
		}
	}

	if _, err := c.AddFunc("*/15 * * * *", func() {
		valid, err := session.ValidateSession(ctx)
		if err != nil || valid {
			return
		}
		if err := session.Reauthenticate(ctx); err != nil {
			zap.L().Error("scheduled reauthentication failed", zap.Error(err))
			errChan <- errCron
		}
	}); err != nil {
		return err
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}
