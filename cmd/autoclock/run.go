package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"autoclock/internal/bot"
	"autoclock/internal/config"
	"autoclock/internal/control"
	"autoclock/internal/db"
	"autoclock/internal/metrics"
	"autoclock/internal/model"
	"autoclock/shared/access"
	"autoclock/shared/audit"
)

func runCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler with the control API and optional bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, flags, true)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger
	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	defer wg.Wait()

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		spawn(func() { startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger) })
	}
	spawn(func() { startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, a.database, a.rdb, logger) })

	backup := db.NewBackupService(a.database, db.BackupConfig{
		Enabled:       cfg.Backup.Enabled,
		Dir:           cfg.Backup.Path,
		Interval:      cfg.BackupInterval(),
		RetentionDays: cfg.Backup.RetentionDays,
	}, logger)
	spawn(func() { backup.Start(ctx) })

	if err := a.runner.Start(ctx); err != nil {
		return err
	}

	if cfg.ScheduleFile != "" {
		err := config.WatchSchedule(ctx, cfg.ScheduleFile, time.Second, logger, func(ctx context.Context, s model.Schedule) {
			if err := a.runner.SaveSchedule(ctx, s); err != nil {
				logger.Error().Err(err).Msg("Failed to apply schedule file")
				return
			}
			logger.Info().Str("summary", s.Summary()).Msg("Schedule file applied")
		})
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.ScheduleFile).Msg("Schedule file not watched")
		}
	}

	if cfg.Control.Enabled {
		srv := control.NewServer(a.runner, control.Config{
			Address:       cfg.Control.Address,
			APIKey:        cfg.Control.APIKey,
			RatePerMinute: cfg.Control.RatePerMinute,
		}, logger)
		spawn(func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("Control API error")
			}
		})
	}

	var notifier audit.Notifier
	if cfg.Telegram.Enabled {
		gate := access.NewService(cfg.Telegram.AllowedUsers, logger)
		b, err := bot.New(bot.Config{
			Token:        cfg.Telegram.BotToken,
			Debug:        cfg.Telegram.Debug,
			NotifyChatID: cfg.Telegram.NotifyChatID,
		}, a.runner, gate, logger)
		if err != nil {
			return err
		}
		b.Subscribe(a.bus)
		if cfg.Telegram.NotifyChatID != 0 {
			notifier = b
		}
		spawn(func() { b.Start(ctx) })
	}

	loc, _ := cfg.Location()
	auditor := audit.NewService(audit.Config{
		RetentionDays: cfg.Journal.RetentionDays,
		Dir:           cfg.Journal.ExportDir,
		Location:      loc,
	}, a.database, nil, notifier, logger)
	auditor.Start()
	defer auditor.Stop()

	logger.Info().Msg("autoclock started")
	<-ctx.Done()
	logger.Info().Msg("Shutting down")
	return nil
}
