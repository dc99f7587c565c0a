// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

// Kotorid is the focus-companion daemon. It keeps the single working
// task honest with overdue reminders, nags about unplanned free time,
// greets at fixed hours, fires user-registered reminders, and serves
// the local command API the chat front-end talks to.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kotori-bot/kotori/bot"
	"github.com/kotori-bot/kotori/calendar"
	"github.com/kotori-bot/kotori/holiday"
	"github.com/kotori-bot/kotori/lib/clock"
	"github.com/kotori-bot/kotori/lib/config"
	"github.com/kotori-bot/kotori/lib/cron"
	"github.com/kotori-bot/kotori/lib/httpserver"
	"github.com/kotori-bot/kotori/lib/llm"
	"github.com/kotori-bot/kotori/lib/version"
	"github.com/kotori-bot/kotori/memory"
	"github.com/kotori-bot/kotori/messenger"
	"github.com/kotori-bot/kotori/respond"
	"github.com/kotori-bot/kotori/scheduler"
	"github.com/kotori-bot/kotori/store"
	"github.com/kotori-bot/kotori/window"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var showVersion bool
	flag.StringVar(&configPath, "config", "", "path to config file (or set "+config.EnvVar+")")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("kotorid %s\n", version.Info())
		return nil
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	location, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	st, err := store.Open(store.Config{
		Path:     cfg.Database.Path,
		Clock:    clk,
		Location: location,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	holidays := holiday.NewService(cfg.Holiday.URL, &http.Client{Timeout: 30 * time.Second},
		st, location, logger)
	if err := holidays.Refresh(ctx); err != nil {
		// The service fell back to the persisted cache; a cold cache
		// just means no holiday awareness until the nightly refresh.
		logger.Warn("initial holiday refresh failed", "error", err)
	}

	policy := window.NewPolicy(location, holidays.IsHoliday)

	provider := llm.NewOpenAI(&http.Client{Timeout: 60 * time.Second}, cfg.LLM.BaseURL, cfg.LLM.APIKey)
	responder := respond.New(provider, cfg.LLM.Model, clk, location, logger)
	remember := memory.NewClient(cfg.Memory.BaseURL, cfg.Memory.APIKey, cfg.Memory.UserID,
		&http.Client{Timeout: 15 * time.Second}, logger)
	webhook := messenger.NewWebhook(cfg.Messenger.WebhookURL, cfg.Messenger.Timeout.Std())

	cal, err := calendar.NewClient(ctx, calendar.Config{
		CredentialsFile: cfg.Calendar.CredentialsFile,
		CalendarID:      cfg.Calendar.CalendarID,
		Clock:           clk,
		Location:        location,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Config{
		Store:     st,
		Window:    policy,
		Calendar:  cal,
		Replier:   responder,
		Deliverer: webhook,
		Memory:    remember,
		Clock:     clk,
		Location:  location,
		Logger:    logger,
	})
	defer sched.Shutdown()

	if err := sched.Recover(ctx); err != nil {
		return fmt.Errorf("recovering task reminder: %w", err)
	}

	dispatcher := scheduler.NewCronDispatcher(scheduler.DispatcherConfig{
		Scheduler: sched,
		Store:     st,
		Window:    policy,
		Holidays:  holidays,
		Replier:   responder,
		Deliverer: webhook,
		Clock:     clk,
		Location:  location,
		Logger:    logger,
	})
	runner := cron.NewRunner(clk, location, logger)
	if err := dispatcher.Register(runner); err != nil {
		return err
	}
	runner.Start(ctx)
	defer runner.Stop()

	commands := bot.New(bot.Config{
		Store:     st,
		Reminders: sched,
		Calendar:  cal,
		Replier:   responder,
		Memory:    remember,
		Clock:     clk,
		Location:  location,
		Logger:    logger,
	})
	api := httpserver.New(httpserver.Config{
		Address: cfg.Command.Listen,
		Handler: bot.NewHandler(commands, logger),
		Logger:  logger,
	})

	logger.Info("kotorid started",
		"timezone", location.String(),
		"database", cfg.Database.Path,
		"calendar", cal.Configured(),
		"memory", remember.Enabled(),
	)

	if err := api.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("kotorid stopped")
	return nil
}
