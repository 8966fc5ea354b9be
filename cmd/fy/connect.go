package main

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/fleetyard/internal/analytics"
	"github.com/zulandar/fleetyard/internal/config"
	"github.com/zulandar/fleetyard/internal/cycle"
	"github.com/zulandar/fleetyard/internal/db"
	"github.com/zulandar/fleetyard/internal/logging"
	"gorm.io/gorm"
)

// connectFromConfig loads the config file and opens the cycle store.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.Database.Name, err)
	}

	return cfg, gormDB, nil
}

// services wires the engine and analytics the way every command needs them.
type services struct {
	cfg       *config.Config
	db        *gorm.DB
	log       *logrus.Logger
	engine    *cycle.Engine
	analytics *analytics.Service
}

// openServices connects and builds the engine and analytics. A non-nil reg
// receives the engine metrics.
func openServices(configPath string, logOut io.Writer, reg prometheus.Registerer) (*services, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging, logOut)
	if err != nil {
		return nil, err
	}

	opts := []cycle.Option{
		cycle.WithLogger(log),
		cycle.WithLockTimeout(cfg.Engine.LockTimeout),
	}
	if reg != nil {
		rec, err := cycle.NewPromRecorder(reg)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, cycle.WithRecorder(rec))
	}
	engine, err := cycle.New(gormDB, opts...)
	if err != nil {
		return nil, err
	}
	svc, err := analytics.New(gormDB,
		analytics.WithLogger(log),
		analytics.WithDefaultDays(cfg.Analytics.DefaultDays),
	)
	if err != nil {
		return nil, err
	}
	return &services{cfg: cfg, db: gormDB, log: log, engine: engine, analytics: svc}, nil
}
