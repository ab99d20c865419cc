// Command dbcheck verifies database connectivity and reports row counts for
// the lead lifecycle tables. Intended for deploy-time smoke checks.
package main

import (
	"context"
	"time"

	"admissions_backend/platform/config"
	"admissions_backend/platform/db"
	"admissions_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting database check")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Error("ping failed", "error", err)
		panic("ping failed: " + err.Error())
	}
	log.Info("database reachable")

	tables := []string{
		"leads",
		"lead_automation_rules",
		"lead_audit_log",
		"lead_interactions",
	}

	for _, table := range tables {
		var count int64
		if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			log.Error("count failed", "table", table, "error", err)
			continue
		}
		log.Info("table check", "table", table, "rows", count)
	}

	log.Info("database check complete")
}
