// README: Applies or rolls back the PostgreSQL schema under migrations/.
package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"ridequick/internal/config"
	"ridequick/internal/infra"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	direction := flag.String("direction", "up", "migration direction: up or down")
	dir := flag.String("dir", cfg.DB.MigrationsPath, "migrations directory")
	dsn := flag.String("dsn", cfg.DB.DSN, "Postgres DSN")
	flag.Parse()

	logger, err := infra.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if *dsn == "" {
		logger.Fatal("a Postgres DSN is required (RIDEQUICK_DB_DSN or -dsn)")
	}
	if err := infra.Migrate(*dsn, *dir, *direction, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
}
