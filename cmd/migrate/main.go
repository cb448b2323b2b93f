package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"delivery-dispatch/internal/config"
	"delivery-dispatch/pkg/logger"
	"delivery-dispatch/pkg/migrate"
	"delivery-dispatch/pkg/utils"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|redo|reset")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env).With("service", "migrate", "cmd", *cmd)
	ctx := context.Background()

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: 2})
	if err != nil {
		log.Error("postgres connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := migrate.Run(ctx, db, *cmd, flag.Args()...); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}
	log.Info("migration finished")
}
