package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"ring-settler/api"
	"ring-settler/boff"
	"ring-settler/chain"
	"ring-settler/config"
	"ring-settler/database"
	"ring-settler/logger"
	"ring-settler/ring"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()
	flag.Parse()

	cfg, err := config.BuildConfig()
	if err != nil {
		fmt.Println("Config error: ", err)
		return
	}
	config.GlobalConfigCallback.Call(cfg)
	logger.Info("Running with configuration: database: %s, server: %s", cfg.DB.Database, cfg.Server.Addr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := boff.RetryWithMaxElapsed(ctx, func() (*gorm.DB, error) {
		return database.ConnectAndInitialize(&cfg.DB)
	}, "database connect")
	if err != nil {
		logger.Fatal("Database connect and initialize error: %s", err)
	}

	heads, err := chain.NewHeadSource(cfg.Chain)
	if err != nil {
		logger.Fatal("Chain head source error: %s", err)
	}

	store := database.NewStore(db)
	settler := ring.NewSettler(store, heads, cfg.Engine)

	server := api.NewServer(cfg.Server, settler, store)
	if err := server.Run(ctx); err != nil {
		logger.Fatal("Server error: %s", err)
	}

	logger.Info("Shutting down")
	logger.SyncFileLogger()
}
