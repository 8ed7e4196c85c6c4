package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collabboard/internal/app"
)

func main() {
	cfg, err := app.LoadServerConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	addr := flag.String("addr", cfg.Addr, "server listen address")
	db := flag.String("db", cfg.DBPath, "sqlite database path (empty runs memory-only)")
	grace := flag.Duration("eviction-grace", cfg.EvictionGrace, "how long an empty board survives before eviction (0 disables)")
	flag.Parse()

	cfg.Addr = *addr
	cfg.DBPath = *db
	cfg.EvictionGrace = *grace

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handle, err := app.RunServer(ctx, cfg)
	if err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("CollabBoard broker listening on %s", handle.Addr())

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	<-signals

	log.Println("shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := handle.Stop(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := handle.Wait(); err != nil {
		log.Printf("server exited with error: %v", err)
	}
}
