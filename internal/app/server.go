package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	intrnl "collabboard/internal"
	"collabboard/internal/storage"
)

// ServerHandle represents a running broker instance.
type ServerHandle struct {
	addr   string
	server *http.Server
	store  *storage.Store
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Addr returns the actual listen address (after the OS allocated a port).
func (h *ServerHandle) Addr() string {
	return h.addr
}

// Stop triggers a graceful shutdown with the provided context deadline.
func (h *ServerHandle) Stop(ctx context.Context) error {
	if h == nil || h.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	h.cancel()
	return h.server.Shutdown(ctx)
}

// Wait blocks until the server exits.
func (h *ServerHandle) Wait() error {
	if h == nil {
		return nil
	}
	<-h.done
	return h.err
}

// RunServer opens the optional store, rehydrates provisioned boards into the
// registry, starts the janitor and chat archiver, and serves in the
// background. Call Stop/Wait to manage its lifecycle.
func RunServer(ctx context.Context, cfg ServerConfig) (*ServerHandle, error) {
	var store *storage.Store
	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		var err error
		store, err = storage.NewStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		if err := store.Migrate(context.Background()); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	metrics := intrnl.NewMetrics()
	var history intrnl.HistoryChecker
	if store != nil {
		history = store
	}
	registry := intrnl.NewRegistry(cfg.EvictionGrace, history, metrics)

	if store != nil {
		// Boards provisioned before a restart stay joinable: recreate their
		// registry entries (and with them the presence structures) up front.
		boards, err := store.ListBoards(context.Background())
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("rehydrate boards: %w", err)
		}
		for _, b := range boards {
			registry.EnsureParticipantSet(b.RoomCode, b.RoomName)
		}
		if len(boards) > 0 {
			log.Printf("rehydrated %d provisioned boards", len(boards))
		}
	}

	server := intrnl.NewServer(registry, metrics, store)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Routes(),
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen: %w", err)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	go registry.RunJanitor(workerCtx, cfg.JanitorInterval)
	go server.RunArchiver(workerCtx)

	handle := &ServerHandle{
		addr:   listener.Addr().String(),
		server: httpServer,
		store:  store,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		if ctx == nil {
			return
		}
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server shutdown error: %v", err)
		}
	}()

	go handle.serve(listener)

	return handle, nil
}

func (h *ServerHandle) serve(listener net.Listener) {
	defer close(h.done)
	err := h.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	if closeErr := h.store.Close(); closeErr != nil {
		log.Printf("store close error: %v", closeErr)
	}
	h.err = err
}
