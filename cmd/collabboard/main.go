package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	intrnl "collabboard/internal"
	"collabboard/internal/app"
)

const (
	modeServer = "server"
	modeClient = "client"
	modeLocal  = "local"
)

func main() {
	mode, args := parseMode(os.Args[1:])

	serverCfg, err := app.LoadServerConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	clientCfg, err := app.LoadClientConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	flagSet := flag.NewFlagSet("collabboard", flag.ExitOnError)
	addr := flagSet.String("addr", serverCfg.Addr, "server listen address (server/local mode)")
	db := flagSet.String("db", serverCfg.DBPath, "sqlite database path (local mode defaults to a per-user path)")
	serverURL := flagSet.String("server-url", clientCfg.ServerURL, "broker base URL (client mode)")
	username := flagSet.String("user", clientCfg.Username, "display name for the board")
	_ = flagSet.Parse(args)

	roomCode := ""
	if remaining := flagSet.Args(); len(remaining) > 0 {
		roomCode = remaining[0]
	}

	serverCfg.Addr = *addr
	serverCfg.DBPath = *db
	clientCfg.ServerURL = *serverURL
	clientCfg.Username = *username
	clientCfg.RoomCode = roomCode

	switch mode {
	case modeServer:
		runServer(serverCfg)
	case modeLocal:
		runLocal(serverCfg, clientCfg)
	default:
		runClient(clientCfg)
	}
}

func parseMode(args []string) (string, []string) {
	if len(args) > 0 {
		switch args[0] {
		case modeServer, modeClient, modeLocal:
			return args[0], args[1:]
		}
	}
	return modeClient, args
}

func runServer(cfg app.ServerConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handle, err := app.RunServer(ctx, cfg)
	if err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("CollabBoard broker listening on %s", handle.Addr())
	if err := handle.Wait(); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

func runClient(cfg app.ClientConfig) {
	model := intrnl.NewTUIModel(cfg.ServerURL, cfg.RoomCode, cfg.Username)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "client error: %v\n", err)
		os.Exit(1)
	}
}

// runLocal starts an embedded broker on a loopback port and drops straight
// into the client against it.
func runLocal(serverCfg app.ServerConfig, clientCfg app.ClientConfig) {
	if serverCfg.DBPath == "" {
		serverCfg.DBPath = app.DefaultDBPath()
	}
	serverCfg.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handle, err := app.RunServer(ctx, serverCfg)
	if err != nil {
		log.Fatalf("embedded server error: %v", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = handle.Stop(stopCtx)
		_ = handle.Wait()
	}()

	clientCfg.ServerURL = "http://" + handle.Addr()
	runClient(clientCfg)
}
