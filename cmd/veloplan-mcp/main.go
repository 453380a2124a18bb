// veloplan-mcp exposes the training data over the Model Context Protocol on
// stdio. It runs in one of two modes: pointed at a VeloPlan server URL it
// proxies the REST API (useful over a tailnet), or given a config file it
// reads the database directly.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/claude/veloplan/internal/catalog"
	"github.com/claude/veloplan/internal/config"
	"github.com/claude/veloplan/internal/mcp"
	"github.com/claude/veloplan/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "VeloPlan server URL; proxies the REST API instead of reading the database")
	configPath := flag.String("config", "", "path to config file for direct database access")
	athleteID := flag.String("athlete", "", "default athlete id for tool calls (required)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("veloplan-mcp", Version)
		return
	}

	// stdout carries the MCP stream; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *athleteID == "" {
		fmt.Fprintf(os.Stderr, "Usage: veloplan-mcp -athlete <id> (-server <URL> | -config config.yaml)\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if (*serverURL == "") == (*configPath == "") {
		fmt.Fprintf(os.Stderr, "Error: exactly one of -server or -config is required\n")
		os.Exit(1)
	}

	cat, err := catalog.Default()
	if err != nil {
		log.Error("failed to load workout catalog", "error", err)
		os.Exit(1)
	}

	var ds mcp.DataSource
	if *serverURL != "" {
		ds = mcp.NewHTTPClient(*serverURL)
		log.Info("remote mode", "server", *serverURL)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		db, err := storage.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ds = db
		log.Info("local mode", "database", cfg.Database.Name)
	}

	s := mcp.New(ds, cat, *athleteID, Version, log)
	if err := mcpserver.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
