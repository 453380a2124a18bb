package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/claude/veloplan/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "VeloPlan server URL (e.g. https://veloplan.tail1234.ts.net)")
	exportPath := flag.String("path", "", "path to ride export directory")
	athleteID := flag.String("athlete", "", "athlete id to upload for")
	apiKey := flag.String("api-key", "", "API key for write access (or VELOPLAN_AUTH_API_KEY)")
	dryRun := flag.Bool("dry-run", false, "parse exports but don't send to server")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("veloplan-upload", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *exportPath == "" || *athleteID == "" {
		fmt.Fprintf(os.Stderr, "Usage: veloplan-upload -server <URL> -path <export dir> -athlete <id> [-api-key KEY] [-dry-run]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *serverURL == "" && !*dryRun {
		fmt.Fprintf(os.Stderr, "Error: -server is required (or use -dry-run)\n")
		os.Exit(1)
	}

	if *apiKey == "" {
		*apiKey = os.Getenv("VELOPLAN_AUTH_API_KEY")
	}
	*serverURL = strings.TrimRight(*serverURL, "/")

	info, err := os.Stat(*exportPath)
	if err != nil || !info.IsDir() {
		log.Error("export directory not found", "path", *exportPath)
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Error("failed to get home directory", "error", err)
		os.Exit(1)
	}
	stateDir := filepath.Join(homeDir, ".veloplan-upload")

	state, err := upload.OpenStateDB(stateDir)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	// Client is nil in dry-run mode; the uploader never sends.
	var client *upload.Client
	if !*dryRun {
		client = upload.NewClient(*serverURL, *apiKey)
	} else {
		log.Info("DRY RUN mode: files will be parsed but not sent")
	}

	uploader := upload.New(client, state, *exportPath, *athleteID, *dryRun, log)
	stats, err := uploader.Run()
	if err != nil {
		log.Error("upload failed", "error", err)
		printStats(stats)
		os.Exit(1)
	}

	printStats(stats)
	log.Info("upload complete")
}

func printStats(stats upload.Stats) {
	fmt.Println()
	fmt.Println("=== Upload Summary ===")
	fmt.Printf("  Files total:       %d\n", stats.FilesTotal)
	fmt.Printf("  Files uploaded:    %d\n", stats.FilesUploaded)
	fmt.Printf("  Files skipped:     %d (already uploaded)\n", stats.FilesSkipped)
	fmt.Printf("  Files errored:     %d\n", stats.FilesErrored)
	fmt.Println()
	fmt.Printf("  Activities sent:   %d\n", stats.ActivitiesSent)
	fmt.Printf("  Inserted:          %d\n", stats.ActivitiesInserted)
	fmt.Printf("  Duplicates:        %d\n", stats.Duplicates)
	fmt.Printf("  Rejected:          %d\n", stats.Rejected)
	fmt.Println()
}
