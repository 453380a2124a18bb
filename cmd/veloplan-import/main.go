package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/veloplan/internal/config"
	"github.com/claude/veloplan/internal/importer"
	"github.com/claude/veloplan/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	exportPath := flag.String("path", "", "path to ride export directory (required)")
	athleteID := flag.String("athlete", "", "athlete id to import for (required)")
	dryRun := flag.Bool("dry-run", false, "report counts without inserting into database")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *exportPath == "" || *athleteID == "" {
		fmt.Fprintf(os.Stderr, "Usage: veloplan-import -config config.yaml -path /path/to/exports -athlete <id> [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	info, err := os.Stat(*exportPath)
	if err != nil || !info.IsDir() {
		log.Error("export path does not exist or is not a directory", "path", *exportPath)
		os.Exit(1)
	}

	ctx := context.Background()

	if *dryRun {
		log.Info("DRY RUN mode: no data will be written to the database")
	}

	var db *storage.DB
	if !*dryRun {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		dsn := cfg.Database.DSN()

		if err := storage.RunMigrations(dsn, "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")

		db, err = storage.New(ctx, dsn)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		log.Info("database connected")
	}

	imp := importer.New(db, log, *dryRun)
	stats, err := imp.Import(ctx, *exportPath, *athleteID)
	if err != nil {
		log.Error("import failed", "error", err)
		if stats != nil {
			printStats(log, stats)
		}
		os.Exit(1)
	}

	printStats(log, stats)
	log.Info("import complete")
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"files_scanned", stats.FilesScanned,
		"files_errored", stats.FilesErrored,
		"entries", stats.Entries,
		"merged", stats.Merged,
		"inserted", stats.Inserted,
		"duplicates", stats.Duplicates,
		"rejected", stats.Rejected,
		"low_confidence", stats.LowConfidence,
	)
}
