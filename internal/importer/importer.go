// Package importer bulk-loads historical ride exports straight into the
// database. It walks an export directory, parses each file, collapses
// duplicate recordings of the same ride, scores every activity against the
// athlete's thresholds, and inserts with duplicate detection. Used by the
// import command for initial backfill; day-to-day syncing goes through the
// upload client instead.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/claude/veloplan/internal/ingest"
	"github.com/claude/veloplan/internal/storage"
	"github.com/claude/veloplan/internal/stress"
)

// Stats tracks what one import run did.
type Stats struct {
	FilesScanned  int
	FilesErrored  int
	Entries       int
	Merged        int
	Inserted      int
	Duplicates    int
	Rejected      int
	LowConfidence int
}

// Importer reads ride exports from disk and writes activities to the store.
type Importer struct {
	db     *storage.DB
	log    *slog.Logger
	dryRun bool
	stats  Stats
}

func New(db *storage.DB, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{db: db, log: log, dryRun: dryRun}
}

// Import processes every export file under dir for one athlete. Files are
// handled in name order so repeated runs behave identically. A file that
// fails to parse is logged and skipped; the run continues.
func (im *Importer) Import(ctx context.Context, dir, athleteID string) (*Stats, error) {
	if athleteID == "" {
		return nil, fmt.Errorf("athlete id required")
	}

	refs := stress.References{}
	if !im.dryRun {
		profile, _, err := im.db.GetAthlete(ctx, athleteID)
		if err != nil {
			return nil, fmt.Errorf("loading athlete %s: %w", athleteID, err)
		}
		refs = stress.References{FTPWatts: profile.FTPWatts, LTHRBpm: profile.LTHRBpm}
	}

	files, err := im.findExports(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		im.log.Info("no export files found", "dir", dir)
		return &im.stats, nil
	}

	var entries []ingest.RawActivity
	for _, path := range files {
		im.stats.FilesScanned++
		parsed, err := im.parseFile(path)
		if err != nil {
			im.stats.FilesErrored++
			im.log.Warn("skipping unreadable export", "file", path, "error", err)
			continue
		}
		entries = append(entries, parsed...)
	}
	im.stats.Entries = len(entries)

	merged := mergeDuplicates(entries)
	im.stats.Merged = len(entries) - len(merged)

	for _, raw := range merged {
		if err := im.importEntry(ctx, athleteID, raw, refs); err != nil {
			return &im.stats, err
		}
	}

	im.log.Info("import complete",
		"files", im.stats.FilesScanned,
		"entries", im.stats.Entries,
		"merged", im.stats.Merged,
		"inserted", im.stats.Inserted,
		"duplicates", im.stats.Duplicates,
		"rejected", im.stats.Rejected,
		"dry_run", im.dryRun)
	return &im.stats, nil
}

func (im *Importer) findExports(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isExportFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func (im *Importer) parseFile(path string) ([]ingest.RawActivity, error) {
	r, err := openExport(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ingest.ParseCSV(r)
}

func (im *Importer) importEntry(ctx context.Context, athleteID string, raw ingest.RawActivity, refs stress.References) error {
	a, err := raw.ToActivity(athleteID)
	if err != nil {
		im.stats.Rejected++
		im.log.Warn("rejecting entry", "start", raw.StartTime, "error", err)
		return nil
	}

	scored, err := stress.Score(stress.Input{
		DurationSec:     a.DurationSec,
		NormalizedPower: a.NormalizedPower,
		AvgPower:        a.AvgPower,
		AvgHeartRate:    a.AvgHeartRate,
		PerceivedEffort: a.PerceivedEffort,
	}, refs)
	if err != nil {
		im.stats.Rejected++
		im.log.Warn("rejecting entry", "start", raw.StartTime, "error", err)
		return nil
	}
	a.StressScore = scored.Score
	a.LowConfidence = scored.LowConfidence
	if scored.LowConfidence {
		im.stats.LowConfidence++
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	if im.dryRun {
		im.stats.Inserted++
		return nil
	}

	inserted, err := im.db.InsertActivity(ctx, a)
	if err != nil {
		return fmt.Errorf("inserting activity at %s: %w", a.StartTime, err)
	}
	if inserted {
		im.stats.Inserted++
	} else {
		im.stats.Duplicates++
	}
	return nil
}
