package upload

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/claude/veloplan/internal/ingest"
)

// Stats tracks upload progress.
type Stats struct {
	FilesTotal    int
	FilesUploaded int
	FilesSkipped  int
	FilesErrored  int

	ActivitiesSent     int
	ActivitiesInserted int
	Duplicates         int
	Rejected           int
}

// Uploader walks an export directory, parses ride log files, and POSTs them
// to the VeloPlan server.
type Uploader struct {
	client    *Client
	state     *StateDB
	dir       string
	athleteID string
	dryRun    bool
	log       *slog.Logger
	stats     Stats
}

// New creates a new Uploader.
func New(client *Client, state *StateDB, dir, athleteID string, dryRun bool, log *slog.Logger) *Uploader {
	return &Uploader{
		client:    client,
		state:     state,
		dir:       dir,
		athleteID: athleteID,
		dryRun:    dryRun,
		log:       log,
	}
}

// Run processes every export file under the directory, oldest name first.
// Already-uploaded files (same path, size and hash) are skipped.
func (u *Uploader) Run() (Stats, error) {
	files, err := u.findExports()
	if err != nil {
		return u.stats, err
	}
	u.stats.FilesTotal = len(files)

	for _, path := range files {
		if err := u.processFile(path); err != nil {
			u.stats.FilesErrored++
			u.log.Error("upload failed", "file", path, "error", err)
		}
	}
	return u.stats, nil
}

func (u *Uploader) findExports() ([]string, error) {
	var files []string
	err := filepath.WalkDir(u.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".csv") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", u.dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func (u *Uploader) processFile(path string) error {
	rel, err := filepath.Rel(u.dir, path)
	if err != nil {
		rel = path
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hash, err := HashFile(path)
	if err != nil {
		return fmt.Errorf("hashing: %w", err)
	}

	uploaded, prior, err := u.state.IsUploaded(rel, info.Size(), hash)
	if err != nil {
		return fmt.Errorf("state lookup: %w", err)
	}
	if uploaded {
		u.stats.FilesSkipped++
		u.log.Info("already uploaded, skipping", "file", rel, "activities", prior)
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	activities, err := ingest.ParseCSV(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parsing: %w", err)
	}
	if len(activities) == 0 {
		u.stats.FilesSkipped++
		return nil
	}

	if u.dryRun {
		u.stats.ActivitiesSent += len(activities)
		u.log.Info("dry run, would upload", "file", rel, "activities", len(activities))
		return nil
	}

	result, err := u.client.SendPayload(ingest.Payload{
		AthleteID:  u.athleteID,
		Activities: activities,
	})
	if err != nil {
		return err
	}

	u.stats.FilesUploaded++
	u.stats.ActivitiesSent += result.Received
	u.stats.ActivitiesInserted += result.Inserted
	u.stats.Duplicates += result.Skipped
	u.stats.Rejected += result.Rejected
	u.log.Info("uploaded", "file", rel,
		"activities", result.Received,
		"inserted", result.Inserted,
		"duplicates", result.Skipped,
		"rejected", result.Rejected,
	)

	if err := u.state.MarkUploaded(rel, info.Size(), hash, result.Received); err != nil {
		return fmt.Errorf("recording upload: %w", err)
	}
	return nil
}
