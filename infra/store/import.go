package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/askelund/spotheat/core/model"
)

// legacyUserFile matches the per-user JSON files of the old file-based
// storage. Field names are frozen by the historical format.
type legacyUserFile struct {
	ComfortHours       int        `json:"comfortHours"`
	TurnOffPercentile  float64    `json:"turnOffPercentile"`
	MaxComfortGapHours int        `json:"maxComfortGapHours"`
	AutoApply          bool       `json:"autoApply"`
	Zone               string     `json:"zone"`
	LastComfortRun     *time.Time `json:"lastComfortRun"`
	LastEcoRun         *time.Time `json:"lastEcoRun"`
}

// legacyImportMarker records that the one-time import already ran, so a
// config that keeps legacy_import_dir set cannot clobber settings and
// cursors edited after the migration.
const legacyImportMarker = "legacy_import_done"

// ImportLegacyDir does a one-time import of old per-user JSON files into
// the repositories. The file name without extension is the user id.
// Unreadable files are skipped with an error list so one corrupt file does
// not abort a migration. A completed import is remembered in the meta
// table and later calls are no-ops; clear the marker row to force a rerun.
func (s *SQLiteStore) ImportLegacyDir(ctx context.Context, dir string) (int, []error) {
	if done, err := s.metaValue(ctx, legacyImportMarker); err != nil {
		return 0, []error{err}
	} else if done != "" {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, []error{err}
	}
	imported := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		userID := strings.TrimSuffix(entry.Name(), ".json")
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		var legacy legacyUserFile
		if err := json.Unmarshal(raw, &legacy); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}

		settings := model.ScheduleSettings{
			ComfortHours:       legacy.ComfortHours,
			TurnOffPercentile:  legacy.TurnOffPercentile,
			MaxComfortGapHours: legacy.MaxComfortGapHours,
			AutoApply:          legacy.AutoApply,
			Zone:               legacy.Zone,
		}
		if normalized, clamped := settings.Normalize(0); clamped {
			settings = normalized
		}
		if err := s.SaveSettings(ctx, userID, settings); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		if err := s.Save(ctx, userID, model.FlexibleState{
			LastComfortRun: legacy.LastComfortRun,
			LastEcoRun:     legacy.LastEcoRun,
		}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		imported++
	}
	if err := s.setMeta(ctx, legacyImportMarker, time.Now().UTC().Format(time.RFC3339)); err != nil {
		errs = append(errs, fmt.Errorf("record import marker: %w", err))
	}
	return imported, errs
}
