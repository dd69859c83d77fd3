package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/tauraamui/dragoneye/pkg/database/models"
	"github.com/tauraamui/dragoneye/pkg/log"
)

const RetentionInterval = 5 * time.Minute

type RetentionCatalog interface {
	EndedBefore(time.Time) ([]models.Recording, error)
	Delete(*models.Recording) error
	InDirectory(dir string) ([]models.Recording, error)
}

// DeleteOldRecordings removes recordings older than maxAge from disk and
// the catalog, along with any date directories entirely older than that.
func DeleteOldRecordings(catalog RetentionCatalog, dir string, maxAge time.Duration) func(context.Context) []chan interface{} {
	return Every(RetentionInterval, func(context.Context) {
		deleted, err := deleteOldRecordings(catalog, dir, TimeNow().Add(-maxAge))
		if err != nil {
			log.Error(fmt.Errorf("Unable to delete old recordings: %w", err).Error())
		}
		if deleted > 0 {
			log.Info("Deleted %d old recordings", deleted)
		}
	}, nil)
}

func deleteOldRecordings(catalog RetentionCatalog, dir string, cutoff time.Time) (int, error) {
	deleted := 0
	if catalog != nil {
		recs, err := catalog.EndedBefore(cutoff)
		if err != nil {
			return 0, err
		}
		for i := range recs {
			rec := &recs[i]
			if err := fs.Remove(rec.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Error("Unable to delete recording %s: %v", rec.Path, err)
				continue
			}
			if err := catalog.Delete(rec); err != nil {
				log.Error("Unable to remove recording %s from catalog: %v", rec.Path, err)
				continue
			}
			deleted++
		}
	}

	if len(dir) == 0 {
		return deleted, nil
	}
	return deleted, sweepDateDirs(catalog, dir, cutoff)
}

// sweepDateDirs clears <dir>/<title>/<yyyy-mm-dd> directories whose whole
// day falls before cutoff, catching files the catalog never saw. A day
// still holding catalogued recordings is left for the catalog to expire.
func sweepDateDirs(catalog RetentionCatalog, dir string, cutoff time.Time) error {
	cameras, err := afero.ReadDir(fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	for _, cam := range cameras {
		if !cam.IsDir() {
			continue
		}
		camDir := filepath.Join(dir, cam.Name())
		days, err := afero.ReadDir(fs, camDir)
		if err != nil {
			return err
		}
		for _, day := range days {
			date, err := time.ParseInLocation("2006-01-02", day.Name(), cutoff.Location())
			if err != nil || !day.IsDir() {
				continue
			}
			if date.AddDate(0, 0, 1).After(cutoff) {
				continue
			}
			dayDir := filepath.Join(camDir, day.Name())
			if catalog != nil {
				recs, err := catalog.InDirectory(dayDir)
				if err != nil {
					return err
				}
				if len(recs) > 0 {
					log.Debug("Keeping %s, it holds %d catalogued recordings", dayDir, len(recs))
					continue
				}
			}
			log.Debug("Removing old recordings directory %s", dayDir)
			if err := fs.RemoveAll(dayDir); err != nil {
				return err
			}
		}
	}
	return nil
}
