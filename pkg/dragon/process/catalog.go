package process

import (
	"context"
	"fmt"
	"time"

	"github.com/tauraamui/dragoneye/pkg/database/models"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/remux"
)

type RecordingCatalog interface {
	Create(*models.Recording) error
}

// CatalogRecordings returns a callback storing each finished recording
// of the titled camera. Recordings which never started are skipped.
func CatalogRecordings(title string, catalog RecordingCatalog) func(remux.Summary) {
	return func(summary remux.Summary) {
		if summary.Packets == 0 {
			return
		}
		rec := models.Recording{
			CameraTitle: title,
			Path:        summary.Path,
			StartedAt:   summary.Started,
			EndedAt:     summary.Ended,
			Packets:     int64(summary.Packets),
			Bytes:       summary.Bytes,
			Skipped:     int64(summary.Skipped),
			Failed:      int64(summary.Failed),
		}
		if err := catalog.Create(&rec); err != nil {
			log.Error(fmt.Errorf("Unable to catalog recording %s: %w", summary.Path, err).Error())
		}
	}
}

type Archiver interface {
	Pending(context.Context) (int, error)
}

func ArchiveProcess(archiver Archiver, interval time.Duration) func(context.Context) []chan interface{} {
	return Every(interval, func(ctx context.Context) {
		archived, err := archiver.Pending(ctx)
		if err != nil && ctx.Err() == nil {
			log.Error(fmt.Errorf("Unable to archive recordings: %w", err).Error())
		}
		if archived > 0 {
			log.Info("Archived %d recordings", archived)
		}
	}, nil)
}
