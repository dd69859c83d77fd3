package archive

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/tauraamui/dragoneye/pkg/database/models"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/xerror"
)

var fs = afero.NewOsFs()

type Catalog interface {
	Unarchived() ([]models.Recording, error)
	MarkArchived(*models.Recording, string) error
}

// Archiver copies finished recordings off site and records that in the
// catalog.
type Archiver struct {
	uploader    Uploader
	catalog     Catalog
	prefix      string
	deleteAfter bool
}

func New(uploader Uploader, catalog Catalog, prefix string, deleteAfterUpload bool) *Archiver {
	return &Archiver{
		uploader:    uploader,
		catalog:     catalog,
		prefix:      prefix,
		deleteAfter: deleteAfterUpload,
	}
}

// Key places a recording under <prefix>/<camera>/<yyyy-mm-dd>/<file>.
func (a *Archiver) Key(rec models.Recording) string {
	return path.Join(a.prefix, rec.CameraTitle, rec.StartedAt.Format("2006-01-02"), filepath.Base(rec.Path))
}

func (a *Archiver) Archive(ctx context.Context, rec *models.Recording) error {
	if rec.Archived {
		return nil
	}

	file, err := fs.Open(rec.Path)
	if err != nil {
		return xerror.Errorf("unable to open recording %s: %w", rec.Path, err)
	}
	defer file.Close()

	key := a.Key(*rec)
	location, err := a.uploader.Upload(ctx, key, file)
	if err != nil {
		return err
	}
	log.Debug("Uploaded recording %s to %s", rec.Path, location)

	if err := a.catalog.MarkArchived(rec, key); err != nil {
		return err
	}

	if a.deleteAfter {
		if err := fs.Remove(rec.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return xerror.Errorf("unable to remove archived recording %s: %w", rec.Path, err)
		}
	}
	return nil
}

// Pending archives every recording not yet archived, returning how many
// succeeded. Individual failures are logged and left for the next pass.
func (a *Archiver) Pending(ctx context.Context) (int, error) {
	recs, err := a.catalog.Unarchived()
	if err != nil {
		return 0, err
	}

	archived := 0
	for i := range recs {
		if err := ctx.Err(); err != nil {
			return archived, err
		}
		if err := a.Archive(ctx, &recs[i]); err != nil {
			log.Error("Unable to archive recording: %v", err)
			continue
		}
		archived++
	}
	return archived, nil
}
