package repos

import (
	"path/filepath"
	"time"

	"github.com/tauraamui/dragoneye/pkg/database/dbconn"
	"github.com/tauraamui/dragoneye/pkg/database/models"
	"github.com/tauraamui/xerror"
)

type RecordingRepository struct {
	DB dbconn.GormWrapper
}

func (r *RecordingRepository) Create(rec *models.Recording) error {
	return r.DB.Create(rec).Error()
}

func (r *RecordingRepository) FindByUUID(uuid string) (models.Recording, error) {
	rec := models.Recording{}
	if err := r.DB.Where("uuid = ?", uuid).First(&rec).Error(); err != nil {
		return rec, xerror.Errorf("recording of uuid %s not found", uuid)
	}

	return rec, nil
}

// ForCamera returns the camera's recordings, newest first.
func (r *RecordingRepository) ForCamera(title string) ([]models.Recording, error) {
	recs := []models.Recording{}
	if err := r.DB.Where("camera_title = ?", title).Order("started_at desc").Find(&recs).Error(); err != nil {
		return nil, xerror.Errorf("unable to list recordings for camera %s: %w", title, err)
	}
	return recs, nil
}

// EndedBefore returns recordings which finished before t, oldest first.
func (r *RecordingRepository) EndedBefore(t time.Time) ([]models.Recording, error) {
	recs := []models.Recording{}
	if err := r.DB.Where("ended_at < ?", t).Order("ended_at asc").Find(&recs).Error(); err != nil {
		return nil, xerror.Errorf("unable to list recordings ended before %s: %w", t.Format(time.RFC3339), err)
	}
	return recs, nil
}

// InDirectory returns recordings whose files live under dir.
func (r *RecordingRepository) InDirectory(dir string) ([]models.Recording, error) {
	recs := []models.Recording{}
	prefix := filepath.Clean(dir) + string(filepath.Separator)
	if err := r.DB.Where("path LIKE ?", prefix+"%").Find(&recs).Error(); err != nil {
		return nil, xerror.Errorf("unable to list recordings in %s: %w", dir, err)
	}
	return recs, nil
}

func (r *RecordingRepository) Unarchived() ([]models.Recording, error) {
	recs := []models.Recording{}
	if err := r.DB.Where("archived = ?", false).Order("ended_at asc").Find(&recs).Error(); err != nil {
		return nil, xerror.Errorf("unable to list unarchived recordings: %w", err)
	}
	return recs, nil
}

func (r *RecordingRepository) MarkArchived(rec *models.Recording, key string) error {
	if err := r.DB.Model(rec).Updates(map[string]interface{}{"archived": true, "archive_key": key}).Error(); err != nil {
		return xerror.Errorf("unable to mark recording %s archived: %w", rec.UUID, err)
	}
	rec.Archived, rec.ArchiveKey = true, key
	return nil
}

func (r *RecordingRepository) Delete(rec *models.Recording) error {
	if err := r.DB.Delete(rec).Error(); err != nil {
		return xerror.Errorf("unable to delete recording %s: %w", rec.UUID, err)
	}
	return nil
}
