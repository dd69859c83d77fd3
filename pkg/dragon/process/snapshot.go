package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/xerror"
)

var fs = afero.NewOsFs()

// SnapshotPath is <dir>/<title>/latest.<ext>.
func SnapshotPath(dir, title, ext string) string {
	return filepath.Join(dir, title, "latest."+ext)
}

func SnapshotProcess(cam Camera, dir string, interval time.Duration) func(context.Context) []chan interface{} {
	return Every(interval, func(context.Context) {
		if err := writeSnapshot(cam, dir); err != nil {
			log.Error(fmt.Errorf("Unable to write snapshot for camera [%s]: %w", cam.Title(), err).Error())
		}
	}, nil)
}

// writeSnapshot replaces the camera's latest snapshot. Nothing is written
// while there is no frame to capture.
func writeSnapshot(cam Camera, dir string) error {
	img, ok := cam.CaptureFrame()
	if !ok {
		log.Debug("No frame to snapshot for camera [%s]", cam.Title())
		return nil
	}

	path := SnapshotPath(dir, cam.Title(), string(cam.SnapshotFormat()))
	if err := fs.MkdirAll(filepath.Dir(path), os.ModeDir|os.ModePerm); err != nil {
		return xerror.Errorf("unable to create snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, img, 0644); err != nil {
		return xerror.Errorf("unable to write snapshot: %w", err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		return xerror.Errorf("unable to replace snapshot %s: %w", path, err)
	}
	return nil
}
