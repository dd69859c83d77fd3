package process

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/spf13/afero"
	"github.com/tauraamui/dragoneye/pkg/camera"
	"github.com/tauraamui/dragoneye/pkg/video/snapshot"
)

func TestWriteSnapshotReplacesLatest(t *testing.T) {
	is := is.New(t)
	mfs := afero.NewMemMapFs()
	defer overloadFs(mfs)()

	cam := &fakeCamera{title: "Front", state: camera.Connected, image: []byte("first"), format: snapshot.JPEG}
	is.NoErr(writeSnapshot(cam, "/snapshots"))

	cam.image = []byte("second")
	is.NoErr(writeSnapshot(cam, "/snapshots"))

	b, err := afero.ReadFile(mfs, "/snapshots/Front/latest.jpg")
	is.NoErr(err)
	is.Equal(string(b), "second")

	_, err = mfs.Stat("/snapshots/Front/latest.jpg.tmp")
	is.True(errors.Is(err, os.ErrNotExist))
}

func TestWriteSnapshotWithoutFrameWritesNothing(t *testing.T) {
	is := is.New(t)
	mfs := afero.NewMemMapFs()
	defer overloadFs(mfs)()

	cam := &fakeCamera{title: "Front", format: snapshot.PNG}
	is.NoErr(writeSnapshot(cam, "/snapshots"))

	exists, err := afero.Exists(mfs, "/snapshots/Front/latest.png")
	is.NoErr(err)
	is.True(!exists)
}

func TestWriteSnapshotReadOnlyFs(t *testing.T) {
	is := is.New(t)
	defer overloadFs(afero.NewReadOnlyFs(afero.NewMemMapFs()))()

	cam := &fakeCamera{title: "Front", image: []byte("img"), format: snapshot.PNG}
	err := writeSnapshot(cam, "/snapshots")
	is.True(err != nil)
}

func TestSnapshotProcessWritesPeriodically(t *testing.T) {
	is := is.New(t)
	mfs := afero.NewMemMapFs()
	defer overloadFs(mfs)()

	cam := &fakeCamera{title: "Front", image: []byte("img"), format: snapshot.PNG}
	proc := New(Settings{Process: SnapshotProcess(cam, "/snapshots", 5*time.Millisecond)})
	proc.Start()

	deadline := time.After(time.Second)
	for {
		exists, err := afero.Exists(mfs, "/snapshots/Front/latest.png")
		is.NoErr(err)
		if exists {
			break
		}
		select {
		case <-deadline:
			t.Fatal("snapshot was not written")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	proc.Stop()
	proc.Wait()
}
