package process

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/tauraamui/dragoneye/pkg/database/models"
	"github.com/tauraamui/dragoneye/pkg/video/remux"
)

type fakeRecordingCatalog struct {
	created []models.Recording
	err     error
}

func (c *fakeRecordingCatalog) Create(rec *models.Recording) error {
	if c.err != nil {
		return c.err
	}
	c.created = append(c.created, *rec)
	return nil
}

func TestCatalogRecordingsStoresSummary(t *testing.T) {
	is := is.New(t)

	catalog := &fakeRecordingCatalog{}
	onClosed := CatalogRecordings("Front", catalog)
	onClosed(remux.Summary{
		Path:    "/r/Front/2021-03-17/a.mp4",
		Started: base,
		Ended:   base.Add(time.Minute),
		Packets: 1500,
		Bytes:   2 << 20,
		Skipped: 12,
	})

	is.Equal(len(catalog.created), 1)
	rec := catalog.created[0]
	is.Equal(rec.CameraTitle, "Front")
	is.Equal(rec.Path, "/r/Front/2021-03-17/a.mp4")
	is.Equal(rec.Duration(), time.Minute)
	is.Equal(rec.Packets, int64(1500))
	is.Equal(rec.Bytes, int64(2<<20))
	is.Equal(rec.Skipped, int64(12))
}

func TestCatalogRecordingsSkipsEmptyRecordings(t *testing.T) {
	is := is.New(t)

	catalog := &fakeRecordingCatalog{}
	CatalogRecordings("Front", catalog)(remux.Summary{Path: "/r/a.mp4"})
	is.Equal(len(catalog.created), 0)
}

func TestCatalogRecordingsLogsErrors(t *testing.T) {
	is := is.New(t)

	var errorLogs []string
	defer overloadErrorLog(func(format string, a ...interface{}) {
		errorLogs = append(errorLogs, fmt.Sprintf(format, a...))
	})()

	CatalogRecordings("Front", &fakeRecordingCatalog{err: errors.New("disk I/O error")})(remux.Summary{Path: "/r/a.mp4", Packets: 1})
	is.Equal(errorLogs, []string{"Unable to catalog recording /r/a.mp4: disk I/O error"})
}

type fakeArchiver struct {
	mu    sync.Mutex
	calls int
}

func (a *fakeArchiver) Pending(context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return 1, nil
}

func (a *fakeArchiver) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func TestArchiveProcessRunsPeriodically(t *testing.T) {
	is := is.New(t)

	archiver := &fakeArchiver{}
	proc := New(Settings{Process: ArchiveProcess(archiver, 2*time.Millisecond)})
	proc.Start()

	deadline := time.After(time.Second)
	for archiver.count() < 3 {
		select {
		case <-deadline:
			t.Fatal("archive process did not repeat")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	proc.Stop()
	proc.Wait()

	calls := archiver.count()
	time.Sleep(10 * time.Millisecond)
	is.Equal(archiver.count(), calls) // nothing runs after wait returns
}
