package process

import (
	"context"
	"testing"
	"time"

	"github.com/matryer/is"
)

type mockProc struct {
	onStart func()
	onStop  func()
	onWait  func()
}

func (m *mockProc) Setup() Process { return m }

func (m *mockProc) Start() {
	if m.onStart != nil {
		m.onStart()
	}
}

func (m *mockProc) Stop() {
	if m.onStop != nil {
		m.onStop()
	}
}

func (m *mockProc) Wait() {
	if m.onWait != nil {
		m.onWait()
	}
}

func TestNewCoreProcess(t *testing.T) {
	is := is.New(t)
	proc := NewCoreProcess(&fakeCamera{title: "Front"}, CoreSettings{})

	is.True(proc != nil)
}

func TestCoreProcessSetup(t *testing.T) {
	is := is.New(t)

	proc := NewCoreProcess(&fakeCamera{title: "Front"}, CoreSettings{
		Record:           &RecordSettings{Dir: "/r"},
		SnapshotDir:      "/s",
		SnapshotInterval: time.Second,
	}).Setup().(*cameraProcesses)
	is.True(proc.record != nil)
	is.True(proc.snapshots != nil)

	bare := NewCoreProcess(&fakeCamera{title: "Front"}, CoreSettings{SnapshotInterval: time.Second}).Setup().(*cameraProcesses)
	is.True(bare.record == nil)
	is.True(bare.snapshots == nil) // no directory to write into
}

func TestCoreProcessStartStopWait(t *testing.T) {
	is := is.New(t)
	proc := NewCoreProcess(&fakeCamera{title: "Front"}, CoreSettings{}).(*cameraProcesses)

	var calls []string
	record := func(name string) func() { return func() { calls = append(calls, name) } }
	proc.record = &mockProc{onStart: record("record start"), onStop: record("record stop"), onWait: record("record wait")}
	proc.snapshots = &mockProc{onStart: record("snapshot start"), onStop: record("snapshot stop")}

	proc.Start()
	proc.Stop()
	is.Equal(calls, []string{"record start", "snapshot start", "record stop", "snapshot stop"})

	proc.Wait()
	is.Equal(calls[len(calls)-1], "record wait")
}

func TestProcessLogsShutdownMessage(t *testing.T) {
	is := is.New(t)

	var infoLogs []string
	defer overloadInfoLog(func(format string, a ...interface{}) {
		infoLogs = append(infoLogs, format)
	})()

	ticks := 0
	proc := New(Settings{
		WaitForShutdownMsg: "Stopping test process...",
		Process:            Every(time.Hour, func(_ context.Context) { ticks++ }, nil),
	})
	proc.Start()
	proc.Stop()
	proc.Wait()

	is.Equal(ticks, 1)
	is.Equal(infoLogs, []string{"Stopping test process..."})
}
