package process

import (
	"fmt"
	"sync"
	"time"
)

type CoreSettings struct {
	// Record is nil when the camera does not record.
	Record           *RecordSettings
	SnapshotDir      string
	SnapshotInterval time.Duration
}

func NewCoreProcess(cam Camera, sett CoreSettings) Process {
	return &cameraProcesses{cam: cam, sett: sett}
}

type cameraProcesses struct {
	cam       Camera
	sett      CoreSettings
	record    Process
	snapshots Process
}

func (proc *cameraProcesses) Setup() Process {
	if proc.sett.Record != nil {
		proc.record = New(Settings{
			WaitForShutdownMsg: fmt.Sprintf("Stopping recording camera [%s]...", proc.cam.Title()),
			Process:            RecordProcess(proc.cam, *proc.sett.Record),
		})
	}

	if proc.sett.SnapshotInterval > 0 && len(proc.sett.SnapshotDir) > 0 {
		proc.snapshots = New(Settings{
			WaitForShutdownMsg: fmt.Sprintf("Stopping snapshots for camera [%s]...", proc.cam.Title()),
			Process:            SnapshotProcess(proc.cam, proc.sett.SnapshotDir, proc.sett.SnapshotInterval),
		})
	}
	return proc
}

func (proc *cameraProcesses) each(fn func(Process)) {
	for _, p := range []Process{proc.record, proc.snapshots} {
		if p != nil {
			fn(p)
		}
	}
}

func (proc *cameraProcesses) Start() {
	proc.each(func(p Process) { p.Start() })
}

func (proc *cameraProcesses) Stop() {
	proc.each(func(p Process) { p.Stop() })
}

func (proc *cameraProcesses) Wait() {
	wg := sync.WaitGroup{}
	proc.each(func(p Process) {
		wg.Add(1)
		go func(p Process) {
			defer wg.Done()
			p.Wait()
		}(p)
	})
	wg.Wait()
}
