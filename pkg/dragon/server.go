package dragon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tauraamui/dragoneye/pkg/archive"
	"github.com/tauraamui/dragoneye/pkg/camera"
	"github.com/tauraamui/dragoneye/pkg/configdef"
	data "github.com/tauraamui/dragoneye/pkg/database"
	"github.com/tauraamui/dragoneye/pkg/database/dbconn"
	"github.com/tauraamui/dragoneye/pkg/database/repos"
	"github.com/tauraamui/dragoneye/pkg/dragon/process"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/backend"
	"github.com/tauraamui/dragoneye/pkg/video/snapshot"
	"github.com/tauraamui/xerror"
	"golang.org/x/sync/errgroup"
)

const archiveInterval = time.Minute

var ErrCameraConnectTimeout = xerror.New("timed out waiting for camera connection")

type Server struct {
	configResolver configdef.Resolver
	backend        backend.Backend
	config         configdef.Values
	images         snapshot.ImageEncoder

	db         dbconn.GormWrapper
	recordings *repos.RecordingRepository
	archiver   *archive.Archiver

	mu              sync.Mutex
	cameras         []*camera.Session
	coreProcesses   []process.Process
	serverProcesses []process.Process
	closed          bool
	shutdownOnce    sync.Once
	shutdownDone    chan interface{}
}

// NewServer loads configuration from cr. When b is nil the video backend
// named in the configuration is used.
func NewServer(cr configdef.Resolver, b backend.Backend) (*Server, error) {
	s := &Server{configResolver: cr, backend: b}
	if err := s.LoadConfiguration(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) LoadConfiguration() error {
	cfg, err := s.configResolver.Resolve()
	if err != nil {
		return err
	}

	images, err := snapshot.NewImageEncoder(cfg.SnapshotEncoder, snapshotFormat(cfg.SnapshotFormat), cfg.SnapshotQuality)
	if err != nil {
		return err
	}

	s.config = cfg
	s.images = images
	if s.backend == nil {
		s.backend = backend.Resolve(cfg.VideoBackend)
	}
	return nil
}

func (s *Server) Connect() []error {
	return s.ConnectWithCancel(context.Background())
}

// ConnectWithCancel starts a session per enabled camera and waits for each
// one's first connection attempt to settle. Cameras which fail are kept
// and carry on reconnecting in the background.
func (s *Server) ConnectWithCancel(ctx context.Context) []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	if err := s.openCatalog(); err != nil {
		return []error{err}
	}

	var (
		errsMu sync.Mutex
		errs   []error
	)

	g := errgroup.Group{}
	for _, cam := range s.config.Cameras {
		select {
		case <-ctx.Done():
			return errs
		default:
		}

		if cam.Disabled {
			log.Warn("Camera [%s] is disabled... skipping...", cam.Title)
			continue
		}

		sett := cameraSettings(cam)
		sess := camera.New(cam.Title, sett, s.backend, s.images)
		if s.recordings != nil {
			sess.OnRecordingClosed(process.CatalogRecordings(cam.Title, s.recordings))
		}
		s.cameras = append(s.cameras, sess)

		g.Go(func() error {
			log.Info("Connecting to camera: [%s]...", sess.Title())
			if err := connectToCamera(ctx, sess, connectTimeout(sett)); err != nil {
				log.Warn("Unable to connect to camera [%s], will keep retrying: %v", sess.Title(), err)
				errsMu.Lock()
				errs = append(errs, err)
				errsMu.Unlock()
				return nil
			}
			log.Info("Connected successfully to camera: [%s]", sess.Title())
			return nil
		})
	}
	g.Wait() //nolint

	return errs
}

func connectToCamera(ctx context.Context, sess *camera.Session, timeout time.Duration) error {
	settled := make(chan error, 1)
	unsubscribe := sess.OnStateChange(func(c camera.StateChange) {
		var err error
		switch c.Current {
		case camera.Connected:
		case camera.Error:
			err = errors.New("camera connection failed")
			if len(c.Err) > 0 {
				err = errors.New(c.Err)
			}
		default:
			return
		}
		select {
		case settled <- err:
		default:
		}
	})
	defer unsubscribe()

	sess.Start(ctx)

	select {
	case err := <-settled:
		if err != nil {
			return xerror.Errorf("camera [%s]: %w", sess.Title(), err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return xerror.Errorf("camera [%s]: %w", sess.Title(), ErrCameraConnectTimeout)
	}
}

func (s *Server) recordsAnything() bool {
	for _, cam := range s.config.Cameras {
		if cam.Record && !cam.Disabled {
			return true
		}
	}
	return false
}

func (s *Server) openCatalog() error {
	if !s.recordsAnything() && !s.config.Archive.Enabled {
		return nil
	}

	db, err := data.Connect(s.config.DatabasePath)
	if err != nil {
		return xerror.Errorf("unable to open recordings catalog: %w", err)
	}
	s.db = db
	s.recordings = &repos.RecordingRepository{DB: db}

	if s.config.Archive.Enabled {
		uploader, err := archive.NewS3Uploader(s.config.Archive)
		if err != nil {
			return err
		}
		s.archiver = archive.New(uploader, s.recordings, s.config.Archive.Prefix, s.config.Archive.DeleteAfterUpload)
	}
	return nil
}

func (s *Server) SetupProcesses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for i, sess := range s.cameras {
		cam := s.cameraConfig(sess.Title())
		proc := process.NewCoreProcess(s.cameras[i], coreSettings(s.config, cam)).Setup()
		s.coreProcesses = append(s.coreProcesses, proc)
	}

	if s.config.MaxRecordingAgeInDays > 0 && (s.recordings != nil || len(s.config.RecordingDir) > 0) {
		var catalog process.RetentionCatalog
		if s.recordings != nil {
			catalog = s.recordings
		}
		maxAge := time.Duration(s.config.MaxRecordingAgeInDays) * 24 * time.Hour
		s.serverProcesses = append(s.serverProcesses, process.New(process.Settings{
			WaitForShutdownMsg: "Stopping deleting old recordings...",
			Process:            process.DeleteOldRecordings(catalog, s.config.RecordingDir, maxAge),
		}))
	}

	if s.archiver != nil {
		s.serverProcesses = append(s.serverProcesses, process.New(process.Settings{
			WaitForShutdownMsg: "Stopping archiving recordings...",
			Process:            process.ArchiveProcess(s.archiver, archiveInterval),
		}))
	}
}

func (s *Server) cameraConfig(title string) configdef.Camera {
	for _, cam := range s.config.Cameras {
		if cam.Title == title {
			return cam
		}
	}
	return configdef.Camera{Title: title}
}

func (s *Server) RunProcesses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, proc := range s.coreProcesses {
		proc.Start()
	}
	for _, proc := range s.serverProcesses {
		proc.Start()
	}
}

func (s *Server) shutdownProcesses() {
	wg := sync.WaitGroup{}
	procs := append(append([]process.Process{}, s.coreProcesses...), s.serverProcesses...)
	wg.Add(len(procs))
	for _, proc := range procs {
		go func(wg *sync.WaitGroup, proc process.Process) {
			proc.Stop()
			proc.Wait()
			wg.Done()
		}(&wg, proc)
	}
	wg.Wait()
}

func (s *Server) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.shutdownProcesses()

	g := errgroup.Group{}
	for _, sess := range s.cameras {
		sess := sess
		g.Go(func() error {
			log.Info("Closing camera [%s] video stream...", sess.Title())
			return sess.Close()
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("Unable to close camera: %v", err)
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Error("Unable to close recordings catalog: %v", err)
		}
	}

	close(s.shutdownDone)
}

// Shutdown stops every process and camera session in the background. The
// returned channel is closed once everything has stopped.
func (s *Server) Shutdown() chan interface{} {
	s.shutdownOnce.Do(func() {
		s.shutdownDone = make(chan interface{})
		go s.shutdown()
	})
	return s.shutdownDone
}

// Cameras returns the running camera sessions.
func (s *Server) Cameras() []*camera.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*camera.Session{}, s.cameras...)
}
