package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/tacusci/logging/v2"
	"github.com/takama/daemon"
	"github.com/tauraamui/dragoneye/pkg/config"
	"github.com/tauraamui/dragoneye/pkg/configdef"
	db "github.com/tauraamui/dragoneye/pkg/database"
	"github.com/tauraamui/dragoneye/pkg/dragon"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/backend"
	"gocv.io/x/gocv"
)

const (
	name        = "dragon_eye"
	description = "Dragon eye service daemon which decodes, snapshots and records network camera streams"
)

type Service struct {
	daemon.Daemon
}

// Setup creates the default config file and the recordings catalog.
func (service *Service) Setup() (string, error) {
	log.Info("Setting up dragoneye service...")

	err := config.DefaultCreator().Create()
	if err != nil {
		if !errors.Is(err, configdef.ErrConfigAlreadyExists) {
			return "", err
		}
		log.Error(err.Error())
	}

	err = db.Setup(databasePath())
	if err != nil {
		if !errors.Is(err, db.ErrDBAlreadyExists) {
			return "", err
		}
		log.Error(err.Error())
	}

	return "Setup successful...", nil
}

func (service *Service) RemoveSetup() (string, error) {
	log.Info("Removing setup for dragoneye service...")
	if err := db.Destroy(databasePath()); err != nil {
		log.Error(err.Error())
	}

	if err := config.DefaultDestroyer().Destroy(); err != nil {
		log.Error("unable to delete config file: %v", err)
	}

	return "Removing setup successful...", nil
}

func databasePath() string {
	cfg, err := config.DefaultResolver().Resolve()
	if err != nil {
		log.Debug("unable to load config, using default database location: %v", err)
		return ""
	}
	return cfg.DatabasePath
}

func (service *Service) Manage() (string, error) {
	usage := "Usage: dragoneye setup | remove-setup | install | remove | start | stop | status"

	if len(os.Args) > 1 {
		command := os.Args[1]
		switch command {
		case "setup":
			return service.Setup()
		case "remove-setup":
			return service.RemoveSetup()
		case "install":
			return service.Install()
		case "remove":
			return service.Remove()
		case "start":
			return service.Start()
		case "stop":
			return service.Stop()
		case "status":
			return service.Status()
		default:
			return usage, nil
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	log.Info("Starting dragon eye...")

	var b backend.Backend
	if override := os.Getenv("DRAGON_VIDEO_BACKEND"); len(override) > 0 {
		b = backend.Resolve(override)
	}

	server, err := dragon.NewServer(config.DefaultResolver(), b)
	if err != nil {
		log.Fatal(err.Error())
	}

	ctx, cancelStartup := context.WithCancel(context.Background())
	go startupServer(ctx, server)

	killSignal := <-interrupt
	fmt.Print("\r")
	log.Error("Received signal: %s", killSignal)

	cancelStartup()
	log.Info("Shutting down server...")
	<-server.Shutdown()

	if logging.CurrentLoggingLevel == logging.DebugLevel {
		var buf bytes.Buffer
		if err := gocv.MatProfile.WriteTo(&buf, 1); err == nil {
			fmt.Print(buf.String())
		}
	}

	return "Shutdown successful... BYE! 👋", nil
}

func startupServer(ctx context.Context, server *dragon.Server) {
	connectToCameras(ctx, server)
	if ctx.Err() != nil {
		return
	}
	server.SetupProcesses()
	server.RunProcesses()
}

func connectToCameras(ctx context.Context, server *dragon.Server) {
	errs := server.ConnectWithCancel(ctx)
	for _, err := range errs {
		log.Error(err.Error())
	}
}

func init() {
	logging.CallbackLabelLevel = 5
	logging.ColorLogLevelLabelOnly = true
	loggingLevel := os.Getenv("DRAGON_LOGGING_LEVEL")

	switch strings.ToLower(loggingLevel) {
	case "info":
		logging.CurrentLoggingLevel = logging.InfoLevel
	case "warn":
		logging.CurrentLoggingLevel = logging.WarnLevel
	case "debug":
		logging.CurrentLoggingLevel = logging.DebugLevel
		logging.CallbackLabel = true
	default:
		logging.CurrentLoggingLevel = logging.WarnLevel
	}
}

func main() {
	daemonType := daemon.SystemDaemon
	if runtime.GOOS == "darwin" {
		daemonType = daemon.UserAgent
	}

	srv, err := daemon.New(name, description, daemonType)
	if err != nil {
		logging.Error(err.Error()) //nolint
		os.Exit(1)
	}

	service := &Service{srv}
	status, err := service.Manage()
	if err != nil {
		logging.Error(err.Error()) //nolint
		os.Exit(1)
	}

	logging.Info(status) //nolint
}
