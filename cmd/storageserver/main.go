// Command storageserver runs one storage server: it exposes a client port
// (size, read, write) and a command port (create, delete, copy) backed by
// a local Backend, and registers itself with the naming service at
// startup, offering the files it already holds.
package main

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/nicolagi/dfs/internal/config"
	"github.com/nicolagi/dfs/internal/dpath"
	"github.com/nicolagi/dfs/internal/naming"
	"github.com/nicolagi/dfs/internal/rmi"
	"github.com/nicolagi/dfs/internal/storageiface"
	"github.com/nicolagi/dfs/internal/storageserver"
	log "github.com/sirupsen/logrus"
)

func buildBackend(cfg *config.C) (storageserver.Backend, []dpath.Path, error) {
	switch cfg.Storage {
	case "", "disk":
		dir := cfg.DiskStoreDirPath()
		if err := os.MkdirAll(dir, 0777); err != nil {
			return nil, nil, err
		}
		b := storageserver.NewDiskBackend(dir)
		files, err := b.List()
		if err != nil {
			return nil, nil, err
		}
		return b, files, nil
	case "s3":
		b, err := storageserver.NewS3Backend(cfg.S3Region, cfg.S3Bucket, cfg.S3Profile)
		if err != nil {
			return nil, nil, err
		}
		// Unlike DiskBackend, S3Backend does not enumerate existing
		// objects at startup: ListObjects pagination and eventual
		// consistency make a reliable "what do I already host" answer
		// impractical at boot. An s3-backed server comes up empty from
		// the naming service's point of view and only accrues files via
		// subsequent Create/Copy calls.
		return b, nil, nil
	default:
		log.Fatalf("Unknown storage kind %q", cfg.Storage)
		return nil, nil, nil
	}
}

// registerWithBackoff registers this storage server with the naming
// service, retrying with a capped exponential backoff until it succeeds.
// A freshly started naming service and a freshly started storage server
// have no startup ordering guarantee in this deployment, so the storage
// server is the one that waits.
func registerWithBackoff(namingAddr, clientAddr, commandAddr string, files []dpath.Path) {
	delay := 500 * time.Millisecond
	const maxDelay = 30 * time.Second
	for {
		stub, err := naming.NewRegisterStub(namingAddr)
		if err == nil {
			duplicates, err := stub.Register(clientAddr, commandAddr, files)
			if err == nil {
				if len(duplicates) > 0 {
					log.Warnf("Naming service reports %d duplicate file(s) already hosted elsewhere", len(duplicates))
				}
				log.Infof("Registered with naming service at %s, offering %d file(s)", namingAddr, len(files))
				return
			}
			log.Warnf("Registration attempt failed: %v", err)
		} else {
			log.Warnf("Could not build registration stub: %v", err)
		}
		time.Sleep(delay)
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func main() {
	if err := agent.Listen(agent.Options{}); err != nil {
		log.Printf("Could not start gops agent: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	base := flag.String("base", config.DefaultBaseDirectoryPath, "Base directory for configuration, logs and local storage")
	var logLevel string
	var levels []string
	for _, l := range log.AllLevels {
		levels = append(levels, l.String())
	}
	flag.StringVar(&logLevel, "verbosity", "info", "sets the log `level`, among "+strings.Join(levels, ", "))
	flag.Parse()

	ll, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Fatalf("Could not parse log level %q: %v", logLevel, err)
	}
	log.SetLevel(ll)

	cfg, err := config.Load(*base)
	if err != nil {
		log.Fatalf("Could not load config from %q: %v", *base, err)
	}

	backend, files, err := buildBackend(cfg)
	if err != nil {
		log.Fatalf("Could not build storage backend: %v", err)
	}

	clientSk, err := rmi.NewSkeleton(storageiface.ClientInterface, storageserver.NewClientServer(backend), cfg.StorageClientAddr)
	if err != nil {
		log.Fatalf("Could not build client skeleton: %v", err)
	}
	if err := clientSk.Start(); err != nil {
		log.Fatalf("Could not start client skeleton on %q: %v", cfg.StorageClientAddr, err)
	}
	log.Infof("Storage client port listening on %s", clientSk.Addr())

	commandSk, err := rmi.NewSkeleton(storageiface.CommandInterface, storageserver.NewCommandServer(backend), cfg.StorageCommandAddr)
	if err != nil {
		log.Fatalf("Could not build command skeleton: %v", err)
	}
	if err := commandSk.Start(); err != nil {
		log.Fatalf("Could not start command skeleton on %q: %v", cfg.StorageCommandAddr, err)
	}
	log.Infof("Storage command port listening on %s", commandSk.Addr())

	go registerWithBackoff(cfg.NamingAddr, clientSk.Addr(), commandSk.Addr(), files)

	<-sigc
	log.Info("Shutting down storage server")
	commandSk.Stop()
	clientSk.Stop()
}
