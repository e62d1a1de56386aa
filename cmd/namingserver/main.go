// Command namingserver runs the naming service: it exposes a client port
// (isDirectory, list, createFile, createDirectory, delete, getStorage) and
// a registration port storage servers dial at startup, reachable by every
// dfs client and storage server in the deployment.
package main

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/gops/agent"
	"github.com/nicolagi/dfs/internal/config"
	"github.com/nicolagi/dfs/internal/naming"
	"github.com/nicolagi/dfs/internal/rmi"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := agent.Listen(agent.Options{}); err != nil {
		log.Printf("Could not start gops agent: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	base := flag.String("base", config.DefaultBaseDirectoryPath, "Base directory for configuration and logs")
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

	svc := naming.NewService(cfg.ReplicateAtOrDefault(), log.StandardLogger())

	clientSk, err := rmi.NewSkeleton(naming.ClientInterface, naming.NewClientServer(svc), cfg.NamingClientAddr)
	if err != nil {
		log.Fatalf("Could not build client skeleton: %v", err)
	}
	if err := clientSk.Start(); err != nil {
		log.Fatalf("Could not start client skeleton on %q: %v", cfg.NamingClientAddr, err)
	}
	log.Infof("Naming service client port listening on %s", clientSk.Addr())

	registerSk, err := rmi.NewSkeleton(naming.RegisterInterface, naming.NewRegisterServer(svc), cfg.NamingRegisterAddr)
	if err != nil {
		log.Fatalf("Could not build registration skeleton: %v", err)
	}
	if err := registerSk.Start(); err != nil {
		log.Fatalf("Could not start registration skeleton on %q: %v", cfg.NamingRegisterAddr, err)
	}
	log.Infof("Naming service registration port listening on %s", registerSk.Addr())

	<-sigc
	log.Info("Shutting down naming service")
	registerSk.Stop()
	clientSk.Stop()
}
