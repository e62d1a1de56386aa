// Package naming implements the naming service: the authority a client
// and a storage server both talk to, wiring together an in-memory
// internal/namespace.Tree, an internal/locktree.Tree guarding every path,
// and a registry of the storage servers that have registered, each
// reachable through a pair of internal/storageiface stubs.
//
// Service holds no RMI-specific state itself; rpc.go adapts it to the
// wire shapes exposed on the naming server's two ports, the way
// internal/storageserver.ClientServer adapts a Backend.
package naming

import (
	"sync"

	"github.com/nicolagi/dfs/internal/dfserr"
	"github.com/nicolagi/dfs/internal/dpath"
	"github.com/nicolagi/dfs/internal/locktree"
	"github.com/nicolagi/dfs/internal/namespace"
	"github.com/nicolagi/dfs/internal/storageiface"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// maxServerFailures is the number of consecutive command-interface
// failures after which the naming service prunes a storage server from
// the registry: round-robin selection and replication/invalidation
// targets stop considering it until it registers again. Naming state is
// not persisted, so there is nothing to reconcile on re-registration
// beyond the usual duplicate-file bookkeeping.
const maxServerFailures = 3

// registeredServer is one storage server known to the naming service: its
// two stubs, the set of files it currently hosts (kept in step with the
// namespace file nodes; Delete and invalidation take their hosts from the
// namespace, not from this set), and a running count of consecutive
// command-interface failures used for registry pruning.
type registeredServer struct {
	id       string
	client   storageiface.ClientStub
	command  storageiface.CommandStub
	files    map[string]struct{}
	failures int
}

// Service is the naming service's in-process state.
type Service struct {
	log   logrus.FieldLogger
	tree  *namespace.Tree
	locks *locktree.Tree

	mu      sync.Mutex
	servers map[string]*registeredServer
	order   []string // registration order, for round-robin host selection
	next    int
}

// NewService builds an empty naming service. replicateAt <= 0 selects
// locktree.DefaultReplicateAt.
func NewService(replicateAt int, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		log:     log,
		tree:    namespace.New(),
		locks:   locktree.New(replicateAt),
		servers: make(map[string]*registeredServer),
	}
}

// Register records a storage server reachable at clientAddr/commandAddr,
// hosting the given files. Every missing intermediate directory is
// created. A file already known to the namespace (because an earlier
// server registered it first) is reported back as a duplicate and its
// host is not added: the naming service, not the storage server, is
// authoritative for which server hosts a given path. A server is
// identified by its client address: registering the same client address
// twice fails with dfserr.ErrIllegalState.
func (s *Service) Register(clientAddr, commandAddr string, files []dpath.Path) ([]dpath.Path, error) {
	id := clientAddr

	s.mu.Lock()
	if _, dup := s.servers[id]; dup {
		s.mu.Unlock()
		return nil, errors.Wrapf(dfserr.ErrIllegalState, "storage server %s already registered", id)
	}
	s.mu.Unlock()

	clientStub, err := storageiface.NewClientStub(clientAddr)
	if err != nil {
		return nil, err
	}
	commandStub, err := storageiface.NewCommandStub(commandAddr)
	if err != nil {
		return nil, err
	}

	srv := &registeredServer{id: id, client: clientStub, command: commandStub, files: make(map[string]struct{})}

	var duplicates []dpath.Path
	for _, p := range files {
		if p.IsRoot() {
			continue
		}
		handle := s.locks.Lock(p, true)
		if s.tree.Exists(p) {
			duplicates = append(duplicates, p)
			handle.Unlock()
			continue
		}
		if err := s.tree.EnsureDirectories(p.Parent()); err != nil {
			handle.Unlock()
			return nil, err
		}
		if err := s.tree.AddFile(p, id); err != nil {
			handle.Unlock()
			return nil, err
		}
		srv.files[p.String()] = struct{}{}
		handle.Unlock()
	}

	s.mu.Lock()
	s.servers[id] = srv
	s.order = append(s.order, id)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"server": id, "files": len(files), "duplicates": len(duplicates)}).Info("naming: storage server registered")
	return duplicates, nil
}

// pickServer returns the next server in round-robin order, excluding any
// in exclude. It reports false if no eligible server is registered.
func (s *Service) pickServer(exclude map[string]struct{}) (*registeredServer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.order)
	for i := 0; i < n; i++ {
		id := s.order[(s.next+i)%n]
		if _, skip := exclude[id]; skip {
			continue
		}
		s.next = (s.next + i + 1) % n
		return s.servers[id], true
	}
	return nil, false
}

// noteCommandFailure records a failed command-interface call against id,
// pruning the server from the registry once it has failed
// maxServerFailures times in a row without an intervening success.
func (s *Service) noteCommandFailure(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	srv, ok := s.servers[id]
	if !ok {
		return
	}
	srv.failures++
	if srv.failures < maxServerFailures {
		return
	}
	delete(s.servers, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.log.WithField("server", id).Warn("naming: pruning unresponsive storage server from registry")
}

// noteCommandSuccess resets id's consecutive-failure count after a
// command-interface call succeeds.
func (s *Service) noteCommandSuccess(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if srv, ok := s.servers[id]; ok {
		srv.failures = 0
	}
}

// IsDirectory reports whether p names a directory.
func (s *Service) IsDirectory(p dpath.Path) (bool, error) {
	h := s.locks.Lock(p, false)
	defer h.Unlock()
	return s.tree.IsDirectory(p)
}

// List returns the names of p's children.
func (s *Service) List(p dpath.Path) ([]string, error) {
	h := s.locks.Lock(p, false)
	defer h.Unlock()
	return s.tree.List(p)
}

// CreateFile creates an empty file at p on a storage server chosen by
// round robin among those currently registered, and records it in the
// namespace. It fails with dfserr.ErrIllegalState if no storage server is
// registered yet, and propagates namespace.Tree.AddFile's errors for a
// missing parent or an existing name.
//
// It takes exclusive(parent(p)), not a lock on p itself: p does not exist
// yet, and namespace.Tree's AddFile mutates the parent directory's children
// map, not any node at p. Two concurrent creates under the same parent would
// otherwise both hold only a shared lock on it while writing to that map.
func (s *Service) CreateFile(p dpath.Path) error {
	h := s.locks.Lock(p.Parent(), true)
	defer h.Unlock()

	if s.tree.Exists(p) {
		return errors.Wrapf(dfserr.ErrExist, "%s", p)
	}
	if !p.IsRoot() {
		isDir, err := s.tree.IsDirectory(p.Parent())
		if err != nil {
			return err
		}
		if !isDir {
			return errors.Wrapf(dfserr.ErrIsFile, "%s", p.Parent())
		}
	}

	srv, ok := s.pickServer(nil)
	if !ok {
		return errors.Wrap(dfserr.ErrIllegalState, "naming: no storage server registered")
	}
	if _, err := srv.command.Create(p); err != nil {
		s.noteCommandFailure(srv.id)
		return err
	}
	s.noteCommandSuccess(srv.id)
	if err := s.tree.AddFile(p, srv.id); err != nil {
		// Roll back the storage-side create: the namespace insert is what
		// makes the file visible, so leaving the storage copy in place would
		// leave an orphaned file the namespace never learns about.
		if _, delErr := srv.command.Delete(p); delErr != nil {
			s.noteCommandFailure(srv.id)
			s.log.WithError(delErr).WithFields(logrus.Fields{"path": p.String(), "server": srv.id}).
				Warn("naming: failed to roll back storage create after namespace insert failed")
		} else {
			s.noteCommandSuccess(srv.id)
		}
		return err
	}
	s.mu.Lock()
	srv.files[p.String()] = struct{}{}
	s.mu.Unlock()
	return nil
}

// CreateDirectory creates an empty directory at p, taking
// exclusive(parent(p)) for the same reason as CreateFile: p does not exist
// yet, and AddDirectory mutates the parent's children map.
func (s *Service) CreateDirectory(p dpath.Path) error {
	h := s.locks.Lock(p.Parent(), true)
	defer h.Unlock()
	return s.tree.AddDirectory(p)
}

// Delete removes the subtree rooted at p, telling every storage server
// that hosted one of its files to delete its local copy. Storage-server
// failures are logged, not fatal: the namespace entry is gone either way,
// and deletion towards storage servers is best-effort.
func (s *Service) Delete(p dpath.Path) error {
	h := s.locks.Lock(p, true)
	defer h.Unlock()

	removed, err := s.tree.RemoveSubtree(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	for _, rf := range removed {
		for _, hostID := range rf.Hosts {
			if srv, ok := s.servers[hostID]; ok {
				delete(srv.files, rf.Path.String())
			}
		}
	}
	s.mu.Unlock()

	// Fan out the per-host delete calls concurrently with an errgroup: one
	// removed subtree can span many files across many
	// hosts, and there is no ordering dependency between any two of the
	// resulting Delete calls.
	var g errgroup.Group
	for _, rf := range removed {
		for _, hostID := range rf.Hosts {
			rf, hostID := rf, hostID
			srv, ok := s.servers[hostID]
			if !ok {
				continue
			}
			g.Go(func() error {
				if _, err := srv.command.Delete(rf.Path); err != nil {
					s.noteCommandFailure(hostID)
					s.log.WithError(err).WithFields(logrus.Fields{"path": rf.Path.String(), "server": hostID}).
						Warn("naming: storage server failed to delete file")
				} else {
					s.noteCommandSuccess(hostID)
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	return nil
}

// GetStorage returns a client stub for reading or writing the file at p.
// A non-exclusive (read) request increments the file's access counter
// (internal/locktree) and, if it just crossed the replication threshold,
// schedules a new replica in the background. An exclusive (write) request
// invalidates every replica but one before returning, resetting the
// access counter.
func (s *Service) GetStorage(p dpath.Path, exclusive bool) (storageiface.ClientStub, error) {
	h := s.locks.Lock(p, exclusive)

	hosts, err := s.tree.Hosts(p)
	if err != nil {
		h.Unlock()
		return storageiface.ClientStub{}, err
	}
	if len(hosts) == 0 {
		h.Unlock()
		return storageiface.ClientStub{}, errors.Wrapf(dfserr.ErrNotFound, "%s has no hosts", p)
	}

	if exclusive {
		keep := hosts[0]
		for _, hostID := range hosts[1:] {
			s.mu.Lock()
			srv, ok := s.servers[hostID]
			s.mu.Unlock()
			if !ok {
				continue
			}
			if _, err := srv.command.Delete(p); err != nil {
				s.noteCommandFailure(hostID)
				s.log.WithError(err).WithFields(logrus.Fields{"path": p.String(), "server": hostID}).
					Warn("naming: failed to invalidate replica")
				continue
			}
			s.noteCommandSuccess(hostID)
			s.mu.Lock()
			delete(srv.files, p.String())
			s.mu.Unlock()
		}
		if err := s.tree.SetHosts(p, []string{keep}); err != nil {
			h.Unlock()
			return storageiface.ClientStub{}, err
		}
		s.locks.ResetAccessCounter(p)
		hosts = []string{keep}
	}

	triggered := h.Triggered
	h.Unlock()

	s.mu.Lock()
	srv, ok := s.servers[hosts[0]]
	s.mu.Unlock()
	if !ok {
		return storageiface.ClientStub{}, errors.Wrapf(dfserr.ErrIllegalState, "host %s for %s vanished", hosts[0], p)
	}

	if triggered {
		go s.replicate(p, hosts)
	}

	return srv.client, nil
}

// replicate copies the file at p onto one storage server not already
// hosting it, chosen by round robin, and records the new host once the
// copy succeeds. It runs asynchronously from the GetStorage call that
// triggered it; failures are logged, since a missed replication is
// retried the next time the threshold is crossed.
func (s *Service) replicate(p dpath.Path, currentHosts []string) {
	exclude := make(map[string]struct{}, len(currentHosts))
	for _, h := range currentHosts {
		exclude[h] = struct{}{}
	}
	target, ok := s.pickServer(exclude)
	if !ok {
		s.log.WithField("path", p.String()).Debug("naming: no eligible server for replication")
		return
	}

	s.mu.Lock()
	source, ok := s.servers[currentHosts[0]]
	s.mu.Unlock()
	if !ok {
		return
	}

	if _, err := target.command.Copy(p, source.client); err != nil {
		s.noteCommandFailure(target.id)
		s.log.WithError(err).WithFields(logrus.Fields{"path": p.String(), "server": target.id}).
			Warn("naming: replication copy failed")
		return
	}
	s.noteCommandSuccess(target.id)

	h := s.locks.Lock(p, true)
	defer h.Unlock()
	if err := s.tree.AddHost(p, target.id); err != nil {
		s.log.WithError(err).Warn("naming: failed to record new replica host")
		return
	}
	s.mu.Lock()
	target.files[p.String()] = struct{}{}
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{"path": p.String(), "server": target.id}).Info("naming: replicated file")
}
