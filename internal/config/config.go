// Package config loads process configuration for the naming server and
// storage servers: a flat key-value file named "config"
// under a base directory, with 0600/0700 permission checks and paths
// derived from the base directory.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nicolagi/dfs/internal/locktree"
)

// DefaultBaseDirectoryPath is where dfs commands store configuration,
// defaulting to $DFS_BASE if set, otherwise $HOME/lib/dfs.
var DefaultBaseDirectoryPath string

func init() {
	if base := os.Getenv("DFS_BASE"); base != "" {
		DefaultBaseDirectoryPath = base
	} else {
		DefaultBaseDirectoryPath = os.ExpandEnv("$HOME/lib/dfs")
	}
}

// C holds the configuration of one process. Not every field is
// meaningful to every command: cmd/namingserver reads NamingClientAddr,
// NamingRegisterAddr and ReplicateAt, and cmd/storageserver reads the
// Storage*, DiskStoreDir and S3* fields and NamingAddr. cmd/dfs does not
// read this file; it takes the naming service's address from $DFSHOST or
// a "host:" argument prefix.
type C struct {
	// Address the naming server listens on for client requests
	// (isDirectory, list, createFile, createDirectory, delete,
	// getStorage) and the address it listens on for storage-server
	// registration. Spec section 6 treats these as two ports of the same
	// service.
	NamingClientAddr   string
	NamingRegisterAddr string

	// Address of the naming server's registration port, used by a
	// storage server to register itself and its file list at startup.
	NamingAddr string

	// Addresses a storage server listens on for the client-facing
	// interface (Size, Read, Write) and the naming-only command
	// interface (Create, Delete, Copy).
	StorageClientAddr  string
	StorageCommandAddr string

	// Storage backend kind: "disk" or "s3".
	Storage string

	// Meaningful when Storage is "disk". If relative, resolved against
	// the base directory.
	DiskStoreDir string

	// Meaningful when Storage is "s3".
	S3Region  string
	S3Bucket  string
	S3Profile string

	// Number of shared (read) lock acquisitions of a file path after
	// which the naming service schedules a new replica. Zero selects
	// locktree.DefaultReplicateAt.
	ReplicateAt int

	base string
}

// Load reads the configuration from the file called "config" in base,
// enforcing owner-only permission bits on that file.
func Load(base string) (*C, error) {
	filename := filepath.Join(base, "config")
	fi, err := os.Stat(filename)
	if err != nil {
		return nil, errorf("Load", "%v", err)
	}
	if fi.Mode()&0077 != 0 {
		return nil, errorf("Load", "%q: mode is %#o, want at most %#o", filename, fi.Mode()&0777, fi.Mode()&0700)
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	c, err := load(f)
	if err != nil {
		return nil, err
	}
	c.base = base
	if c.DiskStoreDir != "" && !filepath.IsAbs(c.DiskStoreDir) {
		c.DiskStoreDir = filepath.Clean(filepath.Join(c.base, c.DiskStoreDir))
	}
	return c, nil
}

func load(f io.Reader) (*C, error) {
	c := &C{Storage: "disk"}
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		i := strings.IndexAny(line, " \t")
		if i == -1 {
			return nil, errorf("load", "no separator in %q", line)
		}
		key, val := line[:i], strings.TrimSpace(line[i:])
		switch key {
		case "naming-client-addr":
			c.NamingClientAddr = val
		case "naming-register-addr":
			c.NamingRegisterAddr = val
		case "naming-addr":
			c.NamingAddr = val
		case "storage-client-addr":
			c.StorageClientAddr = val
		case "storage-command-addr":
			c.StorageCommandAddr = val
		case "storage":
			c.Storage = val
		case "disk-store-dir":
			c.DiskStoreDir = val
		case "s3-region":
			c.S3Region = val
		case "s3-bucket":
			c.S3Bucket = val
		case "s3-profile":
			c.S3Profile = val
		case "replicate-at":
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, errorf("load", "replicate-at: %v", err)
			}
			c.ReplicateAt = n
		default:
			return nil, errorf("load", "unknown key %q", key)
		}
	}
	if err := s.Err(); err != nil {
		return nil, errorf("load", "%v", err)
	}
	return c, nil
}

// ReplicateAtOrDefault returns c.ReplicateAt, or locktree.DefaultReplicateAt
// if it is not set.
func (c *C) ReplicateAtOrDefault() int {
	if c.ReplicateAt > 0 {
		return c.ReplicateAt
	}
	return locktree.DefaultReplicateAt
}

// DiskStoreDirPath returns the directory a disk-backed storage server
// stores files under, defaulting to "store" under the base directory.
func (c *C) DiskStoreDirPath() string {
	if c.DiskStoreDir != "" {
		return c.DiskStoreDir
	}
	return filepath.Join(c.base, "store")
}

// Initialize writes a starter configuration file to baseDir.
func Initialize(baseDir string) error {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return errorf("Initialize", "%q: could not mkdir: %v", baseDir, err)
	}
	path := filepath.Join(baseDir, "config")
	if _, err := os.Stat(path); err == nil {
		return errorf("Initialize", "%q: already exists", path)
	} else if !os.IsNotExist(err) {
		return errorf("Initialize", "%q: could not determine if it exists: %v", path, err)
	}
	var buf strings.Builder
	buf.WriteString("naming-client-addr 127.0.0.1:7001\n")
	buf.WriteString("naming-register-addr 127.0.0.1:7002\n")
	buf.WriteString("naming-addr 127.0.0.1:7002\n")
	buf.WriteString("storage-client-addr 127.0.0.1:7101\n")
	buf.WriteString("storage-command-addr 127.0.0.1:7102\n")
	buf.WriteString("storage disk\n")
	buf.WriteString("disk-store-dir store\n")
	buf.WriteString(fmt.Sprintf("replicate-at %d\n", locktree.DefaultReplicateAt))
	return os.WriteFile(path, []byte(buf.String()), 0600)
}
