// Command dfs is a small command-line client for the naming service: a
// single binary with "pwd", "parse", "ls", "mkdir", "rm", "put" and "get"
// subcommands, each parsing its own flag set.
//
// Every subcommand but "parse" and "pwd" resolves its path argument
// against $DFSHOST (the naming service's client-port address) and
// $DFSCWD (the working directory within the DFS namespace, "/" if
// unset).
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/nicolagi/dfs/internal/dpath"
	"github.com/nicolagi/dfs/internal/naming"
	log "github.com/sirupsen/logrus"
)

var globalContext struct {
	logLevel string
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var levels []string
	for _, l := range log.AllLevels {
		levels = append(levels, l.String())
	}
	fs.StringVar(&globalContext.logLevel, "verbosity", "warning", "sets the log `level`, among "+strings.Join(levels, ", "))
	return fs
}

// fatalf logs msg at error level and exits 2, the failure code the CLI
// documents for its callers; logrus's own Fatalf always exits 1, so every
// command failure path goes through this instead.
func fatalf(format string, args ...interface{}) {
	log.Errorf(format, args...)
	os.Exit(2)
}

func fatal(err error) {
	log.Error(err)
	os.Exit(2)
}

func exitUsage(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	_, _ = fmt.Fprintf(os.Stderr, `Usage: %s COMMAND [ARGS]

Commands:

	pwd                   print $DFSCWD, the working directory within the namespace
	parse ARG             split ARG into its host and path parts (host:path)
	ls PATH               list a directory's children
	mkdir PATH            create a directory
	rm PATH...            delete one or more files or directories, recursively
	put LOCALFILE PATH    upload a local file's content to PATH
	get PATH LOCALFILE    download PATH's content to a local file

PATH arguments may be prefixed with "host:" to target a naming service
other than $DFSHOST.
`, os.Args[0])
	os.Exit(2)
}

// resolve splits a host:path argument, falling back to $DFSHOST for the
// host and resolving a relative path against $DFSCWD.
func resolve(arg string) (host string, p dpath.Path, err error) {
	host, rest := dpath.Parse(arg)
	if host == "" {
		host = os.Getenv("DFSHOST")
	}
	if host == "" {
		return "", dpath.Path{}, fmt.Errorf("no host given and $DFSHOST not set")
	}
	if !strings.HasPrefix(rest, "/") {
		cwd := os.Getenv("DFSCWD")
		if cwd == "" {
			cwd = "/"
		}
		rest = strings.TrimRight(cwd, "/") + "/" + rest
	}
	p, err = dpath.New(rest)
	return host, p, err
}

func client(host string) naming.ClientStub {
	c, err := naming.NewClientStub(host)
	if err != nil {
		fatalf("Could not build naming client for %q: %v", host, err)
	}
	return c
}

func main() {
	if len(os.Args) < 2 {
		exitUsage("Command name required")
	}
	cmd := os.Args[1]

	fs := newFlagSet(cmd)
	_ = fs.Parse(os.Args[2:])
	args := fs.Args()

	log.SetOutput(os.Stderr)
	ll, err := log.ParseLevel(globalContext.logLevel)
	if err != nil {
		fatalf("Could not parse log level %q: %v", globalContext.logLevel, err)
	}
	log.SetLevel(ll)

	switch cmd {
	case "pwd":
		cwd := os.Getenv("DFSCWD")
		if cwd == "" {
			cwd = "/"
		}
		fmt.Println(cwd)
	case "parse":
		if len(args) != 1 {
			exitUsage("parse: exactly one argument required")
		}
		host, rest := dpath.Parse(args[0])
		fmt.Printf("host=%q path=%q\n", host, rest)
	case "ls":
		if len(args) != 1 {
			exitUsage("ls: exactly one argument required")
		}
		host, p, err := resolve(args[0])
		if err != nil {
			fatal(err)
		}
		names, err := client(host).List(p)
		if err != nil {
			fatalf("ls %s: %v", p, err)
		}
		for _, n := range names {
			fmt.Println(n)
		}
	case "mkdir":
		if len(args) != 1 {
			exitUsage("mkdir: exactly one argument required")
		}
		host, p, err := resolve(args[0])
		if err != nil {
			fatal(err)
		}
		if err := client(host).CreateDirectory(p); err != nil {
			fatalf("mkdir %s: %v", p, err)
		}
	case "rm":
		if len(args) < 1 {
			exitUsage("rm: at least one argument required")
		}
		for _, arg := range args {
			host, p, err := resolve(arg)
			if err != nil {
				fatal(err)
			}
			if err := client(host).Delete(p); err != nil {
				fatalf("rm %s: %v", p, err)
			}
		}
	case "put":
		if len(args) != 2 {
			exitUsage("put: local file and destination path required")
		}
		data, err := ioutil.ReadFile(args[0])
		if err != nil {
			fatalf("put: %v", err)
		}
		host, p, err := resolve(args[1])
		if err != nil {
			fatal(err)
		}
		c := client(host)
		if err := c.CreateFile(p); err != nil {
			fatalf("put %s: %v", p, err)
		}
		storage, err := c.GetStorage(p, true)
		if err != nil {
			fatalf("put %s: %v", p, err)
		}
		if len(data) > 0 {
			if err := storage.Write(p, 0, data); err != nil {
				fatalf("put %s: %v", p, err)
			}
		}
	case "get":
		if len(args) != 2 {
			exitUsage("get: source path and local file required")
		}
		host, p, err := resolve(args[0])
		if err != nil {
			fatal(err)
		}
		c := client(host)
		storage, err := c.GetStorage(p, false)
		if err != nil {
			fatalf("get %s: %v", p, err)
		}
		size, err := storage.Size(p)
		if err != nil {
			fatalf("get %s: %v", p, err)
		}
		data, err := storage.Read(p, 0, size)
		if err != nil {
			fatalf("get %s: %v", p, err)
		}
		if err := ioutil.WriteFile(args[1], data, 0644); err != nil {
			fatalf("get: %v", err)
		}
	default:
		exitUsage(fmt.Sprintf("%q: command not recognized", cmd))
	}
}
