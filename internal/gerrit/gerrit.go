// Package gerrit drives a Gerrit server through its ssh admin
// interface.
package gerrit

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"

	"github.com/memorydaemon/krep/internal/log"
	"github.com/memorydaemon/krep/internal/run"
)

// DefaultPort is Gerrit's standard ssh admin port.
const DefaultPort = "29418"

// Server addresses one Gerrit instance. The known-project listing is
// fetched once and cached; concurrent callers share it.
type Server struct {
	host string
	port string
	run  *run.Cmd

	mu       sync.Mutex
	fetched  bool
	projects map[string]bool
}

// New builds a server handle from a host or host:port address.
func New(addr string, tryrun bool) *Server {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host, port = addr, DefaultPort
	}
	return &Server{host: host, port: port, run: &run.Cmd{TryRun: tryrun}}
}

// Host returns the server host name.
func (s *Server) Host() string { return s.host }

func (s *Server) gerrit(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	cli := append([]string{"-p", s.port, s.host, "gerrit", cmd}, args...)
	return s.run.Output(ctx, "ssh", cli...)
}

// fetch reads the remote project listing into the cache. Callers
// hold the lock.
func (s *Server) fetch(ctx context.Context) error {
	out, err := s.gerrit(ctx, "ls-projects")
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	s.projects = make(map[string]bool)
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			s.projects[line] = true
		}
	}
	s.fetched = true
	return nil
}

// ListProjects returns the project names known to the server, sorted.
func (s *Server) ListProjects(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fetched {
		if err := s.fetch(ctx); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(s.projects))
	for name := range s.projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CreateProject creates a project, optionally with a description.
// A project already present in the cached listing is skipped; when
// the create command fails the listing is refreshed once to tell a
// lost race from a real failure.
func (s *Server) CreateProject(ctx context.Context, name, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fetched {
		if err := s.fetch(ctx); err != nil {
			// degrade to an unconditional create attempt
			log.Get("").Debugf("gerrit %s: %v", s.host, err)
		}
	}
	if s.projects[name] {
		log.Get("").Debugf("%s existed on %s", name, s.host)
		return nil
	}

	args := []string{"--empty-commit"}
	if description != "" {
		args = append(args, "--description", quote(description))
	}
	args = append(args, name)

	if _, err := s.gerrit(ctx, "create-project", args...); err != nil {
		if ferr := s.fetch(ctx); ferr == nil && s.projects[name] {
			return nil
		}
		return fmt.Errorf("create project %s: %w", name, err)
	}
	if s.projects != nil {
		s.projects[name] = true
	}
	return nil
}

// quote wraps a value for the remote shell gerrit commands run
// through.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
