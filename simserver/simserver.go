package simserver

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gridadapter/config"
	"gridadapter/errcode"
	"gridadapter/table"
)

type closer interface {
	Close() error
}

// Server hosts one listener per configured dialect, all sharing a
// single device-table pair. It is the simulator-side counterpart of
// dgi-adapterd's factory.Factory: where the factory builds DGI-facing
// adapters, Server builds the peers those adapters talk to. [NEW]
// supplements the original spec with a status query (§4.9).
type Server struct {
	Tables *table.Pair

	mu        sync.Mutex
	startedAt time.Time
	dialects  []string
	closers   []closer
}

func New() *Server {
	return &Server{
		Tables:    table.NewPair(),
		startedAt: time.Now(),
	}
}

// StartListener seeds the shared tables from spec and starts the
// listener matching spec.Type, which must be one of "rtds", "pscad",
// or "simulation".
func (s *Server) StartListener(spec config.AdapterSpec) error {
	seedTable(s.Tables.State, spec.State)
	seedTable(s.Tables.Command, spec.Command)

	stateKeys := orderedKeys(spec.State)
	commandKeys := orderedKeys(spec.Command)
	addr := listenAddr(spec)

	var c closer
	switch spec.Type {
	case "rtds":
		l := NewRTDSListener(spec.Identifier, s.Tables, stateKeys, commandKeys)
		if err := l.Serve(addr); err != nil {
			return err
		}
		c = l
	case "pscad":
		l := NewPSCADListener(spec.Identifier, s.Tables)
		if err := l.Serve(addr); err != nil {
			return err
		}
		c = l
	case "simulation":
		l := NewSimListener(spec.Identifier, s.Tables, stateKeys, commandKeys)
		if err := l.Serve(addr); err != nil {
			return err
		}
		c = l
	default:
		return errcode.New(errcode.BadSpec, "simserver.StartListener", "unknown dialect: "+spec.Type)
	}

	s.mu.Lock()
	s.dialects = append(s.dialects, spec.Type)
	s.closers = append(s.closers, c)
	s.mu.Unlock()
	return nil
}

func listenAddr(spec config.AdapterSpec) string {
	port := spec.ListenPort
	if port == "" {
		port = spec.Port
	}
	return ":" + port
}

// Close stops every listener this server started. It is best-effort:
// the first error encountered is returned, but every listener is
// still given a chance to close.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// StatusString reports a one-line human summary: device count,
// active dialects, and uptime.
func (s *Server) StatusString() string {
	s.mu.Lock()
	dialects := append([]string(nil), s.dialects...)
	s.mu.Unlock()

	devices := map[string]struct{}{}
	for key := range s.Tables.State.Snapshot() {
		devices[key.Device] = struct{}{}
	}

	uptime := time.Since(s.startedAt).Truncate(time.Second)
	return fmt.Sprintf("devices=%d dialects=[%s] uptime=%s", len(devices), strings.Join(dialects, ","), uptime)
}
