// Package rtds implements the TCP binary adapter variant: a
// fixed-cadence client of a big-endian, fixed-length float vector
// protocol, as described by spec §4.6.
package rtds

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"gridadapter/adapter"
	"gridadapter/adapter/buffered"
	"gridadapter/errcode"
	"gridadapter/internal/logging"
	"gridadapter/internal/util"
	"gridadapter/signal"
	"gridadapter/table"
)

type connState int

const (
	disconnected connState = iota
	connecting
	running
	stopped
)

const defaultCyclePeriod = time.Millisecond
const defaultDialTimeout = 5 * time.Second

var _ adapter.Adapter = (*Adapter)(nil)

// Adapter is the TCP binary (RTDS) adapter. It holds its own indexed
// wire vectors (buf) for the socket's fixed-count framing, and a
// reference to the shared device-table pair (tables) that the rest of
// the DGI reads and writes through. Each cycle stages a transmit
// vector from tables.Command, sends it, receives the peer's vector,
// and publishes it into tables.State.
type Adapter struct {
	adapter.Base

	ID          string
	Host        string
	Port        string
	CyclePeriod time.Duration

	buf    *buffered.Pair
	tables *table.Pair

	// OnFatal is invoked once, from the cycle goroutine, the first time
	// a transport error ends the adapter's lifetime — the factory wires
	// this to its own removal path so the adapter never has to know
	// about the factory.
	OnFatal func(id string)

	mu    sync.Mutex
	state connState
	conn  net.Conn
	timer *time.Timer
	stop  chan struct{}
	done  chan struct{}
}

// New builds an RTDS adapter with the given receive (state) and
// transmit (command) vector lengths, backed by tables for DGI-facing
// reads and writes.
func New(id, host, port string, rxLen, txLen int, cyclePeriod time.Duration, tables *table.Pair) *Adapter {
	if cyclePeriod <= 0 {
		cyclePeriod = defaultCyclePeriod
	}
	return &Adapter{
		Base:        adapter.NewBase(),
		ID:          id,
		Host:        host,
		Port:        port,
		CyclePeriod: cyclePeriod,
		buf:         buffered.NewPair(rxLen, txLen),
		tables:      tables,
		state:       disconnected,
	}
}

// RegisterStateIndex binds a state (receive) signal at its 1-based
// spec index and inserts the corresponding row into the shared state
// table.
func (a *Adapter) RegisterStateIndex(deviceID, sig string, index int) error {
	key := signal.New(deviceID, sig)
	if err := a.buf.Rx.Register(key, index-1); err != nil {
		return err
	}
	a.tables.State.Insert(key)
	return nil
}

// RegisterCommandIndex binds a command (transmit) signal at its
// 1-based spec index and inserts the corresponding row into the shared
// command table.
func (a *Adapter) RegisterCommandIndex(deviceID, sig string, index int) error {
	key := signal.New(deviceID, sig)
	if err := a.buf.Tx.Register(key, index-1); err != nil {
		return err
	}
	a.tables.Command.Insert(key)
	return nil
}

// SetOnFatal installs the callback invoked once, from the cycle
// goroutine, the first time a transport error ends this adapter's
// lifetime. The factory wires this to its own removal path.
func (a *Adapter) SetOnFatal(fn func(id string)) {
	a.OnFatal = fn
}

// GetState reads one state signal from the shared state table.
func (a *Adapter) GetState(deviceID, sig string) (float32, error) {
	return a.tables.State.Get(signal.New(deviceID, sig))
}

// SetCommand writes one command signal into the shared command table.
func (a *Adapter) SetCommand(deviceID, sig string, v float32) error {
	return a.tables.Command.Set(signal.New(deviceID, sig), v)
}

// Start resolves Host/Port and attempts each resolved address in turn
// until one accepts a connection, then begins the fixed-cadence cycle.
// Failure to connect to any endpoint surfaces as errcode.ConnectFailed
// and leaves the adapter disconnected.
func (a *Adapter) Start() error {
	a.mu.Lock()
	a.state = connecting
	a.mu.Unlock()

	conn, err := a.dialAny()
	if err != nil {
		a.mu.Lock()
		a.state = disconnected
		a.mu.Unlock()
		logging.WithAdapter(a.ID).WithError(err).Warn("rtds: connect failed")
		return errcode.Wrap(errcode.ConnectFailed, "rtds.Start", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.state = running
	a.timer = time.NewTimer(a.CyclePeriod)
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	a.mu.Unlock()

	logging.WithAdapter(a.ID).WithField("remote", conn.RemoteAddr()).Info("rtds: connected")
	go a.run()
	return nil
}

func (a *Adapter) dialAny() (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, a.Host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", a.Host, err)
	}
	var lastErr error
	for _, addr := range addrs {
		target := net.JoinHostPort(addr.String(), a.Port)
		conn, err := net.DialTimeout("tcp", target, defaultDialTimeout)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no addresses resolved for %s", a.Host)
	}
	return nil, lastErr
}

// Stop cancels the cycle timer and closes the socket. It is safe to
// call from any goroutine and is idempotent.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if a.state == stopped || a.state == disconnected {
		a.state = stopped
		a.mu.Unlock()
		return
	}
	a.state = stopped
	stop := a.stop
	conn := a.conn
	a.mu.Unlock()

	if stop != nil {
		select {
		case <-stop:
		default:
			close(stop)
		}
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func (a *Adapter) run() {
	defer close(a.done)
	for {
		select {
		case <-a.stop:
			return
		case <-a.timer.C:
			if err := a.cycle(); err != nil {
				a.fail()
				return
			}
			util.ResetTimer(a.timer, a.CyclePeriod)
		}
	}
}

func (a *Adapter) fail() {
	logging.WithAdapter(a.ID).Warn("rtds: cycle failed, stopping")
	a.Stop()
	if a.OnFatal != nil {
		a.OnFatal(a.ID)
	}
}

// cycle performs one write-then-read transaction: stage the transmit
// vector from the command table, send it, receive the peer's vector,
// and publish it into the state table — in declared index order both
// ways.
func (a *Adapter) cycle() error {
	if err := a.buf.Tx.SyncFromTable(a.tables.Command); err != nil {
		return err
	}
	if _, err := a.conn.Write(encodeFloats(a.buf.Tx.Snapshot())); err != nil {
		return err
	}

	rxBuf := make([]byte, 4*a.buf.Rx.Len())
	if _, err := io.ReadFull(a.conn, rxBuf); err != nil {
		return err
	}
	a.buf.Rx.Load(decodeFloats(rxBuf))
	if err := a.buf.Rx.SyncToTable(a.tables.State); err != nil {
		return err
	}
	a.MarkStarted()
	return nil
}
