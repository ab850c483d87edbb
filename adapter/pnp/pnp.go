// Package pnp implements the plug-and-play adapter variant: a single
// session serving one dynamically-arriving controller over a
// double-CRLF framed text protocol, with a heartbeat that removes the
// adapter on silence, as described by spec §4.8.
package pnp

import (
	"bufio"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gridadapter/adapter"
	"gridadapter/adapter/buffered"
	"gridadapter/devicemgr"
	"gridadapter/errcode"
	"gridadapter/internal/logging"
	"gridadapter/internal/util"
	"gridadapter/signal"
	"gridadapter/table"
)

const defaultHeartbeat = 5 * time.Second
const heartbeatWriteTimeout = 500 * time.Millisecond
const frameDelimiter = "\r\n\r\n"

var _ adapter.Adapter = (*Adapter)(nil)

// Adapter is the plug-and-play session adapter. It owns one listen
// socket, accepts exactly one controller connection, and tears itself
// down on PoliteDisconnect, I/O error, or heartbeat expiry.
type Adapter struct {
	adapter.Base

	ID         string
	ListenPort string
	Heartbeat  time.Duration

	buf    *buffered.Pair
	tables *table.Pair

	// Mgr is the device manager this adapter's devices reveal into, on
	// the first successfully accepted DeviceStates packet.
	Mgr *devicemgr.Manager

	// OnFatal is invoked once, from the session goroutine, whichever
	// terminal path removes the adapter (timeout, I/O error, or a
	// PoliteDisconnect). The factory wires this to its own removal path.
	OnFatal func(id string)

	mu       sync.Mutex
	ln       net.Listener
	conn     net.Conn
	timer    *time.Timer
	stopping bool
	revealed bool
	done     chan struct{}
}

// New builds a PNP adapter with the given receive (state) and transmit
// (command) vector lengths, backed by tables for DGI-facing reads and
// writes.
func New(id, listenPort string, rxLen, txLen int, heartbeat time.Duration, tables *table.Pair, mgr *devicemgr.Manager) *Adapter {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &Adapter{
		Base:       adapter.NewBase(),
		ID:         id,
		ListenPort: listenPort,
		Heartbeat:  heartbeat,
		buf:        buffered.NewPair(rxLen, txLen),
		tables:     tables,
		Mgr:        mgr,
	}
}

// localName returns the controller-facing name for a full device id
// owned by this adapter, the inverse of FullDeviceID.
func (a *Adapter) localName(fullID string) string {
	return strings.TrimPrefix(fullID, a.prefix())
}

func (a *Adapter) prefix() string {
	return strings.ReplaceAll(a.ID, ".", ":") + ":"
}

// FullDeviceID builds the device-manager-visible identifier for a
// controller-local device name, per §4.8's "prefixed by the adapter's
// identifier (with '.' replaced by ':')".
func FullDeviceID(adapterID, localName string) string {
	return strings.ReplaceAll(adapterID, ".", ":") + ":" + localName
}

// RegisterStateIndex binds a state signal (already expressed in terms
// of its full device id) at its 1-based spec index.
func (a *Adapter) RegisterStateIndex(deviceID, sig string, index int) error {
	key := signal.New(deviceID, sig)
	if err := a.buf.Rx.Register(key, index-1); err != nil {
		return err
	}
	a.tables.State.Insert(key)
	return nil
}

// RegisterCommandIndex binds a command signal at its 1-based spec
// index.
func (a *Adapter) RegisterCommandIndex(deviceID, sig string, index int) error {
	key := signal.New(deviceID, sig)
	if err := a.buf.Tx.Register(key, index-1); err != nil {
		return err
	}
	a.tables.Command.Insert(key)
	return nil
}

// SetOnFatal installs the callback invoked once, from the session
// goroutine, whichever terminal path removes the adapter (timeout,
// I/O error, or a PoliteDisconnect). The factory wires this to its own
// removal path.
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

// Start opens the listen socket and begins accepting the one
// controller session in a background goroutine.
func (a *Adapter) Start() error {
	ln, err := net.Listen("tcp", net.JoinHostPort("", a.ListenPort))
	if err != nil {
		return errcode.Wrap(errcode.ConnectFailed, "pnp.Start", err)
	}
	a.mu.Lock()
	a.ln = ln
	a.done = make(chan struct{})
	a.mu.Unlock()

	go a.serve()
	return nil
}

// Stop cancels the session and the listen socket. Safe to call from
// any goroutine and idempotent.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if a.stopping {
		a.mu.Unlock()
		return
	}
	a.stopping = true
	ln := a.ln
	conn := a.conn
	timer := a.timer
	a.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if timer != nil {
		timer.Stop()
	}
}

func (a *Adapter) isStopping() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopping
}

func (a *Adapter) serve() {
	defer close(a.done)

	conn, err := a.ln.Accept()
	if err != nil {
		return
	}
	logging.WithAdapter(a.ID).WithField("remote", conn.RemoteAddr()).Info("pnp: controller connected")
	a.mu.Lock()
	a.conn = conn
	// Expiry forces the blocked read below to fail, which takes the
	// terminate (timeout) path.
	a.timer = time.AfterFunc(a.Heartbeat, func() { _ = conn.SetReadDeadline(time.Now()) })
	a.mu.Unlock()

	reader := bufio.NewReader(conn)
	for {
		pkt, err := readFrame(reader)
		if err != nil {
			a.terminate()
			return
		}
		if a.isStopping() {
			return
		}

		reply, remove, err := a.handle(pkt)
		if err != nil {
			a.terminate()
			return
		}
		if reply != "" {
			if _, err := conn.Write([]byte(reply)); err != nil {
				a.terminate()
				return
			}
		}
		util.ResetTimer(a.timer, a.Heartbeat)
		if remove {
			a.Stop()
			if a.OnFatal != nil {
				a.OnFatal(a.ID)
			}
			return
		}
	}
}

// terminate is the heartbeat-expiry and I/O-error removal path: it
// best-effort notifies the peer, then removes the adapter.
func (a *Adapter) terminate() {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(heartbeatWriteTimeout))
		_, _ = conn.Write([]byte("Error\r\nConnection closed due to timeout.\r\n\r\n"))
	}
	logging.WithAdapter(a.ID).Warn("pnp: session terminated")
	a.Stop()
	if a.OnFatal != nil {
		a.OnFatal(a.ID)
	}
}

// readFrame reads one double-CRLF-delimited packet, or io.EOF/another
// error if the connection closes first.
func readFrame(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		line, err := r.ReadString('\n')
		sb.WriteString(line)
		if err != nil {
			return "", err
		}
		if strings.HasSuffix(sb.String(), frameDelimiter) {
			return strings.TrimSuffix(sb.String(), frameDelimiter), nil
		}
	}
}

// handle dispatches one decoded packet, returning the reply to write
// (if any), whether the adapter should be removed after replying, and
// a transport-level error (I/O, not protocol rejection).
func (a *Adapter) handle(pkt string) (reply string, remove bool, err error) {
	lines := strings.Split(pkt, "\r\n")
	header := lines[0]
	body := lines[1:]

	switch header {
	case "DeviceStates":
		return a.handleDeviceStates(body)
	case "PoliteDisconnect":
		return "PoliteDisconnect\r\nAccepted\r\n\r\n", true, nil
	default:
		reason := fmt.Sprintf("Unrecognised header: %s", header)
		return fmt.Sprintf("BadRequest\r\n%s\r\n\r\n", reason), false, nil
	}
}

func (a *Adapter) handleDeviceStates(lines []string) (string, bool, error) {
	seen := make(map[signal.Key]bool)
	type update struct {
		key signal.Key
		val float32
	}
	var updates []update

	for _, line := range lines {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return rejection(fmt.Sprintf("Malformed state line: %s", line)), false, nil
		}
		localName, sig, rawVal := fields[0], fields[1], fields[2]
		v, perr := strconv.ParseFloat(rawVal, 32)
		if perr != nil {
			return rejection(fmt.Sprintf("Bad numeric value: %s", rawVal)), false, nil
		}

		key := signal.New(FullDeviceID(a.ID, localName), sig)
		if !a.buf.Rx.HasKey(key) {
			return rejection(fmt.Sprintf("Unknown device signal: %s %s", key.Device, sig)), false, nil
		}
		if seen[key] {
			return rejection(fmt.Sprintf("Duplicate device signal: %s %s", key.Device, sig)), false, nil
		}
		seen[key] = true
		updates = append(updates, update{key: key, val: float32(v)})
	}

	if !a.buf.Rx.AllKeysIn(seen) {
		return rejection("State specification does not cover every registered state signal"), false, nil
	}

	for _, u := range updates {
		if err := a.buf.Rx.Set(u.key, u.val); err != nil {
			return rejection(err.Error()), false, nil
		}
		if err := a.tables.State.Set(u.key, u.val); err != nil {
			return rejection(err.Error()), false, nil
		}
	}

	a.MarkStarted()
	a.maybeReveal()

	if err := a.buf.Tx.SyncFromTable(a.tables.Command); err != nil {
		return rejection(err.Error()), false, nil
	}
	return a.deviceCommandsReply(), false, nil
}

func rejection(reason string) string {
	return fmt.Sprintf("BadRequest\r\n%s\r\n\r\n", reason)
}

// maybeReveal triggers reveal_devices exactly once, on the first
// successfully accepted DeviceStates packet (§4.8's first-packet
// semantics).
func (a *Adapter) maybeReveal() {
	a.mu.Lock()
	if a.revealed || a.Mgr == nil {
		a.mu.Unlock()
		return
	}
	a.revealed = true
	a.mu.Unlock()

	_ = a.RevealDevices(a.Mgr)
}

func (a *Adapter) deviceCommandsReply() string {
	var sb strings.Builder
	sb.WriteString("DeviceCommands\r\n")

	type line struct {
		local, sig string
		val        float32
	}
	var lines []line
	for i := 0; i < a.buf.Tx.Len(); i++ {
		key, ok := a.buf.Tx.KeyAt(i)
		if !ok {
			continue
		}
		v, _ := a.buf.Tx.Get(key)
		lines = append(lines, line{local: a.localName(key.Device), sig: key.Signal, val: v})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].local != lines[j].local {
			return lines[i].local < lines[j].local
		}
		return lines[i].sig < lines[j].sig
	})
	for _, l := range lines {
		fmt.Fprintf(&sb, "%s %s %s\r\n", l.local, l.sig, formatFloat(l.val))
	}
	sb.WriteString("\r\n")
	return sb.String()
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
