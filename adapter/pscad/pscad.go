// Package pscad implements the line-text adapter variant: a
// synchronous CRLF request/response client of the PSCAD simulation
// dialect, as described by spec §4.7.
package pscad

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"gridadapter/adapter"
	"gridadapter/errcode"
	"gridadapter/internal/logging"
	"gridadapter/signal"
	"gridadapter/table"
)

var _ adapter.Adapter = (*Adapter)(nil)

// Adapter is the PSCAD line-text adapter. Every operation is
// synchronous and serialised on the single socket it owns.
type Adapter struct {
	adapter.Base

	ID     string
	Host   string
	Port   string
	tables *table.Pair

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	closed bool
}

// New builds a PSCAD adapter backed by tables for DGI-facing reads and
// writes; every registered signal is simply inserted into the shared
// tables, since the line dialect addresses signals by name rather than
// by a fixed-count wire index.
func New(id, host, port string, tables *table.Pair) *Adapter {
	return &Adapter{Base: adapter.NewBase(), ID: id, Host: host, Port: port, tables: tables}
}

// RegisterStateIndex inserts the state row; the line dialect has no
// use for a numeric index, so it is accepted and ignored for interface
// uniformity with the other adapter variants.
func (a *Adapter) RegisterStateIndex(deviceID, sig string, _ int) error {
	a.tables.State.Insert(signal.New(deviceID, sig))
	return nil
}

// RegisterCommandIndex inserts the command row; see RegisterStateIndex.
func (a *Adapter) RegisterCommandIndex(deviceID, sig string, _ int) error {
	a.tables.Command.Insert(signal.New(deviceID, sig))
	return nil
}

// GetState reads one state signal from the shared state table.
func (a *Adapter) GetState(deviceID, sig string) (float32, error) {
	return a.tables.State.Get(signal.New(deviceID, sig))
}

// SetCommand writes one command signal into the shared command table.
func (a *Adapter) SetCommand(deviceID, sig string, v float32) error {
	return a.tables.Command.Set(signal.New(deviceID, sig), v)
}

// Start dials the PSCAD peer. Unlike RTDS and PNP, the line dialect has
// no cyclic work of its own — SendSet/SendGet are driven by the DGI
// caller — so Start's only job is to open the socket and mark the
// adapter's devices ready for reveal.
func (a *Adapter) Start() error {
	conn, err := net.Dial("tcp", net.JoinHostPort(a.Host, a.Port))
	if err != nil {
		logging.WithAdapter(a.ID).WithError(err).Warn("pscad: connect failed")
		return errcode.Wrap(errcode.ConnectFailed, "pscad.Start", err)
	}
	a.mu.Lock()
	a.conn = conn
	a.reader = bufio.NewReader(conn)
	a.mu.Unlock()
	logging.WithAdapter(a.ID).WithField("remote", conn.RemoteAddr()).Info("pscad: connected")
	a.MarkStarted()
	return nil
}

// Stop issues QUIT if the socket is still open, then closes it. It is
// safe to call concurrently and is idempotent.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	conn := a.conn
	a.mu.Unlock()

	if conn == nil {
		return
	}
	_, _, _ = a.roundTrip("QUIT")
	_ = conn.Close()
}

// SendSet issues SET <device> <signal> <value> and writes the
// acknowledged value into the shared command table.
func (a *Adapter) SendSet(deviceID, sig string, v float32) error {
	status, msg, err := a.roundTrip(fmt.Sprintf("SET %s %s %s", deviceID, sig, formatFloat(v)))
	if err != nil {
		return errcode.Wrap(errcode.Transport, "pscad.SendSet", err)
	}
	if status != 200 {
		return errcode.ProtocolError(status, msg)
	}
	return a.tables.Command.Set(signal.New(deviceID, sig), v)
}

// SendGet issues GET <device> <signal> and returns the peer's reported
// value without touching the local state table — callers that want the
// table updated too should write the result themselves.
func (a *Adapter) SendGet(deviceID, sig string) (float32, error) {
	status, msg, err := a.roundTripValue(fmt.Sprintf("GET %s %s", deviceID, sig))
	if err != nil {
		return 0, errcode.Wrap(errcode.Transport, "pscad.SendGet", err)
	}
	if status.code != 200 {
		return 0, errcode.ProtocolError(status.code, msg)
	}
	return status.value, nil
}

type statusLine struct {
	code  int
	value float32
}

// roundTrip sends one request line and parses a "<code> <message>"
// response with no trailing value.
func (a *Adapter) roundTrip(req string) (int, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.conn.Write([]byte(req + "\r\n")); err != nil {
		return 0, "", err
	}
	line, err := a.reader.ReadString('\n')
	if err != nil {
		return 0, "", err
	}
	code, msg, _ := parseStatusLine(line)
	return code, msg, nil
}

// roundTripValue is roundTrip for responses that may carry a trailing
// value ("200 OK 2.5").
func (a *Adapter) roundTripValue(req string) (statusLine, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.conn.Write([]byte(req + "\r\n")); err != nil {
		return statusLine{}, "", err
	}
	line, err := a.reader.ReadString('\n')
	if err != nil {
		return statusLine{}, "", err
	}
	code, msg, rest := parseStatusLine(line)
	var value float32
	if rest != "" {
		if f, err := strconv.ParseFloat(rest, 32); err == nil {
			value = float32(f)
		}
	}
	return statusLine{code: code, value: value}, msg, nil
}

func parseStatusLine(line string) (code int, msg, rest string) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, "", ""
	}
	code, _ = strconv.Atoi(fields[0])
	// Only the success reply ever carries a trailing value ("200 OK
	// 2.5"); every other status's message is free text that may itself
	// contain spaces ("404 ERROR NOTFOUND").
	if code == 200 && len(fields) == 3 {
		return code, fields[1], fields[2]
	}
	return code, strings.Join(fields[1:], " "), ""
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
