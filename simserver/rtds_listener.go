package simserver

import (
	"io"
	"net"

	"gridadapter/errcode"
	"gridadapter/signal"
	"gridadapter/table"
)

// RTDSListener mirrors §4.6's wire protocol from the simulator side:
// accept one connection, then loop forever reading the command vector
// and writing the state vector, both big-endian, in declared index
// order.
type RTDSListener struct {
	ID          string
	tables      *table.Pair
	stateKeys   []signal.Key
	commandKeys []signal.Key

	ln net.Listener
}

// NewRTDSListener builds a listener over tables, addressing the wire
// vectors in the order stateKeys/commandKeys declare.
func NewRTDSListener(id string, tables *table.Pair, stateKeys, commandKeys []signal.Key) *RTDSListener {
	return &RTDSListener{ID: id, tables: tables, stateKeys: stateKeys, commandKeys: commandKeys}
}

// Serve opens addr and accepts the single peer connection in the
// background.
func (l *RTDSListener) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errcode.Wrap(errcode.Transport, "simserver.RTDSListener.Serve", err)
	}
	l.ln = ln
	go l.acceptLoop()
	return nil
}

// Close stops accepting. A connection already accepted is not closed
// here; it stays open until the peer disconnects.
func (l *RTDSListener) Close() error {
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}

func (l *RTDSListener) acceptLoop() {
	conn, err := l.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		rxBuf := make([]byte, 4*len(l.commandKeys))
		if _, err := io.ReadFull(conn, rxBuf); err != nil {
			return
		}
		vals := decodeFloatsBE(rxBuf)
		for i, k := range l.commandKeys {
			_ = l.tables.Command.Set(k, vals[i])
		}

		out := make([]float32, len(l.stateKeys))
		for i, k := range l.stateKeys {
			out[i], _ = l.tables.State.Get(k)
		}
		if _, err := conn.Write(encodeFloatsBE(out)); err != nil {
			return
		}
	}
}
