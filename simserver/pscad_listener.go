package simserver

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"

	"gridadapter/errcode"
	"gridadapter/signal"
	"gridadapter/table"
)

// PSCADListener mirrors §4.7 from the simulator side: SET writes the
// command table (404 if the key is absent), GET reads the state table
// (404 if absent, value appended to the 200 reply), QUIT ends the
// session, anything else is 400.
type PSCADListener struct {
	ID     string
	tables *table.Pair
	ln     net.Listener
}

func NewPSCADListener(id string, tables *table.Pair) *PSCADListener {
	return &PSCADListener{ID: id, tables: tables}
}

func (l *PSCADListener) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errcode.Wrap(errcode.Transport, "simserver.PSCADListener.Serve", err)
	}
	l.ln = ln
	go l.acceptLoop()
	return nil
}

func (l *PSCADListener) Close() error {
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}

func (l *PSCADListener) acceptLoop() {
	conn, err := l.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		reply, quit := l.handle(strings.TrimRight(line, "\r\n"))
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
		if quit {
			return
		}
	}
}

func (l *PSCADListener) handle(line string) (reply string, quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "400 BADREQUEST\r\n", false
	}

	switch fields[0] {
	case "SET":
		if len(fields) != 4 {
			return "400 BADREQUEST\r\n", false
		}
		v, err := strconv.ParseFloat(fields[3], 32)
		if err != nil {
			return "400 BADREQUEST\r\n", false
		}
		key := signal.New(fields[1], fields[2])
		if err := l.tables.Command.Set(key, float32(v)); err != nil {
			return "404 ERROR NOTFOUND\r\n", false
		}
		return "200 OK\r\n", false
	case "GET":
		if len(fields) != 3 {
			return "400 BADREQUEST\r\n", false
		}
		key := signal.New(fields[1], fields[2])
		v, err := l.tables.State.Get(key)
		if err != nil {
			return "404 ERROR NOTFOUND\r\n", false
		}
		return fmt.Sprintf("200 OK %s\r\n", formatFloat(v)), false
	case "QUIT":
		return "200 OK\r\n", true
	default:
		return "400 BADREQUEST\r\n", false
	}
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
