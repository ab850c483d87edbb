package rtds

import (
	"io"
	"net"
	"testing"
	"time"

	"gridadapter/device"
	"gridadapter/devicemgr"
	"gridadapter/errcode"
	"gridadapter/table"
)

func TestConnectFailedWhenNoListener(t *testing.T) {
	a := New("rtds1", "127.0.0.1", "1", 1, 1, time.Millisecond, table.NewPair())
	err := a.Start()
	if errcode.Of(err) != errcode.ConnectFailed {
		t.Fatalf("expected ConnectFailed, got %v", err)
	}
}

// TestRoundTrip exercises spec §8 scenario 1: the adapter writes its
// command buffer and reads back the peer's state vector each cycle.
func TestRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	sawCommand := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// First cycle: DGI sends its initial command (0.0), peer sends 1.0 back.
		buf := make([]byte, 4)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		if _, err := conn.Write(encodeFloats([]float32{1.0})); err != nil {
			return
		}

		// Later cycles: keep answering until DGI sends the command the
		// test writes (0.5).
		for {
			if _, err := io.ReadFull(conn, buf); err != nil {
				return
			}
			if got := decodeFloats(buf); len(got) == 1 && got[0] == 0.5 {
				close(sawCommand)
				return
			}
			if _, err := conn.Write(encodeFloats([]float32{1.0})); err != nil {
				return
			}
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	tables := table.NewPair()
	a := New("rtds1", host, port, 1, 1, 5*time.Millisecond, tables)
	desc := device.NewDescriptor([]string{"Gen"}, []string{"V"}, []string{"Q"})
	d := device.New("gen1", desc, tables)
	if err := a.RegisterStateIndex("gen1", "V", 1); err != nil {
		t.Fatal(err)
	}
	if err := a.RegisterCommandIndex("gen1", "Q", 1); err != nil {
		t.Fatal(err)
	}
	a.RegisterDevice(d)

	mgr := devicemgr.New(nil)
	_ = mgr.Add(d)

	if err := a.Start(); err != nil {
		t.Fatalf("unexpected Start error: %v", err)
	}
	defer a.Stop()

	deadline := time.After(time.Second)
	for {
		if v, err := a.GetState("gen1", "V"); err == nil && v == 1.0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for state to update")
		case <-time.After(time.Millisecond):
		}
	}

	if err := a.RevealDevices(mgr); err != nil {
		t.Fatalf("unexpected error revealing devices: %v", err)
	}
	if !mgr.Exists("gen1") {
		t.Fatal("expected gen1 to be visible after reveal")
	}

	if err := a.SetCommand("gen1", "Q", 0.5); err != nil {
		t.Fatal(err)
	}

	select {
	case <-sawCommand:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for peer to observe the command")
	}
}
