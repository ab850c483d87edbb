package errcode

import (
	"errors"
	"testing"
)

func TestOfNilIsOK(t *testing.T) {
	if Of(nil) != OK {
		t.Fatal("expected nil error to map to OK")
	}
}

func TestOfPlainCode(t *testing.T) {
	if Of(UnknownSignal) != UnknownSignal {
		t.Fatal("expected bare Code to round-trip through Of")
	}
}

func TestOfWrappedE(t *testing.T) {
	err := New(BadSpec, "parse", "index 0 out of range")
	if Of(err) != BadSpec {
		t.Fatalf("expected BadSpec, got %v", Of(err))
	}
	if !Is(err, BadSpec) {
		t.Fatal("expected Is(err, BadSpec) to hold")
	}
}

func TestOfUnknownErrorIsGenericFallback(t *testing.T) {
	if Of(errors.New("boom")) != Error {
		t.Fatal("expected a plain error to map to the generic fallback")
	}
}

func TestProtocolErrorCarriesStatus(t *testing.T) {
	err := ProtocolError(404, "ERROR NOTFOUND")
	if err.C != ProtocolErr {
		t.Fatalf("expected ProtocolErr code, got %v", err.C)
	}
	if err.Status != 404 {
		t.Fatalf("expected status 404, got %d", err.Status)
	}
	if err.Error() == "" {
		t.Fatal("expected non-empty error message")
	}
}

func TestBadRequestfCarriesReason(t *testing.T) {
	err := BadRequestf("Unknown device signal: mamba3:sst voltage")
	if err.C != BadRequest {
		t.Fatalf("expected BadRequest code, got %v", err.C)
	}
	if err.Msg == "" {
		t.Fatal("expected reason to be preserved")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ConnectFailed, "dial", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
	if Of(err) != ConnectFailed {
		t.Fatal("expected ConnectFailed code to be recoverable")
	}
}
