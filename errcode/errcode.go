// Package errcode provides the tagged error-kind enumeration required
// by the adapter subsystem's error handling design: a small, stable,
// comparable identifier for every failure mode an adapter, the device
// manager, or the factory can report.
package errcode

// Code is a stable error identifier. It is a string newtype,
// comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes.
const (
	BadSpec         Code = "bad_spec"         // malformed/inconsistent adapter spec; fatal at construction
	DuplicateDevice Code = "duplicate_device" // device id already known to the device manager
	DuplicateId     Code = "duplicate_id"     // identifier collision in the device manager
	UnknownId       Code = "unknown_id"       // device-manager lookup miss
	UnknownSignal   Code = "unknown_signal"   // table/device lookup miss
	ProtocolErr     Code = "protocol_error"   // PSCAD peer returned non-200
	BadRequest      Code = "bad_request"      // PNP peer sent an invalid packet
	Transport       Code = "transport"        // socket or timer failure; adapter stops
	Timeout         Code = "timeout"          // PNP heartbeat expired
	ConnectFailed   Code = "connect_failed"   // no resolved endpoint accepted the connection

	OK    Code = "ok"
	Error Code = "error" // generic fallback
)

// E wraps a Code with context and an optional cause, for the failure
// modes that carry extra data (a PSCAD status line, a PNP rejection
// reason).
type E struct {
	C      Code
	Op     string
	Msg    string
	Status int // non-zero for ProtocolErr: the peer's numeric status code
	Err    error
}

func (e *E) Error() string {
	if e.Op != "" && e.Msg != "" {
		return e.Op + ": " + string(e.C) + ": " + e.Msg
	}
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}

func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// New builds an *E for a given code, operation, and message.
func New(c Code, op, msg string) *E {
	return &E{C: c, Op: op, Msg: msg}
}

// Wrap builds an *E that also carries a cause, for propagation to the
// factory.
func Wrap(c Code, op string, err error) *E {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &E{C: c, Op: op, Msg: msg, Err: err}
}

// ProtocolError builds the PSCAD non-200 error carrying the peer's
// status code and message, per spec §7's ProtocolError(code, msg).
func ProtocolError(status int, msg string) *E {
	return &E{C: ProtocolErr, Msg: msg, Status: status}
}

// BadRequestf builds the PNP rejection error carrying a human-readable
// reason, per spec §7's BadRequest(reason).
func BadRequestf(reason string) *E {
	return &E{C: BadRequest, Msg: reason}
}

// Of extracts a Code from any error, defaulting to Error. nil maps to OK.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// Is reports whether err carries the given code, for the handful of
// call sites (factory removal, DGI-facing reads) that branch on kind.
func Is(err error, c Code) bool {
	return Of(err) == c
}
