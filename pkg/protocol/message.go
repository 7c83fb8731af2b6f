package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/celerix-dev/celerix-store/pkg/domain"
)

// Op is a request operation name.
type Op string

const (
	OpGet          Op = "GET"
	OpSet          Op = "SET"
	OpDel          Op = "DEL"
	OpPing         Op = "PING"
	OpListPersonas Op = "LIST_PERSONAS"
	OpListApps     Op = "LIST_APPS"
	OpDump         Op = "DUMP"
	OpDumpApp      Op = "DUMP_APP"
	OpGetGlobal    Op = "GET_GLOBAL"
	OpMove         Op = "MOVE"
)

// arity is the number of arguments after OP and ID.
var arity = map[Op]int{
	OpGet:          3,
	OpSet:          4,
	OpDel:          3,
	OpPing:         0,
	OpListPersonas: 0,
	OpListApps:     1,
	OpDump:         2,
	OpDumpApp:      1,
	OpGetGlobal:    2,
	OpMove:         4,
}

// Idempotent reports whether repeating op has no further effect.
// Only idempotent operations are retried by default.
func (op Op) Idempotent() bool {
	switch op {
	case OpSet, OpDel, OpMove:
		return false
	default:
		return true
	}
}

// Status values.
const (
	StatusOK       = "OK"
	StatusNotFound = "NOT_FOUND"
	StatusErr      = "ERR"
)

// MaxIDLen bounds request identifiers.
const MaxIDLen = 64

// PongPayload is the OK payload of PING.
var PongPayload = []byte("PONG")

// Request is a decoded request frame.
type Request struct {
	Op   Op
	ID   string
	Args [][]byte
}

// Arg returns argument i as a string.
func (r *Request) Arg(i int) string {
	return string(r.Args[i])
}

// NewRequest builds a request from string arguments.
func NewRequest(op Op, id string, args ...string) *Request {
	req := &Request{Op: op, ID: id, Args: make([][]byte, len(args))}
	for i, a := range args {
		req.Args[i] = []byte(a)
	}
	return req
}

// WithPayload appends a binary argument.
func (r *Request) WithPayload(p []byte) *Request {
	r.Args = append(r.Args, p)
	return r
}

// RequestError is a well-framed but invalid request. The connection
// stays usable; the server answers with ErrorResponse(ID, Err).
type RequestError struct {
	ID  string
	Err *domain.DomainError
}

func (e *RequestError) Error() string { return e.Err.Error() }
func (e *RequestError) Unwrap() error { return e.Err }

// WriteRequest encodes req. The caller flushes w.
func WriteRequest(w *bufio.Writer, req *Request) error {
	parts := make([][]byte, 0, 2+len(req.Args))
	parts = append(parts, []byte(req.Op), []byte(req.ID))
	parts = append(parts, req.Args...)
	return WriteFrame(w, parts...)
}

// ParseRequest validates a frame read by ReadFrame.
func ParseRequest(frame [][]byte) (*Request, error) {
	if len(frame) < 2 {
		return nil, &RequestError{Err: domain.ErrProtocol.WithDetails("request needs an operation and an id")}
	}
	id := string(frame[1])
	if id == "" || len(id) > MaxIDLen {
		return nil, &RequestError{Err: domain.ErrProtocol.WithDetailsf("request id must be 1..%d bytes", MaxIDLen)}
	}

	op := Op(normalizeOp(frame[0]))
	want, ok := arity[op]
	if !ok {
		return nil, &RequestError{ID: id, Err: domain.ErrUnsupportedOperation.WithDetailsf("%q", frame[0])}
	}
	if got := len(frame) - 2; got != want {
		return nil, &RequestError{ID: id, Err: domain.ErrProtocol.WithDetailsf("%s takes %d arguments, got %d", op, want, got)}
	}
	return &Request{Op: op, ID: id, Args: frame[2:]}, nil
}

// normalizeOp uppercases ASCII without allocating for already
// uppercased tokens.
func normalizeOp(b []byte) string {
	if bytes.ContainsAny(b, "abcdefghijklmnopqrstuvwxyz") {
		return strings.ToUpper(string(b))
	}
	return string(b)
}

// Response is a decoded response frame.
type Response struct {
	ID      string
	Status  string
	Payload []byte // OK only
	Code    string // ERR only
	Detail  string // ERR and NOT_FOUND
}

// OKResponse builds a success response. payload may be nil.
func OKResponse(id string, payload []byte) *Response {
	return &Response{ID: id, Status: StatusOK, Payload: payload}
}

// ErrorResponse maps err to NOT_FOUND or ERR. Errors that are not
// DomainErrors are reported as domain.ErrInternal.
func ErrorResponse(id string, err error) *Response {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		de = domain.ErrInternal.WithDetails(err.Error())
	}
	if errors.Is(de, domain.ErrNotFound) {
		return &Response{ID: id, Status: StatusNotFound, Detail: de.Details}
	}
	return &Response{ID: id, Status: StatusErr, Code: de.Code, Detail: de.Details}
}

// Err returns the error carried by the response, or nil for OK.
func (r *Response) Err() error {
	switch r.Status {
	case StatusOK:
		return nil
	case StatusNotFound:
		return domain.ErrNotFound.WithDetails(r.Detail)
	default:
		return domain.FromCode(r.Code, r.Detail)
	}
}

// WriteResponse encodes resp. The caller flushes w.
func WriteResponse(w *bufio.Writer, resp *Response) error {
	parts := [][]byte{[]byte(resp.ID), []byte(resp.Status)}
	switch resp.Status {
	case StatusOK:
		if resp.Payload != nil {
			parts = append(parts, resp.Payload)
		}
	case StatusNotFound:
		if resp.Detail != "" {
			parts = append(parts, []byte(resp.Detail))
		}
	default:
		parts = append(parts, []byte(resp.Code), []byte(resp.Detail))
	}
	return WriteFrame(w, parts...)
}

// ParseResponse validates a frame read by ReadFrame.
func ParseResponse(frame [][]byte) (*Response, error) {
	if len(frame) < 2 {
		return nil, fmt.Errorf("%w: response needs an id and a status", ErrProtocol)
	}
	resp := &Response{ID: string(frame[0]), Status: string(frame[1])}
	rest := frame[2:]

	switch resp.Status {
	case StatusOK:
		if len(rest) > 1 {
			return nil, fmt.Errorf("%w: OK with %d payloads", ErrProtocol, len(rest))
		}
		if len(rest) == 1 {
			resp.Payload = rest[0]
		}
	case StatusNotFound:
		if len(rest) > 1 {
			return nil, fmt.Errorf("%w: NOT_FOUND with %d fields", ErrProtocol, len(rest))
		}
		if len(rest) == 1 {
			resp.Detail = string(rest[0])
		}
	case StatusErr:
		if len(rest) != 2 {
			return nil, fmt.Errorf("%w: ERR needs code and detail", ErrProtocol)
		}
		resp.Code, resp.Detail = string(rest[0]), string(rest[1])
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrProtocol, resp.Status)
	}
	return resp, nil
}
