// Package wire defines the messages exchanged between the service and its worker
// process. Messages are JSON objects, one per line. Big integers are decimal strings.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/spacemeshos/vdfcache/common/types"
)

// Kind identifies a message.
type Kind string

const (
	// KindStart asks the worker to start a proof from scratch.
	KindStart Kind = "start"
	// KindResume asks the worker to continue a proof from a reported state.
	KindResume Kind = "resume"

	// KindProgress reports a resumable state of an unfinished proof.
	KindProgress Kind = "progress"
	// KindComplete carries a finished proof.
	KindComplete Kind = "complete"
	// KindFailed reports that a request could not be worked on.
	KindFailed Kind = "failed"
)

// ErrMalformed is returned for messages that cannot be interpreted.
var ErrMalformed = errors.New("malformed message")

// Request is sent by the service. Only one request is outstanding at a time.
type Request struct {
	Kind  Kind            `json:"kind"`
	X     string          `json:"x"`
	T     int             `json:"t"`
	N     string          `json:"n"`
	State json.RawMessage `json:"state,omitempty"`
}

// NewStart builds a start request.
func NewStart(x *big.Int, t int, n *big.Int) Request {
	return Request{Kind: KindStart, X: x.String(), T: t, N: n.String()}
}

// NewResume builds a resume request.
func NewResume(x *big.Int, t int, n *big.Int, state json.RawMessage) Request {
	return Request{Kind: KindResume, X: x.String(), T: t, N: n.String(), State: state}
}

// Params parses the proof parameters of the request.
func (r *Request) Params() (x *big.Int, n *big.Int, err error) {
	return parseParams(r.X, r.N)
}

// Response is sent by the worker, exactly one per request.
type Response struct {
	Kind  Kind            `json:"kind"`
	X     string          `json:"x"`
	T     int             `json:"t"`
	N     string          `json:"n"`
	State json.RawMessage `json:"state,omitempty"`
	Step  uint64          `json:"step,omitempty"`
	Steps uint64          `json:"steps,omitempty"`
	// Elapsed is the computation time of the proof so far in nanoseconds.
	Elapsed int64    `json:"elapsed"`
	Y       string   `json:"y,omitempty"`
	U       []string `json:"u,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Params parses the proof parameters the response refers to.
func (r *Response) Params() (x *big.Int, n *big.Int, err error) {
	return parseParams(r.X, r.N)
}

// Solution parses the result of a completed proof.
func (r *Response) Solution() (types.Solution, error) {
	x, err := types.ParseDecimal(r.X)
	if err != nil {
		return types.Solution{}, fmt.Errorf("%w: x: %w", ErrMalformed, err)
	}
	y, err := types.ParseDecimal(r.Y)
	if err != nil {
		return types.Solution{}, fmt.Errorf("%w: y: %w", ErrMalformed, err)
	}
	u, err := types.ParseDecimals(r.U)
	if err != nil {
		return types.Solution{}, fmt.Errorf("%w: u: %w", ErrMalformed, err)
	}
	return types.Solution{X: x, Y: y, U: u}, nil
}

func parseParams(xs, ns string) (*big.Int, *big.Int, error) {
	x, err := types.ParseDecimal(xs)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: x: %w", ErrMalformed, err)
	}
	n, err := types.ParseDecimal(ns)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: n: %w", ErrMalformed, err)
	}
	return x, n, nil
}

// Encoder writes messages. It is safe for concurrent use.
type Encoder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Encode writes one message followed by a newline.
func (e *Encoder) Encode(msg any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(msg); err != nil {
		return fmt.Errorf("encode %T: %w", msg, err)
	}
	return nil
}

// Decoder reads messages.
type Decoder struct {
	dec *json.Decoder
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

// Decode reads the next message into msg. It returns io.EOF when the stream ended
// between messages.
func (d *Decoder) Decode(msg any) error {
	if err := d.dec.Decode(msg); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}
