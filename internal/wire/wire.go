// Package wire implements the frame codec spoken between the
// dispatcher and its worker subprocesses: length-prefixed CBOR frames
// over the child's stdin/stdout pipes.
//
// The protocol is lockstep per child: one Handshake down, one Ready
// up, then Task/TaskResult pairs until the parent closes stdin.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	cbor "github.com/fxamacker/cbor/v2"
)

// maxFrameSize bounds a single frame; anything larger indicates a
// corrupted length prefix rather than a legitimate payload.
const maxFrameSize = 16 << 20

// Handshake is the first frame sent to a worker subprocess. Config is
// the CBOR encoding of the adapter itself, so the child can rebuild it
// with the same parameters the parent holds.
type Handshake struct {
	Workload string `cbor:"workload"`
	Config   []byte `cbor:"config,omitempty"`
	Verbose  bool   `cbor:"verbose,omitempty"`
}

// Ready acknowledges the handshake. A non-empty Err means the child
// could not build the requested workload and will exit.
type Ready struct {
	Err string `cbor:"err,omitempty"`
}

// Task asks the child to invoke its adapter for one index.
type Task struct {
	Index int `cbor:"index"`
}

// TaskResult reports one invocation back to the parent. Value holds
// the CBOR-encoded adapter value; Elapsed is the adapter's
// self-reported duration in nanoseconds. A non-empty Err carries the
// remote failure message and leaves Value empty.
type TaskResult struct {
	Index   int    `cbor:"index"`
	Value   []byte `cbor:"value,omitempty"`
	Elapsed int64  `cbor:"elapsed_ns"`
	Err     string `cbor:"err,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	encMode, decMode = em, dm
}

// Marshal encodes v as deterministic CBOR (RFC 8949 core profile).
func Marshal(v any) ([]byte, error) { return encMode.Marshal(v) }

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }

// Encoder writes length-prefixed CBOR frames to w.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder { return &Encoder{w: w} }

// Encode writes one frame: a 4-byte big-endian length followed by the
// CBOR body.
func (e *Encoder) Encode(v any) error {
	body, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if len(body) > maxFrameSize {
		return fmt.Errorf("encode frame: %d bytes exceeds frame limit", len(body))
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := e.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write frame prefix: %w", err)
	}
	if _, err := e.w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// Decoder reads length-prefixed CBOR frames from r.
type Decoder struct {
	r io.Reader
}

func NewDecoder(r io.Reader) *Decoder { return &Decoder{r: r} }

// Decode reads one frame into v. It returns io.EOF when the stream
// ends cleanly on a frame boundary and io.ErrUnexpectedEOF when it
// ends mid-frame.
func (d *Decoder) Decode(v any) error {
	var prefix [4]byte
	if _, err := io.ReadFull(d.r, prefix[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("read frame prefix: %w", err)
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size > maxFrameSize {
		return fmt.Errorf("read frame: %d bytes exceeds frame limit", size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return fmt.Errorf("read frame body: %w", err)
	}
	if err := Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}
