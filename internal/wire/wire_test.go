package wire_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/poolbench/poolbench/internal/wire"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := wire.NewEncoder(&buf)
	dec := wire.NewDecoder(&buf)

	sent := wire.Handshake{Workload: "delayed_return", Config: []byte{0xa0}, Verbose: true}
	if err := enc.Encode(sent); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var got wire.Handshake
	if err := dec.Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Workload != sent.Workload || got.Verbose != sent.Verbose {
		t.Errorf("round trip mismatch: %+v vs %+v", got, sent)
	}
	if !bytes.Equal(got.Config, sent.Config) {
		t.Errorf("config bytes mismatch: %x vs %x", got.Config, sent.Config)
	}
}

func TestFrameSequence(t *testing.T) {
	var buf bytes.Buffer
	enc := wire.NewEncoder(&buf)
	dec := wire.NewDecoder(&buf)

	for i := 0; i < 3; i++ {
		if err := enc.Encode(wire.Task{Index: i}); err != nil {
			t.Fatalf("encode task %d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		var task wire.Task
		if err := dec.Decode(&task); err != nil {
			t.Fatalf("decode task %d: %v", i, err)
		}
		if task.Index != i {
			t.Errorf("expected index %d, got %d", i, task.Index)
		}
	}
}

func TestDecode_CleanEOF(t *testing.T) {
	dec := wire.NewDecoder(bytes.NewReader(nil))

	var task wire.Task
	if err := dec.Decode(&task); err != io.EOF {
		t.Fatalf("expected io.EOF on empty stream, got %v", err)
	}
}

func TestDecode_TruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	enc := wire.NewEncoder(&buf)
	if err := enc.Encode(wire.TaskResult{Index: 1, Elapsed: 42}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	truncated := buf.Bytes()[:buf.Len()-2]
	dec := wire.NewDecoder(bytes.NewReader(truncated))

	var res wire.TaskResult
	if err := dec.Decode(&res); err == nil || err == io.EOF {
		t.Fatalf("expected a mid-frame error, got %v", err)
	}
}

func TestTaskResult_ErrorFrameCarriesNoValue(t *testing.T) {
	var buf bytes.Buffer
	if err := wire.NewEncoder(&buf).Encode(wire.TaskResult{Index: 2, Err: "boom"}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var res wire.TaskResult
	if err := wire.NewDecoder(&buf).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Err != "boom" || res.Index != 2 || len(res.Value) != 0 {
		t.Errorf("unexpected frame contents: %+v", res)
	}
}
