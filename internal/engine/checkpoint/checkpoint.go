// Package checkpoint stores model parameters in the safetensors format:
// an 8-byte little-endian header length, a JSON header describing each tensor,
// then the raw tensor bytes. Tensors are written as F32.
package checkpoint

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// ErrFormat is returned when a checkpoint file cannot be decoded.
var ErrFormat = errors.New("checkpoint: malformed file")

const metadataKey = "__metadata__"

// Tensor is a named entry of a model state.
type Tensor struct {
	Shape []int
	Data  []float64
}

// NumElements returns the product of the shape dims.
func (t Tensor) NumElements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

type tensorHeader struct {
	Dtype       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// Filename returns the checkpoint file name for a run, e.g.
// "Adam_batch_size=2048;epoch=300.safetensors".
func Filename(optimizer string, batchSize, epochs int) string {
	return fmt.Sprintf("%s_batch_size=%d;epoch=%d.safetensors", optimizer, batchSize, epochs)
}

// Encode serializes state and optional string metadata.
func Encode(state map[string]Tensor, meta map[string]string) ([]byte, error) {
	names := make([]string, 0, len(state))
	for name := range state {
		if name == metadataKey {
			return nil, fmt.Errorf("checkpoint: reserved tensor name %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(meta) > 0 {
		header[metadataKey] = meta
	}
	offset := 0
	for _, name := range names {
		t := state[name]
		if t.NumElements() != len(t.Data) {
			return nil, fmt.Errorf("checkpoint: tensor %s has %d values for shape %v", name, len(t.Data), t.Shape)
		}
		size := len(t.Data) * 4
		header[name] = tensorHeader{Dtype: "F32", Shape: t.Shape, DataOffsets: [2]int{offset, offset + size}}
		offset += size
	}

	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: encode header: %w", err)
	}
	// Pad the header with spaces to keep tensor data 8-byte aligned.
	if pad := len(hdr) % 8; pad != 0 {
		hdr = append(hdr, bytes.Repeat([]byte{' '}, 8-pad)...)
	}

	buf := make([]byte, 8+len(hdr)+offset)
	binary.LittleEndian.PutUint64(buf[:8], uint64(len(hdr)))
	copy(buf[8:], hdr)
	pos := 8 + len(hdr)
	for _, name := range names {
		for _, v := range state[name].Data {
			binary.LittleEndian.PutUint32(buf[pos:], math.Float32bits(float32(v)))
			pos += 4
		}
	}
	return buf, nil
}

// Decode parses a serialized checkpoint.
func Decode(data []byte) (map[string]Tensor, map[string]string, error) {
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("%w: file too small: %d bytes", ErrFormat, len(data))
	}
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if uint64(len(data)-8) < headerLen {
		return nil, nil, fmt.Errorf("%w: header length %d exceeds file size", ErrFormat, headerLen)
	}
	base := 8 + int(headerLen)

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:base], &header); err != nil {
		return nil, nil, fmt.Errorf("%w: parse header: %v", ErrFormat, err)
	}

	var meta map[string]string
	if raw, ok := header[metadataKey]; ok {
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, nil, fmt.Errorf("%w: parse metadata: %v", ErrFormat, err)
		}
		delete(header, metadataKey)
	}

	state := make(map[string]Tensor, len(header))
	for name, raw := range header {
		var th tensorHeader
		if err := json.Unmarshal(raw, &th); err != nil {
			return nil, nil, fmt.Errorf("%w: tensor %s: %v", ErrFormat, name, err)
		}
		if th.Dtype != "F32" {
			return nil, nil, fmt.Errorf("%w: tensor %s: expected dtype F32, got %s", ErrFormat, name, th.Dtype)
		}
		n, ok := elements(th.Shape, len(data)/4)
		if !ok {
			return nil, nil, fmt.Errorf("%w: tensor %s: invalid shape %v", ErrFormat, name, th.Shape)
		}
		t := Tensor{Shape: th.Shape}
		lo, hi := th.DataOffsets[0], th.DataOffsets[1]
		if lo < 0 || hi < lo || hi > len(data)-base {
			return nil, nil, fmt.Errorf("%w: tensor %s: data range [%d:%d] outside %d data bytes", ErrFormat, name, lo, hi, len(data)-base)
		}
		if hi-lo != n*4 {
			return nil, nil, fmt.Errorf("%w: tensor %s: data size %d doesn't match shape %v", ErrFormat, name, hi-lo, th.Shape)
		}
		start := base + lo
		t.Data = make([]float64, n)
		for i := range t.Data {
			bits := binary.LittleEndian.Uint32(data[start+i*4 : start+i*4+4])
			t.Data[i] = float64(math.Float32frombits(bits))
		}
		state[name] = t
	}
	return state, meta, nil
}

// elements returns the element count of shape. It fails on a negative
// dimension or a count above limit.
func elements(shape []int, limit int) (int, bool) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, false
		}
		if d == 0 {
			return 0, true
		}
		if n > limit/d {
			return 0, false
		}
		n *= d
	}
	return n, n <= limit
}

// Save writes state to path, creating parent directories. The file is written
// to a temporary sibling and renamed, so a reader never sees a partial file.
func Save(path string, state map[string]Tensor, meta map[string]string) error {
	buf, err := Encode(state, meta)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}

	f, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(buf); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("checkpoint: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("checkpoint: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint written by Save.
func Load(path string) (map[string]Tensor, map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("checkpoint: %w", err)
	}
	return Decode(data)
}
