package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"slices"

	"github.com/born-ml/exprgraph/internal/graph"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

// SaveOptions configures SaveParams.
type SaveOptions struct {
	// Half stores values as float16.
	Half bool
	// Metadata is stored verbatim in the header.
	Metadata map[string]string
}

// SaveParams writes the current values of params to path. Parameter names
// must be unique.
func SaveParams(path string, params []*graph.ParamNode, opts SaveOptions) (err error) {
	byName := make(map[string][]byte, len(params))
	h := &header{metadata: opts.Metadata, tensors: make(map[string]TensorInfo, len(params))}
	for _, p := range params {
		if _, dup := byName[p.Name()]; dup {
			return errors.Errorf("duplicate parameter name %q", p.Name())
		}
		data, dtype := encode(p.Values(), opts.Half)
		byName[p.Name()] = data
		h.tensors[p.Name()] = TensorInfo{DType: dtype, Shape: storedDims(p.Shape())}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	slices.Sort(names)
	var offset int64
	for _, name := range names {
		info := h.tensors[name]
		size := int64(len(byName[name]))
		info.DataOffsets = [2]int64{offset, offset + size}
		h.tensors[name] = info
		offset += size
	}

	headerJSON, err := json.Marshal(h)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}

	//nolint:gosec // G304: the path is chosen by the caller
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = errors.Wrapf(closeErr, "failed to close %s", path)
		}
	}()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return errors.Wrap(err, "failed to write header size")
	}
	if _, err := w.Write(headerJSON); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for _, name := range names {
		if _, err := w.Write(byName[name]); err != nil {
			return errors.Wrapf(err, "failed to write tensor %s", name)
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	klog.V(1).Infof("saved %d parameters (%s) to %s", len(names), humanize.Bytes(uint64(offset)), path) //nolint:gosec // non-negative
	return nil
}

// encode serializes values as little-endian F32 or F16.
func encode(values []float32, half bool) ([]byte, string) {
	if half {
		buf := make([]byte, 2*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint16(buf[2*i:], float16.Fromfloat32(v).Bits())
		}
		return buf, dtypeF16
	}
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf, dtypeF32
}
