// Package serialization saves and restores graph parameters in the
// SafeTensors format.
//
// Format:
//
//	[8 bytes: header size (uint64 LE)]
//	[header size bytes: JSON header]
//	[tensor data: raw little-endian bytes]
//
// The header maps every parameter name to its dtype, shape and byte range,
// plus an optional "__metadata__" string map. Tensors are stored in
// alphabetical order. Values are F32, or F16 when saved at half precision.
package serialization

import (
	"encoding/json"

	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/pkg/errors"
)

const (
	metadataKey = "__metadata__"

	dtypeF32 = "F32"
	dtypeF16 = "F16"

	// maxHeaderSize rejects corrupt size prefixes before allocating.
	maxHeaderSize = 100 << 20
)

// TensorInfo describes one stored tensor.
type TensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// header is the parsed JSON header.
type header struct {
	metadata map[string]string
	tensors  map[string]TensorInfo
}

func (h *header) UnmarshalJSON(data []byte) error {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	h.tensors = make(map[string]TensorInfo, len(entries))
	for key, value := range entries {
		if key == metadataKey {
			if err := json.Unmarshal(value, &h.metadata); err != nil {
				return errors.Wrap(err, "failed to unmarshal metadata")
			}
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return errors.Wrapf(err, "failed to unmarshal tensor %s", key)
		}
		h.tensors[key] = info
	}
	return nil
}

func (h *header) MarshalJSON() ([]byte, error) {
	entries := make(map[string]any, len(h.tensors)+1)
	if len(h.metadata) > 0 {
		entries[metadataKey] = h.metadata
	}
	for name, info := range h.tensors {
		entries[name] = info
	}
	return json.Marshal(entries)
}

// storedDims drops trailing unit axes, keeping at least one.
func storedDims(s tensor.Shape) []int {
	n := tensor.MaxAxes
	for n > 1 && s[n-1] == 1 {
		n--
	}
	return append([]int(nil), s[:n]...)
}

func toDataType(dtype string) (tensor.DataType, error) {
	switch dtype {
	case dtypeF32:
		return tensor.Float32, nil
	case dtypeF16:
		return tensor.Float16, nil
	default:
		return 0, errors.Errorf("unsupported dtype %s, want %s or %s", dtype, dtypeF32, dtypeF16)
	}
}
