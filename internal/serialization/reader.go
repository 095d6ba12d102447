package serialization

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"slices"

	"github.com/born-ml/exprgraph/internal/graph"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Reader reads tensors from a SafeTensors file.
type Reader struct {
	file       *os.File
	header     header
	dataOffset int64
}

// Open reads the header of the file at path.
func Open(path string) (*Reader, error) {
	//nolint:gosec // G304: the path is chosen by the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	r, err := newReader(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.WithMessagef(err, "reading %s", path)
	}
	return r, nil
}

func newReader(f *os.File) (*Reader, error) {
	var size uint64
	if err := binary.Read(f, binary.LittleEndian, &size); err != nil {
		return nil, errors.Wrap(err, "failed to read header size")
	}
	if size > maxHeaderSize {
		return nil, errors.Errorf("invalid header size %d", size)
	}
	headerJSON := make([]byte, size)
	if _, err := io.ReadFull(f, headerJSON); err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}
	r := &Reader{file: f, dataOffset: int64(8 + size)} //nolint:gosec // bounded by maxHeaderSize
	if err := json.Unmarshal(headerJSON, &r.header); err != nil {
		return nil, errors.Wrap(err, "failed to parse header")
	}
	return r, nil
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Metadata returns the header metadata.
func (r *Reader) Metadata() map[string]string {
	return r.header.metadata
}

// Names returns the stored tensor names in alphabetical order.
func (r *Reader) Names() []string {
	names := make([]string, 0, len(r.header.tensors))
	for name := range r.header.tensors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Info describes the named tensor.
func (r *Reader) Info(name string) (TensorInfo, error) {
	info, ok := r.header.tensors[name]
	if !ok {
		return TensorInfo{}, errors.Errorf("tensor %s not found", name)
	}
	return info, nil
}

// Tensor reads the named tensor into a new CPU tensor. The caller owns it.
func (r *Reader) Tensor(name string) (*tensor.RawTensor, error) {
	info, err := r.Info(name)
	if err != nil {
		return nil, err
	}
	dtype, err := toDataType(info.DType)
	if err != nil {
		return nil, errors.WithMessagef(err, "tensor %s", name)
	}
	shape, err := tensor.NewShape(info.Shape...)
	if err != nil {
		return nil, errors.WithMessagef(err, "tensor %s", name)
	}
	start, end := info.DataOffsets[0], info.DataOffsets[1]
	if start < 0 || end-start != int64(shape.Elements()*dtype.Size()) {
		return nil, errors.Errorf("tensor %s: byte range [%d, %d] does not hold %s %s", name, start, end, shape, dtype)
	}

	t, err := tensor.NewRaw(shape, dtype, tensor.CPU)
	if err != nil {
		return nil, err
	}
	if _, err := r.file.ReadAt(t.Data(), r.dataOffset+start); err != nil {
		t.Release()
		return nil, errors.Wrapf(err, "failed to read tensor %s", name)
	}
	return t, nil
}

// LoadParams restores every parameter of params from path, matching by
// name. A missing parameter or a shape mismatch is an error; tensors in the
// file that match no parameter are skipped.
func LoadParams(path string, params []*graph.ParamNode) error {
	r, err := Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	wanted := make(map[string]bool, len(params))
	for _, p := range params {
		wanted[p.Name()] = true
		t, err := r.Tensor(p.Name())
		if err != nil {
			return errors.WithMessagef(err, "loading param %q from %s", p.Name(), path)
		}
		if err := p.SetTensor(t); err != nil {
			t.Release()
			return errors.WithMessagef(err, "loading param %q from %s", p.Name(), path)
		}
	}
	for _, name := range r.Names() {
		if !wanted[name] {
			klog.Warningf("%s: tensor %s matches no parameter, skipped", path, name)
		}
	}
	klog.V(1).Infof("loaded %d parameters from %s", len(params), path)
	return nil
}
