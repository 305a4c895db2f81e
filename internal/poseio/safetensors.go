// Package poseio stores batches of poses in the SafeTensors format so that
// generated trajectories can be inspected, plotted or fed back in by other
// tools.
//
// Layout of a file:
//
//	[8 bytes: header size N (uint64 LE)]
//	[N bytes: JSON header]
//	[tensor data: little-endian float64, in name order]
//
// The header's __metadata__ carries free-form string pairs plus the SHA-256
// of the data section under "sha256".
package poseio

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/born-ml/se3diff/internal/tensor"
)

const (
	dtypeF64 = "F64"

	metadataKey = "__metadata__"
	checksumKey = "sha256"

	maxHeaderSize = 100 * 1024 * 1024
	maxTensors    = 1024
)

// Common errors.
var (
	ErrChecksumMismatch = errors.New("checksum mismatch: file may be corrupted")
	ErrHeaderTooLarge   = errors.New("header exceeds maximum size")
	ErrUnsupportedDType = errors.New("unsupported dtype")
	ErrMissingTensor    = errors.New("tensor not found")
)

// ValidationError describes a malformed tensor entry.
type ValidationError struct {
	Type    string // "out_of_bounds", "offset_overlap", "invalid_name", ...
	Tensor  string
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor != "" {
		return fmt.Sprintf("%s: tensor %q: %s", e.Type, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

// tensorInfo is one tensor entry of the header.
type tensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// File is the decoded content of a pose file.
type File struct {
	Metadata map[string]string
	Tensors  map[string]*tensor.Dense
}

// Names returns the tensor names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Tensors))
	for name := range f.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tensor returns the named tensor.
func (f *File) Tensor(name string) (*tensor.Dense, error) {
	t, ok := f.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingTensor, name)
	}
	return t, nil
}

// Write encodes tensors and metadata to w. Tensors are laid out in
// alphabetical order by name.
func Write(w io.Writer, tensors map[string]*tensor.Dense, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if err := validateName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var data bytes.Buffer
	header := make(map[string]any, len(names)+1)
	var offset int64
	for _, name := range names {
		t := tensors[name]
		if t == nil {
			return fmt.Errorf("tensor %s: %w", name, tensor.ErrNilTensor)
		}
		buf := make([]byte, 8*t.Len())
		for i, v := range t.Data() {
			binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
		}
		data.Write(buf)

		size := int64(len(buf))
		header[name] = tensorInfo{
			DType:       dtypeF64,
			Shape:       slices.Clone(t.Shape()),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	sum := sha256.Sum256(data.Bytes())
	meta[checksumKey] = hex.EncodeToString(sum[:])
	header[metadataKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := data.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// WriteFile writes tensors and metadata to path.
func WriteFile(path string, tensors map[string]*tensor.Dense, metadata map[string]string) (err error) {
	//nolint:gosec // G304: path is chosen by the user
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Write(f, tensors, metadata)
}

// Read decodes a pose file from r, validating offsets and the checksum.
func Read(r io.Reader) (*File, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > maxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	f := &File{Metadata: map[string]string{}, Tensors: map[string]*tensor.Dense{}}
	infos := make(map[string]tensorInfo, len(raw))
	for key, value := range raw {
		if key == metadataKey {
			if err := json.Unmarshal(value, &f.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
			continue
		}
		if err := validateName(key); err != nil {
			return nil, err
		}
		var info tensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		if info.DType != dtypeF64 {
			return nil, fmt.Errorf("tensor %s: %w: %s", key, ErrUnsupportedDType, info.DType)
		}
		infos[key] = info
	}
	if len(infos) > maxTensors {
		return nil, &ValidationError{Type: "too_many_tensors", Details: fmt.Sprintf("got %d, max %d", len(infos), maxTensors)}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if want, ok := f.Metadata[checksumKey]; ok {
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != want {
			return nil, ErrChecksumMismatch
		}
	}
	if err := validateOffsets(infos, int64(len(data))); err != nil {
		return nil, err
	}

	for name, info := range infos {
		shape := tensor.Shape(info.Shape)
		if err := shape.Validate(); err != nil {
			return nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
		}
		chunk := data[info.DataOffsets[0]:info.DataOffsets[1]]
		if len(chunk) != 8*shape.NumElements() {
			return nil, &ValidationError{
				Type:    "size_mismatch",
				Tensor:  name,
				Details: fmt.Sprintf("%d bytes for shape %v", len(chunk), shape),
			}
		}
		values := make([]float64, shape.NumElements())
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(chunk[8*i:]))
		}
		t, err := tensor.New(shape, values)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		f.Tensors[name] = t
	}
	return f, nil
}

// ReadFile reads a pose file from path.
func ReadFile(path string) (*File, error) {
	//nolint:gosec // G304: path is chosen by the user
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer fh.Close()
	return Read(fh)
}

// validateOffsets rejects negative, out-of-bounds and overlapping regions.
func validateOffsets(infos map[string]tensorInfo, dataSize int64) error {
	type region struct {
		name       string
		start, end int64
	}
	regions := make([]region, 0, len(infos))
	for name, info := range infos {
		regions = append(regions, region{name, info.DataOffsets[0], info.DataOffsets[1]})
	}
	sort.Slice(regions, func(i, j int) bool {
		return regions[i].start < regions[j].start
	})

	for i, r := range regions {
		if r.start < 0 || r.end < r.start {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  r.name,
				Details: fmt.Sprintf("offsets [%d, %d]", r.start, r.end),
			}
		}
		if r.end > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  r.name,
				Details: fmt.Sprintf("end %d > data size %d", r.end, dataSize),
			}
		}
		if i+1 < len(regions) && r.end > regions[i+1].start {
			return &ValidationError{
				Type:    "offset_overlap",
				Tensor:  r.name,
				Details: fmt.Sprintf("overlaps %q", regions[i+1].name),
			}
		}
	}
	return nil
}

// validateName rejects empty names and names that could be mistaken for paths.
func validateName(name string) error {
	switch {
	case name == "" || name == metadataKey:
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "reserved or empty"}
	case strings.ContainsAny(name, "/\\\x00") || strings.Contains(name, ".."):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains a path separator, '..' or NUL"}
	}
	return nil
}
