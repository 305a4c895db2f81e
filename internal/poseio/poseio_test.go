package poseio

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"

	"github.com/born-ml/se3diff/internal/diffusion"
	"github.com/born-ml/se3diff/internal/noise"
	"github.com/born-ml/se3diff/internal/parallel"
	"github.com/born-ml/se3diff/internal/so3"
	"github.com/born-ml/se3diff/internal/tensor"
)

func TestRoundTrip(t *testing.T) {
	a, err := tensor.New(tensor.Shape{2, 3}, []float64{1, -2, 3.5, math.Pi, 0, -1e-300})
	require.NoError(t, err)
	b := tensor.Full(tensor.Shape{4}, 7)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, map[string]*tensor.Dense{"b": b, "a": a}, map[string]string{"seed": "3"}))

	f, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, f.Names())
	assert.Equal(t, "3", f.Metadata["seed"])
	assert.Len(t, f.Metadata[checksumKey], 64)

	got, err := f.Tensor("a")
	require.NoError(t, err)
	assert.Equal(t, a.Shape(), got.Shape())
	assert.Equal(t, a.Data(), got.Data())

	_, err = f.Tensor("c")
	assert.ErrorIs(t, err, ErrMissingTensor)
}

func TestReadDetectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, map[string]*tensor.Dense{"x": tensor.Full(tensor.Shape{3}, 1)}, nil))

	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xff
	_, err := Read(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

// writeRaw builds a file from a hand-made header, without a checksum.
func writeRaw(t *testing.T, header map[string]any, data []byte) []byte {
	t.Helper()
	h, err := json.Marshal(header)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(h))))
	buf.Write(h)
	buf.Write(data)
	return buf.Bytes()
}

func TestReadValidation(t *testing.T) {
	data := make([]byte, 32)
	tests := []struct {
		name   string
		header map[string]any
		kind   string
		err    error
	}{
		{
			name:   "out of bounds",
			header: map[string]any{"x": tensorInfo{DType: "F64", Shape: []int{5}, DataOffsets: [2]int64{0, 40}}},
			kind:   "out_of_bounds",
		},
		{
			name: "overlap",
			header: map[string]any{
				"x": tensorInfo{DType: "F64", Shape: []int{2}, DataOffsets: [2]int64{0, 16}},
				"y": tensorInfo{DType: "F64", Shape: []int{2}, DataOffsets: [2]int64{8, 24}},
			},
			kind: "offset_overlap",
		},
		{
			name:   "negative",
			header: map[string]any{"x": tensorInfo{DType: "F64", Shape: []int{1}, DataOffsets: [2]int64{-8, 0}}},
			kind:   "negative_offset",
		},
		{
			name:   "size mismatch",
			header: map[string]any{"x": tensorInfo{DType: "F64", Shape: []int{3}, DataOffsets: [2]int64{0, 16}}},
			kind:   "size_mismatch",
		},
		{
			name:   "path name",
			header: map[string]any{"../x": tensorInfo{DType: "F64", Shape: []int{1}, DataOffsets: [2]int64{0, 8}}},
			kind:   "invalid_name",
		},
		{
			name:   "dtype",
			header: map[string]any{"x": tensorInfo{DType: "F32", Shape: []int{1}, DataOffsets: [2]int64{0, 4}}},
			err:    ErrUnsupportedDType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(writeRaw(t, tt.header, data)))
			require.Error(t, err)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.kind, ve.Type)
		})
	}

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(maxHeaderSize+1)))
	_, err := Read(&buf)
	assert.ErrorIs(t, err, ErrHeaderTooLarge)
}

func TestWriteRejectsBadNames(t *testing.T) {
	for _, name := range []string{"", "a/b", metadataKey} {
		err := Write(&bytes.Buffer{}, map[string]*tensor.Dense{name: tensor.Full(tensor.Shape{1}, 0)}, nil)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, "name %q", name)
	}
}

func TestQuaternions(t *testing.T) {
	v := noise.New(4).Normal(tensor.Shape{2, 3, 3})
	rot, err := so3.NewBatched(parallel.Sequential()).Exp(v)
	require.NoError(t, err)

	q, err := Quaternions(rot)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{2, 3, 4}, q.Shape())
	for i := 0; i < 6; i++ {
		n := quat.Number{Real: q.At(i/3, i%3, 0), Imag: q.At(i/3, i%3, 1), Jmag: q.At(i/3, i%3, 2), Kmag: q.At(i/3, i%3, 3)}
		assert.InDelta(t, 1, quat.Abs(n), 1e-12)
		back := so3.FromQuaternion(n)
		want := so3.MatrixAt(rot, i)
		assert.InDeltaSlice(t, want[:], back[:], 1e-9)
	}

	_, err = Quaternions(tensor.Zeros(tensor.Shape{1, 2, 9}))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestSampleFileRoundTrip(t *testing.T) {
	cfg := diffusion.DefaultConfig()
	cfg.Timesteps, cfg.SeqLen = 4, 5
	d, err := diffusion.New(cfg, diffusion.ZeroModel{})
	require.NoError(t, err)
	s, err := d.Sample(context.Background(), diffusion.SampleShape{Batch: 2}, noise.New(5))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sample.safetensors")
	require.NoError(t, WriteSample(path, s, map[string]string{"timesteps": "4"}))

	got, meta, err := ReadSample(path)
	require.NoError(t, err)
	assert.Equal(t, "4", meta["timesteps"])
	assert.Equal(t, s.Poses.Data(), got.Poses.Data())
	assert.Equal(t, s.Rot.Data(), got.Rot.Data())
	assert.Equal(t, s.Trans.Data(), got.Trans.Data())

	f, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{PosesName, QuaternionsName, RotationsName, TranslationsName}, f.Names())

	_, _, err = ReadSample(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
