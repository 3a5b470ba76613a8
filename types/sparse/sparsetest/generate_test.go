/*
 *	Copyright 2024 Yinying Li
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package sparsetest

import (
	"math"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yinying-lisa-li/torch-mlir/types/shapes"
	"github.com/yinying-lisa-li/torch-mlir/types/sparse"
	"github.com/yinying-lisa-li/torch-mlir/types/tensors"
	"github.com/yinying-lisa-li/torch-mlir/types/xrand"
)

// The expected arrays below match `sparse_test.py` fixtures generated with
// `np.random.seed(0)`, so any drift from NumPy's sampling breaks them.
func TestGenerateSeed0CSR(t *testing.T) {
	rng := xrand.New(0)
	dense := GenerateTensor(rng, shapes.Make(dtypes.Float32, 4, 4), 0.5)
	csr := must.M1(sparse.ToCSR(dense, 0))

	assert.Equal(t, []int64{0, 2, 4, 6, 8}, tensors.CopyFlatData[int64](csr.CrowIndices()))
	assert.Equal(t, []int64{1, 2, 0, 2, 0, 1, 1, 2}, tensors.CopyFlatData[int64](csr.ColIndices()))
	want := []float32{48.7665, 65.8172, 34.7396, 82.2169, 48.9977, 40.2785, 84.6079, 37.8242}
	assert.InDeltaSlice(t, want, tensors.CopyFlatData[float32](csr.Values()), 1e-3)
}

func TestGenerateSeed0HighSparsity(t *testing.T) {
	rng := xrand.New(0)
	dense := GenerateTensor(rng, shapes.Make(dtypes.Float64, 4, 4), 0.9)

	// ceil(0.9*16)=15 zeros, one specified element, at flat position 1.
	flat := tensors.CopyFlatData[float64](dense)
	assert.InDelta(t, 48.76651, flat[1], 1e-4)
	for ii, v := range flat {
		if ii != 1 {
			assert.Zero(t, v, "flat position %d", ii)
		}
	}

	csr := must.M1(sparse.ToCSR(dense, 0))
	assert.Equal(t, []int64{0, 1, 1, 1, 1}, tensors.CopyFlatData[int64](csr.CrowIndices()))
	assert.Equal(t, []int64{1}, tensors.CopyFlatData[int64](csr.ColIndices()))
}

func TestGenerateDeterminism(t *testing.T) {
	shape := shapes.Make(dtypes.Float64, 8, 8)
	a := GenerateTensor(xrand.New(42), shape, 0.6)
	b := GenerateTensor(xrand.New(42), shape, 0.6)
	require.True(t, a.Equal(b))

	c := GenerateTensor(xrand.New(43), shape, 0.6)
	require.False(t, a.Equal(c))
}

func TestGenerateNseCount(t *testing.T) {
	shape := shapes.Make(dtypes.Float64, 5, 7)
	size := shape.Size()
	for _, sparsity := range []float64{0, 0.3, 0.5, 0.77, 0.99, 1} {
		dense := GenerateTensor(xrand.New(0), shape, sparsity)
		nonzero := 0
		for _, v := range tensors.CopyFlatData[float64](dense) {
			if v != 0 {
				nonzero++
				require.GreaterOrEqual(t, v, 1.0)
				require.Less(t, v, 101.0)
			}
		}
		want := size - int(math.Ceil(sparsity*float64(size)))
		require.Equal(t, want, nonzero, "sparsity %g", sparsity)
	}
}

func TestGenerateBoundaries(t *testing.T) {
	shape := shapes.Make(dtypes.Float32, 3, 3)

	full := GenerateTensor(xrand.New(0), shape, 0)
	for _, v := range tensors.CopyFlatData[float32](full) {
		require.NotZero(t, v)
	}

	empty := GenerateTensor(xrand.New(0), shape, 1)
	require.True(t, empty.Equal(tensors.FromShape(shape)))

	// Sparsity just below 1 still rounds to zero specified elements.
	almost := GenerateTensor(xrand.New(0), shape, 0.97)
	require.True(t, almost.Equal(tensors.FromShape(shape)))
}

func TestGenerateDTypes(t *testing.T) {
	for _, dtype := range []dtypes.DType{
		dtypes.Float64, dtypes.Float32, dtypes.Float16, dtypes.BFloat16,
		dtypes.Int8, dtypes.Int32, dtypes.Int64, dtypes.Uint16,
	} {
		dense := GenerateTensor(xrand.New(7), shapes.Make(dtype, 4, 4), 0.5)
		require.Equal(t, dtype, dense.DType())
		// Specified values are in [1, 101), so no dtype rounds them to zero.
		coo := must.M1(sparse.ToCOO(dense, 0))
		require.Equal(t, 8, coo.Nse(), "dtype %s", dtype)
	}
}

func TestGenerateIntTruncation(t *testing.T) {
	// Integer dtypes truncate the float64 draw; regenerating with Float64 and
	// truncating by hand must agree.
	shape := shapes.Make(dtypes.Int32, 6, 6)
	ints := tensors.CopyFlatData[int32](GenerateTensor(xrand.New(3), shape, 0.4))
	floats := tensors.CopyFlatData[float64](GenerateTensor(xrand.New(3), shapes.Make(dtypes.Float64, 6, 6), 0.4))
	for ii := range ints {
		require.Equal(t, int32(floats[ii]), ints[ii])
	}
}

func TestGenerateInvalidSparsity(t *testing.T) {
	shape := shapes.Make(dtypes.Float32, 2, 2)
	require.Panics(t, func() { GenerateTensor(xrand.New(0), shape, -0.1) })
	require.Panics(t, func() { GenerateTensor(xrand.New(0), shape, 1.1) })
}
