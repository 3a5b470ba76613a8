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

package tensors

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
	"github.com/yinying-lisa-li/torch-mlir/types/shapes"
)

func TestFromShape(t *testing.T) {
	tensor := FromShape(shapes.Make(dtypes.Float32, 2, 3))
	require.Equal(t, 6, tensor.Size())
	require.Equal(t, 2, tensor.Rank())
	require.Equal(t, dtypes.Float32, tensor.DType())
	ConstFlatData(tensor, func(flat []float32) {
		require.Len(t, flat, 6)
		for _, v := range flat {
			require.Zero(t, v)
		}
	})
	require.Panics(t, func() { FromShape(shapes.Invalid()) })
}

func TestFromFlatDataAndDimensions(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]int8{1, 2, 3, 4}, 2, 2)
	require.True(t, tensor.Shape().Equal(shapes.Make(dtypes.Int8, 2, 2)))
	require.Equal(t, []int8{1, 2, 3, 4}, CopyFlatData[int8](tensor))

	// Wrong data size for the dimensions.
	require.Panics(t, func() { FromFlatDataAndDimensions([]int8{1, 2, 3}, 2, 2) })
}

func TestFromScalarAndDimensions(t *testing.T) {
	tensor := FromScalarAndDimensions(float64(7), 3)
	require.Equal(t, []float64{7, 7, 7}, CopyFlatData[float64](tensor))

	scalar := FromScalar(int32(-1))
	require.True(t, scalar.IsScalar())
	require.Equal(t, int32(-1), ToScalar[int32](scalar))
	require.Panics(t, func() { ToScalar[int32](tensor) })
}

func TestFlatDataAccess(t *testing.T) {
	tensor := FromShape(shapes.Make(dtypes.Int64, 4))
	MutableFlatData(tensor, func(flat []int64) {
		for ii := range flat {
			flat[ii] = int64(ii * ii)
		}
	})
	require.Equal(t, []int64{0, 1, 4, 9}, CopyFlatData[int64](tensor))

	// Generic accessors panic on a dtype mismatch.
	require.Panics(t, func() { ConstFlatData(tensor, func(flat []float32) {}) })
	require.Panics(t, func() { MutableFlatData(tensor, func(flat []float32) {}) })
}

func TestCloneAndEqual(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	clone := tensor.Clone()
	require.True(t, tensor.Equal(clone))

	MutableFlatData(clone, func(flat []float32) { flat[0] = -1 })
	require.False(t, tensor.Equal(clone))
	require.Equal(t, float32(1), CopyFlatData[float32](tensor)[0])

	other := FromFlatDataAndDimensions([]float32{1, 2, 3, 4, 5, 6}, 3, 2)
	require.False(t, tensor.Equal(other))
}
