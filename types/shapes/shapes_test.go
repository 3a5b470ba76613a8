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

package shapes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	s := Make(dtypes.Float32, 4, 4)
	require.True(t, s.Ok())
	require.Equal(t, 2, s.Rank())
	require.Equal(t, 16, s.Size())
	require.Equal(t, "(Float32)[4 4]", s.String())

	scalar := Scalar[float64]()
	require.True(t, scalar.Ok())
	require.True(t, scalar.IsScalar())
	require.Equal(t, 0, scalar.Rank())
	require.Equal(t, 1, scalar.Size())

	require.False(t, Invalid().Ok())
	require.False(t, Shape{}.Ok())

	// Zero-sized axes are allowed (empty overhead arrays), negative ones are not.
	empty := Make(dtypes.Int64, 3, 0)
	require.True(t, empty.Ok())
	require.Equal(t, 0, empty.Size())
	require.Panics(t, func() { Make(dtypes.Float32, -1) })
}

func TestDim(t *testing.T) {
	s := Make(dtypes.Int64, 2, 3, 5)
	require.Equal(t, 2, s.Dim(0))
	require.Equal(t, 5, s.Dim(2))
	require.Equal(t, 5, s.Dim(-1))
	require.Equal(t, 2, s.Dim(-3))
	require.Panics(t, func() { s.Dim(3) })
	require.Panics(t, func() { s.Dim(-4) })
}

func TestStrides(t *testing.T) {
	require.Equal(t, []int{8, 2, 1}, Make(dtypes.Float32, 8, 4, 2).Strides())
	require.Equal(t, []int{1}, Make(dtypes.Float32, 7).Strides())
	require.Empty(t, Scalar[float32]().Strides())
}

func TestEqualAndClone(t *testing.T) {
	s := Make(dtypes.Float64, 4, 4)
	require.True(t, s.Equal(Make(dtypes.Float64, 4, 4)))
	require.False(t, s.Equal(Make(dtypes.Float32, 4, 4)))
	require.False(t, s.Equal(Make(dtypes.Float64, 4, 2)))

	clone := s.Clone()
	require.True(t, s.Equal(clone))
	clone.Dimensions[0] = 7
	require.Equal(t, 4, s.Dimensions[0])
}

func TestCheckDims(t *testing.T) {
	s := Make(dtypes.Float32, 4, 3)
	require.NoError(t, s.CheckDims(4, 3))
	require.NoError(t, s.CheckDims(-1, 3))
	require.Error(t, s.CheckDims(4))
	require.Error(t, s.CheckDims(4, 2))
	require.NotPanics(t, func() { s.AssertDims(4, -1) })
	require.Panics(t, func() { s.AssertDims(3, 4) })
}
