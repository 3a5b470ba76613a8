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

// Package sparsetest generates deterministic test fixtures for sparse tensor
// code: dense tensors with a target sparsity, meant to be converted into a
// sparse encoding by the test using them.
//
// The generator is bit-compatible with the NumPy-based fixture generation of
// torch-mlir's sparse importer tests: with xrand.New(seed) it reproduces, bit
// for bit, `np.random.seed(seed)` followed by the same choice/uniform draws, so
// FileCheck-style expected values keep matching.
package sparsetest

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
	"github.com/yinying-lisa-li/torch-mlir/types/shapes"
	"github.com/yinying-lisa-li/torch-mlir/types/tensors"
	"github.com/yinying-lisa-li/torch-mlir/types/xrand"
	"k8s.io/klog/v2"
)

// GenerateTensor generates a dense tensor of the given shape (including its
// dtype) with the given sparsity level in [0, 1].
//
// The number of specified (nonzero) elements is exactly
// `size - ceil(sparsity*size)`: sparsity 0 yields a fully dense tensor and
// sparsity 1 an all-zero one. Their flat positions are sampled uniformly without
// replacement and their values uniformly from [1, 101), so no specified value
// collides with zero. Values are generated as float64 and cast to the shape's
// dtype last (truncating for integer dtypes).
//
// The generator state is owned by the caller: the same rng seed, shape and
// sparsity always produce the bit-identical tensor, and concurrent callers with
// their own rng don't affect each other.
//
// A generated tensor doesn't guarantee the same number of specified elements per
// batch element. For batched encodings, generate and convert one tensor per
// batch element instead.
func GenerateTensor(rng *xrand.Rand, shape shapes.Shape, sparsity float64) *tensors.Tensor {
	if sparsity < 0 || sparsity > 1 {
		exceptions.Panicf("sparsetest.GenerateTensor: sparsity %g outside [0, 1]", sparsity)
	}
	size := shape.Size()
	nse := size - int(math.Ceil(sparsity*float64(size)))

	flat := make([]float64, size)
	indices := rng.Choice(size, nse)
	values := rng.Uniform(0, 1, nse)
	for k, idx := range indices {
		flat[idx] = values[k]*100 + 1
	}

	t := tensors.FromShape(shape)
	castInto(t, flat)
	klog.V(2).Infof("sparsetest.GenerateTensor: %s with %d of %d elements specified", shape, nse, size)
	return t
}

// castInto fills t with src cast to t's dtype, NumPy astype style: floats are
// rounded to the nearest representable value, integers truncate toward zero.
func castInto(t *tensors.Tensor, src []float64) {
	switch t.DType() {
	case dtypes.Float64:
		tensors.AssignFlatData(t, src)
	case dtypes.Float32:
		fill(t, src, func(v float64) float32 { return float32(v) })
	case dtypes.Float16:
		fill(t, src, func(v float64) float16.Float16 { return float16.Fromfloat32(float32(v)) })
	case dtypes.BFloat16:
		fill(t, src, func(v float64) bfloat16.BFloat16 { return bfloat16.FromFloat32(float32(v)) })
	case dtypes.Int8:
		fill(t, src, func(v float64) int8 { return int8(v) })
	case dtypes.Int16:
		fill(t, src, func(v float64) int16 { return int16(v) })
	case dtypes.Int32:
		fill(t, src, func(v float64) int32 { return int32(v) })
	case dtypes.Int64:
		fill(t, src, func(v float64) int64 { return int64(v) })
	case dtypes.Uint8:
		fill(t, src, func(v float64) uint8 { return uint8(v) })
	case dtypes.Uint16:
		fill(t, src, func(v float64) uint16 { return uint16(v) })
	case dtypes.Uint32:
		fill(t, src, func(v float64) uint32 { return uint32(v) })
	case dtypes.Uint64:
		fill(t, src, func(v float64) uint64 { return uint64(v) })
	default:
		exceptions.Panicf("sparsetest.GenerateTensor: unsupported dtype %s", t.DType())
	}
}

func fill[T dtypes.Supported](t *tensors.Tensor, src []float64, conv func(float64) T) {
	tensors.MutableFlatData(t, func(flat []T) {
		for ii, v := range src {
			flat[ii] = conv(v)
		}
	})
}
