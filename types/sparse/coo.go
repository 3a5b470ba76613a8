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

package sparse

import (
	"reflect"

	"github.com/pkg/errors"
	"github.com/yinying-lisa-li/torch-mlir/types/shapes"
	"github.com/yinying-lisa-li/torch-mlir/types/tensors"
)

// COO is a coordinate-list sparse tensor: an indices array of shape
// [sparseDims, nse] and a values array of shape [nse, denseDims...].
type COO struct {
	shape   shapes.Shape
	indices *tensors.Tensor
	values  *tensors.Tensor
}

// NewCOO creates a COO tensor with the given logical dense shape from its
// component arrays. indices must be an integer tensor of shape [sparseDims, nse];
// values must have shape [nse, ...] with the trailing axes matching the shape's
// last rank-sparseDims (dense) axes.
func NewCOO(shape shapes.Shape, indices, values *tensors.Tensor) (*COO, error) {
	if !shape.Ok() || shape.Rank() == 0 {
		return nil, errors.Errorf("NewCOO: invalid or scalar shape %s", shape)
	}
	if !indices.DType().IsInt() {
		return nil, errors.Errorf("NewCOO: indices must be integer, got %s", indices.DType())
	}
	if indices.Rank() != 2 {
		return nil, errors.Errorf("NewCOO: indices must have shape [sparseDims, nse], got %s", indices.Shape())
	}
	sparseDims := indices.Shape().Dim(0)
	if sparseDims < 1 || sparseDims > shape.Rank() {
		return nil, errors.Errorf("NewCOO: %d sparse dimensions incompatible with shape %s", sparseDims, shape)
	}
	if values.DType() != shape.DType {
		return nil, errors.Errorf("NewCOO: values dtype %s does not match shape %s", values.DType(), shape)
	}
	nse := indices.Shape().Dim(1)
	wantDims := append([]int{nse}, shape.Dimensions[sparseDims:]...)
	if err := values.Shape().CheckDims(wantDims...); err != nil {
		return nil, errors.WithMessage(err, "NewCOO: values")
	}
	return &COO{shape: shape, indices: indices, values: values}, nil
}

// Layout returns LayoutCOO. It implements the Tensor interface.
func (c *COO) Layout() Layout { return LayoutCOO }

// Shape is the logical dense shape of the tensor.
func (c *COO) Shape() shapes.Shape { return c.shape }

// SparseDims is the number of coordinate dimensions stored in the indices array.
func (c *COO) SparseDims() int { return c.indices.Shape().Dim(0) }

// DenseDims is the number of trailing dense dimensions of each specified entry.
func (c *COO) DenseDims() int { return c.shape.Rank() - c.SparseDims() }

// Nse is the number of specified entries.
func (c *COO) Nse() int { return c.indices.Shape().Dim(1) }

// Indices is the [sparseDims, nse] coordinates array. It supplies both overhead
// widths of the COO layout. It implements the COOTensor interface.
func (c *COO) Indices() *tensors.Tensor { return c.indices }

// Values is the [nse, denseDims...] array of specified values.
func (c *COO) Values() *tensors.Tensor { return c.values }

// Components splits the tensor into the flat argument list a compiled kernel
// takes for a COO operand: values then indices.
func (c *COO) Components() []*tensors.Tensor {
	return []*tensors.Tensor{c.values, c.indices}
}

// Dense materializes the tensor into its logical dense form.
// It fails if a coordinate is out of range for the shape.
func (c *COO) Dense() (*tensors.Tensor, error) {
	st := c.shape.Strides()
	sparseDims, nse := c.SparseDims(), c.Nse()
	denseSize := 1
	for _, dim := range c.shape.Dimensions[sparseDims:] {
		denseSize *= dim
	}
	idx := overheadInts(c.indices) // Row-major [sparseDims, nse]: axis d of entry k at d*nse+k.
	dense := tensors.FromShape(c.shape)
	var err error
	c.values.ConstFlatData(func(src any) {
		srcV := reflect.ValueOf(src)
		dense.MutableFlatData(func(dst any) {
			dstV := reflect.ValueOf(dst)
			for k := range nse {
				base := 0
				for d := range sparseDims {
					coord := idx[d*nse+k]
					if coord < 0 || coord >= c.shape.Dimensions[d] {
						err = errors.Errorf("COO entry %d has coordinate %d out of range for axis %d of shape %s",
							k, coord, d, c.shape)
						return
					}
					base += coord * st[d]
				}
				for e := range denseSize {
					dstV.Index(base + e).Set(srcV.Index(k*denseSize + e))
				}
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return dense, nil
}

// overheadInts returns a copy of an integer overhead array, widened to int.
func overheadInts(t *tensors.Tensor) []int {
	out := make([]int, t.Size())
	t.ConstFlatData(func(flat any) {
		v := reflect.ValueOf(flat)
		for ii := range out {
			out[ii] = int(v.Index(ii).Int())
		}
	})
	return out
}
