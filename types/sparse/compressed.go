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
	"slices"

	"github.com/pkg/errors"
	"github.com/yinying-lisa-li/torch-mlir/types/shapes"
	"github.com/yinying-lisa-li/torch-mlir/types/tensors"
)

// compressed is the shared representation of the CSR/CSC/BSR/BSC families: a
// position (pointer) array over the compressed axis, a coordinate (index) array
// per specified entry, and the values.
//
// Layouts compress exactly two sparse axes, placed after batchDims batch axes and
// before denseDims dense axes. For the block variants each specified entry is a
// [blockRows, blockCols] sub-block of the two sparse axes; the block axes of the
// values array don't count as dense dimensions.
type compressed struct {
	layout    Layout
	shape     shapes.Shape
	denseDims int
	blockDims []int // nil for CSR/CSC, [blockRows, blockCols] for BSR/BSC.

	pos    *tensors.Tensor // [batch..., ncomp+1]
	crd    *tensors.Tensor // [batch..., nse]
	values *tensors.Tensor // [batch..., nse, block..., dense...]
}

// newCompressed validates the component arrays against the logical shape.
// batchDims is inferred: rank - 2 - denseDims.
func newCompressed(layout Layout, shape shapes.Shape, denseDims int, blockDims []int, pos, crd, values *tensors.Tensor) (*compressed, error) {
	if !shape.Ok() {
		return nil, errors.Errorf("new %s tensor: invalid shape", layout)
	}
	if denseDims < 0 {
		return nil, errors.Errorf("new %s tensor: negative denseDims %d", layout, denseDims)
	}
	batchDims := shape.Rank() - 2 - denseDims
	if batchDims < 0 {
		return nil, errors.Errorf("new %s tensor: shape %s too small for 2 sparse and %d dense dimensions",
			layout, shape, denseDims)
	}
	if !pos.DType().IsInt() || !crd.DType().IsInt() {
		return nil, errors.Errorf("new %s tensor: overhead arrays must be integer, got positions %s and coordinates %s",
			layout, pos.DType(), crd.DType())
	}
	if values.DType() != shape.DType {
		return nil, errors.Errorf("new %s tensor: values dtype %s does not match shape %s", layout, values.DType(), shape)
	}

	nrows, ncols := shape.Dim(batchDims), shape.Dim(batchDims+1)
	if len(blockDims) == 2 {
		blockRows, blockCols := blockDims[0], blockDims[1]
		if blockRows <= 0 || blockCols <= 0 {
			return nil, errors.Errorf("new %s tensor: invalid block shape %v", layout, blockDims)
		}
		if nrows%blockRows != 0 || ncols%blockCols != 0 {
			return nil, errors.Errorf("new %s tensor: block shape %v does not divide sparse dimensions [%d %d]",
				layout, blockDims, nrows, ncols)
		}
		nrows /= blockRows
		ncols /= blockCols
	}
	ncomp := nrows
	if layout == LayoutCSC || layout == LayoutBSC {
		ncomp = ncols
	}

	batch := shape.Dimensions[:batchDims]
	if err := pos.Shape().CheckDims(append(slices.Clone(batch), ncomp+1)...); err != nil {
		return nil, errors.WithMessagef(err, "new %s tensor: positions", layout)
	}
	wantValues := append(slices.Clone(batch), -1)
	wantValues = append(wantValues, blockDims...)
	wantValues = append(wantValues, shape.Dimensions[batchDims+2:]...)
	if err := values.Shape().CheckDims(wantValues...); err != nil {
		return nil, errors.WithMessagef(err, "new %s tensor: values", layout)
	}
	nse := values.Shape().Dim(batchDims)
	if err := crd.Shape().CheckDims(append(slices.Clone(batch), nse)...); err != nil {
		return nil, errors.WithMessagef(err, "new %s tensor: coordinates", layout)
	}
	return &compressed{
		layout:    layout,
		shape:     shape,
		denseDims: denseDims,
		blockDims: slices.Clone(blockDims),
		pos:       pos,
		crd:       crd,
		values:    values,
	}, nil
}

// Layout returns the layout family. It implements the Tensor interface.
func (c *compressed) Layout() Layout { return c.layout }

// Shape is the logical dense shape of the tensor.
func (c *compressed) Shape() shapes.Shape { return c.shape }

// SparseDims is always 2 for the compressed families.
func (c *compressed) SparseDims() int { return 2 }

// DenseDims is the number of trailing dense dimensions of each specified entry
// (block axes excluded for BSR/BSC).
func (c *compressed) DenseDims() int { return c.denseDims }

// BatchDims is the number of leading batch dimensions.
func (c *compressed) BatchDims() int { return c.shape.Rank() - 2 - c.denseDims }

// Nse is the number of specified entries (per batch element, if batched).
func (c *compressed) Nse() int { return c.values.Shape().Dim(c.BatchDims()) }

// Values is the array of specified values.
func (c *compressed) Values() *tensors.Tensor { return c.values }

// Components splits the tensor into the flat argument list a compiled kernel
// takes for a compressed operand: values, positions, coordinates.
func (c *compressed) Components() []*tensors.Tensor {
	return []*tensors.Tensor{c.values, c.pos, c.crd}
}

// Dense materializes the tensor into its logical dense form.
//
// Batched encodings are not supported: materialize each batch element separately.
// It also fails if an overhead entry is out of range.
func (c *compressed) Dense() (*tensors.Tensor, error) {
	if c.BatchDims() != 0 {
		return nil, errors.Errorf("%s.Dense: batched encodings are not supported, materialize per batch element", c.layout)
	}
	blockRows, blockCols := 1, 1
	if len(c.blockDims) == 2 {
		blockRows, blockCols = c.blockDims[0], c.blockDims[1]
	}
	st := c.shape.Strides()
	denseSize := 1
	for _, dim := range c.shape.Dimensions[2:] {
		denseSize *= dim
	}
	pos, crd := overheadInts(c.pos), overheadInts(c.crd)
	byRow := c.layout == LayoutCSR || c.layout == LayoutBSR
	nBlockRows := c.shape.Dim(0) / blockRows
	nBlockCols := c.shape.Dim(1) / blockCols

	dense := tensors.FromShape(c.shape)
	var err error
	c.values.ConstFlatData(func(src any) {
		srcV := reflect.ValueOf(src)
		dense.MutableFlatData(func(dst any) {
			dstV := reflect.ValueOf(dst)
			for i := 0; i < len(pos)-1; i++ {
				for p := pos[i]; p < pos[i+1]; p++ {
					if p < 0 || p >= len(crd) {
						err = errors.Errorf("%s.Dense: position entry %d out of range for %d specified entries",
							c.layout, p, len(crd))
						return
					}
					bi, bj := i, crd[p]
					if !byRow {
						bi, bj = crd[p], i
					}
					if bi < 0 || bi >= nBlockRows || bj < 0 || bj >= nBlockCols {
						err = errors.Errorf("%s.Dense: entry %d at block (%d, %d) out of range for shape %s",
							c.layout, p, bi, bj, c.shape)
						return
					}
					for u := range blockRows {
						for v := range blockCols {
							dstBase := (bi*blockRows+u)*st[0] + (bj*blockCols+v)*st[1]
							srcBase := (p*blockRows*blockCols + u*blockCols + v) * denseSize
							for e := range denseSize {
								dstV.Index(dstBase + e).Set(srcV.Index(srcBase + e))
							}
						}
					}
				}
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return dense, nil
}

// CSR is a compressed-sparse-row tensor: a row-pointer (positions) array and a
// column-index (coordinates) array.
type CSR struct{ compressed }

// NewCSR creates a CSR tensor with the given logical dense shape and number of
// trailing dense dimensions from its component arrays. Batch dimensions are
// whatever the rank leaves over: rank - 2 - denseDims.
func NewCSR(shape shapes.Shape, denseDims int, crow, col, values *tensors.Tensor) (*CSR, error) {
	c, err := newCompressed(LayoutCSR, shape, denseDims, nil, crow, col, values)
	if err != nil {
		return nil, err
	}
	return &CSR{*c}, nil
}

// CrowIndices is the row-pointer (positions) array. It implements the
// CompressedRowTensor interface.
func (c *CSR) CrowIndices() *tensors.Tensor { return c.pos }

// ColIndices is the column-index (coordinates) array.
func (c *CSR) ColIndices() *tensors.Tensor { return c.crd }

// CSC is a compressed-sparse-column tensor: a column-pointer (positions) array
// and a row-index (coordinates) array.
type CSC struct{ compressed }

// NewCSC creates a CSC tensor with the given logical dense shape and number of
// trailing dense dimensions from its component arrays.
func NewCSC(shape shapes.Shape, denseDims int, ccol, row, values *tensors.Tensor) (*CSC, error) {
	c, err := newCompressed(LayoutCSC, shape, denseDims, nil, ccol, row, values)
	if err != nil {
		return nil, err
	}
	return &CSC{*c}, nil
}

// CcolIndices is the column-pointer (positions) array. It implements the
// CompressedColTensor interface.
func (c *CSC) CcolIndices() *tensors.Tensor { return c.pos }

// RowIndices is the row-index (coordinates) array.
func (c *CSC) RowIndices() *tensors.Tensor { return c.crd }

// BSR is a block compressed-sparse-row tensor: as CSR, but each specified entry
// is a dense [blockRows, blockCols] sub-block.
type BSR struct{ compressed }

// NewBSR creates a BSR tensor with the given logical dense shape, number of
// trailing dense dimensions and block shape from its component arrays. The block
// shape must divide the two sparse dimensions.
func NewBSR(shape shapes.Shape, denseDims, blockRows, blockCols int, crow, col, values *tensors.Tensor) (*BSR, error) {
	c, err := newCompressed(LayoutBSR, shape, denseDims, []int{blockRows, blockCols}, crow, col, values)
	if err != nil {
		return nil, err
	}
	return &BSR{*c}, nil
}

// BlockDims returns the [blockRows, blockCols] block shape.
func (c *BSR) BlockDims() []int { return slices.Clone(c.blockDims) }

// CrowIndices is the block-row-pointer (positions) array. It implements the
// CompressedRowTensor interface.
func (c *BSR) CrowIndices() *tensors.Tensor { return c.pos }

// ColIndices is the block-column-index (coordinates) array.
func (c *BSR) ColIndices() *tensors.Tensor { return c.crd }

// BSC is a block compressed-sparse-column tensor: as CSC, but each specified
// entry is a dense [blockRows, blockCols] sub-block.
type BSC struct{ compressed }

// NewBSC creates a BSC tensor with the given logical dense shape, number of
// trailing dense dimensions and block shape from its component arrays.
func NewBSC(shape shapes.Shape, denseDims, blockRows, blockCols int, ccol, row, values *tensors.Tensor) (*BSC, error) {
	c, err := newCompressed(LayoutBSC, shape, denseDims, []int{blockRows, blockCols}, ccol, row, values)
	if err != nil {
		return nil, err
	}
	return &BSC{*c}, nil
}

// BlockDims returns the [blockRows, blockCols] block shape.
func (c *BSC) BlockDims() []int { return slices.Clone(c.blockDims) }

// CcolIndices is the block-column-pointer (positions) array. It implements the
// CompressedColTensor interface.
func (c *BSC) CcolIndices() *tensors.Tensor { return c.pos }

// RowIndices is the block-row-index (coordinates) array.
func (c *BSC) RowIndices() *tensors.Tensor { return c.crd }
