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

// Package sparse implements sparse tensor encodings and the extraction of their
// sparsity metadata.
//
// A sparse tensor stores only its specified (nonzero) entries: a value array plus
// one or two integer "overhead" arrays that encode where the values sit in the
// logical dense tensor. Five layout families are supported, mirroring the
// torch.sparse layouts:
//
//   - COO: coordinate list, a single indices array of shape [sparseDims, nse].
//   - CSR/CSC: compressed row/column, a position (pointer) array plus a
//     coordinate (index) array.
//   - BSR/BSC: block variants of CSR/CSC where each compressed entry is a dense
//     sub-block.
//
// MetaOf classifies a sparse tensor handle into a Meta descriptor: its layout
// family, its batch/sparse/dense dimension split, and the bit-widths of its two
// overhead arrays. An importer needs the widths to select the correct physical
// encoding; they are not inferable from the layout alone and must be read from the
// backing arrays.
//
// The concrete encodings (COO, CSR, CSC, BSR, BSC) store their value and overhead
// arrays as dense tensors (see the tensors package), can be built from a dense
// tensor (ToCOO, ToCSR, ...) and converted back (Dense).
package sparse

import (
	"fmt"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/yinying-lisa-li/torch-mlir/types/shapes"
	"github.com/yinying-lisa-li/torch-mlir/types/tensors"
)

// Layout is the sparse layout family of a tensor.
type Layout int

const (
	LayoutCOO Layout = iota
	LayoutCSR
	LayoutCSC
	LayoutBSR
	LayoutBSC
)

//go:generate go tool enumer -type=Layout -trimprefix=Layout -transform=snake -values -text -json sparse.go

// Errors returned by classification. They are deterministic failures: retrying
// the same call cannot succeed.
var (
	// ErrUnsupportedLayout is returned when a tensor's layout is not one of the
	// five supported families.
	ErrUnsupportedLayout = errors.New("unsupported sparse layout")

	// ErrUnsupportedOverheadWidth is returned when an overhead array's element
	// type is not one of the four supported integer widths (8, 16, 32 or 64 bits).
	ErrUnsupportedOverheadWidth = errors.New("unsupported sparse overhead width")
)

// Tensor is an opaque handle to a sparse tensor: any value exposing its layout
// family, logical dense shape and sparse/dense dimension split.
//
// Depending on Layout, the handle must also implement the corresponding family
// interface (COOTensor, CompressedRowTensor or CompressedColTensor) to expose its
// overhead arrays.
type Tensor interface {
	Layout() Layout

	// Shape is the logical dense shape of the tensor, including its value DType.
	Shape() shapes.Shape

	// SparseDims is the number of sparse (compressed) dimensions.
	SparseDims() int

	// DenseDims is the number of trailing dense dimensions stored within each
	// specified entry. For block layouts the block dimensions don't count.
	DenseDims() int
}

// COOTensor is the handle of a COO tensor: a single indices array of shape
// [sparseDims, nse] supplies both overhead widths.
type COOTensor interface {
	Tensor
	Indices() *tensors.Tensor
}

// CompressedRowTensor is the handle of a CSR or BSR tensor: a row-pointer array
// (positions) and a column-index array (coordinates).
type CompressedRowTensor interface {
	Tensor
	CrowIndices() *tensors.Tensor
	ColIndices() *tensors.Tensor
}

// CompressedColTensor is the handle of a CSC or BSC tensor: a column-pointer array
// (positions) and a row-index array (coordinates).
type CompressedColTensor interface {
	Tensor
	CcolIndices() *tensors.Tensor
	RowIndices() *tensors.Tensor
}

// Meta is the sparsity descriptor of a sparse tensor: the metadata an importer
// attaches to the graph node carrying the tensor.
//
// BatchDims + SparseDims + DenseDims always equals the rank of the tensor.
// PosWidth and CrdWidth are the bit-widths of the position (pointer) and
// coordinate (index) overhead arrays. Meta is immutable, computed on demand by
// MetaOf.
type Meta struct {
	Layout     Layout
	BatchDims  int
	SparseDims int
	DenseDims  int
	PosWidth   int
	CrdWidth   int
}

// String implements fmt.Stringer.
func (m Meta) String() string {
	return fmt.Sprintf("%s(batch=%d, sparse=%d, dense=%d, posWidth=%d, crdWidth=%d)",
		m.Layout, m.BatchDims, m.SparseDims, m.DenseDims, m.PosWidth, m.CrdWidth)
}

// OverheadWidth returns the bit-width of an admissible overhead element type.
// Overhead arrays hold indices, so only the signed integer dtypes are admissible;
// anything else returns ErrUnsupportedOverheadWidth.
func OverheadWidth(dtype dtypes.DType) (int, error) {
	switch dtype {
	case dtypes.Int64:
		return 64, nil
	case dtypes.Int32:
		return 32, nil
	case dtypes.Int16:
		return 16, nil
	case dtypes.Int8:
		return 8, nil
	}
	return 0, errors.Wrapf(ErrUnsupportedOverheadWidth, "overhead dtype %s", dtype)
}

// MetaOf classifies a sparse tensor handle into its Meta descriptor.
//
// The dimension split is read from the handle (BatchDims = rank - SparseDims -
// DenseDims); the overhead widths are read from the backing arrays selected by the
// layout family: the single indices array for COO (it supplies both widths),
// crow/col for CSR and BSR, ccol/row for CSC and BSC.
//
// It fails with ErrUnsupportedLayout for a layout outside the five families, and
// with ErrUnsupportedOverheadWidth when an overhead array's element type is not a
// 8, 16, 32 or 64 bit integer.
func MetaOf(t Tensor) (Meta, error) {
	layout := t.Layout()
	rank := t.Shape().Rank()
	meta := Meta{
		Layout:     layout,
		BatchDims:  rank - t.SparseDims() - t.DenseDims(),
		SparseDims: t.SparseDims(),
		DenseDims:  t.DenseDims(),
	}
	var pos, crd *tensors.Tensor
	switch layout {
	case LayoutCOO:
		coo, ok := t.(COOTensor)
		if !ok {
			return Meta{}, errors.Errorf("%s tensor %v does not expose its indices array", layout, t)
		}
		pos, crd = coo.Indices(), coo.Indices()
	case LayoutCSR, LayoutBSR:
		row, ok := t.(CompressedRowTensor)
		if !ok {
			return Meta{}, errors.Errorf("%s tensor %v does not expose its crow/col arrays", layout, t)
		}
		pos, crd = row.CrowIndices(), row.ColIndices()
	case LayoutCSC, LayoutBSC:
		col, ok := t.(CompressedColTensor)
		if !ok {
			return Meta{}, errors.Errorf("%s tensor %v does not expose its ccol/row arrays", layout, t)
		}
		pos, crd = col.CcolIndices(), col.RowIndices()
	default:
		return Meta{}, errors.Wrapf(ErrUnsupportedLayout, "layout %s", layout)
	}
	var err error
	if meta.PosWidth, err = OverheadWidth(pos.DType()); err != nil {
		return Meta{}, errors.WithMessagef(err, "positions of %s tensor", layout)
	}
	if meta.CrdWidth, err = OverheadWidth(crd.DType()); err != nil {
		return Meta{}, errors.WithMessagef(err, "coordinates of %s tensor", layout)
	}
	return meta, nil
}
