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

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/yinying-lisa-li/torch-mlir/types/shapes"
	"github.com/yinying-lisa-li/torch-mlir/types/tensors"
	"k8s.io/klog/v2"
)

// Conversions from a dense tensor into the sparse encodings. An entry (the
// trailing dense sub-tensor for COO/CSR/CSC, the sub-block for BSR/BSC) is
// specified when any of its elements is nonzero. Overhead arrays use int64,
// like torch.Tensor.to_sparse and friends.
//
// Batched compressed conversions are not supported: a generated fixture doesn't
// guarantee the same number of specified entries per batch element, so batched
// encodings must be assembled from per-batch conversions.

// ToCOO converts a dense tensor to the COO encoding, keeping the trailing
// denseDims axes dense within each specified entry.
func ToCOO(dense *tensors.Tensor, denseDims int) (*COO, error) {
	rank := dense.Rank()
	if denseDims < 0 || denseDims >= rank {
		return nil, errors.Errorf("ToCOO: %d dense dimensions leave no sparse dimension on shape %s",
			denseDims, dense.Shape())
	}
	sparseDims := rank - denseDims
	dims := dense.Shape().Dimensions
	entryCount, denseSize := 1, 1
	for _, dim := range dims[:sparseDims] {
		entryCount *= dim
	}
	for _, dim := range dims[sparseDims:] {
		denseSize *= dim
	}

	selected := nonzeroEntries(dense, entryCount, denseSize)
	nse := len(selected)
	indices := tensors.FromShape(shapes.Make(dtypes.Int64, sparseDims, nse))
	tensors.MutableFlatData(indices, func(flat []int64) {
		for k, e := range selected {
			rem := e
			for d := sparseDims - 1; d >= 0; d-- {
				flat[d*nse+k] = int64(rem % dims[d])
				rem /= dims[d]
			}
		}
	})
	values := gatherEntries(dense, selected, denseSize, append([]int{nse}, dims[sparseDims:]...))
	return NewCOO(dense.Shape(), indices, values)
}

// ToCSR converts a dense tensor to the CSR encoding, keeping the trailing
// denseDims axes dense within each specified entry.
func ToCSR(dense *tensors.Tensor, denseDims int) (*CSR, error) {
	crow, col, values, err := toCompressed(LayoutCSR, dense, denseDims)
	if err != nil {
		return nil, err
	}
	return NewCSR(dense.Shape(), denseDims, crow, col, values)
}

// ToCSC converts a dense tensor to the CSC encoding, keeping the trailing
// denseDims axes dense within each specified entry.
func ToCSC(dense *tensors.Tensor, denseDims int) (*CSC, error) {
	ccol, row, values, err := toCompressed(LayoutCSC, dense, denseDims)
	if err != nil {
		return nil, err
	}
	return NewCSC(dense.Shape(), denseDims, ccol, row, values)
}

// ToBSR converts a rank-2 dense tensor to the BSR encoding with the given block
// shape, which must divide the tensor dimensions.
func ToBSR(dense *tensors.Tensor, blockRows, blockCols int) (*BSR, error) {
	crow, col, values, err := toBlockCompressed(LayoutBSR, dense, blockRows, blockCols)
	if err != nil {
		return nil, err
	}
	return NewBSR(dense.Shape(), 0, blockRows, blockCols, crow, col, values)
}

// ToBSC converts a rank-2 dense tensor to the BSC encoding with the given block
// shape, which must divide the tensor dimensions.
func ToBSC(dense *tensors.Tensor, blockRows, blockCols int) (*BSC, error) {
	ccol, row, values, err := toBlockCompressed(LayoutBSC, dense, blockRows, blockCols)
	if err != nil {
		return nil, err
	}
	return NewBSC(dense.Shape(), 0, blockRows, blockCols, ccol, row, values)
}

// toCompressed builds the component arrays of a CSR or CSC encoding.
func toCompressed(layout Layout, dense *tensors.Tensor, denseDims int) (pos, crd, values *tensors.Tensor, err error) {
	rank := dense.Rank()
	if denseDims < 0 || rank-2-denseDims < 0 {
		return nil, nil, nil, errors.Errorf("To%s: shape %s too small for 2 sparse and %d dense dimensions",
			layoutUpper(layout), dense.Shape(), denseDims)
	}
	if rank-2-denseDims > 0 {
		return nil, nil, nil, errors.Errorf("To%s: batched conversion of shape %s is not supported, convert per batch element",
			layoutUpper(layout), dense.Shape())
	}
	dims := dense.Shape().Dimensions
	rows, cols := dims[0], dims[1]
	denseSize := 1
	for _, dim := range dims[2:] {
		denseSize *= dim
	}

	byRow := layout == LayoutCSR
	var selected []int // Entry indices e = i*cols + j, in compressed-axis-major order.
	ncomp := cols
	if byRow {
		ncomp = rows
	}
	counts := make([]int64, ncomp+1)
	dense.ConstFlatData(func(flat any) {
		v := reflect.ValueOf(flat)
		visit := func(i, j int) {
			e := i*cols + j
			if anyNonzero(v, e*denseSize, denseSize) {
				selected = append(selected, e)
				if byRow {
					counts[i+1]++
				} else {
					counts[j+1]++
				}
			}
		}
		if byRow {
			for i := range rows {
				for j := range cols {
					visit(i, j)
				}
			}
		} else {
			for j := range cols {
				for i := range rows {
					visit(i, j)
				}
			}
		}
	})
	nse := len(selected)
	for i := 1; i < len(counts); i++ {
		counts[i] += counts[i-1]
	}

	pos = tensors.FromFlatDataAndDimensions(counts, len(counts))
	crd = tensors.FromShape(shapes.Make(dtypes.Int64, nse))
	tensors.MutableFlatData(crd, func(flat []int64) {
		for k, e := range selected {
			if byRow {
				flat[k] = int64(e % cols)
			} else {
				flat[k] = int64(e / cols)
			}
		}
	})
	values = gatherEntries(dense, selected, denseSize, append([]int{nse}, dims[2:]...))
	klog.V(2).Infof("sparse.To%s: %s -> %d of %d entries specified",
		layoutUpper(layout), dense.Shape(), nse, rows*cols)
	return
}

// toBlockCompressed builds the component arrays of a BSR or BSC encoding.
func toBlockCompressed(layout Layout, dense *tensors.Tensor, blockRows, blockCols int) (pos, crd, values *tensors.Tensor, err error) {
	if dense.Rank() != 2 {
		return nil, nil, nil, errors.Errorf("To%s: requires a rank-2 tensor, got shape %s",
			layoutUpper(layout), dense.Shape())
	}
	if blockRows <= 0 || blockCols <= 0 {
		return nil, nil, nil, errors.Errorf("To%s: invalid block shape [%d %d]", layoutUpper(layout), blockRows, blockCols)
	}
	nrows, ncols := dense.Shape().Dim(0), dense.Shape().Dim(1)
	if nrows%blockRows != 0 || ncols%blockCols != 0 {
		return nil, nil, nil, errors.Errorf("To%s: block shape [%d %d] does not divide shape %s",
			layoutUpper(layout), blockRows, blockCols, dense.Shape())
	}
	nBlockRows, nBlockCols := nrows/blockRows, ncols/blockCols
	blockSize := blockRows * blockCols

	byRow := layout == LayoutBSR
	type block struct{ bi, bj int }
	var selected []block
	ncomp := nBlockCols
	if byRow {
		ncomp = nBlockRows
	}
	counts := make([]int64, ncomp+1)

	dense.ConstFlatData(func(flat any) {
		v := reflect.ValueOf(flat)
		blockNonzero := func(bi, bj int) bool {
			for u := range blockRows {
				if anyNonzero(v, (bi*blockRows+u)*ncols+bj*blockCols, blockCols) {
					return true
				}
			}
			return false
		}
		visit := func(bi, bj int) {
			if blockNonzero(bi, bj) {
				selected = append(selected, block{bi, bj})
				if byRow {
					counts[bi+1]++
				} else {
					counts[bj+1]++
				}
			}
		}
		if byRow {
			for bi := range nBlockRows {
				for bj := range nBlockCols {
					visit(bi, bj)
				}
			}
		} else {
			for bj := range nBlockCols {
				for bi := range nBlockRows {
					visit(bi, bj)
				}
			}
		}
	})
	nse := len(selected)
	for i := 1; i < len(counts); i++ {
		counts[i] += counts[i-1]
	}

	pos = tensors.FromFlatDataAndDimensions(counts, ncomp+1)
	crd = tensors.FromShape(shapes.Make(dtypes.Int64, nse))
	tensors.MutableFlatData(crd, func(flat []int64) {
		for k, b := range selected {
			if byRow {
				flat[k] = int64(b.bj)
			} else {
				flat[k] = int64(b.bi)
			}
		}
	})
	values = tensors.FromShape(shapes.Make(dense.DType(), nse, blockRows, blockCols))
	dense.ConstFlatData(func(src any) {
		srcV := reflect.ValueOf(src)
		values.MutableFlatData(func(dst any) {
			dstV := reflect.ValueOf(dst)
			for k, b := range selected {
				for u := range blockRows {
					for v := range blockCols {
						dstV.Index(k*blockSize + u*blockCols + v).
							Set(srcV.Index((b.bi*blockRows+u)*ncols + b.bj*blockCols + v))
					}
				}
			}
		})
	})
	klog.V(2).Infof("sparse.To%s: %s -> %d of %d blocks specified",
		layoutUpper(layout), dense.Shape(), nse, nBlockRows*nBlockCols)
	return
}

// nonzeroEntries scans the dense tensor as entryCount entries of entrySize
// contiguous elements each and returns the indices of the nonzero ones, in order.
func nonzeroEntries(dense *tensors.Tensor, entryCount, entrySize int) []int {
	var selected []int
	dense.ConstFlatData(func(flat any) {
		v := reflect.ValueOf(flat)
		for e := range entryCount {
			if anyNonzero(v, e*entrySize, entrySize) {
				selected = append(selected, e)
			}
		}
	})
	return selected
}

// anyNonzero reports whether any of the count elements starting at base is nonzero.
func anyNonzero(v reflect.Value, base, count int) bool {
	for i := range count {
		if !v.Index(base + i).IsZero() {
			return true
		}
	}
	return false
}

// gatherEntries copies the selected entries (entrySize contiguous elements each)
// into a fresh tensor of the given dimensions, in selection order.
func gatherEntries(dense *tensors.Tensor, entries []int, entrySize int, dims []int) *tensors.Tensor {
	out := tensors.FromShape(shapes.Make(dense.DType(), dims...))
	dense.ConstFlatData(func(src any) {
		srcV := reflect.ValueOf(src)
		out.MutableFlatData(func(dst any) {
			dstV := reflect.ValueOf(dst)
			for k, e := range entries {
				for i := range entrySize {
					dstV.Index(k*entrySize + i).Set(srcV.Index(e*entrySize + i))
				}
			}
		})
	})
	return out
}

// layoutUpper is the layout name in the spelling of the conversion functions.
func layoutUpper(layout Layout) string {
	switch layout {
	case LayoutCOO:
		return "COO"
	case LayoutCSR:
		return "CSR"
	case LayoutCSC:
		return "CSC"
	case LayoutBSR:
		return "BSR"
	case LayoutBSC:
		return "BSC"
	}
	return layout.String()
}
