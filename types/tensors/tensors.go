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

// Package tensors implements Tensor, a host-memory representation of a dense
// multi-dimensional array.
//
// Tensors are defined by their shape (a data type and its axes' dimensions, see the
// shapes package) and their content, stored as a flat (1D) Go slice of the dtype's
// Go type, in row-major order.
//
// They are used as the dense form of sparse encodings (see the sparse package), as
// the backing storage of sparse overhead (position/coordinate) arrays, and as the
// output of the test fixture generator (see the sparsetest package).
//
// There are various ways to construct a Tensor:
//
//   - FromShape(shape shapes.Shape): creates a tensor with the given shape, and zero values.
//   - FromScalarAndDimensions[T](value T, dimensions ...int): creates a Tensor with the
//     given dimensions, filled with the scalar value given.
//   - FromFlatDataAndDimensions[T](data []T, dimensions ...int): creates a Tensor with the
//     given dimensions, and sets the flattened values with the given data. Example:
//
//     t := FromFlatDataAndDimensions([]int8{1, 2, 3, 4}, 2, 2) // Tensor with [[1,2], [3,4]]
//
// Access to the data is done with an accessor function, during which the tensor is
// locked -- see ConstFlatData and MutableFlatData.
package tensors

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/yinying-lisa-li/torch-mlir/types/shapes"
)

// Tensor represents a dense multi-dimensional array (from a scalar with 0 dimensions
// to arbitrarily large dimensions), defined by its shape and its flat content.
//
// The flat data is always stored as a Go slice of the dtype's Go type, in row-major
// order. See Shape.Strides to map a multi-dimensional index to a flat position.
type Tensor struct {
	// shape of the tensor. Immutable once the tensor is created.
	shape shapes.Shape

	// mu protects flat during accessor functions.
	mu   sync.Mutex
	flat any // Slice of the Go type for the dtype of the shape.
}

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
func FromShape(shape shapes.Shape) (t *Tensor) {
	if !shape.Ok() {
		panic(errors.New("invalid shape"))
	}
	t = &Tensor{shape: shape}
	flatV := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), shape.Size(), shape.Size())
	t.flat = flatV.Interface()
	return
}

// FromScalar creates a scalar tensor with the given value.
// The DType is inferred from the value.
func FromScalar[T dtypes.Supported](value T) (t *Tensor) {
	return FromScalarAndDimensions(value)
}

// FromScalarAndDimensions creates a tensor with the given dimensions, filled with the
// given scalar value replicated everywhere.
// The DType is inferred from the value.
func FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int) (t *Tensor) {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	t = FromShape(shape)
	MutableFlatData(t, func(flat []T) {
		for ii := range flat {
			flat[ii] = value
		}
	})
	return
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, and sets the
// flattened values with the given data.
// The DType is inferred from the data.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) (t *Tensor) {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d",
			shape, len(data), shape.Size())
	}
	t = FromShape(shape)
	MutableFlatData(t, func(flat []T) {
		copy(flat, data)
	})
	return
}

// Shape of the Tensor, includes DType.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType returns the DType of the tensor's shape.
// It is a shortcut to `Tensor.Shape().DType`.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank returns the rank of the tensor's shape.
// It is a shortcut to `Tensor.Shape().Rank()`.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// IsScalar returns whether the tensor represents a scalar value.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// Size returns the number of elements in the tensor.
// It is a shortcut to `Tensor.Shape().Size()`.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory returns the number of bytes used to store the tensor.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// AssertValid panics if the tensor is nil or if its shape is invalid.
func (t *Tensor) AssertValid() {
	if t == nil {
		panic(errors.New("Tensor is nil"))
	}
	if !t.shape.Ok() {
		panic(errors.New("Tensor shape is invalid"))
	}
}

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type
// corresponding to the DType. Even scalar values have a flattened data representation
// of one element. It locks the Tensor until accessFn returns.
//
// This provides accessFn with the actual Tensor data (not a copy), owned by the
// Tensor, and it should not be changed -- see Tensor.MutableFlatData for that.
//
// See Tensor.Size for the number of elements, and Shape.Strides to calculate the
// flat offset of individual positions.
func (t *Tensor) ConstFlatData(accessFn func(flat any)) {
	t.AssertValid()
	t.mu.Lock()
	defer t.mu.Unlock()
	accessFn(t.flat)
}

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type
// corresponding to the DType.
//
// It is the "generics" version of Tensor.ConstFlatData, and panics if T doesn't match
// the tensor's DType.
func ConstFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	if t.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("ConstFlatData[%T] is incompatible with Tensor's dtype %s -- expected dtype %s",
			v, t.shape.DType, dtypes.FromGenericsType[T]())
	}
	t.ConstFlatData(func(anyFlat any) {
		accessFn(anyFlat.([]T))
	})
}

// MutableFlatData calls accessFn with a flat slice pointing to the Tensor data. The
// contents of the slice can be changed until accessFn returns, during which the
// Tensor is locked.
func (t *Tensor) MutableFlatData(accessFn func(flat any)) {
	t.AssertValid()
	t.mu.Lock()
	defer t.mu.Unlock()
	accessFn(t.flat)
}

// MutableFlatData calls accessFn with a flat slice pointing to the Tensor data. The
// contents of the slice can be changed until accessFn returns.
//
// It is the "generics" version of Tensor.MutableFlatData, and panics if T doesn't
// match the tensor's DType.
func MutableFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	if t.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("MutableFlatData[%T] is incompatible with Tensor's dtype %s", v, t.shape.DType)
	}
	t.MutableFlatData(func(anyFlat any) {
		accessFn(anyFlat.([]T))
	})
}

// AssignFlatData copies over the values in fromFlat to the storage used by toTensor.
// If the dtypes are not compatible or if the size is wrong, it panics.
func AssignFlatData[T dtypes.Supported](toTensor *Tensor, fromFlat []T) {
	MutableFlatData(toTensor, func(toFlat []T) {
		if len(toFlat) != len(fromFlat) {
			var v T
			exceptions.Panicf("AssignFlatData[%T] is trying to store %d values into shape %s, which requires %d values",
				v, len(fromFlat), toTensor.Shape(), toTensor.Shape().Size())
		}
		copy(toFlat, fromFlat)
	})
}

// CopyFlatData returns a copy of the flat data of the Tensor.
// It panics if the given generic type doesn't match the DType of the tensor.
func CopyFlatData[T dtypes.Supported](t *Tensor) []T {
	var flatCopy []T
	ConstFlatData(t, func(flat []T) {
		flatCopy = make([]T, len(flat))
		copy(flatCopy, flat)
	})
	return flatCopy
}

// ToScalar returns the scalar value of the Tensor.
// It panics if the given generic type doesn't match the DType, or if the tensor is
// not a scalar.
func ToScalar[T dtypes.Supported](t *Tensor) T {
	if !t.shape.IsScalar() {
		var v T
		exceptions.Panicf("ToScalar[%T] requires scalar Tensor, got shape %s instead", v, t.shape)
	}
	var value T
	ConstFlatData(t, func(flat []T) {
		value = flat[0]
	})
	return value
}

// Clone returns a deep copy of the Tensor.
func (t *Tensor) Clone() *Tensor {
	clone := FromShape(t.shape.Clone())
	t.ConstFlatData(func(flat any) {
		reflect.Copy(reflect.ValueOf(clone.flat), reflect.ValueOf(flat))
	})
	return clone
}

// Equal checks whether t == other.
// If they are the same pointer they are considered equal; if the shapes are
// different it returns false. If either is invalid (nil), it panics.
//
// Slow implementation: fine for small tensors, but write something specialized for
// the DType if speed is desired.
func (t *Tensor) Equal(other *Tensor) bool {
	t.AssertValid()
	other.AssertValid()
	if t == other {
		return true
	}
	if !t.shape.Equal(other.shape) {
		return false
	}
	equal := true
	t.ConstFlatData(func(flat0 any) {
		other.ConstFlatData(func(flat1 any) {
			v0 := reflect.ValueOf(flat0)
			v1 := reflect.ValueOf(flat1)
			for ii := range v0.Len() {
				if !v0.Index(ii).Equal(v1.Index(ii)) {
					equal = false
					return
				}
			}
		})
	})
	return equal
}

// MaxSizeForString is the largest tensor size that String fully prints.
var MaxSizeForString = 500

// String prints the shape and, for small tensors, the flat data.
func (t *Tensor) String() string {
	t.AssertValid()
	if t.Size() > MaxSizeForString {
		return fmt.Sprintf("Tensor(%s): too large, %d values", t.shape, t.Size())
	}
	var data string
	t.ConstFlatData(func(flat any) {
		data = fmt.Sprintf("%v", flat)
	})
	return fmt.Sprintf("Tensor(%s): %s", t.shape, strings.TrimSpace(data))
}
