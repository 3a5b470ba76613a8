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

// Package xrand implements a deterministic pseudo-random generator compatible with
// NumPy's legacy RandomState: an MT19937 core with RandomState's derivations for
// doubles, bounded integers, shuffling and sampling without replacement.
//
// The compatibility is bit-exact: xrand.New(seed) followed by Choice/Uniform
// reproduces numpy.random.seed(seed) followed by numpy.random.choice/uniform, which
// is what pins down the expected values of seeded test fixtures (see the sparsetest
// package).
//
// Rand carries its own state and nothing is shared at package level: each caller
// owns its generator, so concurrent tests with independent Rand instances are
// reproducible regardless of call order. Rand itself is not safe for concurrent use.
package xrand

import (
	"github.com/gomlx/exceptions"
)

const (
	stateSize = 624
	shiftSize = 397

	matrixA   uint32 = 0x9908b0df
	upperMask uint32 = 0x80000000
	lowerMask uint32 = 0x7fffffff
)

// Rand is a deterministic pseudo-random generator with NumPy RandomState semantics.
// Create one with New. Not safe for concurrent use; give each goroutine its own.
type Rand struct {
	state [stateSize]uint32
	pos   int
}

// New creates a Rand seeded like numpy.random.seed: seeds that fit in 32 bits use
// MT19937's init_genrand, larger seeds use init_by_array over the seed's 32-bit
// words.
func New(seed uint64) *Rand {
	r := &Rand{}
	if seed <= 0xffffffff {
		r.seed(uint32(seed))
	} else {
		r.seedWithKey([]uint32{uint32(seed), uint32(seed >> 32)})
	}
	return r
}

// seed implements MT19937's init_genrand.
func (r *Rand) seed(s uint32) {
	r.state[0] = s
	for i := uint32(1); i < stateSize; i++ {
		r.state[i] = 1812433253*(r.state[i-1]^(r.state[i-1]>>30)) + i
	}
	r.pos = stateSize
}

// seedWithKey implements MT19937's init_by_array.
func (r *Rand) seedWithKey(key []uint32) {
	r.seed(19650218)
	i, j := 1, 0
	for k := max(stateSize, len(key)); k > 0; k-- {
		r.state[i] = (r.state[i] ^ ((r.state[i-1] ^ (r.state[i-1] >> 30)) * 1664525)) + key[j] + uint32(j)
		i++
		j++
		if i >= stateSize {
			r.state[0] = r.state[stateSize-1]
			i = 1
		}
		if j >= len(key) {
			j = 0
		}
	}
	for k := stateSize - 1; k > 0; k-- {
		r.state[i] = (r.state[i] ^ ((r.state[i-1] ^ (r.state[i-1] >> 30)) * 1566083941)) - uint32(i)
		i++
		if i >= stateSize {
			r.state[0] = r.state[stateSize-1]
			i = 1
		}
	}
	r.state[0] = 0x80000000
	r.pos = stateSize
}

// Uint32 returns the next raw 32-bit output of the MT19937 core.
func (r *Rand) Uint32() uint32 {
	if r.pos >= stateSize {
		for k := range stateSize {
			y := (r.state[k] & upperMask) | (r.state[(k+1)%stateSize] & lowerMask)
			next := r.state[(k+shiftSize)%stateSize] ^ (y >> 1)
			if y&1 != 0 {
				next ^= matrixA
			}
			r.state[k] = next
		}
		r.pos = 0
	}
	y := r.state[r.pos]
	r.pos++
	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

// Float64 returns a uniform double in [0, 1) with 53 random bits, as RandomState's
// random_sample.
func (r *Rand) Float64() float64 {
	a := r.Uint32() >> 5
	b := r.Uint32() >> 6
	return (float64(a)*67108864.0 + float64(b)) / 9007199254740992.0
}

// Uniform returns n independent uniform doubles in [low, high).
func (r *Rand) Uniform(low, high float64, n int) []float64 {
	values := make([]float64, n)
	for ii := range values {
		values[ii] = low + (high-low)*r.Float64()
	}
	return values
}

// interval returns a uniform integer in [0, max] inclusive, using RandomState's
// masked rejection sampling (rk_interval).
func (r *Rand) interval(max uint32) uint32 {
	if max == 0 {
		return 0
	}
	mask := max
	mask |= mask >> 1
	mask |= mask >> 2
	mask |= mask >> 4
	mask |= mask >> 8
	mask |= mask >> 16
	for {
		if v := r.Uint32() & mask; v <= max {
			return v
		}
	}
}

// IntN returns a uniform integer in [0, n). It panics if n <= 0.
func (r *Rand) IntN(n int) int {
	if n <= 0 {
		exceptions.Panicf("xrand.IntN(n=%d): n must be positive", n)
	}
	return int(r.interval(uint32(n - 1)))
}

// Shuffle pseudo-randomizes the order of n elements using the swap function,
// drawing in the same order as RandomState's shuffle (a Fisher-Yates walk from the
// last element down).
func (r *Rand) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := int(r.interval(uint32(i)))
		swap(i, j)
	}
}

// Perm returns a pseudo-random permutation of the integers [0, n), as RandomState's
// permutation.
func (r *Rand) Perm(n int) []int {
	perm := make([]int, n)
	for ii := range perm {
		perm[ii] = ii
	}
	r.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	return perm
}

// Choice samples k distinct integers from [0, n) without replacement, as
// RandomState's choice(n, k, replace=False): the first k entries of a fresh
// permutation.
//
// It panics if k < 0 or k > n.
func (r *Rand) Choice(n, k int) []int {
	if k < 0 || k > n {
		exceptions.Panicf("xrand.Choice(n=%d, k=%d): k must be in [0, n]", n, k)
	}
	return r.Perm(n)[:k:k]
}
