/*
 * MinIO Cloud Storage, (C) 2020 MinIO, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cbjson

import (
	"bytes"
	"math"

	"github.com/cespare/xxhash/v2"
)

// kindRank gives the coarse order across kinds without dereferencing:
// null < string < number < bool < array < object. This matches the jsonb
// ordering used by PostgreSQL.
var kindRank = [...]int{
	KindNull:   0,
	KindString: 1,
	KindNumber: 2,
	KindFalse:  3,
	KindTrue:   3,
	KindArray:  4,
	KindObject: 5,
}

// Compare returns -1, 0 or 1 ordering a before, equal to, or after b.
// The order is total: values of different kinds order by kind rank, values of
// the same kind by content. Objects with equal key sets and equal values
// compare equal regardless of the order their keys were added in.
func Compare(a, b ValueRef) int {
	if ra, rb := kindRank[a.kind], kindRank[b.kind]; ra != rb {
		return cmpInt(ra, rb)
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindFalse, KindTrue:
		// false < true
		return cmpInt(int(a.kind), int(b.kind))
	case KindString:
		return bytes.Compare(a.data, b.data)
	case KindNumber:
		return compareNumbers(NumberRef{data: a.data}, NumberRef{data: b.data})
	case KindArray:
		aa, _ := a.Array()
		ba, _ := b.Array()
		if aa.Len() != ba.Len() {
			return cmpInt(aa.Len(), ba.Len())
		}
		for i := 0; i < aa.Len(); i++ {
			av, _ := aa.Get(i)
			bv, _ := ba.Get(i)
			if c := Compare(av, bv); c != 0 {
				return c
			}
		}
		return 0
	case KindObject:
		ao, _ := a.Object()
		bo, _ := b.Object()
		if ao.Len() != bo.Len() {
			return cmpInt(ao.Len(), bo.Len())
		}
		for i := 0; i < ao.Len(); i++ {
			if c := bytes.Compare(ao.keyAt(i), bo.keyAt(i)); c != 0 {
				return c
			}
			av, _ := ao.valueAt(i)
			bv, _ := bo.valueAt(i)
			if c := Compare(av, bv); c != 0 {
				return c
			}
		}
		return 0
	}
	return 0
}

// Equal reports whether a and b represent the same JSON value. Key order is
// irrelevant for objects, and integer 1 equals float 1.0.
func Equal(a, b ValueRef) bool {
	return Compare(a, b) == 0
}

// compareNumbers compares numeric values: two non-negative integers as
// uint64, two negative integers as int64, and any pairing involving a float
// as float64.
func compareNumbers(a, b NumberRef) int {
	_, af := a.isFloat()
	_, bf := b.isFloat()
	if !af && !bf {
		an, bn := a.isNegative(), b.isNegative()
		switch {
		case an && bn:
			return cmpI64(a.signed(), b.signed())
		case an:
			return -1
		case bn:
			return 1
		default:
			return cmpU64(a.unsigned(), b.unsigned())
		}
	}
	return cmpF64(a.Float64(), b.Float64())
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpI64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpU64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpF64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Compare orders v against other. See Compare.
func (v *Value) Compare(other *Value) int {
	return Compare(v.Ref(), other.Ref())
}

// Equal reports whether v and other represent the same JSON value.
func (v *Value) Equal(other *Value) bool {
	return v.Compare(other) == 0
}

// Hash returns a structural 64-bit hash of the value. Values that compare
// equal hash equal: object pairs are hashed in their stored sorted order, and
// numbers are hashed through their float64 projection so that integer 1 and
// float 1.0 collide like they compare.
func Hash(v ValueRef) uint64 {
	d := xxhash.New()
	hashValue(d, v)
	return d.Sum64()
}

// Hash returns the structural hash of the root value.
func (v *Value) Hash() uint64 {
	return Hash(v.Ref())
}

func hashValue(d *xxhash.Digest, v ValueRef) {
	var tmp [9]byte
	switch v.kind {
	case KindNull:
		d.Write([]byte{'n'})
	case KindFalse:
		d.Write([]byte{'b', 0})
	case KindTrue:
		d.Write([]byte{'b', 1})
	case KindNumber:
		hashNumber(d, NumberRef{data: v.data})
	case KindString:
		hashString(d, v.data)
	case KindArray:
		a, _ := v.Array()
		tmp[0] = 'a'
		native.PutUint64(tmp[1:], uint64(a.Len()))
		d.Write(tmp[:])
		it := a.Iter()
		for {
			elem, ok := it.Next()
			if !ok {
				break
			}
			hashValue(d, elem)
		}
	case KindObject:
		o, _ := v.Object()
		tmp[0] = 'o'
		native.PutUint64(tmp[1:], uint64(o.Len()))
		d.Write(tmp[:])
		it := o.Iter()
		for {
			k, val, ok := it.Next()
			if !ok {
				break
			}
			hashString(d, k)
			hashValue(d, val)
		}
	}
}

func hashNumber(d *xxhash.Digest, n NumberRef) {
	var tmp [9]byte
	tmp[0] = '#'
	native.PutUint64(tmp[1:], floatBitsCanonical(n.Float64()))
	d.Write(tmp[:])
}

// floatBitsCanonical folds -0.0 into +0.0 so 0 and -0.0, which compare
// equal, hash equal.
func floatBitsCanonical(f float64) uint64 {
	if f == 0 {
		return 0
	}
	return math.Float64bits(f)
}

func hashString(d *xxhash.Digest, s []byte) {
	var tmp [9]byte
	tmp[0] = 's'
	native.PutUint64(tmp[1:], uint64(len(s)))
	d.Write(tmp[:])
	d.Write(s)
}
