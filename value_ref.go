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
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ValueRef is a borrowed, typed view of an encoded value. It never owns the
// bytes it points into; it stays valid as long as the Value (or parent view)
// it was resolved from.
//
// The zero ValueRef is a null value.
type ValueRef struct {
	kind Kind

	// Payload slice. Meaning depends on kind:
	// number: kind byte plus mantissa; string: raw UTF-8 bytes;
	// array/object: the container's payload plus trailer. Nil for
	// null/false/true.
	data []byte
}

// Kind returns the value's kind.
func (v ValueRef) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v ValueRef) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean value, if the value is a boolean.
func (v ValueRef) Bool() (bool, bool) {
	switch v.kind {
	case KindFalse:
		return false, true
	case KindTrue:
		return true, true
	}
	return false, false
}

// Number returns a view of the numeric payload, if the value is a number.
func (v ValueRef) Number() (NumberRef, bool) {
	if v.kind != KindNumber {
		return NumberRef{}, false
	}
	return NumberRef{data: v.data}, true
}

// StringBytes returns the raw UTF-8 bytes, if the value is a string.
// The bytes must not be modified.
func (v ValueRef) StringBytes() ([]byte, bool) {
	if v.kind != KindString {
		return nil, false
	}
	return v.data, true
}

// Str returns the string value, if the value is a string.
func (v ValueRef) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return string(v.data), true
}

// Array returns an array view, if the value is an array.
func (v ValueRef) Array() (ArrayRef, bool) {
	if v.kind != KindArray {
		return ArrayRef{}, false
	}
	return ArrayRef{payload: v.data, count: containerCount(v.data)}, true
}

// Object returns an object view, if the value is an object.
func (v ValueRef) Object() (ObjectRef, bool) {
	if v.kind != KindObject {
		return ObjectRef{}, false
	}
	return ObjectRef{payload: v.data, count: containerCount(v.data)}, true
}

func containerCount(payload []byte) int {
	return int(loadUint32(payload[len(payload)-8:]))
}

// ToValue copies the view into a freshly owned Value.
func (v ValueRef) ToValue() (*Value, error) {
	b := NewBuilder()
	b.AddValue(v)
	return b.Finish()
}

// Interface converts the value to untyped Go values: nil, bool, int64,
// uint64, float64, string, []interface{} and map[string]interface{}.
func (v ValueRef) Interface() (interface{}, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindFalse:
		return false, nil
	case KindTrue:
		return true, nil
	case KindNumber:
		n := NumberRef{data: v.data}
		if f, ok := n.isFloat(); ok {
			return f, nil
		}
		if n.isNegative() {
			return n.signed(), nil
		}
		u := n.unsigned()
		if u <= math.MaxInt64 {
			return int64(u), nil
		}
		return u, nil
	case KindString:
		return string(v.data), nil
	case KindArray:
		a, _ := v.Array()
		dst := make([]interface{}, 0, a.Len())
		it := a.Iter()
		for {
			elem, ok := it.Next()
			if !ok {
				break
			}
			ev, err := elem.Interface()
			if err != nil {
				return nil, err
			}
			dst = append(dst, ev)
		}
		return dst, nil
	case KindObject:
		o, _ := v.Object()
		return o.Map(nil)
	}
	return nil, fmt.Errorf("unknown kind: %v", v.kind)
}

// String returns the value as compact JSON text.
func (v ValueRef) String() string {
	b, err := v.AppendJSON(nil)
	if err != nil {
		return "<corrupt:" + err.Error() + ">"
	}
	return string(b)
}

// Scalar constructors. The returned views own small freshly allocated
// payloads and can be fed to Builder.AddValue and Value.ArrayPush.

// NullValue returns a null value.
func NullValue() ValueRef { return ValueRef{kind: KindNull} }

// BoolValue returns a boolean value.
func BoolValue(b bool) ValueRef {
	if b {
		return ValueRef{kind: KindTrue}
	}
	return ValueRef{kind: KindFalse}
}

// IntValue returns an integer number value.
func IntValue(v int64) ValueRef {
	switch {
	case v == 0:
		return ValueRef{kind: KindNumber, data: []byte{numZero}}
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return ValueRef{kind: KindNumber, data: []byte{numI8, byte(v)}}
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return ValueRef{kind: KindNumber, data: native.AppendUint16([]byte{numI16}, uint16(v))}
	case v >= math.MinInt32 && v <= math.MaxInt32:
		return ValueRef{kind: KindNumber, data: native.AppendUint32([]byte{numI32}, uint32(v))}
	default:
		return ValueRef{kind: KindNumber, data: native.AppendUint64([]byte{numI64}, uint64(v))}
	}
}

// UintValue returns an integer number value from an unsigned input.
func UintValue(v uint64) ValueRef {
	if v <= math.MaxInt64 {
		return IntValue(int64(v))
	}
	return ValueRef{kind: KindNumber, data: native.AppendUint64([]byte{numU64}, v)}
}

// FloatValue returns a floating point number value. NaN and infinities are
// rejected when the value is added to a builder or pushed into an array.
func FloatValue(v float64) ValueRef {
	return ValueRef{kind: KindNumber, data: native.AppendUint64([]byte{numF64}, math.Float64bits(v))}
}

// StringValue returns a string value.
func StringValue(s string) ValueRef {
	return ValueRef{kind: KindString, data: []byte(s)}
}

// NumberRef is a view of an encoded number payload.
type NumberRef struct {
	// kind byte followed by the mantissa
	data []byte
}

// isFloat returns the float value when the number is stored as f64.
func (n NumberRef) isFloat() (float64, bool) {
	if n.data[0] != numF64 {
		return 0, false
	}
	return math.Float64frombits(native.Uint64(n.data[1:])), true
}

// isNegative reports whether an integer-stored number is negative.
func (n NumberRef) isNegative() bool {
	switch n.data[0] {
	case numI8:
		return int8(n.data[1]) < 0
	case numI16:
		return int16(native.Uint16(n.data[1:])) < 0
	case numI32:
		return int32(native.Uint32(n.data[1:])) < 0
	case numI64:
		return int64(native.Uint64(n.data[1:])) < 0
	}
	return false
}

// signed returns the value of an integer-stored number as int64.
// Only valid when the stored kind is not u64 or f64.
func (n NumberRef) signed() int64 {
	switch n.data[0] {
	case numZero:
		return 0
	case numI8:
		return int64(int8(n.data[1]))
	case numI16:
		return int64(int16(native.Uint16(n.data[1:])))
	case numI32:
		return int64(int32(native.Uint32(n.data[1:])))
	case numI64:
		return int64(native.Uint64(n.data[1:]))
	}
	return 0
}

// unsigned returns the value of a non-negative integer-stored number.
func (n NumberRef) unsigned() uint64 {
	if n.data[0] == numU64 {
		return native.Uint64(n.data[1:])
	}
	return uint64(n.signed())
}

// Int64 returns the number as int64. Conversions are lossless: unsigned
// values above MaxInt64 and floats with a fractional part or out of range
// return an error.
func (n NumberRef) Int64() (int64, error) {
	if f, ok := n.isFloat(); ok {
		i := int64(f)
		if f < math.MinInt64 || f >= math.MaxInt64 || float64(i) != f {
			return 0, fmt.Errorf("float %v cannot be losslessly converted to int64", f)
		}
		return i, nil
	}
	if n.data[0] == numU64 {
		u := native.Uint64(n.data[1:])
		if u > math.MaxInt64 {
			return 0, errors.New("unsigned integer value overflows int64")
		}
		return int64(u), nil
	}
	return n.signed(), nil
}

// Uint64 returns the number as uint64. Negative values and floats with a
// fractional part or out of range return an error.
func (n NumberRef) Uint64() (uint64, error) {
	if f, ok := n.isFloat(); ok {
		if f < 0 {
			return 0, errors.New("float value is negative, cannot convert to uint")
		}
		u := uint64(f)
		if f >= math.MaxUint64 || float64(u) != f {
			return 0, fmt.Errorf("float %v cannot be losslessly converted to uint64", f)
		}
		return u, nil
	}
	if n.isNegative() {
		return 0, errors.New("integer value is negative, cannot convert to uint")
	}
	return n.unsigned(), nil
}

// Float64 returns the number as float64. Integers are converted; the
// conversion may round for magnitudes beyond 2^53.
func (n NumberRef) Float64() float64 {
	if f, ok := n.isFloat(); ok {
		return f
	}
	if n.data[0] == numU64 {
		return float64(native.Uint64(n.data[1:]))
	}
	return float64(n.signed())
}

// ArrayRef is a view of an encoded array.
type ArrayRef struct {
	// payload plus trailer, offsets relative to index 0
	payload []byte
	count   int
}

// Len returns the number of elements.
func (a ArrayRef) Len() int { return a.count }

// entriesOff returns the position of the child entry table.
func (a ArrayRef) entriesOff() int {
	return len(a.payload) - 8 - a.count*entrySize
}

// Get returns the element at index i, or absent if out of range.
func (a ArrayRef) Get(i int) (ValueRef, bool) {
	if i < 0 || i >= a.count {
		return ValueRef{}, false
	}
	e := entry(loadUint32(a.payload[a.entriesOff()+i*entrySize:]))
	return resolveEntry(a.payload, e)
}

// First returns the first element, or absent if the array is empty.
func (a ArrayRef) First() (ValueRef, bool) {
	return a.Get(0)
}

// Iter returns an iterator over the elements in stored order.
func (a ArrayRef) Iter() ArrayIter {
	return ArrayIter{a: a}
}

// ArrayIter iterates an array view.
type ArrayIter struct {
	a ArrayRef
	i int
}

// Next returns the next element, or false when the array is exhausted.
func (it *ArrayIter) Next() (ValueRef, bool) {
	v, ok := it.a.Get(it.i)
	if ok {
		it.i++
	}
	return v, ok
}

// Remaining returns the number of elements left.
func (it *ArrayIter) Remaining() int {
	return it.a.count - it.i
}

// ObjectRef is a view of an encoded object. Pairs are stored sorted by key
// bytes with unique keys, which is what makes Get a binary search.
type ObjectRef struct {
	payload []byte
	count   int
}

// Len returns the number of key/value pairs.
func (o ObjectRef) Len() int { return o.count }

func (o ObjectRef) pairsOff() int {
	return len(o.payload) - 8 - o.count*2*entrySize
}

// keyAt dereferences the key bytes of pair i.
func (o ObjectRef) keyAt(i int) []byte {
	e := entry(loadUint32(o.payload[o.pairsOff()+i*2*entrySize:]))
	p := e.offset()
	n := int(loadUint32(o.payload[p:]))
	return o.payload[p+4 : p+4+n]
}

// valueAt resolves the value of pair i.
func (o ObjectRef) valueAt(i int) (ValueRef, bool) {
	e := entry(loadUint32(o.payload[o.pairsOff()+i*2*entrySize+entrySize:]))
	return resolveEntry(o.payload, e)
}

// Get returns the value for key, or absent if the key is not present.
func (o ObjectRef) Get(key string) (ValueRef, bool) {
	i, ok := o.search(key)
	if !ok {
		return ValueRef{}, false
	}
	return o.valueAt(i)
}

// ContainsKey reports whether the object has the given key.
func (o ObjectRef) ContainsKey(key string) bool {
	_, ok := o.search(key)
	return ok
}

func (o ObjectRef) search(key string) (int, bool) {
	i := sort.Search(o.count, func(i int) bool {
		return string(o.keyAt(i)) >= key
	})
	if i < o.count && string(o.keyAt(i)) == key {
		return i, true
	}
	return 0, false
}

// Iter returns an iterator over the pairs in key-sorted order.
func (o ObjectRef) Iter() ObjectIter {
	return ObjectIter{o: o}
}

// Keys returns all keys in sorted order.
func (o ObjectRef) Keys() []string {
	dst := make([]string, o.count)
	for i := range dst {
		dst[i] = string(o.keyAt(i))
	}
	return dst
}

// Values returns all values in key-sorted order.
func (o ObjectRef) Values() ([]ValueRef, error) {
	dst := make([]ValueRef, o.count)
	for i := range dst {
		v, ok := o.valueAt(i)
		if !ok {
			return nil, fmt.Errorf("%w: unresolvable value for key %q", ErrCorrupt, o.keyAt(i))
		}
		dst[i] = v
	}
	return dst, nil
}

// Map converts the object into a map of untyped Go values.
// An optional destination map can be provided to reduce allocations.
func (o ObjectRef) Map(dst map[string]interface{}) (map[string]interface{}, error) {
	if dst == nil {
		dst = make(map[string]interface{}, o.count)
	}
	it := o.Iter()
	for {
		k, v, ok := it.Next()
		if !ok {
			return dst, nil
		}
		ev, err := v.Interface()
		if err != nil {
			return nil, fmt.Errorf("converting element %q: %w", k, err)
		}
		dst[string(k)] = ev
	}
}

// ObjectIter iterates an object view in key-sorted order.
type ObjectIter struct {
	o ObjectRef
	i int
}

// Next returns the next key and value, or false when exhausted.
// The key bytes must not be modified.
func (it *ObjectIter) Next() ([]byte, ValueRef, bool) {
	if it.i >= it.o.count {
		return nil, ValueRef{}, false
	}
	k := it.o.keyAt(it.i)
	v, ok := it.o.valueAt(it.i)
	if !ok {
		return nil, ValueRef{}, false
	}
	it.i++
	return k, v, true
}

// Remaining returns the number of pairs left.
func (it *ObjectIter) Remaining() int {
	return it.o.count - it.i
}

// resolveEntry materializes the view a child entry points at. base is the
// payload region of the enclosing container (or the whole root payload).
// Returns false if the entry points outside base.
func resolveEntry(base []byte, e entry) (ValueRef, bool) {
	switch e.kind() {
	case KindNull, KindFalse, KindTrue:
		// Payload-free kinds carry zero offset bits.
		if e.offset() != 0 {
			return ValueRef{}, false
		}
		return ValueRef{kind: e.kind()}, true
	case KindNumber:
		off := e.offset()
		if off >= len(base) || !validNumberKind(base[off]) {
			return ValueRef{}, false
		}
		end := off + 1 + numberSize(base[off])
		if end > len(base) {
			return ValueRef{}, false
		}
		return ValueRef{kind: KindNumber, data: base[off:end]}, true
	case KindString:
		off := e.offset()
		if off+4 > len(base) {
			return ValueRef{}, false
		}
		n := int(loadUint32(base[off:]))
		if off+4+n > len(base) {
			return ValueRef{}, false
		}
		return ValueRef{kind: KindString, data: base[off+4 : off+4+n]}, true
	case KindArray, KindObject:
		end := e.offset()
		if end > len(base) || end < 8 {
			return ValueRef{}, false
		}
		size := int(loadUint32(base[end-4:]))
		if size < 8 || size > end {
			return ValueRef{}, false
		}
		payload := base[end-size : end]
		count := containerCount(payload)
		group := entrySize
		if e.kind() == KindObject {
			group = 2 * entrySize
		}
		if 8+count*group > size {
			return ValueRef{}, false
		}
		return ValueRef{kind: e.kind(), data: payload}, true
	}
	return ValueRef{}, false
}

// Get navigates a path of heterogeneous segments: int segments index arrays,
// string segments look up object keys. A miss at any step is absent.
func (v ValueRef) Get(path ...interface{}) (ValueRef, bool) {
	cur := v
	for _, seg := range path {
		var ok bool
		switch s := seg.(type) {
		case int:
			var a ArrayRef
			if a, ok = cur.Array(); !ok {
				return ValueRef{}, false
			}
			cur, ok = a.Get(s)
		case string:
			var o ObjectRef
			if o, ok = cur.Object(); !ok {
				return ValueRef{}, false
			}
			cur, ok = o.Get(s)
		default:
			return ValueRef{}, false
		}
		if !ok {
			return ValueRef{}, false
		}
	}
	return cur, true
}

// GetPointer navigates a slash-separated path such as "/a/b/0". Segments
// applied to arrays must be decimal indexes; all segments applied to objects
// are key lookups. An empty pointer returns the value itself.
func (v ValueRef) GetPointer(ptr string) (ValueRef, bool) {
	if ptr == "" {
		return v, true
	}
	segs := strings.Split(ptr, "/")
	if segs[0] == "" {
		segs = segs[1:]
	}
	cur := v
	for _, seg := range segs {
		var ok bool
		switch cur.kind {
		case KindArray:
			i, err := strconv.Atoi(seg)
			if err != nil {
				return ValueRef{}, false
			}
			a, _ := cur.Array()
			cur, ok = a.Get(i)
		case KindObject:
			o, _ := cur.Object()
			cur, ok = o.Get(seg)
		default:
			return ValueRef{}, false
		}
		if !ok {
			return ValueRef{}, false
		}
	}
	return cur, true
}
