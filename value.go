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
)

// Value is a heap-owned, immutable encoded JSON value: a contiguous byte
// buffer ending in a 4-byte root entry. Values can be compared, hashed,
// sliced and navigated without decoding.
//
// The only mutators are ArrayPush and the builder that produced the buffer.
// A Value is safe for concurrent reads.
type Value struct {
	buf []byte
}

// Bytes returns the underlying encoded buffer, including the root entry.
// The bytes must not be modified. The encoding is native byte order and only
// valid on hosts with the producing byte order.
func (v *Value) Bytes() []byte {
	return v.buf
}

// FromBytes wraps an encoded buffer as a Value. The buffer structure is
// validated; the bytes are used directly without copying.
func FromBytes(b []byte) (*Value, error) {
	if len(b) < entrySize {
		return nil, fmt.Errorf("%w: buffer of %d bytes has no root entry", ErrCorrupt, len(b))
	}
	v := &Value{buf: b}
	root, ok := v.root()
	if !ok {
		return nil, fmt.Errorf("%w: unresolvable root entry", ErrCorrupt)
	}
	if err := validateValue(root, 0); err != nil {
		return nil, err
	}
	return v, nil
}

// root resolves the 4-byte root entry at the buffer's tail.
func (v *Value) root() (ValueRef, bool) {
	base := v.buf[:len(v.buf)-entrySize]
	e := entry(loadUint32(v.buf[len(v.buf)-entrySize:]))
	return resolveEntry(base, e)
}

// Ref returns the root value view. The view borrows from v.
func (v *Value) Ref() ValueRef {
	r, ok := v.root()
	if !ok {
		// A Value built by this package always resolves; a corrupt
		// buffer smuggled past FromBytes reads as null rather than
		// corrupting memory.
		return ValueRef{kind: KindNull}
	}
	return r
}

// Kind returns the kind of the root value.
func (v *Value) Kind() Kind { return v.Ref().Kind() }

// Get navigates a path of int and string segments. See ValueRef.Get.
func (v *Value) Get(path ...interface{}) (ValueRef, bool) {
	return v.Ref().Get(path...)
}

// GetPointer navigates a slash-separated path. See ValueRef.GetPointer.
func (v *Value) GetPointer(ptr string) (ValueRef, bool) {
	return v.Ref().GetPointer(ptr)
}

// Interface converts the value to untyped Go values. See ValueRef.Interface.
func (v *Value) Interface() (interface{}, error) {
	return v.Ref().Interface()
}

// String returns the value as compact JSON text.
func (v *Value) String() string {
	return v.Ref().String()
}

// validateValue walks a resolved view and checks that every nested container
// is structurally sound, so later navigation cannot read out of bounds.
func validateValue(v ValueRef, depth int) error {
	if depth > maxNestingDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrCorrupt, maxNestingDepth)
	}
	switch v.kind {
	case KindArray:
		a, _ := v.Array()
		for i := 0; i < a.Len(); i++ {
			elem, ok := a.Get(i)
			if !ok {
				return fmt.Errorf("%w: unresolvable array element %d", ErrCorrupt, i)
			}
			if err := validateValue(elem, depth+1); err != nil {
				return err
			}
		}
	case KindObject:
		o, _ := v.Object()
		// Keys must resolve as strings; pair order is part of the
		// canonical form but tolerated here so foreign buffers can be
		// inspected before re-canonicalizing through a builder.
		for i := 0; i < o.Len(); i++ {
			e := entry(loadUint32(o.payload[o.pairsOff()+i*2*entrySize:]))
			k, ok := resolveEntry(o.payload, e)
			if !ok || k.kind != KindString {
				return fmt.Errorf("%w: object pair %d has a non-string key", ErrCorrupt, i)
			}
			val, ok := o.valueAt(i)
			if !ok {
				return fmt.Errorf("%w: unresolvable object value %d", ErrCorrupt, i)
			}
			if err := validateValue(val, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

const maxNestingDepth = 128

// ArrayPush appends an element to a value whose root is an array, splicing
// the element's payload into the array region and rebuilding the trailer and
// root entry in place. The operation is O(n) in the array length.
func (v *Value) ArrayPush(elem ValueRef) error {
	root, ok := v.root()
	if !ok || root.kind != KindArray {
		return errors.New("array push on a value whose root is not an array")
	}

	re := entry(loadUint32(v.buf[len(v.buf)-entrySize:]))
	end := re.offset()
	if end != len(v.buf)-entrySize {
		return fmt.Errorf("%w: root trailer does not end at the root entry", ErrCorrupt)
	}
	size := int(loadUint32(v.buf[end-4:]))
	if end-size != 0 {
		return fmt.Errorf("%w: root array payload does not start the buffer", ErrCorrupt)
	}
	count := containerCount(v.buf[:end])
	if uint64(count)+1 > math.MaxUint32 {
		return fmt.Errorf("%w: array of %d elements", ErrTooLarge, count)
	}
	entriesOff := end - 8 - count*entrySize
	payloadEnd := entriesOff

	payload, e, err := encodeElem(elem, payloadEnd)
	if err != nil {
		return err
	}

	// Stash the entry table, then rebuild the tail after the new payload.
	oldEntries := append([]byte(nil), v.buf[entriesOff:end-8]...)
	buf := append(v.buf[:payloadEnd], payload...)
	buf = append(buf, oldEntries...)
	buf = putUint32(buf, uint32(e))
	buf = putUint32(buf, uint32(count+1))
	total := len(buf) + 4
	if total > maxOffset {
		return fmt.Errorf("%w: array payload exceeds %d bytes", ErrTooLarge, maxOffset)
	}
	buf = putUint32(buf, uint32(total))
	buf = putUint32(buf, uint32(makeEntry(KindArray, len(buf))))
	v.buf = buf
	return nil
}

// encodeElem encodes a view as payload bytes plus the entry that will locate
// them, given the offset the payload will land at.
func encodeElem(elem ValueRef, at int) ([]byte, entry, error) {
	switch elem.kind {
	case KindNull, KindFalse, KindTrue:
		return nil, makeEntry(elem.kind, 0), nil
	case KindNumber:
		n := NumberRef{data: elem.data}
		if f, isf := n.isFloat(); isf && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return nil, 0, errors.New("NaN and Inf are not valid JSON numbers")
		}
		if at > maxOffset {
			return nil, 0, fmt.Errorf("%w: payload offset %d", ErrTooLarge, at)
		}
		return elem.data, makeEntry(KindNumber, at), nil
	case KindString:
		if uint64(len(elem.data)) > math.MaxUint32 {
			return nil, 0, fmt.Errorf("%w: string of %d bytes", ErrTooLarge, len(elem.data))
		}
		if at > maxOffset {
			return nil, 0, fmt.Errorf("%w: payload offset %d", ErrTooLarge, at)
		}
		return append(putUint32(make([]byte, 0, 4+len(elem.data)), uint32(len(elem.data))), elem.data...), makeEntry(KindString, at), nil
	case KindArray, KindObject:
		off := at + len(elem.data)
		if off > maxOffset {
			return nil, 0, fmt.Errorf("%w: payload offset %d", ErrTooLarge, off)
		}
		return elem.data, makeEntry(elem.kind, off), nil
	}
	return nil, 0, fmt.Errorf("cannot push value of kind %v", elem.kind)
}
