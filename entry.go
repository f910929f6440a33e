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
	"encoding/binary"
	"errors"
)

// Kind identifies the type of an encoded JSON value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindFalse
	KindTrue
	KindArray
	KindObject
)

// String returns the kind as a string.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindFalse:
		return "false"
	case KindTrue:
		return "true"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "(invalid)"
}

// An entry is a 32-bit cell: the top 3 bits hold the kind, the low 29 bits an
// offset relative to the payload start of the enclosing container (or to the
// buffer start for the root entry).
//
// Number and string entries point at the start of their payload. Array and
// object entries point just past the end of their trailer, so a reader can
// recover the payload start from the trailing size word.
type entry uint32

const (
	entrySize = 4

	// maxOffset bounds any single container to 512 MiB of inline payload.
	maxOffset = 1<<29 - 1

	offsetMask = entry(maxOffset)
)

var (
	// ErrTooLarge is returned when a value does not fit the encoding limits:
	// a payload offset beyond 2^29-1 bytes, or a string/count beyond 2^32-1.
	ErrTooLarge = errors.New("value exceeds encoding limits")

	// ErrCorrupt is returned when a buffer does not hold a valid encoding.
	ErrCorrupt = errors.New("corrupt buffer")
)

func makeEntry(k Kind, offset int) entry {
	return entry(k)<<29 | entry(offset)&offsetMask
}

func (e entry) kind() Kind  { return Kind(e >> 29) }
func (e entry) offset() int { return int(e & offsetMask) }

func (e entry) withOffset(offset int) entry {
	return e&^offsetMask | entry(offset)&offsetMask
}

// Number payloads carry one kind byte followed by a width-dependent mantissa.
// The low nibble of the kind byte is the width in bytes.
const (
	numZero = 0x00 // integer zero, no mantissa
	numI8   = 0x01
	numI16  = 0x02
	numI32  = 0x04
	numI64  = 0x08
	numU64  = 0x18 // unsigned bit set
	numF64  = 0x28 // float bit set
)

// numberSize returns the mantissa size in bytes for a number kind byte.
func numberSize(kindByte byte) int {
	return int(kindByte & 0xF)
}

func validNumberKind(kindByte byte) bool {
	switch kindByte {
	case numZero, numI8, numI16, numI32, numI64, numU64, numF64:
		return true
	}
	return false
}

// All multi-byte fields in a buffer are native byte order. A buffer is only
// valid on hosts with the byte order that produced it.
var native = binary.NativeEndian

func putUint32(b []byte, v uint32) []byte {
	return native.AppendUint32(b, v)
}

func loadUint32(b []byte) uint32 {
	return native.Uint32(b)
}
