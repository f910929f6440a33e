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
	"strconv"
)

// MarshalJSON emits the value as compact JSON text.
func (v ValueRef) MarshalJSON() ([]byte, error) {
	return v.AppendJSON(nil)
}

// AppendJSON appends the value as compact JSON text to dst.
func (v ValueRef) AppendJSON(dst []byte) ([]byte, error) {
	return appendValue(dst, v, "", 0)
}

// AppendPretty appends the value as indented JSON text to dst.
func (v ValueRef) AppendPretty(dst []byte, indent string) ([]byte, error) {
	return appendValue(dst, v, indent, 0)
}

// MarshalJSON emits the root value as compact JSON text.
func (v *Value) MarshalJSON() ([]byte, error) {
	return v.Ref().AppendJSON(nil)
}

// AppendJSON appends the root value as compact JSON text to dst.
func (v *Value) AppendJSON(dst []byte) ([]byte, error) {
	return v.Ref().AppendJSON(dst)
}

// AppendPretty appends the root value as indented JSON text to dst.
func (v *Value) AppendPretty(dst []byte, indent string) ([]byte, error) {
	return v.Ref().AppendPretty(dst, indent)
}

func appendValue(dst []byte, v ValueRef, indent string, depth int) ([]byte, error) {
	switch v.kind {
	case KindNull:
		return append(dst, "null"...), nil
	case KindFalse:
		return append(dst, "false"...), nil
	case KindTrue:
		return append(dst, "true"...), nil
	case KindNumber:
		return appendNumber(dst, NumberRef{data: v.data})
	case KindString:
		dst = append(dst, '"')
		dst = escapeBytes(dst, v.data)
		return append(dst, '"'), nil
	case KindArray:
		a, _ := v.Array()
		if a.Len() == 0 {
			return append(dst, '[', ']'), nil
		}
		dst = append(dst, '[')
		for i := 0; i < a.Len(); i++ {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendNewline(dst, indent, depth+1)
			elem, ok := a.Get(i)
			if !ok {
				return nil, fmt.Errorf("%w: unresolvable array element %d", ErrCorrupt, i)
			}
			var err error
			dst, err = appendValue(dst, elem, indent, depth+1)
			if err != nil {
				return nil, err
			}
		}
		dst = appendNewline(dst, indent, depth)
		return append(dst, ']'), nil
	case KindObject:
		o, _ := v.Object()
		if o.Len() == 0 {
			return append(dst, '{', '}'), nil
		}
		dst = append(dst, '{')
		for i := 0; i < o.Len(); i++ {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendNewline(dst, indent, depth+1)
			dst = append(dst, '"')
			dst = escapeBytes(dst, o.keyAt(i))
			dst = append(dst, '"', ':')
			if indent != "" {
				dst = append(dst, ' ')
			}
			val, ok := o.valueAt(i)
			if !ok {
				return nil, fmt.Errorf("%w: unresolvable object value %d", ErrCorrupt, i)
			}
			var err error
			dst, err = appendValue(dst, val, indent, depth+1)
			if err != nil {
				return nil, err
			}
		}
		dst = appendNewline(dst, indent, depth)
		return append(dst, '}'), nil
	}
	return nil, fmt.Errorf("%w: unknown kind %d", ErrCorrupt, v.kind)
}

func appendNewline(dst []byte, indent string, depth int) []byte {
	if indent == "" {
		return dst
	}
	dst = append(dst, '\n')
	for i := 0; i < depth; i++ {
		dst = append(dst, indent...)
	}
	return dst
}

func appendNumber(dst []byte, n NumberRef) ([]byte, error) {
	if f, ok := n.isFloat(); ok {
		return appendFloat(dst, f)
	}
	if n.data[0] == numU64 {
		return strconv.AppendUint(dst, native.Uint64(n.data[1:]), 10), nil
	}
	return strconv.AppendInt(dst, n.signed(), 10), nil
}

// escapeBytes will escape JSON bytes.
// Output is appended to dst.
func escapeBytes(dst, src []byte) []byte {
	for _, s := range src {
		switch s {
		case '\b':
			dst = append(dst, '\\', 'b')

		case '\f':
			dst = append(dst, '\\', 'f')

		case '\n':
			dst = append(dst, '\\', 'n')

		case '\r':
			dst = append(dst, '\\', 'r')

		case '"':
			dst = append(dst, '\\', '"')

		case '\t':
			dst = append(dst, '\\', 't')

		case '\\':
			dst = append(dst, '\\', '\\')

		default:
			if s <= 0x1f {
				dst = append(dst, '\\', 'u', '0', '0', valToHex[s>>4], valToHex[s&0xf])
			} else {
				dst = append(dst, s)
			}
		}
	}

	return dst
}

var valToHex = [16]byte{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', 'a', 'b', 'c', 'd', 'e', 'f'}

// appendFloat converts a float to string similar to Go stdlib and appends it to dst.
func appendFloat(dst []byte, f float64) ([]byte, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, errors.New("INF or NaN number found")
	}

	// Convert as if by ES6 number to string conversion.
	// This matches most other JSON generators.
	// See golang.org/issue/6384 and golang.org/issue/14135.
	// Like fmt %g, but the exponent cutoffs are different
	// and exponents themselves are not padded to two digits.
	abs := math.Abs(f)
	fmt := byte('f')
	if abs != 0 {
		if abs < 1e-6 || abs >= 1e21 {
			fmt = 'e'
		}
	}
	dst = strconv.AppendFloat(dst, f, fmt, -1, 64)
	if fmt == 'e' {
		// clean up e-09 to e-9
		n := len(dst)
		if n >= 4 && dst[n-4] == 'e' && dst[n-3] == '-' && dst[n-2] == '0' {
			dst[n-2] = dst[n-1]
			dst = dst[:n-1]
		}
	}
	return dst, nil
}
