// Package cbjson implements a compact binary representation of JSON values.
//
// A value is a single contiguous byte buffer that can be memory mapped,
// sliced, hashed, compared and navigated (array index, object key lookup)
// without allocating or decoding sub-structures. Parsing JSON text produces a
// buffer in one pass; serializing back to text is a plain traversal.
//
// Buffer layout:
//
//	<buffer>       := <root payload> <root entry:4>
//	<entry>        := kind(3 bits) << 29 | offset(29 bits)   // native-endian u32
//	number payload := kind byte + mantissa                   // kind byte selects the width
//	string payload := len:u32 + utf8 bytes
//	array payload  := child payloads, child entries, count:u32, size:u32
//	object payload := pair payloads, pair entries, count:u32, size:u32
//
// Entry offsets are relative to the payload start of the enclosing container,
// which makes a container's bytes position independent: copying an array or
// object payload into another buffer yields a valid value without rewriting
// pointers. Object pairs are stored sorted by key bytes with duplicates
// removed (last added wins), so objects have a canonical byte form and key
// lookup is a binary search.
//
// All multi-byte fields are native byte order; buffers are not portable
// across hosts with a different byte order.
package cbjson
