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
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"sort"
)

// Builder constructs a value buffer in a single append-only pass.
//
// Scalars append their payload and push a pending entry; Begin/End calls
// bracket containers, with EndObject sorting and deduplicating keys on close.
// Errors stick: the first error is recorded and surfaced by Finish, and a
// builder that has errored never produces a buffer.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	buf        []byte
	entries    []entry
	containers []containerStart

	// err holds the first error encountered, if any.
	err error
}

// containerStart records where an open container began.
type containerStart struct {
	bufStart     int
	entriesStart int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// NewBuilderSize returns an empty Builder with a preallocated buffer.
func NewBuilderSize(capacity int) *Builder {
	return &Builder{buf: make([]byte, 0, capacity)}
}

// Reset restores the builder to its initial state, keeping allocations.
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
	b.entries = b.entries[:0]
	b.containers = b.containers[:0]
	b.err = nil
}

// Err returns the first error encountered, if any.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// offset returns the current write position relative to the payload start of
// the innermost open container, or to the buffer start at top level.
func (b *Builder) offset() (int, bool) {
	off := len(b.buf)
	if len(b.containers) > 0 {
		off -= b.containers[len(b.containers)-1].bufStart
	}
	if off > maxOffset {
		b.setErr(fmt.Errorf("%w: container payload exceeds %d bytes", ErrTooLarge, maxOffset))
		return 0, false
	}
	return off, true
}

// AddNull adds a null value.
func (b *Builder) AddNull() {
	b.entries = append(b.entries, makeEntry(KindNull, 0))
}

// AddBool adds a boolean value.
func (b *Builder) AddBool(v bool) {
	k := KindFalse
	if v {
		k = KindTrue
	}
	b.entries = append(b.entries, makeEntry(k, 0))
}

// AddInt64 adds an integer value, stored in the narrowest signed width that
// holds it. Zero is stored as the one-byte zero form.
func (b *Builder) AddInt64(v int64) {
	off, ok := b.offset()
	if !ok {
		return
	}
	b.entries = append(b.entries, makeEntry(KindNumber, off))
	switch {
	case v == 0:
		b.buf = append(b.buf, numZero)
	case v >= math.MinInt8 && v <= math.MaxInt8:
		b.buf = append(b.buf, numI8, byte(v))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		b.buf = native.AppendUint16(append(b.buf, numI16), uint16(v))
	case v >= math.MinInt32 && v <= math.MaxInt32:
		b.buf = native.AppendUint32(append(b.buf, numI32), uint32(v))
	default:
		b.buf = native.AppendUint64(append(b.buf, numI64), uint64(v))
	}
}

// AddUint64 adds an unsigned integer value. Values representable as int64 are
// stored in the narrowest signed width; only larger values use the unsigned
// form.
func (b *Builder) AddUint64(v uint64) {
	if v <= math.MaxInt64 {
		b.AddInt64(int64(v))
		return
	}
	off, ok := b.offset()
	if !ok {
		return
	}
	b.entries = append(b.entries, makeEntry(KindNumber, off))
	b.buf = native.AppendUint64(append(b.buf, numU64), v)
}

// AddFloat64 adds a floating point value. NaN and infinities are not JSON
// numbers and are rejected.
func (b *Builder) AddFloat64(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		b.setErr(errors.New("NaN and Inf are not valid JSON numbers"))
		return
	}
	off, ok := b.offset()
	if !ok {
		return
	}
	b.entries = append(b.entries, makeEntry(KindNumber, off))
	b.buf = native.AppendUint64(append(b.buf, numF64), math.Float64bits(v))
}

// AddString adds a string value. The bytes are stored as given; escapes must
// already be resolved.
func (b *Builder) AddString(s string) {
	b.addStringBytes([]byte(s))
}

// AddStringBytes adds a string value from raw UTF-8 bytes.
func (b *Builder) AddStringBytes(s []byte) {
	b.addStringBytes(s)
}

// AddStringer adds the string representation of v.
func (b *Builder) AddStringer(v fmt.Stringer) {
	b.AddString(v.String())
}

func (b *Builder) addStringBytes(s []byte) {
	if uint64(len(s)) > math.MaxUint32 {
		b.setErr(fmt.Errorf("%w: string of %d bytes", ErrTooLarge, len(s)))
		return
	}
	off, ok := b.offset()
	if !ok {
		return
	}
	b.entries = append(b.entries, makeEntry(KindString, off))
	b.buf = putUint32(b.buf, uint32(len(s)))
	b.buf = append(b.buf, s...)
}

// AddValue adds any value reachable through a view. Containers are copied
// wholesale; their relative offsets make the bytes position independent.
func (b *Builder) AddValue(v ValueRef) {
	switch v.kind {
	case KindNull:
		b.AddNull()
	case KindFalse:
		b.AddBool(false)
	case KindTrue:
		b.AddBool(true)
	case KindNumber:
		n := NumberRef{data: v.data}
		if f, ok := n.isFloat(); ok {
			b.AddFloat64(f)
			return
		}
		if n.isNegative() {
			b.AddInt64(n.signed())
		} else {
			b.AddUint64(n.unsigned())
		}
	case KindString:
		b.addStringBytes(v.data)
	case KindArray, KindObject:
		b.buf = append(b.buf, v.data...)
		off, ok := b.offset()
		if !ok {
			return
		}
		b.entries = append(b.entries, makeEntry(v.kind, off))
	default:
		b.setErr(fmt.Errorf("cannot add value of kind %v", v.kind))
	}
}

// BeginArray opens an array. Every value added until the matching EndArray
// becomes an element.
func (b *Builder) BeginArray() {
	b.containers = append(b.containers, containerStart{len(b.buf), len(b.entries)})
}

// EndArray closes the innermost open container as an array.
func (b *Builder) EndArray() {
	if len(b.containers) == 0 {
		b.setErr(errors.New("EndArray without matching BeginArray"))
		return
	}
	start := b.containers[len(b.containers)-1]
	b.containers = b.containers[:len(b.containers)-1]

	children := b.entries[start.entriesStart:]
	b.writeTrailer(children, start.bufStart, entrySize)
	b.entries = b.entries[:start.entriesStart]

	off, ok := b.offset()
	if !ok {
		return
	}
	b.entries = append(b.entries, makeEntry(KindArray, off))
}

// BeginObject opens an object. Keys and values are added alternately until
// the matching EndObject.
func (b *Builder) BeginObject() {
	b.containers = append(b.containers, containerStart{len(b.buf), len(b.entries)})
}

// EndObject closes the innermost open container as an object. The pairs are
// sorted by key bytes and deduplicated; for duplicate keys the last one added
// wins. Payload bytes orphaned by deduplication are compacted away.
func (b *Builder) EndObject() {
	if len(b.containers) == 0 {
		b.setErr(errors.New("EndObject without matching BeginObject"))
		return
	}
	start := b.containers[len(b.containers)-1]
	b.containers = b.containers[:len(b.containers)-1]

	children := b.entries[start.entriesStart:]
	if len(children)%2 != 0 {
		b.setErr(errors.New("EndObject with a key lacking a value"))
		return
	}
	for i := 0; i < len(children); i += 2 {
		if children[i].kind() != KindString {
			b.setErr(fmt.Errorf("object key must be a string, got %v", children[i].kind()))
			return
		}
	}

	pairs := make([]objPair, len(children)/2)
	for i := range pairs {
		pairs[i] = objPair{key: children[i*2], val: children[i*2+1], in: i}
	}
	sort.Slice(pairs, func(i, j int) bool {
		c := bytes.Compare(b.keyBytes(start.bufStart, pairs[i].key), b.keyBytes(start.bufStart, pairs[j].key))
		if c != 0 {
			return c < 0
		}
		return pairs[i].in < pairs[j].in
	})

	// Collapse runs of equal keys, keeping the last added of each run.
	kept := pairs[:0]
	for i := 0; i < len(pairs); {
		j := i + 1
		for j < len(pairs) && bytes.Equal(b.keyBytes(start.bufStart, pairs[i].key), b.keyBytes(start.bufStart, pairs[j].key)) {
			j++
		}
		kept = append(kept, pairs[j-1])
		i = j
	}
	if len(kept) < len(pairs) {
		b.compactObject(start.bufStart, kept)
	}

	flat := make([]entry, 0, len(kept)*2)
	for _, p := range kept {
		flat = append(flat, p.key, p.val)
	}
	b.writeTrailer(flat, start.bufStart, 2*entrySize)
	b.entries = b.entries[:start.entriesStart]

	off, ok := b.offset()
	if !ok {
		return
	}
	b.entries = append(b.entries, makeEntry(KindObject, off))
}

type objPair struct {
	key, val entry
	in       int // order the pair was added in
}

// keyBytes dereferences a string entry against the payload region starting at
// base.
func (b *Builder) keyBytes(base int, e entry) []byte {
	p := base + e.offset()
	n := int(loadUint32(b.buf[p:]))
	return b.buf[p+4 : p+4+n]
}

// writeTrailer appends the child entries, the count and the total size word.
// groupSize is the trailer bytes per counted element: 4 for arrays, 8 for
// object pairs.
func (b *Builder) writeTrailer(children []entry, bufStart, groupSize int) {
	count := len(children) * entrySize / groupSize
	if uint64(count) > math.MaxUint32 {
		b.setErr(fmt.Errorf("%w: container of %d elements", ErrTooLarge, count))
		return
	}
	for _, e := range children {
		b.buf = putUint32(b.buf, uint32(e))
	}
	b.buf = putUint32(b.buf, uint32(count))
	total := len(b.buf) - bufStart + 4
	if uint64(total) > math.MaxUint32 {
		b.setErr(fmt.Errorf("%w: container payload of %d bytes", ErrTooLarge, total))
		return
	}
	b.buf = putUint32(b.buf, uint32(total))
}

// payloadSpan returns the payload range of e relative to its container start,
// and whether e carries a payload at all.
func (b *Builder) payloadSpan(base int, e entry) (lo, hi int, ok bool) {
	switch e.kind() {
	case KindNumber:
		lo = e.offset()
		return lo, lo + 1 + numberSize(b.buf[base+lo]), true
	case KindString:
		lo = e.offset()
		return lo, lo + 4 + int(loadUint32(b.buf[base+lo:])), true
	case KindArray, KindObject:
		hi = e.offset()
		size := int(loadUint32(b.buf[base+hi-4:]))
		return hi - size, hi, true
	}
	return 0, 0, false
}

// compactObject moves the payloads of the kept entries to the front of the
// container region and rewrites their offsets, discarding bytes that belonged
// to deduplicated pairs.
func (b *Builder) compactObject(base int, kept []objPair) {
	type ref struct {
		e      *entry
		lo, hi int
	}
	refs := make([]ref, 0, len(kept)*2)
	for i := range kept {
		for _, e := range []*entry{&kept[i].key, &kept[i].val} {
			if lo, hi, ok := b.payloadSpan(base, *e); ok {
				refs = append(refs, ref{e, lo, hi})
			}
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].lo < refs[j].lo })

	cursor := 0
	for _, r := range refs {
		size := r.hi - r.lo
		copy(b.buf[base+cursor:], b.buf[base+r.lo:base+r.hi])
		switch (*r.e).kind() {
		case KindArray, KindObject:
			*r.e = (*r.e).withOffset(cursor + size)
		default:
			*r.e = (*r.e).withOffset(cursor)
		}
		cursor += size
	}
	b.buf = b.buf[:base+cursor]
}

// Pop undoes the most recently added value, discarding its payload bytes.
// Container values are discarded whole, using the trailing size word.
func (b *Builder) Pop() {
	top := 0
	if len(b.containers) > 0 {
		top = b.containers[len(b.containers)-1].entriesStart
	}
	if len(b.entries) <= top {
		b.setErr(errors.New("Pop with no value in the current scope"))
		return
	}
	e := b.entries[len(b.entries)-1]
	b.entries = b.entries[:len(b.entries)-1]

	base := 0
	if len(b.containers) > 0 {
		base = b.containers[len(b.containers)-1].bufStart
	}
	switch e.kind() {
	case KindNumber, KindString:
		b.buf = b.buf[:base+e.offset()]
	case KindArray, KindObject:
		end := base + e.offset()
		size := int(loadUint32(b.buf[end-4:]))
		b.buf = b.buf[:end-size]
	}
}

// Finish seals the buffer with its root entry and returns the completed
// value. Exactly one value must be pending and all containers closed.
func (b *Builder) Finish() (*Value, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.containers) != 0 {
		return nil, fmt.Errorf("finish with %d unclosed containers", len(b.containers))
	}
	if len(b.entries) != 1 {
		return nil, fmt.Errorf("finish requires exactly one root value, have %d", len(b.entries))
	}
	buf := putUint32(b.buf, uint32(b.entries[0]))
	b.buf = nil
	b.entries = b.entries[:0]
	return &Value{buf: buf}, nil
}

// A Checkpoint captures the builder's state so speculative additions can be
// rolled back. The CRCs cover the prefixes known at checkpoint time; any
// mutation outside the recorded bounds makes the checkpoint invalid.
type Checkpoint struct {
	bufLen        int
	entriesLen    int
	containersLen int

	bufCRC        uint32
	entriesCRC    uint32
	containersCRC uint32

	err error
}

// Checkpoint records the current builder state.
func (b *Builder) Checkpoint() Checkpoint {
	return Checkpoint{
		bufLen:        len(b.buf),
		entriesLen:    len(b.entries),
		containersLen: len(b.containers),
		bufCRC:        crc32.ChecksumIEEE(b.buf),
		entriesCRC:    crcEntries(b.entries),
		containersCRC: crcContainers(b.containers),
		err:           b.err,
	}
}

// Rollback restores the builder to the state recorded in c. It refuses,
// returning false and leaving the builder untouched, if any recorded prefix
// has since been truncated or rewritten.
func (b *Builder) Rollback(c Checkpoint) bool {
	if len(b.buf) < c.bufLen || len(b.entries) < c.entriesLen || len(b.containers) < c.containersLen {
		return false
	}
	if crc32.ChecksumIEEE(b.buf[:c.bufLen]) != c.bufCRC {
		return false
	}
	if crcEntries(b.entries[:c.entriesLen]) != c.entriesCRC {
		return false
	}
	if crcContainers(b.containers[:c.containersLen]) != c.containersCRC {
		return false
	}
	b.buf = b.buf[:c.bufLen]
	b.entries = b.entries[:c.entriesLen]
	b.containers = b.containers[:c.containersLen]
	b.err = c.err
	return true
}

func crcEntries(entries []entry) uint32 {
	h := crc32.NewIEEE()
	var tmp [4]byte
	for _, e := range entries {
		native.PutUint32(tmp[:], uint32(e))
		h.Write(tmp[:])
	}
	return h.Sum32()
}

func crcContainers(containers []containerStart) uint32 {
	h := crc32.NewIEEE()
	var tmp [16]byte
	for _, c := range containers {
		native.PutUint64(tmp[:8], uint64(c.bufStart))
		native.PutUint64(tmp[8:], uint64(c.entriesStart))
		h.Write(tmp[:])
	}
	return h.Sum32()
}
