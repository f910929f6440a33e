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
	"fmt"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

const serializedVersion = 1

// Serializer writes encoded values to a compact, optionally compressed
// persistence format. The payload stays native byte order, so serialized
// values are only portable between hosts with the same byte order.
// A Serializer can be reused, but not used concurrently.
type Serializer struct {
	comp         byte
	betterS2     bool
	maxBlockSize uint64
}

// NewSerializer will create and initialize a Serializer.
func NewSerializer() *Serializer {
	initSerializerOnce.Do(initSerializer)
	s := Serializer{maxBlockSize: 1 << 31}
	s.CompressMode(CompressDefault)
	return &s
}

// CompressMode controls how serialized buffers are compressed.
type CompressMode uint8

const (
	// CompressNone no compression whatsoever.
	CompressNone CompressMode = iota

	// CompressFast will apply light compression.
	CompressFast

	// CompressDefault applies light compression with a denser s2 mode.
	CompressDefault

	// CompressBest uses zstd for the densest output.
	CompressBest
)

// CompressMode sets the mode used for subsequent Serialize calls.
func (s *Serializer) CompressMode(c CompressMode) {
	switch c {
	case CompressNone:
		s.comp = blockTypeUncompressed
	case CompressFast:
		s.comp = blockTypeS2
		s.betterS2 = false
	case CompressDefault:
		s.comp = blockTypeS2
		s.betterS2 = true
	case CompressBest:
		s.comp = blockTypeZstd
	default:
		panic("unknown compression mode")
	}
}

const (
	blockTypeUncompressed byte = 0
	blockTypeS2           byte = 1
	blockTypeZstd         byte = 2
)

var (
	zEnc *zstd.Encoder
	zDec *zstd.Decoder

	initSerializerOnce sync.Once
)

func initSerializer() {
	zEnc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderCRC(false))
	zDec, _ = zstd.NewReader(nil)
}

// Serialize appends the serialized form of v to dst and returns the result.
func (s *Serializer) Serialize(dst []byte, v *Value) []byte {
	// Format:
	// Version byte, block type byte,
	// uvarint decompressed size, uvarint block size, block.
	dst = append(dst, serializedVersion, s.comp)
	dst = binary.AppendUvarint(dst, uint64(len(v.buf)))

	var block []byte
	switch s.comp {
	case blockTypeUncompressed:
		block = v.buf
	case blockTypeS2:
		if s.betterS2 {
			block = s2.EncodeBetter(nil, v.buf)
		} else {
			block = s2.Encode(nil, v.buf)
		}
	case blockTypeZstd:
		block = zEnc.EncodeAll(v.buf, nil)
	}
	dst = binary.AppendUvarint(dst, uint64(len(block)))
	return append(dst, block...)
}

// Deserializer reads values written by a Serializer.
// A Deserializer can be reused, but not used concurrently.
type Deserializer struct {
	maxBlockSize uint64
}

// NewDeserializer will create and initialize a Deserializer.
func NewDeserializer() *Deserializer {
	initSerializerOnce.Do(initSerializer)
	return &Deserializer{maxBlockSize: 1 << 31}
}

// Deserialize reads one serialized value from b and returns it along with any
// bytes following it. An optional previously deserialized value can be
// supplied to reuse its buffer.
func (d *Deserializer) Deserialize(b []byte, reuse *Value) (v *Value, rest []byte, err error) {
	if len(b) < 2 {
		return nil, nil, errors.New("deserialize: short input")
	}
	if b[0] != serializedVersion {
		return nil, nil, fmt.Errorf("deserialize: unknown version %d", b[0])
	}
	comp := b[1]
	b = b[2:]

	rawSize, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, nil, errors.New("deserialize: reading size")
	}
	b = b[n:]
	if rawSize > d.maxBlockSize {
		return nil, nil, fmt.Errorf("deserialize: size %d exceeds limit", rawSize)
	}
	blockSize, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, nil, errors.New("deserialize: reading block size")
	}
	b = b[n:]
	if blockSize > uint64(len(b)) {
		return nil, nil, errors.New("deserialize: short block")
	}
	block := b[:blockSize]
	rest = b[blockSize:]

	var buf []byte
	if reuse != nil && uint64(cap(reuse.buf)) >= rawSize {
		buf = reuse.buf[:0]
		reuse.buf = nil
	}

	switch comp {
	case blockTypeUncompressed:
		if uint64(len(block)) != rawSize {
			return nil, nil, fmt.Errorf("deserialize: uncompressed block of %d bytes, want %d", len(block), rawSize)
		}
		buf = append(buf[:0], block...)
	case blockTypeS2:
		buf, err = s2.Decode(buf[:cap(buf)], block)
		if err != nil {
			return nil, nil, fmt.Errorf("deserialize: s2 block: %w", err)
		}
	case blockTypeZstd:
		buf, err = zDec.DecodeAll(block, buf[:0])
		if err != nil {
			return nil, nil, fmt.Errorf("deserialize: zstd block: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("deserialize: unknown compression type %d", comp)
	}
	if uint64(len(buf)) != rawSize {
		return nil, nil, fmt.Errorf("deserialize: decompressed %d bytes, want %d", len(buf), rawSize)
	}

	v, err = FromBytes(buf)
	if err != nil {
		return nil, nil, err
	}
	return v, rest, nil
}
