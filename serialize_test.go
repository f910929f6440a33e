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
	"strings"
	"testing"
)

func TestSerializeRoundTrip(t *testing.T) {
	doc := `{"name":"John Doe","tags":["` + strings.Repeat("compressible ", 200) + `"],"n":123.75}`
	v := parseT(t, doc)

	for _, mode := range []CompressMode{CompressNone, CompressFast, CompressDefault, CompressBest} {
		s := NewSerializer()
		s.CompressMode(mode)
		blob := s.Serialize(nil, v)

		d := NewDeserializer()
		got, rest, err := d.Deserialize(blob, nil)
		if err != nil {
			t.Fatalf("mode %d: %v", mode, err)
		}
		if len(rest) != 0 {
			t.Errorf("mode %d: %d trailing bytes", mode, len(rest))
		}
		if !got.Equal(v) {
			t.Errorf("mode %d: value changed", mode)
		}
		if !bytes.Equal(got.Bytes(), v.Bytes()) {
			t.Errorf("mode %d: buffer not byte-identical", mode)
		}
	}
}

func TestSerializeStream(t *testing.T) {
	docs := []string{`{"a":1}`, `[1,2,3]`, `"third"`}
	s := NewSerializer()

	var blob []byte
	for _, doc := range docs {
		blob = s.Serialize(blob, parseT(t, doc))
	}

	d := NewDeserializer()
	var reuse *Value
	for i, doc := range docs {
		var err error
		reuse, blob, err = d.Deserialize(blob, reuse)
		if err != nil {
			t.Fatalf("value %d: %v", i, err)
		}
		if got := reuse.String(); got != doc {
			t.Errorf("value %d: got %s, want %s", i, got, doc)
		}
	}
	if len(blob) != 0 {
		t.Errorf("%d trailing bytes", len(blob))
	}
}

func TestDeserializeErrors(t *testing.T) {
	valid := NewSerializer().Serialize(nil, parseT(t, `{"a":1}`))

	testCases := []struct {
		name string
		in   []byte
	}{
		{name: "empty", in: nil},
		{name: "bad-version", in: []byte{99, 0}},
		{name: "truncated", in: valid[:len(valid)-3]},
		{name: "bad-block-type", in: func() []byte {
			b := append([]byte(nil), valid...)
			b[1] = 42
			return b
		}()},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if v, _, err := NewDeserializer().Deserialize(tc.in, nil); err == nil {
				t.Errorf("expected error, got %s", v)
			}
		})
	}
}
