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
	"encoding/json"
	"testing"
)

// Serialized text, parsed again, must produce an equal value.
func TestMarshalRoundTrip(t *testing.T) {
	inputs := []string{
		`null`, `true`, `false`, `0`, `-1`, `127`, `-128`, `65000`,
		`18446744073709551615`, `-9223372036854775808`,
		`0.5`, `-12.25`, `1e-7`, `1.5e300`, `1234567890.1234567`,
		`""`, `"a"`, `"nested \"quotes\" and \\ slashes"`, `"tab\there"`,
		`"line sep"`, `"héllo"`,
		`[]`, `[1,2,3]`, `[[[[]]]]`, `[null,true,"x",1.5,[],{}]`,
		`{}`, `{"a":1}`, `{"a":{"b":{"c":null}},"d":[1,2]}`,
	}
	for _, in := range inputs {
		v, err := ParseString(in, nil)
		if err != nil {
			t.Fatalf("parse %s: %v", in, err)
		}
		out, err := v.MarshalJSON()
		if err != nil {
			t.Fatalf("marshal %s: %v", in, err)
		}
		v2, err := Parse(out, nil)
		if err != nil {
			t.Fatalf("reparse %s: %v", out, err)
		}
		if !v.Equal(v2) {
			t.Errorf("round trip changed value: %s -> %s", in, out)
		}
	}
}

func TestMarshalEscapes(t *testing.T) {
	b := NewBuilder()
	b.BeginObject()
	b.AddString("key\nwith\tctl")
	b.AddString("\x01\x1f\"\\")
	b.EndObject()
	v := mustFinish(t, b)
	want := `{"key\nwith\tctl":"\u0001\u001f\"\\"}`
	if got := v.String(); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if !json.Valid([]byte(v.String())) {
		t.Error("output is not valid JSON")
	}
}

func TestAppendPretty(t *testing.T) {
	v := parseT(t, `{"a":[1,{"b":null}],"c":"x","d":[],"e":{}}`)
	got, err := v.AppendPretty(nil, "  ")
	if err != nil {
		t.Fatal(err)
	}
	want := `{
  "a": [
    1,
    {
      "b": null
    }
  ],
  "c": "x",
  "d": [],
  "e": {}
}`
	if string(got) != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}

	// Pretty output must parse back to the same value.
	v2, err := Parse(got, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Equal(v2) {
		t.Error("pretty output changed value")
	}
}

func TestAppendJSONReusesBuffer(t *testing.T) {
	v := parseT(t, `[1,2]`)
	buf := make([]byte, 0, 64)
	out, err := v.AppendJSON(buf)
	if err != nil {
		t.Fatal(err)
	}
	out, err = v.AppendJSON(out)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(out), `[1,2][1,2]`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMarshalFloatFormat(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{1, "1"},
		{0.5, "0.5"},
		{-0.000001, "-0.000001"},
		{1e-7, "1e-7"},
		{1e21, "1e+21"},
		{123456789.123, "123456789.123"},
	}
	for _, tc := range testCases {
		b := NewBuilder()
		b.AddFloat64(tc.in)
		v := mustFinish(t, b)
		if got := v.String(); got != tc.want {
			t.Errorf("float %v marshals to %s, want %s", tc.in, got, tc.want)
		}
	}
}
