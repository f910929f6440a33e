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
	"reflect"
	"testing"
)

func parseT(t *testing.T, s string) *Value {
	t.Helper()
	v, err := ParseString(s, nil)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return v
}

func TestArrayPush(t *testing.T) {
	v := parseT(t, `[1]`)

	emptyArr := parseT(t, `[]`)
	emptyObj := parseT(t, `{}`)

	pushes := []ValueRef{
		NullValue(),
		IntValue(2),
		StringValue("str"),
		emptyArr.Ref(),
		emptyObj.Ref(),
	}
	for _, elem := range pushes {
		if err := v.ArrayPush(elem); err != nil {
			t.Fatalf("push %v: %v", elem.Kind(), err)
		}
	}

	want := `[1,null,2,"str",[],{}]`
	if got := v.String(); got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	// The mutated buffer must round-trip through validation.
	if _, err := FromBytes(v.Bytes()); err != nil {
		t.Errorf("pushed buffer does not validate: %v", err)
	}
}

func TestArrayPushFromOtherBuffer(t *testing.T) {
	v := parseT(t, `[]`)
	src := parseT(t, `{"k":[1,{"deep":true}]}`)

	inner, ok := src.Get("k")
	if !ok {
		t.Fatal("missing key")
	}
	if err := v.ArrayPush(inner); err != nil {
		t.Fatal(err)
	}
	if err := v.ArrayPush(src.Ref()); err != nil {
		t.Fatal(err)
	}
	want := `[[1,{"deep":true}],{"k":[1,{"deep":true}]}]`
	if got := v.String(); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestArrayPushSelf(t *testing.T) {
	v := parseT(t, `[1,2]`)
	first, _ := v.Get(0)
	if err := v.ArrayPush(first); err != nil {
		t.Fatal(err)
	}
	if got, want := v.String(), `[1,2,1]`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestArrayPushNonArray(t *testing.T) {
	v := parseT(t, `{"a":1}`)
	if err := v.ArrayPush(NullValue()); err == nil {
		t.Error("expected error pushing into an object root")
	}
}

func TestGet(t *testing.T) {
	v := parseT(t, `{"a":"foo","b":[null,1,"bar"],"c":{"x":[true]}}`)

	testCases := []struct {
		name string
		path []interface{}
		want string
		ok   bool
	}{
		{name: "root-key", path: []interface{}{"a"}, want: `"foo"`, ok: true},
		{name: "array-elem", path: []interface{}{"b", 2}, want: `"bar"`, ok: true},
		{name: "deep", path: []interface{}{"c", "x", 0}, want: `true`, ok: true},
		{name: "missing-key", path: []interface{}{"zz"}, ok: false},
		{name: "index-out-of-range", path: []interface{}{"b", 3}, ok: false},
		{name: "index-into-object", path: []interface{}{0}, ok: false},
		{name: "key-into-array", path: []interface{}{"b", "x"}, ok: false},
		{name: "empty-path", path: nil, want: `{"a":"foo","b":[null,1,"bar"],"c":{"x":[true]}}`, ok: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := v.Get(tc.path...)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got.String() != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestGetPointer(t *testing.T) {
	v := parseT(t, `{"a":"foo","b":[null,1,"bar"],"0":"zero"}`)

	testCases := []struct {
		ptr  string
		want string
		ok   bool
	}{
		{ptr: "", want: `{"0":"zero","a":"foo","b":[null,1,"bar"]}`, ok: true},
		{ptr: "/a", want: `"foo"`, ok: true},
		{ptr: "/b/1", want: `1`, ok: true},
		{ptr: "/b/2", want: `"bar"`, ok: true},
		{ptr: "/0", want: `"zero"`, ok: true},
		{ptr: "/b/x", ok: false},
		{ptr: "/b/3", ok: false},
		{ptr: "/missing", ok: false},
		{ptr: "/a/b", ok: false},
	}
	for _, tc := range testCases {
		t.Run(tc.ptr, func(t *testing.T) {
			got, ok := v.GetPointer(tc.ptr)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got.String() != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestObjectView(t *testing.T) {
	v := parseT(t, `{"b":2,"a":1,"c":3}`)
	o, ok := v.Ref().Object()
	if !ok {
		t.Fatal("not an object")
	}
	if o.Len() != 3 {
		t.Fatalf("len %d, want 3", o.Len())
	}
	if got := o.Keys(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("keys %v", got)
	}
	if !o.ContainsKey("b") || o.ContainsKey("z") {
		t.Error("ContainsKey mismatch")
	}
	vals, err := o.Values()
	if err != nil {
		t.Fatal(err)
	}
	if len(vals) != 3 || vals[0].String() != "1" || vals[2].String() != "3" {
		t.Errorf("values %v", vals)
	}

	it := o.Iter()
	var keys []string
	for {
		k, _, ok := it.Next()
		if !ok {
			break
		}
		keys = append(keys, string(k))
	}
	if !reflect.DeepEqual(keys, []string{"a", "b", "c"}) {
		t.Errorf("iterated keys %v", keys)
	}
}

func TestInterface(t *testing.T) {
	v := parseT(t, `{"s":"x","i":-3,"u":18446744073709551615,"f":0.5,"b":true,"n":null,"a":[1,2]}`)
	got, err := v.Interface()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]interface{}{
		"s": "x",
		"i": int64(-3),
		"u": uint64(18446744073709551615),
		"f": 0.5,
		"b": true,
		"n": nil,
		"a": []interface{}{int64(1), int64(2)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestFromBytes(t *testing.T) {
	v := parseT(t, `{"a":[1,"two",{"three":3.5}]}`)
	cp, err := FromBytes(append([]byte(nil), v.Bytes()...))
	if err != nil {
		t.Fatal(err)
	}
	if !cp.Equal(v) {
		t.Error("copy differs from original")
	}

	// Navigation through the rewrapped buffer matches the original.
	for _, ptr := range []string{"/a", "/a/0", "/a/1", "/a/2/three", "/missing"} {
		got, gotOK := cp.GetPointer(ptr)
		want, wantOK := v.GetPointer(ptr)
		if gotOK != wantOK {
			t.Errorf("%s: ok = %v, want %v", ptr, gotOK, wantOK)
			continue
		}
		if gotOK && !Equal(got, want) {
			t.Errorf("%s: got %s, want %s", ptr, got, want)
		}
	}
}

func TestFromBytesCorrupt(t *testing.T) {
	valid := parseT(t, `{"a":[1,2]}`).Bytes()

	testCases := []struct {
		name string
		mut  func() []byte
	}{
		{name: "empty", mut: func() []byte { return nil }},
		{name: "short", mut: func() []byte { return []byte{1, 2} }},
		{name: "truncated", mut: func() []byte {
			return append([]byte(nil), valid[:len(valid)-6]...)
		}},
		{name: "root-offset-beyond", mut: func() []byte {
			b := append([]byte(nil), valid...)
			// Root entry claiming a payload past the buffer.
			copy(b[len(b)-4:], []byte{0xff, 0xff, 0xff, 0xff})
			return b
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if v, err := FromBytes(tc.mut()); err == nil {
				t.Errorf("expected error, got %s", v)
			}
		})
	}
}

// A container copied byte-for-byte out of one buffer is a valid value on its
// own: entry offsets are relative to the container payload.
func TestContainerBytesArePositionIndependent(t *testing.T) {
	v := parseT(t, `{"pad":"xxxxxxxxxxxxxxxx","k":[1,{"deep":[true,null]}]}`)
	inner, ok := v.Get("k")
	if !ok {
		t.Fatal("missing key")
	}
	moved, err := inner.ToValue()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := moved.String(), `[1,{"deep":[true,null]}]`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if _, err := FromBytes(moved.Bytes()); err != nil {
		t.Errorf("moved container does not validate: %v", err)
	}
}
