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
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

// Visitor receives one event per JSON token while Tokenize walks a document.
// Returning an error stops the walk and surfaces the error unchanged.
type Visitor interface {
	VisitNull() error
	VisitBool(v bool) error
	VisitInt64(v int64) error
	VisitUint64(v uint64) error
	VisitFloat64(v float64) error
	VisitString(s string) error
	VisitKey(k string) error
	BeginArray() error
	EndArray() error
	BeginObject() error
	EndObject() error
}

// Parse parses a single JSON document into an owned value.
// An optional previously parsed value can be supplied to reuse its buffer.
func Parse(b []byte, reuse *Value, opts ...ParserOption) (*Value, error) {
	bld := NewBuilder()
	if reuse != nil && reuse.buf != nil {
		bld.buf = reuse.buf[:0]
		reuse.buf = nil
	}
	if err := Tokenize(b, &builderVisitor{b: bld}, opts...); err != nil {
		return nil, err
	}
	return bld.Finish()
}

// ParseString parses a single JSON document from a string.
func ParseString(s string, reuse *Value, opts ...ParserOption) (*Value, error) {
	return Parse([]byte(s), reuse, opts...)
}

// builderVisitor feeds tokenizer events into a builder.
type builderVisitor struct {
	b *Builder
}

func (v *builderVisitor) VisitNull() error           { v.b.AddNull(); return v.b.err }
func (v *builderVisitor) VisitBool(b bool) error     { v.b.AddBool(b); return v.b.err }
func (v *builderVisitor) VisitInt64(n int64) error   { v.b.AddInt64(n); return v.b.err }
func (v *builderVisitor) VisitUint64(n uint64) error { v.b.AddUint64(n); return v.b.err }
func (v *builderVisitor) VisitFloat64(f float64) error {
	v.b.AddFloat64(f)
	return v.b.err
}
func (v *builderVisitor) VisitString(s string) error { v.b.AddString(s); return v.b.err }
func (v *builderVisitor) VisitKey(k string) error    { v.b.AddString(k); return v.b.err }
func (v *builderVisitor) BeginArray() error          { v.b.BeginArray(); return v.b.err }
func (v *builderVisitor) EndArray() error            { v.b.EndArray(); return v.b.err }
func (v *builderVisitor) BeginObject() error         { v.b.BeginObject(); return v.b.err }
func (v *builderVisitor) EndObject() error           { v.b.EndObject(); return v.b.err }

// Tokenize walks one JSON document, invoking vis once per token. Input after
// the document must be whitespace only. Tokenizer errors propagate with their
// position information intact.
func Tokenize(data []byte, vis Visitor, opts ...ParserOption) error {
	var o parserOptions
	o.defaults()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return err
		}
	}

	it := jsoniter.ParseBytes(jsoniter.ConfigDefault, data)
	if err := tokenizeValue(it, vis, &o, 0); err != nil {
		return err
	}
	// Only whitespace may remain: a clean end leaves the iterator at EOF.
	switch t := it.WhatIsNext(); {
	case t != jsoniter.InvalidValue:
		return errors.New("trailing characters after top-level value")
	case it.Error == nil:
		return errors.New("trailing characters after top-level value")
	case !errors.Is(it.Error, io.EOF):
		return fmt.Errorf("parsing json: %w", it.Error)
	}
	return nil
}

func tokenizeValue(it *jsoniter.Iterator, vis Visitor, o *parserOptions, depth int) error {
	if depth > o.maxDepth {
		return fmt.Errorf("nesting deeper than %d", o.maxDepth)
	}
	switch it.WhatIsNext() {
	case jsoniter.NilValue:
		it.ReadNil()
		if err := iterErr(it); err != nil {
			return err
		}
		return vis.VisitNull()
	case jsoniter.BoolValue:
		b := it.ReadBool()
		if err := iterErr(it); err != nil {
			return err
		}
		return vis.VisitBool(b)
	case jsoniter.StringValue:
		s := it.ReadString()
		if err := iterErr(it); err != nil {
			return err
		}
		if o.validateStrings && !utf8.ValidString(s) {
			return errors.New("string value is not valid UTF-8")
		}
		return vis.VisitString(s)
	case jsoniter.NumberValue:
		n := it.ReadNumber()
		if err := iterErr(it); err != nil {
			return err
		}
		return visitNumber(string(n), vis)
	case jsoniter.ArrayValue:
		if err := vis.BeginArray(); err != nil {
			return err
		}
		var elemErr error
		it.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			elemErr = tokenizeValue(it, vis, o, depth+1)
			return elemErr == nil
		})
		if elemErr != nil {
			return elemErr
		}
		if err := iterErr(it); err != nil {
			return err
		}
		return vis.EndArray()
	case jsoniter.ObjectValue:
		if err := vis.BeginObject(); err != nil {
			return err
		}
		var elemErr error
		it.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			if o.validateStrings && !utf8.ValidString(key) {
				elemErr = errors.New("object key is not valid UTF-8")
				return false
			}
			if elemErr = vis.VisitKey(key); elemErr != nil {
				return false
			}
			elemErr = tokenizeValue(it, vis, o, depth+1)
			return elemErr == nil
		})
		if elemErr != nil {
			return elemErr
		}
		if err := iterErr(it); err != nil {
			return err
		}
		return vis.EndObject()
	default:
		if err := iterErr(it); err != nil {
			return err
		}
		return errors.New("invalid character looking for a value")
	}
}

func iterErr(it *jsoniter.Iterator) error {
	if it.Error != nil && !errors.Is(it.Error, io.EOF) {
		return fmt.Errorf("parsing json: %w", it.Error)
	}
	return nil
}

// visitNumber routes a numeric literal to the narrowest visitor event.
// Integer literals try int64, then uint64 for (MaxInt64, MaxUint64], then
// float64. Literals whose value is not a finite float64 are rejected.
func visitNumber(lit string, vis Visitor) error {
	if !strings.ContainsAny(lit, ".eE") {
		if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return vis.VisitInt64(i)
		}
		if u, err := strconv.ParseUint(lit, 10, 64); err == nil {
			return vis.VisitUint64(u)
		}
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("invalid number literal %q", lit)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return fmt.Errorf("number literal %q does not fit a finite float64", lit)
	}
	return vis.VisitFloat64(f)
}
