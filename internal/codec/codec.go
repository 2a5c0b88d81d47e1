// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package codec holds the CBOR encoding shared by the wire protocol and the membership stores.
package codec

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Name is the codec name advertised on the wire
const Name = "cbor"

var (
	// ErrNilValue is returned when a nil value is marshaled
	ErrNilValue = errors.New("codec: value is nil")

	encOpts = cbor.EncOptions{
		Sort:        cbor.SortNone,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}
	decOpts = cbor.DecOptions{
		MaxNestedLevels: 64,
		IndefLength:     cbor.IndefLengthForbidden,
		UTF8:            cbor.UTF8DecodeInvalid,
	}

	encMode = mustEncMode()
	decMode = mustDecMode()
)

// Codec encodes values as CBOR. It is stateless and safe for concurrent use.
// It satisfies connect.Codec so it can be plugged into connect handlers and clients.
type Codec struct{}

// New returns the CBOR codec
func New() Codec {
	return Codec{}
}

// Name returns the codec name
func (Codec) Name() string {
	return Name
}

// Marshal encodes v
func (Codec) Marshal(v any) ([]byte, error) {
	return Marshal(v)
}

// Unmarshal decodes data into v
func (Codec) Unmarshal(data []byte, v any) error {
	return Unmarshal(data, v)
}

// Marshal encodes v as CBOR
func Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, ErrNilValue
	}
	bytea, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: failed to marshal %T: %w", v, err)
	}
	return bytea, nil
}

// Unmarshal decodes CBOR data into v, which must be a pointer
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: failed to unmarshal into %T: %w", v, err)
	}
	return nil
}

func mustEncMode() cbor.EncMode {
	mode, err := encOpts.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}

func mustDecMode() cbor.DecMode {
	mode, err := decOpts.DecMode()
	if err != nil {
		panic(err)
	}
	return mode
}
