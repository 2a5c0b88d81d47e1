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

package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID      string    `cbor:"id"`
	Port    int       `cbor:"port"`
	Payload []byte    `cbor:"payload,omitempty"`
	At      time.Time `cbor:"at"`
}

func TestCodec(t *testing.T) {
	codec := New()
	assert.Equal(t, "cbor", codec.Name())

	at := time.Date(2026, 1, 2, 3, 4, 5, 600, time.UTC)
	in := &record{ID: "silo-1", Port: 9000, Payload: []byte("hi"), At: at}
	bytea, err := codec.Marshal(in)
	require.NoError(t, err)

	out := new(record)
	require.NoError(t, codec.Unmarshal(bytea, out))
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Port, out.Port)
	assert.Equal(t, in.Payload, out.Payload)
	assert.True(t, at.Equal(out.At))

	_, err = Marshal(nil)
	require.ErrorIs(t, err, ErrNilValue)
	require.Error(t, Unmarshal([]byte{0xff, 0x00}, out))
}
