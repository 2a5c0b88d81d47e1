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

package envelope

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/quarkgo/quark/errors"
)

func TestEnvelope(t *testing.T) {
	t.Run("With request", func(t *testing.T) {
		req := NewRequest("counter", "1", "Increment", []byte("5"))
		require.NoError(t, req.Validate())
		assert.NotEmpty(t, req.MessageID)
		assert.Equal(t, req.MessageID, req.CorrelationID)
		assert.Equal(t, KindRequest, req.Kind)
		assert.False(t, req.IsResponse())
		assert.Equal(t, "counter:1", req.Key())
		assert.False(t, req.Timestamp.IsZero())
	})
	t.Run("With reply", func(t *testing.T) {
		req := NewRequest("counter", "1", "Get", nil)
		req.SenderSiloID = "s1"
		req.TargetSiloID = "s2"

		resp := req.Reply([]byte("42"))
		assert.True(t, resp.IsResponse())
		assert.Equal(t, KindResponse, resp.Kind)
		assert.Equal(t, req.MessageID, resp.MessageID)
		assert.Equal(t, req.CorrelationID, resp.CorrelationID)
		assert.Equal(t, "s1", resp.SenderSiloID)
		assert.Equal(t, []byte("42"), resp.ResponsePayload)
		assert.NoError(t, resp.Err())
		assert.NoError(t, resp.Validate())
	})
	t.Run("With empty reply", func(t *testing.T) {
		resp := NewRequest("counter", "1", "Reset", nil).Reply(nil)
		assert.NotNil(t, resp.ResponsePayload)
		assert.True(t, resp.IsResponse())
	})
	t.Run("With failure", func(t *testing.T) {
		req := NewRequest("counter", "1", "Unknown", nil)
		resp := req.Fail(fmt.Errorf("dispatch: %w", gerrors.ErrMethodNotFound))
		assert.True(t, resp.IsResponse())
		assert.True(t, resp.IsError)
		assert.Equal(t, "METHOD_NOT_FOUND", resp.ErrorCode)
		require.ErrorIs(t, resp.Err(), gerrors.ErrMethodNotFound)
		assert.EqualError(t, resp.Err(), "dispatch: method not found")
	})
	t.Run("With response detected without kind", func(t *testing.T) {
		env := &Envelope{MessageID: "m", ResponsePayload: []byte{}}
		assert.True(t, env.IsResponse())
		env = &Envelope{MessageID: "m", IsError: true}
		assert.True(t, env.IsResponse())
	})
	t.Run("With invalid envelopes", func(t *testing.T) {
		require.ErrorIs(t, (&Envelope{}).Validate(), gerrors.ErrInvalidEnvelope)
		require.ErrorIs(t, (&Envelope{MessageID: "m", ActorType: "counter"}).Validate(), gerrors.ErrInvalidEnvelope)
		require.ErrorIs(t, (&Envelope{MessageID: "m", ActorType: "counter", ActorID: "1"}).Validate(), gerrors.ErrInvalidEnvelope)
	})
	t.Run("With wire round trip", func(t *testing.T) {
		req := NewRequest("counter", "1", "Increment", []byte{1, 2, 3})
		req.SenderSiloID = "s1"
		req.TargetSiloID = "s2"
		req.CallChain = []string{"a:1", "b:2"}

		bytea, err := req.Marshal()
		require.NoError(t, err)
		decoded, err := Unmarshal(bytea)
		require.NoError(t, err)
		assert.Equal(t, req.MessageID, decoded.MessageID)
		assert.Equal(t, req.Payload, decoded.Payload)
		assert.Equal(t, req.CallChain, decoded.CallChain)
		assert.Equal(t, KindRequest, decoded.Kind)
		assert.True(t, req.Timestamp.Equal(decoded.Timestamp))

		resp := req.Reply(nil)
		bytea, err = resp.Marshal()
		require.NoError(t, err)
		decoded, err = Unmarshal(bytea)
		require.NoError(t, err)
		assert.True(t, decoded.IsResponse())

		_, err = Unmarshal([]byte("garbage"))
		require.ErrorIs(t, err, gerrors.ErrInvalidEnvelope)
	})
	t.Run("With call chain", func(t *testing.T) {
		req := NewRequest("b", "2", "Ping", nil)
		req.CallChain = ExtendCallChain(nil, "a:1")
		assert.True(t, req.InCallChain("a:1"))
		assert.False(t, req.InCallChain("b:2"))

		chain := []string{"a:1"}
		extended := ExtendCallChain(chain, "b:2")
		assert.Equal(t, []string{"a:1", "b:2"}, extended)
		assert.Equal(t, []string{"a:1"}, chain)

		clone := req.Clone()
		clone.CallChain[0] = "z:9"
		assert.Equal(t, "a:1", req.CallChain[0])
	})
}
