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

package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/quarkgo/quark/envelope"
	gerrors "github.com/quarkgo/quark/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type sink struct {
	received chan *envelope.Envelope
}

func newSink() *sink {
	return &sink{received: make(chan *envelope.Envelope, 16)}
}

func (s *sink) handle(_ context.Context, env *envelope.Envelope) {
	s.received <- env
}

func (s *sink) next(t *testing.T) *envelope.Envelope {
	t.Helper()
	select {
	case env := <-s.received:
		return env
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no envelope received")
		return nil
	}
}

func TestLocalNetwork(t *testing.T) {
	ctx := context.Background()

	t.Run("With request and response between silos", func(t *testing.T) {
		network := NewLocalNetwork()
		s1, s2 := network.Endpoint("S1"), network.Endpoint("S2")
		in1, in2 := newSink(), newSink()
		s1.OnEnvelopeReceived(in1.handle)
		s2.OnEnvelopeReceived(in2.handle)
		require.NoError(t, s1.Start(ctx))
		require.NoError(t, s2.Start(ctx))
		assert.Equal(t, "S1", s1.SiloID())

		req := envelope.NewRequest("Order", "42", "Get", nil)
		req.SenderSiloID, req.TargetSiloID = "S1", "S2"
		require.NoError(t, s1.Send(ctx, req))

		got := in2.next(t)
		assert.Equal(t, req.MessageID, got.MessageID)
		assert.False(t, got.IsResponse())
		assert.Equal(t, "S2", Destination(got))

		resp := got.Reply([]byte("ok"))
		assert.Equal(t, "S1", Destination(resp))
		require.NoError(t, s2.SendResponse(ctx, resp))
		back := in1.next(t)
		assert.True(t, back.IsResponse())
		assert.Equal(t, req.CorrelationID, back.CorrelationID)

		require.NoError(t, s1.Stop(ctx))
		require.NoError(t, s2.Stop(ctx))
		require.NoError(t, s2.Stop(ctx))
	})
	t.Run("With self addressed envelope", func(t *testing.T) {
		network := NewLocalNetwork()
		s1 := network.Endpoint("S1")
		in := newSink()
		s1.OnEnvelopeReceived(in.handle)
		require.NoError(t, s1.Start(ctx))
		// unreachable from the network, still reachable from itself
		network.Disconnect("S1")

		req := envelope.NewRequest("Order", "42", "Get", nil)
		req.SenderSiloID, req.TargetSiloID = "S1", "S1"
		require.NoError(t, s1.Send(ctx, req))
		assert.Equal(t, req.MessageID, in.next(t).MessageID)
		require.NoError(t, s1.Stop(ctx))
	})
	t.Run("With unreachable silo", func(t *testing.T) {
		network := NewLocalNetwork()
		s1, s2 := network.Endpoint("S1"), network.Endpoint("S2")
		s1.OnEnvelopeReceived(newSink().handle)
		s2.OnEnvelopeReceived(newSink().handle)

		req := envelope.NewRequest("Order", "42", "Get", nil)
		req.SenderSiloID, req.TargetSiloID = "S1", "S2"
		require.ErrorIs(t, s1.Send(ctx, req), gerrors.ErrTransportNotStarted)

		require.NoError(t, s1.Start(ctx))
		require.ErrorIs(t, s1.Send(ctx, req), gerrors.ErrRemoteSendFailure)

		require.NoError(t, s2.Start(ctx))
		network.Disconnect("S2")
		require.ErrorIs(t, s1.Send(ctx, req), gerrors.ErrRemoteSendFailure)
		network.Reconnect("S2")
		require.NoError(t, s1.Send(ctx, req))

		require.NoError(t, s1.Stop(ctx))
		require.NoError(t, s2.Stop(ctx))
	})
}

func TestCorrelator(t *testing.T) {
	ctx := context.Background()

	t.Run("With response", func(t *testing.T) {
		correlator := NewCorrelator()
		req := envelope.NewRequest("Order", "42", "Get", nil)
		pending := correlator.Register(req.MessageID)
		assert.Equal(t, 1, correlator.Len())

		go func() { correlator.Complete(req.Reply([]byte("ok"))) }()
		resp, err := correlator.Await(ctx, pending)
		require.NoError(t, err)
		assert.Equal(t, []byte("ok"), resp.ResponsePayload)
		assert.Zero(t, correlator.Len())

		// duplicate and unknown responses are ignored
		assert.False(t, correlator.Complete(req.Reply(nil)))
		assert.False(t, correlator.Complete(envelope.NewRequest("Order", "1", "Get", nil).Reply(nil)))
	})
	t.Run("With error response", func(t *testing.T) {
		correlator := NewCorrelator()
		req := envelope.NewRequest("Order", "42", "Get", nil)
		pending := correlator.Register(req.MessageID)
		require.True(t, correlator.Complete(req.Fail(gerrors.ErrMethodNotFound)))

		resp, err := correlator.Await(ctx, pending)
		require.ErrorIs(t, err, gerrors.ErrMethodNotFound)
		require.NotNil(t, resp)
		assert.True(t, resp.IsError)
	})
	t.Run("With timeout", func(t *testing.T) {
		correlator := NewCorrelator()
		pending := correlator.Register("m1")
		timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := correlator.Await(timeoutCtx, pending)
		require.ErrorIs(t, err, gerrors.ErrRequestTimeout)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Zero(t, correlator.Len())
	})
	t.Run("With fail and drain", func(t *testing.T) {
		correlator := NewCorrelator()
		var wg sync.WaitGroup
		errs := make(chan error, 3)
		for _, id := range []string{"a", "b", "c"} {
			pending := correlator.Register(id)
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := correlator.Await(ctx, pending)
				errs <- err
			}()
		}

		drainCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		require.Error(t, correlator.Drain(drainCtx))

		boom := errors.New("boom")
		correlator.Fail(boom)
		wg.Wait()
		close(errs)
		for err := range errs {
			require.ErrorIs(t, err, boom)
		}
		require.NoError(t, correlator.Drain(ctx))
	})
}
