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

package nats

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarkgo/quark/envelope"
	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/internal/codec"
	"github.com/quarkgo/quark/log"
)

func startNatsServer(t *testing.T) *natsserver.Server {
	t.Helper()
	serv, err := natsserver.NewServer(&natsserver.Options{
		Host: "127.0.0.1",
		Port: -1,
	})
	require.NoError(t, err)

	ready := make(chan bool)
	go func() {
		ready <- true
		serv.Start()
	}()
	<-ready

	if !serv.ReadyForConnections(2 * time.Second) {
		t.Fatalf("nats-io server failed to start")
	}
	t.Cleanup(serv.Shutdown)
	return serv
}

type sink chan *envelope.Envelope

func (s sink) handle(_ context.Context, env *envelope.Envelope) {
	s <- env
}

func (s sink) next(t *testing.T) *envelope.Envelope {
	t.Helper()
	select {
	case env := <-s:
		return env
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no envelope received")
		return nil
	}
}

func newTransport(t *testing.T, serverURL, siloID string) (*Transport, sink) {
	t.Helper()
	ctx := context.Background()
	tr, err := New(siloID, &Config{URL: serverURL, SubjectPrefix: "test.silo"}, WithLogger(log.DiscardLogger))
	require.NoError(t, err)
	in := make(sink, 16)
	tr.OnEnvelopeReceived(in.handle)
	require.NoError(t, tr.Start(ctx))
	t.Cleanup(func() { assert.NoError(t, tr.Stop(ctx)) })
	return tr, in
}

func TestTransport(t *testing.T) {
	ctx := context.Background()
	srv := startNatsServer(t)

	t.Run("With request and response between silos", func(t *testing.T) {
		s1, in1 := newTransport(t, srv.ClientURL(), "S1")
		s2, in2 := newTransport(t, srv.ClientURL(), "S2")
		assert.Equal(t, "test.silo.S2", s1.Subject("S2"))

		req := envelope.NewRequest("Order", "42", "Get", []byte("payload"))
		req.SenderSiloID, req.TargetSiloID = "S1", "S2"
		require.NoError(t, s1.Send(ctx, req))

		got := in2.next(t)
		assert.Equal(t, req.MessageID, got.MessageID)
		assert.Equal(t, []byte("payload"), got.Payload)

		require.NoError(t, s2.SendResponse(ctx, got.Reply([]byte("ok"))))
		back := in1.next(t)
		assert.True(t, back.IsResponse())
		assert.Equal(t, []byte("ok"), back.ResponsePayload)
	})
	t.Run("With self addressed envelope", func(t *testing.T) {
		s1, in1 := newTransport(t, srv.ClientURL(), "S1")
		req := envelope.NewRequest("Order", "42", "Get", nil)
		req.SenderSiloID, req.TargetSiloID = "S1", "S1"
		require.NoError(t, s1.Send(ctx, req))
		assert.Equal(t, req.MessageID, in1.next(t).MessageID)
	})
	t.Run("With silo not listening", func(t *testing.T) {
		s1, _ := newTransport(t, srv.ClientURL(), "S1")
		req := envelope.NewRequest("Order", "42", "Get", nil)
		req.SenderSiloID, req.TargetSiloID = "S1", "S9"
		require.ErrorIs(t, s1.Send(ctx, req), gerrors.ErrRemoteSendFailure)
	})
	t.Run("With rejected envelope", func(t *testing.T) {
		newTransport(t, srv.ClientURL(), "S2")
		conn, err := nats.Connect(srv.ClientURL())
		require.NoError(t, err)
		defer conn.Close()

		// addressed to another silo
		env := envelope.NewRequest("Order", "42", "Get", nil)
		env.TargetSiloID = "S3"
		data, err := env.Marshal()
		require.NoError(t, err)
		msg, err := conn.Request("test.silo.S2", data, time.Second)
		require.NoError(t, err)

		var ack receipt
		require.NoError(t, codec.Unmarshal(msg.Data, &ack))
		assert.Equal(t, "S2", ack.SiloID)
		assert.NotEmpty(t, ack.Error)
	})
	t.Run("With transport not started", func(t *testing.T) {
		tr, err := New("S1", &Config{URL: srv.ClientURL()})
		require.NoError(t, err)
		req := envelope.NewRequest("Order", "42", "Get", nil)
		req.TargetSiloID = "S2"
		require.ErrorIs(t, tr.Send(ctx, req), gerrors.ErrTransportNotStarted)
		require.NoError(t, tr.Stop(ctx))
	})
}

func TestConfig(t *testing.T) {
	config := &Config{URL: "nats://127.0.0.1:4222"}
	config.Sanitize()
	require.NoError(t, config.Validate())
	assert.Equal(t, DefaultSubjectPrefix, config.SubjectPrefix)
	assert.Equal(t, DefaultTimeout, config.Timeout)
	assert.Equal(t, -1, config.MaxReconnects)

	_, err := New("S1", &Config{})
	require.Error(t, err)
}
