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

// Package http builds the HTTP/2 clients and servers used by the silo transport.
package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// DefaultMaxReadFrameSize is the HTTP/2 frame size used when none is configured
const DefaultMaxReadFrameSize uint32 = 1 << 20

// NewHTTPClient creates an HTTP/2 cleartext (h2c) client.
// A single TCP connection is multiplexed across every concurrent request to a silo.
func NewHTTPClient(maxReadFrameSize uint32) *http.Client {
	dialer := newDialer()
	return &http.Client{
		CheckRedirect: noRedirect,
		Timeout:       30 * time.Second,
		Transport: &http2.Transport{
			AllowHTTP:        true,
			MaxReadFrameSize: maxReadFrameSize,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
			PingTimeout:     10 * time.Second,
			ReadIdleTimeout: 20 * time.Second,
		},
	}
}

// NewHTTPSClient creates an HTTP/2 client over TLS
func NewHTTPSClient(clientTLS *tls.Config, maxReadFrameSize uint32) *http.Client {
	dialer := newDialer()
	return &http.Client{
		CheckRedirect: noRedirect,
		Timeout:       30 * time.Second,
		Transport: &http2.Transport{
			TLSClientConfig:  clientTLS,
			MaxReadFrameSize: maxReadFrameSize,
			DialTLSContext: func(ctx context.Context, network, addr string, config *tls.Config) (net.Conn, error) {
				conn, err := dialer.DialContext(ctx, network, addr)
				if err != nil {
					return nil, err
				}
				return tls.Client(conn, config), nil
			},
			PingTimeout:     10 * time.Second,
			ReadIdleTimeout: 20 * time.Second,
		},
	}
}

// Server is an HTTP/2 server bound to its listener
type Server struct {
	*http.Server
	listener net.Listener
}

// NewServer binds hostPort and prepares an HTTP/2 server for handler.
// The server speaks h2c unless serverTLS is set.
func NewServer(ctx context.Context, hostPort string, handler http.Handler, serverTLS *tls.Config, maxReadFrameSize uint32) (*Server, error) {
	listener, err := net.Listen("tcp", hostPort)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", hostPort, err)
	}

	server := &http.Server{
		Addr:              listener.Addr().String(),
		ReadTimeout:       5 * time.Minute,
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       1200 * time.Second,
		MaxHeaderBytes:    8 * 1024,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	http2Server := &http2.Server{
		MaxConcurrentStreams: 1000,
		MaxReadFrameSize:     maxReadFrameSize,
		IdleTimeout:          1200 * time.Second,
	}

	if serverTLS != nil {
		serverTLS = serverTLS.Clone()
		server.TLSConfig = serverTLS
		server.Handler = handler
		if err := http2.ConfigureServer(server, http2Server); err != nil {
			_ = listener.Close()
			return nil, err
		}
		return &Server{Server: server, listener: tls.NewListener(listener, serverTLS)}, nil
	}

	server.Handler = h2c.NewHandler(handler, http2Server)
	return &Server{Server: server, listener: listener}, nil
}

// Port returns the port the server is bound to
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Serve accepts connections until Shutdown. It returns nil once the server is shut down.
func (s *Server) Serve() error {
	if err := s.Server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// URL create a http connection address
func URL(host string, port int) string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(port)))
}

// URLs create a secured http connection address
func URLs(host string, port int) string {
	return fmt.Sprintf("https://%s", net.JoinHostPort(host, strconv.Itoa(port)))
}

func newDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}
