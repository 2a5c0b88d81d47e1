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

package consul

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/consul"

	"github.com/quarkgo/quark/membership/storetest"
)

func TestStore(t *testing.T) {
	agent := startConsulAgent(t)
	ctx := context.Background()

	endpoint, err := agent.ApiEndpoint(ctx)
	require.NoError(t, err)

	t.Run("With store contract", func(t *testing.T) {
		store, err := NewStore(ctx, &Config{Address: endpoint, Namespace: storetest.Namespace(t)})
		require.NoError(t, err)
		defer func() { require.NoError(t, store.Close()) }()
		storetest.Run(t, store)
	})
}

func TestConfig(t *testing.T) {
	config := &Config{Namespace: "/cluster/"}
	config.Sanitize()
	require.NoError(t, config.Validate())
	assert.Equal(t, "127.0.0.1:8500", config.Address)
	assert.Equal(t, "cluster", config.Namespace)
}

func startConsulAgent(t *testing.T) *consul.ConsulContainer {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	consulContainer, err := consul.Run(t.Context(), "hashicorp/consul:1.15")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, consulContainer.Terminate(context.Background()))
	})
	return consulContainer
}
