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

package actor

import (
	"context"
)

type callChainKey struct{}

type selfKey struct{}

// WithCallChain returns a context carrying the chain of actor keys that led to the current call.
// The silo sets it before dispatching; outbound invocations made with that context propagate it.
func WithCallChain(ctx context.Context, chain []string) context.Context {
	return context.WithValue(ctx, callChainKey{}, chain)
}

// CallChain returns the call chain carried by ctx
func CallChain(ctx context.Context) []string {
	chain, _ := ctx.Value(callChainKey{}).([]string)
	return chain
}

// WithSelf returns a context carrying the identity of the actor being dispatched
func WithSelf(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, selfKey{}, id)
}

// Self returns the identity of the actor handling the current call
func Self(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(selfKey{}).(Identity)
	return id, ok
}
