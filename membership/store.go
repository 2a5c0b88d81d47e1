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

package membership

import (
	"context"
	"time"
)

// Store persists silo records shared by every silo of a cluster.
//
// Get, UpdateHeartbeat and UpdateStatus return errors.ErrSiloNotFound for an
// unknown silo. UpdateStatus is a compare-and-swap that rejects backward
// transitions with errors.ErrInvalidStatusTransition.
type Store interface {
	// Put inserts or replaces a record
	Put(ctx context.Context, info *SiloInfo) error
	// Get returns the record of siloID
	Get(ctx context.Context, siloID string) (*SiloInfo, error)
	// Delete removes the record of siloID. Deleting an unknown silo is not an error.
	Delete(ctx context.Context, siloID string) error
	// List returns every record
	List(ctx context.Context) ([]*SiloInfo, error)
	// ListByStatus returns the records having status
	ListByStatus(ctx context.Context, status Status) ([]*SiloInfo, error)
	// UpdateHeartbeat sets the heartbeat time and, unless negative, the health score
	UpdateHeartbeat(ctx context.Context, siloID string, at time.Time, score float64) error
	// UpdateStatus moves the record of siloID forward to status
	UpdateStatus(ctx context.Context, siloID string, status Status) error
	// Close releases the store resources
	Close() error
}
