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

// Package ring implements the consistent hash ring used to place actors on silos.
//
// Each silo contributes a configurable number of virtual points. A key is owned
// by the first point found clockwise from the key's hash, wrapping around at the
// end of the ring. Points are ordered by (hash, node, index) so that two rings
// built from the same node set always agree, whatever the insertion order.
package ring

import (
	"fmt"
	"sort"
	"sync"

	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/hash"
)

// DefaultVirtualNodes is the number of points contributed by each node.
const DefaultVirtualNodes = 150

type point struct {
	hash  uint64
	node  string
	index int
}

func (p point) less(o point) bool {
	if p.hash != o.hash {
		return p.hash < o.hash
	}
	if p.node != o.node {
		return p.node < o.node
	}
	return p.index < o.index
}

// Ring is a consistent hash ring. It is safe for concurrent use.
type Ring struct {
	mu           sync.RWMutex
	hasher       hash.Hasher
	virtualNodes int
	points       []point
	nodes        map[string]struct{}
}

// Option configures a Ring
type Option func(r *Ring)

// WithVirtualNodes sets the number of virtual points per node.
// Values below one are ignored.
func WithVirtualNodes(count int) Option {
	return func(r *Ring) {
		if count > 0 {
			r.virtualNodes = count
		}
	}
}

// WithHasher sets the hasher used for both points and keys.
func WithHasher(hasher hash.Hasher) Option {
	return func(r *Ring) {
		if hasher != nil {
			r.hasher = hasher
		}
	}
}

// New creates an empty Ring
func New(opts ...Option) *Ring {
	r := &Ring{
		hasher:       hash.DefaultHasher(),
		virtualNodes: DefaultVirtualNodes,
		nodes:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddNode places the node's virtual points on the ring.
// Adding a node twice is a no-op.
func (r *Ring) AddNode(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[nodeID]; ok {
		return
	}
	r.nodes[nodeID] = struct{}{}
	r.points = append(r.points, r.pointsOf(nodeID)...)
	r.sortPoints()
}

// RemoveNode removes every virtual point of the node.
func (r *Ring) RemoveNode(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[nodeID]; !ok {
		return
	}
	delete(r.nodes, nodeID)
	kept := r.points[:0]
	for _, p := range r.points {
		if p.node != nodeID {
			kept = append(kept, p)
		}
	}
	r.points = kept
}

// SetNodes replaces the ring content with the given node set in one step.
func (r *Ring) SetNodes(nodeIDs []string) {
	nodes := make(map[string]struct{}, len(nodeIDs))
	points := make([]point, 0, len(nodeIDs)*r.virtualNodes)
	for _, nodeID := range nodeIDs {
		if _, ok := nodes[nodeID]; ok {
			continue
		}
		nodes[nodeID] = struct{}{}
		points = append(points, r.pointsOf(nodeID)...)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].less(points[j]) })

	r.mu.Lock()
	r.nodes = nodes
	r.points = points
	r.mu.Unlock()
}

// GetNode returns the node owning key.
func (r *Ring) GetNode(key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.points) == 0 {
		return "", gerrors.ErrEmptyRing
	}
	return r.points[r.search(hash.String(r.hasher, key))].node, nil
}

// GetNodes returns up to count distinct nodes walking clockwise from key.
// The first entry is the owner of key.
func (r *Ring) GetNodes(key string, count int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.points) == 0 {
		return nil, gerrors.ErrEmptyRing
	}
	if count > len(r.nodes) {
		count = len(r.nodes)
	}

	out := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	start := r.search(hash.String(r.hasher, key))
	for i := 0; i < len(r.points) && len(out) < count; i++ {
		node := r.points[(start+i)%len(r.points)].node
		if _, ok := seen[node]; ok {
			continue
		}
		seen[node] = struct{}{}
		out = append(out, node)
	}
	return out, nil
}

// Nodes returns the sorted list of nodes on the ring
func (r *Ring) Nodes() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.nodes))
	for node := range r.nodes {
		out = append(out, node)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len returns the number of nodes on the ring
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// VirtualNodes returns the number of points per node
func (r *Ring) VirtualNodes() int {
	return r.virtualNodes
}

// search returns the index of the first point at or after h, wrapping to zero.
func (r *Ring) search(h uint64) int {
	idx := sort.Search(len(r.points), func(i int) bool {
		return r.points[i].hash >= h
	})
	if idx == len(r.points) {
		return 0
	}
	return idx
}

func (r *Ring) pointsOf(nodeID string) []point {
	points := make([]point, r.virtualNodes)
	for i := 0; i < r.virtualNodes; i++ {
		points[i] = point{
			hash:  hash.String(r.hasher, fmt.Sprintf("%s-%d", nodeID, i)),
			node:  nodeID,
			index: i,
		}
	}
	return points
}

func (r *Ring) sortPoints() {
	sort.Slice(r.points, func(i, j int) bool { return r.points[i].less(r.points[j]) })
}
