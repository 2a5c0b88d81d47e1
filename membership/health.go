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
	"math"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/atomic"
)

// DefaultLatencyCeiling is the store round trip at which the latency score drops to zero
const DefaultLatencyCeiling = time.Second

// score weights
const (
	cpuWeight     = 0.3
	memoryWeight  = 0.3
	latencyWeight = 0.4
)

// HealthProbe computes the health score a silo reports with its heartbeats
type HealthProbe struct {
	ceiling time.Duration
	latency *atomic.Duration
	cpu     func(ctx context.Context) (float64, error)
	memory  func(ctx context.Context) (float64, error)
}

// NewHealthProbe creates a HealthProbe sampling the host with gopsutil
func NewHealthProbe(ceiling time.Duration) *HealthProbe {
	if ceiling <= 0 {
		ceiling = DefaultLatencyCeiling
	}
	return &HealthProbe{
		ceiling: ceiling,
		latency: atomic.NewDuration(0),
		cpu:     sampleCPU,
		memory:  sampleMemory,
	}
}

// ObserveLatency records the duration of the last store round trip
func (p *HealthProbe) ObserveLatency(d time.Duration) {
	p.latency.Store(d)
}

// Score samples CPU and memory usage and returns the current score
func (p *HealthProbe) Score(ctx context.Context) (float64, error) {
	cpuPercent, err := p.cpu(ctx)
	if err != nil {
		return 0, err
	}
	memPercent, err := p.memory(ctx)
	if err != nil {
		return 0, err
	}
	return ComputeScore(cpuPercent, memPercent, p.latency.Load(), p.ceiling), nil
}

// ComputeScore weighs CPU usage, memory usage and store latency into a 0..100 score
func ComputeScore(cpuPercent, memPercent float64, latency, ceiling time.Duration) float64 {
	if ceiling <= 0 {
		ceiling = DefaultLatencyCeiling
	}
	latency = min(max(latency, 0), ceiling)
	latencyScore := 100 * (1 - float64(latency)/float64(ceiling))

	score := cpuWeight*(100-clampPercent(cpuPercent)) +
		memoryWeight*(100-clampPercent(memPercent)) +
		latencyWeight*latencyScore
	return math.Round(score*100) / 100
}

func clampPercent(v float64) float64 {
	return math.Min(math.Max(v, 0), 100)
}

func sampleCPU(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, nil
	}
	return percents[0], nil
}

func sampleMemory(ctx context.Context) (float64, error) {
	stat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return stat.UsedPercent, nil
}
