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
	"fmt"
	"net"
	"strconv"
	"time"

	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/internal/codec"
)

// Status is the lifecycle status of a silo as recorded in the membership store
type Status int

const (
	// StatusJoining is a registered silo not yet serving
	StatusJoining Status = iota
	// StatusActive is a silo owning a share of the ring
	StatusActive
	// StatusShuttingDown is a silo draining its actors
	StatusShuttingDown
	// StatusDead is a tombstone
	StatusDead
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case StatusJoining:
		return "Joining"
	case StatusActive:
		return "Active"
	case StatusShuttingDown:
		return "ShuttingDown"
	case StatusDead:
		return "Dead"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// CanTransitionTo reports whether next is reachable from s.
// Transitions only move forward; staying put is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	return next >= s && next <= StatusDead
}

// SiloInfo is the membership record of a silo
type SiloInfo struct {
	SiloID        string    `cbor:"1,keyasint"`
	Address       string    `cbor:"2,keyasint"`
	Port          int       `cbor:"3,keyasint"`
	Status        Status    `cbor:"4,keyasint"`
	LastHeartbeat time.Time `cbor:"5,keyasint"`
	RegionID      string    `cbor:"6,keyasint,omitempty"`
	ZoneID        string    `cbor:"7,keyasint,omitempty"`
	ShardGroupID  string    `cbor:"8,keyasint,omitempty"`
	// HealthScore ranges from 0 to 100 and is only meaningful when HealthReported is set
	HealthScore    float64   `cbor:"9,keyasint,omitempty"`
	StartedAt      time.Time `cbor:"10,keyasint"`
	HealthReported bool      `cbor:"11,keyasint,omitempty"`
}

// NoHealthScore is the score of a heartbeat that carries none
const NoHealthScore = -1.0

// HostPort returns the "host:port" address of the silo
func (s *SiloInfo) HostPort() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// Clone returns a copy of s
func (s *SiloInfo) Clone() *SiloInfo {
	clone := *s
	return &clone
}

// Transition moves s to status, rejecting backward moves
func (s *SiloInfo) Transition(status Status) error {
	if !s.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: silo %s from %s to %s", gerrors.ErrInvalidStatusTransition, s.SiloID, s.Status, status)
	}
	s.Status = status
	return nil
}

// Beat records a heartbeat on s. A negative score keeps the last reported one.
func (s *SiloInfo) Beat(at time.Time, score float64) {
	s.LastHeartbeat = at
	if score >= 0 {
		s.HealthScore = score
		s.HealthReported = true
	}
}

// Encode serializes a record for a store
func Encode(info *SiloInfo) ([]byte, error) {
	return codec.Marshal(info)
}

// Decode deserializes a record read from a store
func Decode(data []byte) (*SiloInfo, error) {
	info := new(SiloInfo)
	if err := codec.Unmarshal(data, info); err != nil {
		return nil, fmt.Errorf("failed to decode silo record: %w", err)
	}
	return info, nil
}

// FilterByStatus returns the records of infos having status
func FilterByStatus(infos []*SiloInfo, status Status) []*SiloInfo {
	out := make([]*SiloInfo, 0, len(infos))
	for _, info := range infos {
		if info.Status == status {
			out = append(out, info)
		}
	}
	return out
}
