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

// EventType identifies a topology change
type EventType int

const (
	// SiloJoined is emitted when a silo enters the active view
	SiloJoined EventType = iota
	// SiloLeft is emitted when a silo leaves the active view
	SiloLeft
)

// String returns the event type name
func (t EventType) String() string {
	switch t {
	case SiloJoined:
		return "SiloJoined"
	case SiloLeft:
		return "SiloLeft"
	default:
		return "Unknown"
	}
}

// Event describes a change of the active view
type Event struct {
	Type EventType
	Silo SiloInfo
	// Evicted is set on SiloLeft when the monitor declared the silo dead
	Evicted bool
	// Members lists the active silo ids after the change, sorted
	Members []string
}

// Subscriber receives membership events.
// Subscribers are called synchronously and must not block.
type Subscriber func(event Event)
