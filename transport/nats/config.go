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
	"time"

	"github.com/quarkgo/quark/internal/validation"
)

const (
	// DefaultSubjectPrefix prefixes the subject of every silo
	DefaultSubjectPrefix = "quark.silo"
	// DefaultTimeout bounds the acknowledgement of a delivery
	DefaultTimeout = 5 * time.Second
)

// Config holds the NATS connection settings
type Config struct {
	// URL of the NATS server, e.g. nats://127.0.0.1:4222
	URL string
	// SubjectPrefix prefixes the subject "<prefix>.<siloID>" each silo listens on
	SubjectPrefix string
	// Timeout bounds a delivery when the caller's context has no deadline
	Timeout time.Duration
	// MaxReconnects is the number of reconnection attempts. Negative retries forever.
	MaxReconnects int
	// ReconnectWait is the delay between two reconnection attempts
	ReconnectWait time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize fills the unset fields with their defaults
func (c *Config) Sanitize() {
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = DefaultSubjectPrefix
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = -1
	}
}

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddAssertion(c.URL != "", "URL is required").
		AddAssertion(c.SubjectPrefix != "", "SubjectPrefix is required").
		AddValidator(validation.NewPositiveDurationValidator("Timeout", c.Timeout)).
		Validate()
}
