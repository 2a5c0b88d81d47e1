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

package validation

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
)

// NewBooleanValidator returns message as an error when condition is false
func NewBooleanValidator(condition bool, message string) Validator {
	return ValidatorFunc(func() error {
		if !condition {
			return errors.New(message)
		}
		return nil
	})
}

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._\-]*$`)

// NewIdentifierValidator checks silo ids and actor type names.
// ':' is reserved as the separator of actor keys.
func NewIdentifierValidator(field, value string) Validator {
	return ValidatorFunc(func() error {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s is required", field)
		}
		if !identifierPattern.MatchString(value) {
			return fmt.Errorf("%s=(%s) must contain only word characters, '.', '-' or '_'", field, value)
		}
		return nil
	})
}

// NewHostPortValidator checks that host is set and port is a valid TCP port.
// Port zero is accepted and means an ephemeral port.
func NewHostPortValidator(host string, port int) Validator {
	return ValidatorFunc(func() error {
		address := net.JoinHostPort(host, fmt.Sprint(port))
		if strings.TrimSpace(host) == "" {
			return fmt.Errorf("invalid address=(%s): host is required", address)
		}
		if port < 0 || port > 65535 {
			return fmt.Errorf("invalid address=(%s): port out of range", address)
		}
		return nil
	})
}

// NewPositiveDurationValidator rejects zero and negative durations
func NewPositiveDurationValidator(field string, value time.Duration) Validator {
	return ValidatorFunc(func() error {
		if value <= 0 {
			return fmt.Errorf("%s must be greater than zero, got %s", field, value)
		}
		return nil
	})
}

// NewRangeValidator checks that value lies within [lower, upper]
func NewRangeValidator(field string, value, lower, upper float64) Validator {
	return ValidatorFunc(func() error {
		if value < lower || value > upper {
			return fmt.Errorf("%s=(%v) must be within [%v, %v]", field, value, lower, upper)
		}
		return nil
	})
}
