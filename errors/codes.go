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

package errors

import (
	"errors"
)

// CodeUnknown is used for errors that do not map to a sentinel.
const CodeUnknown = "UNKNOWN"

var codesBySentinel = map[error]string{
	ErrEmptyRing:               "EMPTY_RING",
	ErrNoSiloAvailable:         "NO_SILO_AVAILABLE",
	ErrSiloNotFound:            "SILO_NOT_FOUND",
	ErrUnknownActorType:        "UNKNOWN_ACTOR_TYPE",
	ErrMethodNotFound:          "METHOD_NOT_FOUND",
	ErrActorCreationFailed:     "ACTOR_CREATION_FAILED",
	ErrActorActivationFailed:   "ACTOR_ACTIVATION_FAILED",
	ErrActorAlreadyRegistered:  "ACTOR_ALREADY_REGISTERED",
	ErrMailboxFull:             "MAILBOX_FULL",
	ErrMailboxStopped:          "MAILBOX_STOPPED",
	ErrMailboxDrainTimeout:     "MAILBOX_DRAIN_TIMEOUT",
	ErrCircularCall:            "CIRCULAR_CALL",
	ErrSiloShuttingDown:        "SILO_SHUTTING_DOWN",
	ErrSiloNotActive:           "SILO_NOT_ACTIVE",
	ErrRequestTimeout:          "REQUEST_TIMEOUT",
	ErrInvalidEnvelope:         "INVALID_ENVELOPE",
	ErrRemoteSendFailure:       "REMOTE_SEND_FAILURE",
	ErrInvalidStatusTransition: "INVALID_STATUS_TRANSITION",
	ErrNotOwner:                "NOT_OWNER",
	ErrHandlerPanic:            "HANDLER_PANIC",
	ErrStateNotFound:           "STATE_NOT_FOUND",
}

var sentinelsByCode = func() map[string]error {
	out := make(map[string]error, len(codesBySentinel))
	for sentinel, code := range codesBySentinel {
		out[code] = sentinel
	}
	return out
}()

// Code returns the wire code of the first sentinel found in err's chain.
func Code(err error) string {
	if err == nil {
		return ""
	}

	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.code
	}

	for sentinel, code := range codesBySentinel {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}

// FromCode rebuilds an error from its wire code and message.
// The result matches the sentinel with errors.Is when the code is known.
func FromCode(code, message string) error {
	if code == "" {
		code = CodeUnknown
	}
	return &RemoteError{code: code, message: message}
}

// IsRetryable reports whether an invocation failing with err can be re-routed and retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSiloShuttingDown) ||
		errors.Is(err, ErrRemoteSendFailure) ||
		errors.Is(err, ErrNotOwner) ||
		errors.Is(err, ErrSiloNotFound)
}
