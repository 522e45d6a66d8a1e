// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package coreerrors defines the error-kind taxonomy shared by every
// component of the orchestration core (gateway, rag, generator, tutor,
// analyst, store). Callers classify failures with coreerrors.Is against a
// Kind; components that need the underlying cause use errors.As against
// *Error.
package coreerrors

import (
	"errors"
	"fmt"
)

// Kind tags a failure by how the caller should react to it.
type Kind string

const (
	// ErrRequest marks caller-supplied invalid input: bad indices, unknown
	// job, an empty required field.
	ErrRequest Kind = "request"
	// ErrNotFound marks a missing entity or collection.
	ErrNotFound Kind = "not_found"
	// ErrConflict marks a state-machine violation: publishing twice,
	// sending to a closed session.
	ErrConflict Kind = "conflict"
	// ErrUpstream marks a transient failure from a collaborator, retryable
	// up to a cap.
	ErrUpstream Kind = "upstream"
	// ErrTimeout marks a deadline exceeded.
	ErrTimeout Kind = "timeout"
	// ErrContract marks model output that failed all JSON recovery
	// attempts.
	ErrContract Kind = "contract"
	// ErrCorruptSource marks an unreadable PDF.
	ErrCorruptSource Kind = "corrupt_source"
	// ErrClosed marks an operation that targets a terminal entity.
	ErrClosed Kind = "closed"
)

// Error wraps a Kind with a message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Wrapf is Wrap with formatted message text.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err carries the given Kind, unwrapping through any
// wrapper chain via errors.As.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
