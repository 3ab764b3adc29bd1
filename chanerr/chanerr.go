// Copyright (c) 2020-2023, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package chanerr implements the §7 error-kind taxonomy and the fatal/local
// split: local kinds are returned as an error value for the caller to log and
// drop the offending message; fatal kinds are meant to be passed to a
// progctx.ProgCtx.Cancel call, terminating the process non-zero.
package chanerr

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Kind enumerates the error kinds of §7.
type Kind int

const (
	ProtocolViolation Kind = iota
	UnknownDevice
	CausalViolation
	ModelError
	FabricError
	RegistrationTimeout
	Shutdown
)

func (k Kind) String() string {
	switch k {
	case ProtocolViolation:
		return "PROTOCOL_VIOLATION"
	case UnknownDevice:
		return "UNKNOWN_DEVICE"
	case CausalViolation:
		return "CAUSAL_VIOLATION"
	case ModelError:
		return "MODEL_ERROR"
	case FabricError:
		return "FABRIC_ERROR"
	case RegistrationTimeout:
		return "REGISTRATION_TIMEOUT"
	case Shutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN_ERROR_KIND"
	}
}

// fatalByDefault reports whether this error kind is fatal per §7: CAUSAL_VIOLATION,
// FABRIC_ERROR, and framing PROTOCOL_VIOLATION abort the process. A
// per-message PROTOCOL_VIOLATION (a validation failure confined to one
// message) is local and is constructed via NewLocal,
// not New, so this method alone cannot distinguish the two
// PROTOCOL_VIOLATION cases — callers track that via the Error.Fatal field.
func (k Kind) fatalByDefault() bool {
	switch k {
	case CausalViolation, FabricError:
		return true
	default:
		return false
	}
}

// Error is the typed error value every public operation in this core returns
// for a §7 condition.
type Error struct {
	Kind  Kind
	Fatal bool
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.cause }

// New wraps cause as a chanerr.Error of the given kind, with Fatal set
// according to the kind's default fatality.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Fatal: kind.fatalByDefault(), cause: errors.Errorf(format, args...)}
}

// NewFatal constructs an explicitly fatal error, for the framing-level
// PROTOCOL_VIOLATION and sequence-regression cases that are fatal even though
// most PROTOCOL_VIOLATION instances are local (§7, §8 scenario 5).
func NewFatal(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Fatal: true, cause: errors.Errorf(format, args...)}
}

// NewLocal constructs an explicitly local (non-fatal) error.
func NewLocal(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Fatal: false, cause: errors.Errorf(format, args...)}
}

// As reports whether err is a *Error and returns it.
func As(err error) (*Error, bool) {
	var e *Error
	ok := stderrors.As(err, &e)
	return e, ok
}
