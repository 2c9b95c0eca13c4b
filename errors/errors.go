// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package errors implements the error type shared by every packfs
// component. Errors carry an interpretable kind, so that a caller (or the
// per-thread error channel) can classify a failure without parsing message
// text. Errors can be chained, attributing one error to another. The design
// follows the error packages of the Upspin and Reflow projects.
package errors

import (
	"errors"
	"os"
	"strings"
)

// Separator defines the separation string inserted between
// chained errors in error messages.
var Separator = ": "

// Kind defines the type of error. Kinds are semantically meaningful and are
// surfaced verbatim through the last-error channel.
type Kind int

const (
	// Other indicates an unclassified error, typically a host-error
	// passthrough.
	Other Kind = iota
	// IsInitialized indicates a repeated initialization.
	IsInitialized
	// NotInitialized indicates an operation before initialization.
	NotInitialized
	// InvalidArgument indicates that the caller supplied invalid parameters.
	InvalidArgument
	// FilesStillOpenForWrite indicates a structural change refused because
	// open handles still reference the affected state.
	FilesStillOpenForWrite
	// NoWriteDir indicates a write operation without a write root.
	NoWriteDir
	// NoDirCreate indicates a directory that could not be created.
	NoDirCreate
	// OutOfMemory indicates an allocation failure.
	OutOfMemory
	// NotInSearchPath indicates a mount that is not in the search path.
	NotInSearchPath
	// UnsupportedArchive indicates that no archive backend claims a path.
	UnsupportedArchive
	// NotSupported indicates a capability absent from a backend.
	NotSupported
	// NotFound indicates a nonexistent file.
	NotFound
	// NotAFile indicates a path that names something other than a file.
	NotAFile
	// NotADir indicates a path that names something other than a directory.
	NotADir
	// PastEOF indicates a seek beyond the end of a file.
	PastEOF

	maxKind
)

var kinds = map[Kind]string{
	Other:                  "unknown error",
	IsInitialized:          "already initialized",
	NotInitialized:         "not initialized",
	InvalidArgument:        "invalid argument",
	FilesStillOpenForWrite: "files still open for writing",
	NoWriteDir:             "no write directory set",
	NoDirCreate:            "could not create directory",
	OutOfMemory:            "out of memory",
	NotInSearchPath:        "no such entry in search path",
	UnsupportedArchive:     "unsupported archive type",
	NotSupported:           "operation not supported",
	NotFound:               "file not found",
	NotAFile:               "not a file",
	NotADir:                "not a directory",
	PastEOF:                "seek past end of file",
}

// kindStdErrs maps kinds to the standard library's equivalent sentinels,
// both for classifying wrapped causes and for errors.Is interop.
var kindStdErrs = map[Kind]error{
	NotFound:        os.ErrNotExist,
	InvalidArgument: os.ErrInvalid,
}

// String returns a human-readable explanation of the error kind k.
func (k Kind) String() string {
	return kinds[k]
}

// Error is the standard error type, carrying a kind, a message, and
// potentially an underlying error. Errors should be constructed by E, which
// interprets arguments according to a set of rules.
type Error struct {
	// Kind is the error's type.
	Kind Kind
	// Message is an optional error message associated with this error.
	Message string
	// Err is the error that caused this error, if any. Errors form chains
	// through Err: the full chain is printed by Error().
	Err error
}

// E constructs a new error from the provided arguments. It is meant as a
// convenient way to construct, annotate, and wrap errors.
//
// Arguments are interpreted according to their types:
//
//   - Kind: sets the Error's kind
//   - string: sets the Error's message; multiple strings are
//     separated by a single space
//   - *Error: copies the error and sets the error's cause
//   - error: sets the Error's cause
//
// If a kind is not provided but an underlying error is, E attempts to
// interpret the underlying error: an *Error cause passes its kind up the
// chain; otherwise the cause is matched against the standard library's
// sentinel errors (e.g. os.ErrNotExist becomes NotFound).
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E: no args")
	}
	e := new(Error)
	var msg strings.Builder
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case string:
			if msg.Len() > 0 {
				msg.WriteString(" ")
			}
			msg.WriteString(arg)
		case *Error:
			cp := *arg
			if len(args) == 1 {
				return &cp
			}
			e.Err = &cp
		case error:
			e.Err = arg
		default:
			panic("errors.E: bad argument type")
		}
	}
	e.Message = msg.String()
	if e.Err == nil {
		return e
	}
	switch prev := e.Err.(type) {
	case *Error:
		if prev.Kind == e.Kind || e.Kind == Other {
			e.Kind = prev.Kind
			prev.Kind = Other
		}
	default:
		if e.Kind != Other {
			break
		}
		// Classify common causes. Loop over kind (not the map) for
		// determinism.
		for kind := Kind(0); kind < maxKind; kind++ {
			stdErr := kindStdErrs[kind]
			if stdErr != nil && errors.Is(e.Err, stdErr) {
				e.Kind = kind
				break
			}
		}
	}
	return e
}

// Error returns the error message, rendering the chain of causes separated
// by Separator.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Kind != Other {
		if b.Len() > 0 {
			b.WriteString(Separator)
		}
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(Separator)
		}
		b.WriteString(e.Err.Error())
	}
	if b.Len() == 0 {
		return kinds[Other]
	}
	return b.String()
}

// Unwrap returns the error's cause, making Error compatible with the
// standard library's errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is tells whether an error has the provided kind. It walks the chain of
// causes until it finds a typed *Error; untyped errors are matched against
// the kind's standard-library sentinel, if any.
func Is(kind Kind, err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		if e.Kind != Other {
			return e.Kind == kind
		}
		return Is(kind, e.Err)
	}
	if stdErr := kindStdErrs[kind]; stdErr != nil {
		return errors.Is(err, stdErr)
	}
	return false
}

// Recover recovers any error into an *Error. If the passed-in error is
// already an *Error, it is simply returned; otherwise it is wrapped.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return E(err).(*Error)
}

// New constructs an unclassified error from a message, in the manner of the
// standard library's errors.New.
func New(msg string) error {
	return &Error{Kind: Other, Message: msg}
}
