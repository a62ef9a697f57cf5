// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for user-friendly reporting.
// Every failure surfaced by the engine client carries a machine-readable Kind so
// callers can branch on the category without parsing messages, while the original
// engine code, message and diagnostic text stay attached for display and logs.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// MalformedSchema indicates the schema text lacks a usable connection-source.
	MalformedSchema Kind = "malformed_schema"
	// EngineStartFailed indicates the engine process could not be spawned.
	EngineStartFailed Kind = "engine_start_failed"
	// EngineCrashed indicates the engine exited or became unreachable while requests were outstanding.
	EngineCrashed Kind = "engine_crashed"
	// ProtocolViolation indicates an undecodable line or a response for an unknown request.
	ProtocolViolation Kind = "protocol_violation"
	// ConnectionFailed indicates the engine could not reach the target database.
	ConnectionFailed Kind = "connection_failed"
	// IntrospectionFailed indicates an engine-reported semantic failure.
	IntrospectionFailed Kind = "introspection_failed"
	// DatabaseNotFound indicates the resolved connection target does not exist.
	DatabaseNotFound Kind = "database_not_found"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error

	// Code is the engine-reported error code (for example "P1001"), if any.
	Code string
	// RPCCode is the JSON-RPC error code of the engine response, if any.
	RPCCode int
	// Diagnostic holds buffered engine stderr or the raw engine message.
	Diagnostic string
}

func (e *E) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Code != "" {
		msg = fmt.Sprintf("%s: [%s] %s", e.Kind, e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *E) Unwrap() error { return e.Err }

// WithDiagnostic returns a copy of e carrying the given diagnostic text.
func (e *E) WithDiagnostic(text string) *E {
	cp := *e
	cp.Diagnostic = text
	return &cp
}

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Newf is New with a format string.
func Newf(kind Kind, format string, args ...any) *E {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first *E in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err's chain contains an *E of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As finds the first *E in err's chain.
func As(err error) (*E, bool) {
	var e *E
	ok := stderrors.As(err, &e)
	return e, ok
}
