// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

import (
	ierr "introspect/cli/internal/errors"
)

// Engine error codes that indicate the database could not be reached.
var connectionCodes = map[string]bool{
	"P1000": true, // authentication failed
	"P1001": true, // server unreachable
	"P1002": true, // server timed out
	"P1010": true, // access denied
	"P1011": true, // TLS error
	"P1017": true, // server closed the connection
}

const codeDatabaseNotFound = "P1003"

// JSON-RPC reserved range for malformed requests, unknown methods and bad params.
const (
	rpcProtocolMin = -32700
	rpcProtocolMax = -32600
)

// classify maps an engine error response to a typed error. The engine code
// and message are preserved on the result.
func classify(method Method, e *RPCError) *ierr.E {
	data := e.data()

	kind := ierr.IntrospectionFailed
	switch {
	case connectionCodes[data.ErrorCode]:
		kind = ierr.ConnectionFailed
	case data.ErrorCode == codeDatabaseNotFound:
		kind = ierr.DatabaseNotFound
	case data.ErrorCode == "" && e.Code >= rpcProtocolMin && e.Code <= rpcProtocolMax:
		kind = ierr.ProtocolViolation
	}

	msg := e.Message
	if data.Message != "" {
		msg = data.Message
	}
	if msg == "" {
		msg = string(method) + " failed"
	}

	out := &ierr.E{Kind: kind, Message: msg, Code: data.ErrorCode, RPCCode: e.Code}
	if data.Message != "" && e.Message != "" && e.Message != data.Message {
		out.Diagnostic = e.Message
	}
	if data.IsPanic {
		out.Diagnostic = "engine panicked: " + msg
	}
	return out
}
