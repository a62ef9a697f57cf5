// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Method is an engine RPC method name.
type Method string

const (
	MethodIntrospect             Method = "introspect"
	MethodGetDatabaseMetadata    Method = "getDatabaseMetadata"
	MethodListDatabases          Method = "listDatabases"
	MethodGetDatabaseVersion     Method = "getDatabaseVersion"
	MethodGetDatabaseDescription Method = "getDatabaseDescription"
)

const jsonrpcVersion = "2.0"

// Request is the envelope written to the engine, one per line.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  Method `json:"method"`
	Params  Params `json:"params"`
}

// Params carries the schema text and the optional introspection flags.
type Params struct {
	Schema             string `json:"schema"`
	Force              bool   `json:"force,omitempty"`
	CompositeTypeDepth *int   `json:"compositeTypeDepth,omitempty"`
}

// RPCError is the error member of a response envelope.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ErrorData is the engine's structured payload inside RPCError.Data.
type ErrorData struct {
	IsPanic   bool            `json:"is_panic"`
	Message   string          `json:"message"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
}

// data decodes Data leniently; engines that send no or unstructured data
// yield the zero value.
func (e *RPCError) data() ErrorData {
	var d ErrorData
	if len(e.Data) > 0 {
		_ = json.Unmarshal(e.Data, &d)
	}
	return d
}

// Response is a decoded response envelope. Exactly one of Result and Error
// is set unless Invalid reports why the envelope is unusable.
type Response struct {
	ID      uint64
	Result  json.RawMessage
	Error   *RPCError
	Invalid error
}

type envelope struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

var (
	errNoID          = errors.New("response has no id")
	errBothMembers   = errors.New("response has both result and error")
	errNeitherMember = errors.New("response has neither result nor error")
)

// decodeResponse parses one line. An error means the line cannot be tied to
// any request; a Response with Invalid set names a request but is malformed.
func decodeResponse(line []byte) (*Response, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(env.ID) == 0 || bytes.Equal(env.ID, []byte("null")) {
		return nil, errNoID
	}
	var id uint64
	if err := json.Unmarshal(env.ID, &id); err != nil {
		return nil, fmt.Errorf("response id %s is not a request id", env.ID)
	}

	resp := &Response{ID: id}
	hasResult := len(env.Result) > 0
	hasError := len(env.Error) > 0 && !bytes.Equal(env.Error, []byte("null"))
	switch {
	case hasResult && hasError:
		resp.Invalid = errBothMembers
	case !hasResult && !hasError:
		resp.Invalid = errNeitherMember
	case hasError:
		var rpcErr RPCError
		if err := json.Unmarshal(env.Error, &rpcErr); err != nil {
			resp.Invalid = fmt.Errorf("decode error member: %w", err)
			break
		}
		resp.Error = &rpcErr
	default:
		resp.Result = env.Result
	}
	return resp, nil
}

// Version tells whether the introspected database was created by Prisma
// tooling. Engines may report other values; they are passed through.
type Version string

const (
	VersionPrisma    Version = "Prisma"
	VersionNonPrisma Version = "NonPrisma"
)

// Warning is a non-fatal introspection finding.
type Warning struct {
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Affected json.RawMessage `json:"affected,omitempty"`
}

// IntrospectionResult is the result of the introspect method.
type IntrospectionResult struct {
	Datamodel string    `json:"datamodel"`
	Version   Version   `json:"version"`
	Warnings  []Warning `json:"warnings"`
}

// DatabaseMetadata is the result of the getDatabaseMetadata method.
type DatabaseMetadata struct {
	SizeInBytes int64 `json:"size_in_bytes"`
	TableCount  int   `json:"table_count"`
}
