// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *E
		want string
	}{
		{
			name: "kind and message",
			err:  New(MalformedSchema, "no datasource block found"),
			want: "malformed_schema: no datasource block found",
		},
		{
			name: "wrapped cause",
			err:  Wrap(EngineStartFailed, "spawn engine", io.ErrUnexpectedEOF),
			want: "engine_start_failed: spawn engine: unexpected EOF",
		},
		{
			name: "engine code",
			err:  &E{Kind: ConnectionFailed, Message: "Can't reach database server", Code: "P1001"},
			want: "connection_failed: [P1001] Can't reach database server",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := New(DatabaseNotFound, "blog.db does not exist")
	wrapped := fmt.Errorf("listDatabases: %w", base)

	assert.Equal(t, DatabaseNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, DatabaseNotFound))
	assert.False(t, Is(wrapped, EngineCrashed))
	assert.False(t, Is(nil, DatabaseNotFound))
	assert.Equal(t, Kind(""), KindOf(io.EOF))

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Same(t, base, e)
}

func TestUnwrap(t *testing.T) {
	err := Wrap(EngineCrashed, "engine exited", io.ErrClosedPipe)
	assert.True(t, stderrors.Is(err, io.ErrClosedPipe))
}

func TestWithDiagnosticCopies(t *testing.T) {
	orig := New(EngineCrashed, "engine exited")
	withDiag := orig.WithDiagnostic("panicked at src/main.rs")

	assert.Empty(t, orig.Diagnostic)
	assert.Equal(t, "panicked at src/main.rs", withDiag.Diagnostic)
	assert.Equal(t, orig.Kind, withDiag.Kind)
}
