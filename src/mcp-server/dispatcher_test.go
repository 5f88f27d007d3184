// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/H0llyW00dzZ/sslmate-mcp/src/internal/ctsearch"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_UnknownTool(t *testing.T) {
	fake := &fakeSearcher{}
	d := newTestDispatcher(t, fake)

	result := d.Invoke(context.Background(), "revoke_certificate", map[string]any{"domain": "example.com"})

	require.True(t, result.IsError())
	assert.Equal(t, KindUnknownTool, result.Error.Kind)
	assert.Contains(t, result.Error.Message, toolSearchCertificates)
	assert.Contains(t, result.Error.Message, toolGetCertificateDetails)
	assert.Zero(t, fake.calls())
}

func TestDispatcher_InvalidArguments(t *testing.T) {
	tests := []struct {
		name      string
		tool      string
		args      map[string]any
		wantField string
	}{
		{name: "nil arguments", tool: toolSearchCertificates, args: nil, wantField: argDomain},
		{name: "missing domain", tool: toolSearchCertificates, args: map[string]any{argLimit: 10}, wantField: argDomain},
		{name: "domain not a string", tool: toolSearchCertificates, args: map[string]any{argDomain: 42}, wantField: argDomain},
		{name: "empty domain", tool: toolSearchCertificates, args: map[string]any{argDomain: ""}, wantField: argDomain},
		{name: "domain with scheme", tool: toolSearchCertificates, args: map[string]any{argDomain: "https://example.com"}, wantField: argDomain},
		{name: "domain with whitespace", tool: toolSearchCertificates, args: map[string]any{argDomain: " example.com"}, wantField: argDomain},
		{name: "domain with path", tool: toolSearchCertificates, args: map[string]any{argDomain: "example.com/login"}, wantField: argDomain},
		{name: "wildcard domain", tool: toolSearchCertificates, args: map[string]any{argDomain: "*.example.com"}, wantField: argDomain},
		{name: "single label", tool: toolSearchCertificates, args: map[string]any{argDomain: "localhost"}, wantField: argDomain},
		{name: "limit zero", tool: toolSearchCertificates, args: map[string]any{argDomain: "example.com", argLimit: 0}, wantField: argLimit},
		{name: "limit above maximum", tool: toolSearchCertificates, args: map[string]any{argDomain: "example.com", argLimit: 1001}, wantField: argLimit},
		{name: "negative limit", tool: toolSearchCertificates, args: map[string]any{argDomain: "example.com", argLimit: -5}, wantField: argLimit},
		{name: "fractional limit", tool: toolSearchCertificates, args: map[string]any{argDomain: "example.com", argLimit: 5.5}, wantField: argLimit},
		{name: "limit as text", tool: toolSearchCertificates, args: map[string]any{argDomain: "example.com", argLimit: "ten"}, wantField: argLimit},
		{name: "include_subdomains as text", tool: toolSearchCertificates, args: map[string]any{argDomain: "example.com", argIncludeSubdomains: "yes"}, wantField: argIncludeSubdomains},
		{name: "include_expired as number", tool: toolSearchCertificates, args: map[string]any{argDomain: "example.com", argIncludeExpired: 1}, wantField: argIncludeExpired},
		{name: "missing cert_id", tool: toolGetCertificateDetails, args: map[string]any{}, wantField: argCertID},
		{name: "empty cert_id", tool: toolGetCertificateDetails, args: map[string]any{argCertID: ""}, wantField: argCertID},
		{name: "cert_id not a string", tool: toolGetCertificateDetails, args: map[string]any{argCertID: 123}, wantField: argCertID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSearcher{}
			d := newTestDispatcher(t, fake)

			result := d.Invoke(context.Background(), tt.tool, tt.args)

			require.True(t, result.IsError())
			assert.Equal(t, KindInvalidArgument, result.Error.Kind)
			assert.Equal(t, tt.wantField, result.Error.Field)
			assert.NotEmpty(t, result.Error.Message)
			assert.Zero(t, fake.calls(), "invalid arguments must not reach the upstream")
		})
	}
}

func TestDispatcher_SearchArguments(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want ctsearch.SearchRequest
	}{
		{
			name: "defaults",
			args: map[string]any{argDomain: "example.com"},
			want: ctsearch.SearchRequest{Domain: "example.com", Limit: ctsearch.DefaultLimit},
		},
		{
			name: "every option",
			args: map[string]any{argDomain: "example.com", argIncludeSubdomains: true, argIncludeExpired: true, argLimit: 20},
			want: ctsearch.SearchRequest{Domain: "example.com", IncludeSubdomains: true, IncludeExpired: true, Limit: 20},
		},
		{
			name: "limit decoded from JSON",
			args: map[string]any{argDomain: "example.com", argLimit: float64(250)},
			want: ctsearch.SearchRequest{Domain: "example.com", Limit: 250},
		},
		{
			name: "limit bounds are inclusive",
			args: map[string]any{argDomain: "example.com", argLimit: ctsearch.MaxLimit},
			want: ctsearch.SearchRequest{Domain: "example.com", Limit: ctsearch.MaxLimit},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSearcher{}
			d := newTestDispatcher(t, fake)

			result := d.Invoke(context.Background(), toolSearchCertificates, tt.args)

			require.False(t, result.IsError(), "unexpected error: %v", result.Error)
			require.Len(t, fake.searches, 1)
			assert.Equal(t, tt.want, fake.searches[0])
		})
	}
}

func TestDispatcher_CertificateDetails(t *testing.T) {
	fake := &fakeSearcher{record: &ctsearch.CertificateRecord{ID: "abc123", DNSNames: []string{"example.com"}}}
	d := newTestDispatcher(t, fake)

	result := d.Invoke(context.Background(), toolGetCertificateDetails, map[string]any{argCertID: "abc123"})

	require.False(t, result.IsError())
	assert.Equal(t, []string{"abc123"}, fake.ids)

	var rec ctsearch.CertificateRecord
	require.NoError(t, json.Unmarshal([]byte(result.Text()), &rec))
	assert.Equal(t, "abc123", rec.ID)
}

func TestDispatcher_ErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantKind    string
		wantSubKind string
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "rate limited",
			err:         &ctsearch.UpstreamError{Status: 429, RateLimited: true, RetryAfter: 30 * time.Second},
			wantKind:    KindUpstreamError,
			wantSubKind: SubKindRateLimited,
			wantStatus:  429,
			wantMessage: "SSLMATE_API_KEY",
		},
		{
			name:        "not found",
			err:         &ctsearch.UpstreamError{Status: 404},
			wantKind:    KindUpstreamError,
			wantSubKind: SubKindNotFound,
			wantStatus:  404,
		},
		{
			name:        "server error",
			err:         &ctsearch.UpstreamError{Status: 503, Body: "maintenance"},
			wantKind:    KindUpstreamError,
			wantStatus:  503,
			wantMessage: "maintenance",
		},
		{
			name:        "malformed record",
			err:         fmt.Errorf("certificate %q: %w", "abc", ctsearch.ErrMalformedRecord),
			wantKind:    KindUpstreamError,
			wantSubKind: SubKindMalformedRecord,
		},
		{
			name:        "malformed response",
			err:         fmt.Errorf("decode: %w", ctsearch.ErrMalformedResponse),
			wantKind:    KindUpstreamError,
			wantSubKind: SubKindMalformedResponse,
		},
		{
			name:        "network timeout",
			err:         &ctsearch.NetworkError{Cause: errors.New("i/o timeout"), Timeout: true},
			wantKind:    KindNetworkError,
			wantSubKind: SubKindTimeout,
		},
		{
			name:        "connection refused",
			err:         &ctsearch.NetworkError{Cause: errors.New("connection refused")},
			wantKind:    KindNetworkError,
			wantMessage: "connection refused",
		},
		{
			name:        "canceled",
			err:         context.Canceled,
			wantKind:    KindNetworkError,
			wantSubKind: SubKindCanceled,
		},
		{
			name:        "deadline",
			err:         context.DeadlineExceeded,
			wantKind:    KindNetworkError,
			wantSubKind: SubKindTimeout,
		},
		{
			name:        "unexpected",
			err:         errors.New("boom"),
			wantKind:    KindInternalError,
			wantMessage: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t, &fakeSearcher{err: tt.err})

			result := d.Invoke(context.Background(), toolSearchCertificates, map[string]any{argDomain: "example.com"})

			require.True(t, result.IsError())
			assert.Equal(t, tt.wantKind, result.Error.Kind)
			assert.Equal(t, tt.wantSubKind, result.Error.SubKind)
			assert.Equal(t, tt.wantStatus, result.Error.Status)
			if tt.wantMessage != "" {
				assert.Contains(t, result.Error.Message, tt.wantMessage)
			}
		})
	}
}

func TestDispatcher_RedactsSecrets(t *testing.T) {
	const secret = "sk_live_0123456789"
	fake := &fakeSearcher{err: &ctsearch.UpstreamError{Status: 401, Body: "invalid key " + secret}}
	d := newTestDispatcher(t, fake, secret, "  ")

	result := d.Invoke(context.Background(), toolSearchCertificates, map[string]any{argDomain: "example.com"})

	require.True(t, result.IsError())
	assert.NotContains(t, result.Error.Message, secret)
	assert.NotContains(t, result.Text(), secret)
	assert.Contains(t, result.Error.Message, redactedSecret)
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	d := newTestDispatcher(t, &fakeSearcher{panicValue: "nil map write"})

	result := d.Invoke(context.Background(), toolSearchCertificates, map[string]any{argDomain: "example.com"})

	require.True(t, result.IsError())
	assert.Equal(t, KindInternalError, result.Error.Kind)
	assert.NotContains(t, result.Error.Message, "nil map write")
}

func TestDispatcher_CanceledContext(t *testing.T) {
	d := newTestDispatcher(t, &fakeSearcher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := d.Invoke(ctx, toolSearchCertificates, map[string]any{argDomain: "example.com"})

	require.True(t, result.IsError())
	assert.Equal(t, KindNetworkError, result.Error.Kind)
	assert.Equal(t, SubKindCanceled, result.Error.SubKind)
}

func TestDispatcher_ConcurrentInvoke(t *testing.T) {
	fake := &fakeSearcher{}
	d := newTestDispatcher(t, fake)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := d.Invoke(context.Background(), toolSearchCertificates, map[string]any{
				argDomain: "example.com",
				argLimit:  i + 1,
			})
			assert.False(t, result.IsError())
		}()
	}
	wg.Wait()

	assert.Len(t, fake.searches, 20)
}

func TestNewDispatcher_Errors(t *testing.T) {
	op := func(context.Context, map[string]any) (any, error) { return nil, nil }
	tool := mcp.NewTool("echo", mcp.WithString("text"))

	tests := []struct {
		name string
		defs []ToolDefinition
		want string
	}{
		{
			name: "missing name",
			defs: []ToolDefinition{{Tool: mcp.NewTool(""), Operation: op}},
			want: "without a name",
		},
		{
			name: "duplicate",
			defs: []ToolDefinition{{Tool: tool, Operation: op}, {Tool: tool, Operation: op}},
			want: "duplicate tool",
		},
		{
			name: "missing operation",
			defs: []ToolDefinition{{Tool: tool}},
			want: "no operation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDispatcher(DispatcherConfig{}, tt.defs...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDispatcher_ToolsSorted(t *testing.T) {
	d := newTestDispatcher(t, &fakeSearcher{})

	tools := d.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, toolGetCertificateDetails, tools[0].Tool.Name)
	assert.Equal(t, toolSearchCertificates, tools[1].Tool.Name)
}

func TestToolResult_JSON(t *testing.T) {
	t.Run("error envelope", func(t *testing.T) {
		r := ToolResult{Error: &ToolError{Kind: KindInvalidArgument, Field: argLimit, Message: "out of range"}}

		var got map[string]map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.Text()), &got))
		require.Contains(t, got, "error")
		assert.Equal(t, KindInvalidArgument, got["error"]["kind"])
		assert.Equal(t, argLimit, got["error"]["field"])
		assert.NotContains(t, got["error"], "sub_kind")
		assert.NotContains(t, got["error"], "status")
	})

	t.Run("payload", func(t *testing.T) {
		r := ToolResult{Payload: map[string]int{"count": 3}}

		assert.False(t, r.IsError())
		assert.JSONEq(t, `{"count":3}`, r.Text())
	})

	t.Run("error string", func(t *testing.T) {
		te := &ToolError{Kind: KindUpstreamError, SubKind: SubKindNotFound, Message: "gone"}
		assert.Equal(t, "upstream_error (not_found): gone", te.Error())
	})
}
