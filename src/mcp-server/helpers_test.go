// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/H0llyW00dzZ/sslmate-mcp/src/internal/ctsearch"
	"github.com/H0llyW00dzZ/sslmate-mcp/src/logger"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

// fakeSearcher records every call and answers with canned values.
type fakeSearcher struct {
	mu       sync.Mutex
	searches []ctsearch.SearchRequest
	ids      []string

	result     *ctsearch.SearchResult
	record     *ctsearch.CertificateRecord
	err        error
	panicValue any
}

func (f *fakeSearcher) Search(ctx context.Context, req ctsearch.SearchRequest) (*ctsearch.SearchResult, error) {
	f.mu.Lock()
	f.searches = append(f.searches, req)
	f.mu.Unlock()

	if f.panicValue != nil {
		panic(f.panicValue)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &ctsearch.SearchResult{Query: req, Records: []ctsearch.CertificateRecord{}, EffectiveLimit: req.Limit}, nil
}

func (f *fakeSearcher) Certificate(ctx context.Context, id string) (*ctsearch.CertificateRecord, error) {
	f.mu.Lock()
	f.ids = append(f.ids, id)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if f.record != nil {
		return f.record, nil
	}
	return &ctsearch.CertificateRecord{ID: id}, nil
}

// calls returns the number of upstream calls made so far.
func (f *fakeSearcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches) + len(f.ids)
}

// newTestDispatcher builds a dispatcher over the real tool definitions.
func newTestDispatcher(t *testing.T, searcher CertificateSearcher, secrets ...string) *Dispatcher {
	t.Helper()

	d, err := NewDispatcher(DispatcherConfig{
		Logger:  logger.NewMCPLogger(io.Discard, logger.LevelDebug),
		Secrets: secrets,
	}, createTools(searcher)...)
	require.NoError(t, err)
	return d
}

// upstreamRecord renders one upstream certificate object valid from a year
// before notAfter.
func upstreamRecord(id string, names []string, notAfter time.Time) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return fmt.Sprintf(`{"id":%q,"dns_names":[%s],"issuer":"Test CA","not_before":%q,"not_after":%q}`,
		id, strings.Join(quoted, ","),
		notAfter.AddDate(-1, 0, 0).UTC().Format(time.RFC3339),
		notAfter.UTC().Format(time.RFC3339))
}

// stubUpstream is an httptest server standing in for the SSLMate API.
type stubUpstream struct {
	*httptest.Server

	mu      sync.Mutex
	queries []url.Values
	auth    []string
}

// newStubUpstream serves body with status for every request and records the queries.
func newStubUpstream(t *testing.T, status int, body string) *stubUpstream {
	t.Helper()

	s := &stubUpstream{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query())
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(s.Close)
	return s
}

// lastQuery returns the query string of the most recent request.
func (s *stubUpstream) lastQuery(t *testing.T) url.Values {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.queries, "upstream was not called")
	return s.queries[len(s.queries)-1]
}

// authHeaders returns the Authorization header of every request.
func (s *stubUpstream) authHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.auth...)
}

// requests returns the number of requests served.
func (s *stubUpstream) requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

// testConfig returns the default configuration pointed at baseURL.
func testConfig(baseURL string) *Config {
	config := defaultConfig()
	config.Upstream.BaseURL = baseURL
	config.Upstream.RequestsPerSecond = 100
	config.Upstream.Burst = 100
	config.Log.Level = "silent"
	return config
}

// newTestServer builds the production server wiring against baseURL.
func newTestServer(t *testing.T, baseURL string) *Server {
	t.Helper()
	return newTestServerWithConfig(t, testConfig(baseURL))
}

// newTestServerWithConfig builds the production server wiring from config.
func newTestServerWithConfig(t *testing.T, config *Config) *Server {
	t.Helper()

	s, err := newServer(config, "test-version", logger.NewMCPLogger(io.Discard, logger.LevelSilent))
	require.NoError(t, err)
	return s
}

// startStdioClient serves s over in-memory pipes and returns an initialized mcp-go client.
func startStdioClient(t *testing.T, s *Server) (*client.Client, *mcp.InitializeResult) {
	t.Helper()

	serverReader, clientWriter := io.Pipe()
	clientReader, serverWriter := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.ServeStdio(ctx, serverReader, serverWriter)
	}()

	tr := transport.NewIO(clientReader, clientWriter, io.NopCloser(strings.NewReader("")))
	require.NoError(t, tr.Start(ctx))

	c := client.NewClient(tr)

	var initReq mcp.InitializeRequest
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "test-client", Version: "1.0.0"}
	initResult, err := c.Initialize(ctx, initReq)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
		cancel()
		_ = serverReader.Close()
		_ = serverWriter.Close()
		<-done
		_ = clientReader.Close()
		_ = clientWriter.Close()
	})

	return c, initResult
}

// callTool invokes name through c and returns the single text content and the error flag.
func callTool(t *testing.T, c *client.Client, name string, args map[string]any) (string, bool) {
	t.Helper()

	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text, result.IsError
}
