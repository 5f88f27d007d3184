// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package ctsearch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/sslmate-mcp/src/logger"
)

// stubUpstream records every query it receives and answers with handler.
type stubUpstream struct {
	*httptest.Server
	mu       sync.Mutex
	queries  []url.Values
	headers  []http.Header
	attempts atomic.Int32
}

func newStubUpstream(t *testing.T, handler http.HandlerFunc) *stubUpstream {
	t.Helper()

	s := &stubUpstream{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.attempts.Add(1)
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query())
		s.headers = append(s.headers, r.Header.Clone())
		s.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *stubUpstream) lastQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return nil
	}
	return s.queries[len(s.queries)-1]
}

func (s *stubUpstream) lastHeader() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.headers) == 0 {
		return nil
	}
	return s.headers[len(s.headers)-1]
}

func jsonBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func newTestClient(s *stubUpstream, mutate ...func(*Options)) *Client {
	opts := Options{
		BaseURL: s.URL,
		Version: "test",
		Now:     func() time.Time { return fixedNow },
	}
	for _, m := range mutate {
		m(&opts)
	}
	return NewClient(opts)
}

func TestClient_EffectiveLimit(t *testing.T) {
	tests := []struct {
		name        string
		upstreamMax int
		limit       int
		want        int
	}{
		{name: "below upstream max", upstreamMax: 500, limit: 10, want: 10},
		{name: "above upstream max", upstreamMax: 50, limit: 200, want: 50},
		{name: "equal", upstreamMax: 50, limit: 50, want: 50},
		{name: "default limit", upstreamMax: 1000, limit: 0, want: DefaultLimit},
		{name: "unset upstream max", upstreamMax: 0, limit: 1000, want: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStubUpstream(t, jsonBody(`[]`))
			c := newTestClient(s, func(o *Options) { o.UpstreamMaxLimit = tt.upstreamMax })

			assert.Equal(t, tt.want, c.EffectiveLimit(tt.limit))

			res, err := c.Search(context.Background(), SearchRequest{Domain: "example.com", Limit: tt.limit})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.EffectiveLimit)
			assert.Equal(t, strconv.Itoa(tt.want), s.lastQuery().Get("limit"))
		})
	}
}

func TestClient_Search_QueryParameters(t *testing.T) {
	tests := []struct {
		name string
		req  SearchRequest
		want url.Values
	}{
		{
			name: "exact domain",
			req:  SearchRequest{Domain: "Example.com", Limit: 10},
			want: url.Values{
				"q":               {"example.com"},
				"include_expired": {"false"},
				"limit":           {"10"},
			},
		},
		{
			name: "subdomains",
			req:  SearchRequest{Domain: "example.com", IncludeSubdomains: true, Limit: 50},
			want: url.Values{
				"q":                  {"*.example.com"},
				"include_subdomains": {"true"},
				"include_expired":    {"false"},
				"limit":              {"50"},
			},
		},
		{
			name: "expired included",
			req:  SearchRequest{Domain: "example.com", IncludeExpired: true, Limit: 1},
			want: url.Values{
				"q":               {"example.com"},
				"include_expired": {"true"},
				"limit":           {"1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStubUpstream(t, jsonBody(`[]`))
			c := newTestClient(s)

			_, err := c.Search(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.lastQuery())
		})
	}
}

func TestClient_Search_SkipsMalformedRecord(t *testing.T) {
	var logs bytes.Buffer
	body := wireArray(
		wireJSON("1", []string{"example.com"}, fixedNow.AddDate(0, 3, 0)),
		`{"id":"2","dns_names":["example.com"]}`,
	)
	s := newStubUpstream(t, jsonBody(body))
	c := newTestClient(s, func(o *Options) { o.Logger = logger.NewMCPLogger(&logs, logger.LevelWarn) })

	res, err := c.Search(context.Background(), SearchRequest{Domain: "example.com", Limit: 10})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "1", res.Records[0].ID)
	assert.Contains(t, logs.String(), "skipping certificate record")
}

func TestClient_Search_KeepsRecordsWithMistypedOptionalFields(t *testing.T) {
	const valid = `"dns_names":["example.com"],"issuer":"R3","not_before":"2026-01-01T00:00:00Z","not_after":"2099-01-01T00:00:00Z"`
	body := wireArray(
		`{"id":"1",`+valid+`,"serial_number":12345}`,
		`{"id":"2",`+valid+`,"revoked":"false"}`,
		`{"id":"3",`+valid+`,"status":0}`,
	)
	s := newStubUpstream(t, jsonBody(body))
	c := newTestClient(s)

	res, err := c.Search(context.Background(), SearchRequest{Domain: "example.com", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
}

func TestClient_Search_FiltersExpired(t *testing.T) {
	future := fixedNow.AddDate(0, 6, 0)
	past := fixedNow.AddDate(0, -1, 0)
	body := wireArray(
		wireJSON("1", []string{"example.com"}, future),
		wireJSON("2", []string{"example.com"}, past),
		wireJSON("3", []string{"www.example.com"}, future),
		wireJSON("4", []string{"example.com"}, past),
		wireJSON("5", []string{"example.com"}, future),
	)

	tests := []struct {
		name           string
		includeExpired bool
		wantIDs        []string
	}{
		{name: "expired filtered", includeExpired: false, wantIDs: []string{"1", "3", "5"}},
		{name: "expired kept", includeExpired: true, wantIDs: []string{"1", "2", "3", "4", "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStubUpstream(t, jsonBody(body))
			c := newTestClient(s)

			res, err := c.Search(context.Background(), SearchRequest{
				Domain:         "example.com",
				IncludeExpired: tt.includeExpired,
				Limit:          10,
			})
			require.NoError(t, err)

			ids := make([]string, 0, len(res.Records))
			for _, r := range res.Records {
				ids = append(ids, r.ID)
				assert.Equal(t, tt.includeExpired && r.NotAfter.Before(fixedNow), r.IsExpired)
			}
			assert.Equal(t, tt.wantIDs, ids, "upstream order must be preserved")
			assert.Equal(t, len(tt.wantIDs), res.Count)
		})
	}
}

func TestClient_Search_TruncatesToEffectiveLimit(t *testing.T) {
	future := fixedNow.AddDate(1, 0, 0)
	body := wireArray(
		wireJSON("1", []string{"example.com"}, future),
		wireJSON("2", []string{"example.com"}, future),
		wireJSON("3", []string{"example.com"}, future),
	)
	s := newStubUpstream(t, jsonBody(body))
	c := newTestClient(s)

	res, err := c.Search(context.Background(), SearchRequest{Domain: "example.com", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "2", res.Records[1].ID)
}

func TestClient_Search_WrappedBody(t *testing.T) {
	body := `{"certificates":` + wireArray(wireJSON("9", []string{"example.com"}, fixedNow.AddDate(1, 0, 0))) + `}`
	s := newStubUpstream(t, jsonBody(body))
	c := newTestClient(s)

	res, err := c.Search(context.Background(), SearchRequest{Domain: "example.com"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "9", res.Records[0].ID)
}

func TestClient_Search_MalformedBody(t *testing.T) {
	s := newStubUpstream(t, jsonBody(`<html>maintenance</html>`))
	c := newTestClient(s)

	res, err := c.Search(context.Background(), SearchRequest{Domain: "example.com"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_Search_Headers(t *testing.T) {
	t.Run("with api key", func(t *testing.T) {
		s := newStubUpstream(t, jsonBody(`[]`))
		c := newTestClient(s, func(o *Options) { o.APIKey = "sekret" })

		_, err := c.Search(context.Background(), SearchRequest{Domain: "example.com"})
		require.NoError(t, err)

		h := s.lastHeader()
		assert.Equal(t, "Bearer sekret", h.Get("Authorization"))
		assert.Equal(t, "sslmate-mcp/test", h.Get("User-Agent"))
		assert.Equal(t, "application/json", h.Get("Accept"))
	})

	t.Run("without api key", func(t *testing.T) {
		s := newStubUpstream(t, jsonBody(`[]`))
		c := newTestClient(s)

		_, err := c.Search(context.Background(), SearchRequest{Domain: "example.com"})
		require.NoError(t, err)
		assert.Empty(t, s.lastHeader().Get("Authorization"))
	})
}

func TestClient_Search_RateLimited(t *testing.T) {
	s := newStubUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		http.Error(w, `{"message":"rate limit exceeded"}`, http.StatusTooManyRequests)
	})
	c := newTestClient(s)

	res, err := c.Search(context.Background(), SearchRequest{Domain: "example.com"})
	assert.Nil(t, res)

	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.True(t, ue.RateLimited)
	assert.Equal(t, http.StatusTooManyRequests, ue.Status)
	assert.Equal(t, 30*time.Second, ue.RetryAfter)
	assert.True(t, IsRateLimited(err))
	assert.EqualValues(t, 1, s.attempts.Load(), "429 must not be retried")
}

func TestClient_Search_UpstreamErrorBody(t *testing.T) {
	const key = "sk_live_abcdef"
	s := newStubUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("bad key " + key + " " + strings.Repeat("x", 2000)))
	})
	c := newTestClient(s, func(o *Options) { o.APIKey = key })

	_, err := c.Search(context.Background(), SearchRequest{Domain: "example.com"})

	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusInternalServerError, ue.Status)
	assert.False(t, ue.RateLimited)
	assert.NotContains(t, ue.Body, key)
	assert.NotContains(t, err.Error(), key)
	assert.Contains(t, ue.Body, redacted)
	assert.LessOrEqual(t, len(ue.Body), maxErrorBody+len(redacted)+len("..."))
	assert.EqualValues(t, 1, s.attempts.Load(), "HTTP errors must not be retried")
}

func TestClient_Search_RetriesTransientFailureOnce(t *testing.T) {
	var first atomic.Bool
	first.Store(true)

	s := newStubUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if first.CompareAndSwap(true, false) {
			hj, ok := w.(http.Hijacker)
			if !ok {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
			}
			return
		}
		jsonBody(wireArray(wireJSON("1", []string{"example.com"}, fixedNow.AddDate(1, 0, 0))))(w, r)
	})
	c := newTestClient(s)

	res, err := c.Search(context.Background(), SearchRequest{Domain: "example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.EqualValues(t, 2, s.attempts.Load())
}

func TestClient_Search_Timeout(t *testing.T) {
	s := newStubUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	c := newTestClient(s, func(o *Options) { o.Timeout = 50 * time.Millisecond })

	res, err := c.Search(context.Background(), SearchRequest{Domain: "example.com"})
	assert.Nil(t, res)

	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout)
	assert.EqualValues(t, 2, s.attempts.Load(), "a timeout is retried exactly once")
}

func TestClient_Search_CanceledContext(t *testing.T) {
	s := newStubUpstream(t, jsonBody(`[]`))
	c := newTestClient(s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := c.Search(ctx, SearchRequest{Domain: "example.com"})
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.EqualValues(t, 0, s.attempts.Load())
}

func TestClient_Search_InvalidDomainNeverCallsUpstream(t *testing.T) {
	s := newStubUpstream(t, jsonBody(`[]`))
	c := newTestClient(s)

	for _, domain := range []string{"", "https://example.com", "exa mple.com", "*.example.com"} {
		_, err := c.Search(context.Background(), SearchRequest{Domain: domain})
		var iae *InvalidArgumentError
		assert.ErrorAs(t, err, &iae, "domain %q", domain)
	}
	assert.EqualValues(t, 0, s.attempts.Load())
}

func TestClient_Search_Pacing(t *testing.T) {
	s := newStubUpstream(t, jsonBody(`[]`))
	c := newTestClient(s, func(o *Options) {
		o.RequestsPerSecond = 0.01
		o.Burst = 1
	})

	_, err := c.Search(context.Background(), SearchRequest{Domain: "example.com"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Search(ctx, SearchRequest{Domain: "example.com"})
	require.Error(t, err)
	assert.EqualValues(t, 1, s.attempts.Load(), "the paced call must not reach the upstream")
}

func TestClient_Certificate(t *testing.T) {
	s := newStubUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/certificates/3141":
			jsonBody(wireJSON("3141", []string{"example.com"}, fixedNow.AddDate(1, 0, 0)))(w, r)
		case "/certificates/broken":
			jsonBody(`{"id":"broken"}`)(w, r)
		default:
			http.NotFound(w, r)
		}
	})
	c := newTestClient(s)

	t.Run("found", func(t *testing.T) {
		rec, err := c.Certificate(context.Background(), " 3141 ")
		require.NoError(t, err)
		assert.Equal(t, "3141", rec.ID)
		assert.Equal(t, []string{"example.com"}, rec.DNSNames)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := c.Certificate(context.Background(), "nope")
		var ue *UpstreamError
		require.ErrorAs(t, err, &ue)
		assert.True(t, ue.NotFound())
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := c.Certificate(context.Background(), "broken")
		assert.ErrorIs(t, err, ErrMalformedRecord)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := c.Certificate(context.Background(), "  ")
		var iae *InvalidArgumentError
		require.ErrorAs(t, err, &iae)
		assert.Equal(t, "cert_id", iae.Field)
	})
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Duration
	}{
		{name: "empty", in: "", want: 0},
		{name: "seconds", in: "120", want: 2 * time.Minute},
		{name: "negative", in: "-3", want: 0},
		{name: "http date", in: fixedNow.Add(90 * time.Second).Format(http.TimeFormat), want: 90 * time.Second},
		{name: "past date", in: fixedNow.Add(-time.Hour).Format(http.TimeFormat), want: 0},
		{name: "garbage", in: "soon", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.in, fixedNow))
		})
	}
}
