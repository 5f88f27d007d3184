// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package ctsearch

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
)

const (
	// DefaultLimit is the number of records requested when no limit is given.
	DefaultLimit = 100
	// MinLimit is the smallest accepted limit.
	MinLimit = 1
	// MaxLimit is the largest accepted limit.
	MaxLimit = 1000

	// maxDomainLength is the longest hostname allowed by RFC 1035.
	maxDomainLength = 253
	// maxLabelLength is the longest single label allowed by RFC 1035.
	maxLabelLength = 63

	// wildcardPrefix scopes an upstream query to every subdomain of the queried name.
	wildcardPrefix = "*."
)

// Upstream query parameter names.
const (
	paramQuery             = "q"
	paramIncludeSubdomains = "include_subdomains"
	paramIncludeExpired    = "include_expired"
	paramLimit             = "limit"
)

// SearchRequest describes one certificate search.
type SearchRequest struct {
	Domain            string `json:"domain"`
	IncludeSubdomains bool   `json:"include_subdomains"`
	IncludeExpired    bool   `json:"include_expired"`
	Limit             int    `json:"limit"`
}

// Normalize returns a copy of r with the domain trimmed and lowercased, and the
// limit clamped to [MinLimit, MaxLimit]. A zero limit becomes [DefaultLimit].
//
// Normalize does not reject anything; call [SearchRequest.Validate] afterwards.
func (r SearchRequest) Normalize() SearchRequest {
	r.Domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(r.Domain)), ".")
	if ascii, err := idna.Lookup.ToASCII(r.Domain); err == nil {
		r.Domain = ascii
	}
	r.Limit = ClampLimit(r.Limit)
	return r
}

// Validate checks the request invariants.
func (r SearchRequest) Validate() error {
	if err := ValidateDomain(r.Domain); err != nil {
		return err
	}
	if r.Limit < MinLimit || r.Limit > MaxLimit {
		return &InvalidArgumentError{Field: "limit", Reason: "must be an integer between 1 and 1000"}
	}
	return nil
}

// ClampLimit maps limit into [MinLimit, MaxLimit], with 0 meaning [DefaultLimit].
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLimit
	case limit < MinLimit:
		return MinLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// ValidateDomain reports whether domain looks like a hostname.
//
// It rejects empty input, embedded whitespace, URL schemes and anything carrying
// a path, port or wildcard. Internationalized names are accepted and checked in
// their punycode form.
func ValidateDomain(domain string) error {
	if strings.TrimSpace(domain) == "" {
		return &InvalidArgumentError{Field: "domain", Reason: "must not be empty"}
	}
	if strings.IndexFunc(domain, unicode.IsSpace) >= 0 {
		return &InvalidArgumentError{Field: "domain", Reason: "must not contain whitespace"}
	}
	if strings.Contains(domain, "://") || hasSchemePrefix(domain) {
		return &InvalidArgumentError{Field: "domain", Reason: "must be a bare hostname without a protocol prefix"}
	}
	if strings.HasPrefix(domain, wildcardPrefix) {
		return &InvalidArgumentError{Field: "domain", Reason: "must not be a wildcard; set include_subdomains instead"}
	}
	if strings.ContainsAny(domain, "/?#@:") {
		return &InvalidArgumentError{Field: "domain", Reason: "must be a bare hostname without port or path"}
	}

	ascii, err := idna.Lookup.ToASCII(strings.TrimSuffix(domain, "."))
	if err != nil {
		return &InvalidArgumentError{Field: "domain", Reason: "is not a valid hostname"}
	}
	if len(ascii) > maxDomainLength {
		return &InvalidArgumentError{Field: "domain", Reason: "exceeds 253 characters"}
	}

	labels := strings.Split(ascii, ".")
	if len(labels) < 2 {
		return &InvalidArgumentError{Field: "domain", Reason: "must contain at least one dot"}
	}
	for _, label := range labels {
		if !validLabel(label) {
			return &InvalidArgumentError{Field: "domain", Reason: "is not a valid hostname"}
		}
	}
	return nil
}

// hasSchemePrefix catches scheme prefixes written without slashes, such as "https:example.com".
func hasSchemePrefix(domain string) bool {
	lower := strings.ToLower(domain)
	for _, scheme := range []string{"http:", "https:", "ftp:", "ws:", "wss:"} {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

func validLabel(label string) bool {
	if label == "" || len(label) > maxLabelLength {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return true
}

// Query encodes r into upstream query parameters, sending limit as the
// record count (callers pass the effective, already clamped value).
func (r SearchRequest) Query(limit int) url.Values {
	v := url.Values{}
	q := r.Domain
	if r.IncludeSubdomains {
		q = wildcardPrefix + r.Domain
		v.Set(paramIncludeSubdomains, "true")
	}
	v.Set(paramQuery, q)
	v.Set(paramIncludeExpired, strconv.FormatBool(r.IncludeExpired))
	v.Set(paramLimit, strconv.Itoa(limit))
	return v
}

// ParseQuery decodes upstream query parameters produced by [SearchRequest.Query].
func ParseQuery(v url.Values) (SearchRequest, error) {
	var r SearchRequest

	q := v.Get(paramQuery)
	if q == "" {
		return r, &InvalidArgumentError{Field: paramQuery, Reason: "missing"}
	}

	if s := v.Get(paramIncludeSubdomains); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return r, &InvalidArgumentError{Field: paramIncludeSubdomains, Reason: "must be a boolean"}
		}
		r.IncludeSubdomains = b
	}
	// A wildcard query implies subdomain scope even when the flag is absent.
	if strings.HasPrefix(q, wildcardPrefix) {
		r.IncludeSubdomains = true
		q = strings.TrimPrefix(q, wildcardPrefix)
	}
	r.Domain = q

	if s := v.Get(paramIncludeExpired); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return r, &InvalidArgumentError{Field: paramIncludeExpired, Reason: "must be a boolean"}
		}
		r.IncludeExpired = b
	}

	if s := v.Get(paramLimit); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return r, &InvalidArgumentError{Field: paramLimit, Reason: "must be an integer"}
		}
		r.Limit = n
	}
	return r, nil
}
