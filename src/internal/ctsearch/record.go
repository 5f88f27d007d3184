// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package ctsearch

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	x509certs "github.com/H0llyW00dzZ/sslmate-mcp/src/internal/x509/certs"
)

// CertificateRecord is the normalized view of one upstream certificate object.
type CertificateRecord struct {
	ID        string    `json:"id"`
	DNSNames  []string  `json:"dns_names"`
	Issuer    string    `json:"issuer"`
	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`
	IsExpired bool      `json:"is_expired"`

	CommonName        string `json:"common_name,omitempty"`
	SerialNumber      string `json:"serial_number,omitempty"`
	FingerprintSHA256 string `json:"fingerprint_sha256,omitempty"`
	Status            string `json:"status,omitempty"`
}

// SearchResult holds the records of one search in upstream order.
type SearchResult struct {
	Query          SearchRequest       `json:"query"`
	Records        []CertificateRecord `json:"records"`
	Count          int                 `json:"count"`
	EffectiveLimit int                 `json:"effective_limit"`
}

// wireRecord mirrors the fields the upstream has been seen to send.
// Every field is optional at this layer; requiredness is checked in buildRecord.
// Fields whose type varies between log operators stay raw so a mistyped
// optional value never costs the whole record.
type wireRecord struct {
	ID                json.RawMessage `json:"id"`
	DNSNames          json.RawMessage `json:"dns_names"`
	SubjectAltNames   json.RawMessage `json:"subject_alt_names"`
	CommonName        json.RawMessage `json:"common_name"`
	Issuer            json.RawMessage `json:"issuer"`
	NotBefore         json.RawMessage `json:"not_before"`
	NotAfter          json.RawMessage `json:"not_after"`
	SerialNumber      json.RawMessage `json:"serial_number"`
	FingerprintSHA256 json.RawMessage `json:"fingerprint_sha256"`
	CertSHA256        json.RawMessage `json:"cert_sha256"`
	Status            json.RawMessage `json:"status"`
	Revoked           json.RawMessage `json:"revoked"`
	CertDER           json.RawMessage `json:"cert_der"`
	PEM               json.RawMessage `json:"pem"`
}

// wireIssuer is the object form of the issuer field.
type wireIssuer struct {
	Name         string `json:"name"`
	FriendlyName string `json:"friendly_name"`
}

// timeLayouts lists the timestamp layouts accepted for validity bounds, most specific first.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// recordParser turns raw certificate objects into records.
type recordParser struct {
	certs *x509certs.Certificate
	now   time.Time
}

// splitRecords extracts the certificate objects from an upstream body.
// A bare array is the documented shape; an object with a "certificates" array is
// accepted as well.
func splitRecords(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return items, nil
	case '{':
		var wrapped struct {
			Certificates []json.RawMessage `json:"certificates"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if wrapped.Certificates == nil {
			return nil, fmt.Errorf("%w: object without certificates array", ErrMalformedResponse)
		}
		return wrapped.Certificates, nil
	}
	return nil, fmt.Errorf("%w: expected JSON array", ErrMalformedResponse)
}

// parse maps one raw certificate object to a record. Errors wrap [ErrMalformedRecord].
func (p *recordParser) parse(raw json.RawMessage) (CertificateRecord, error) {
	var w wireRecord
	if err := json.Unmarshal(raw, &w); err != nil {
		return CertificateRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return p.buildRecord(&w)
}

func (p *recordParser) buildRecord(w *wireRecord) (CertificateRecord, error) {
	rec := CertificateRecord{
		CommonName:        strings.TrimSpace(rawString(w.CommonName)),
		SerialNumber:      rawString(w.SerialNumber),
		FingerprintSHA256: firstNonEmpty(rawString(w.FingerprintSHA256), rawString(w.CertSHA256)),
		Status:            rawString(w.Status),
	}
	if revoked, ok := rawBool(w.Revoked); ok && rec.Status == "" {
		rec.Status = "valid"
		if revoked {
			rec.Status = "revoked"
		}
	}

	id, err := parseID(w.ID)
	if err != nil {
		return CertificateRecord{}, err
	}
	rec.ID = id

	rec.DNSNames = cleanNames(rawStrings(w.DNSNames))
	if len(rec.DNSNames) == 0 {
		rec.DNSNames = cleanNames(rawStrings(w.SubjectAltNames))
	}
	if len(rec.DNSNames) == 0 && rec.CommonName != "" {
		rec.DNSNames = []string{rec.CommonName}
	}

	rec.Issuer = parseIssuer(w.Issuer)

	var notBeforeErr, notAfterErr error
	rec.NotBefore, notBeforeErr = parseTime(rawString(w.NotBefore))
	rec.NotAfter, notAfterErr = parseTime(rawString(w.NotAfter))

	// Backfill from the embedded certificate when the summary fields are incomplete.
	if len(rec.DNSNames) == 0 || rec.Issuer == "" || notBeforeErr != nil || notAfterErr != nil {
		if cert := p.embeddedCertificate(w); cert != nil {
			if len(rec.DNSNames) == 0 {
				rec.DNSNames = x509certs.DNSNames(cert)
			}
			if rec.Issuer == "" {
				rec.Issuer = cert.Issuer.String()
			}
			if notBeforeErr != nil {
				rec.NotBefore, notBeforeErr = cert.NotBefore.UTC(), nil
			}
			if notAfterErr != nil {
				rec.NotAfter, notAfterErr = cert.NotAfter.UTC(), nil
			}
			if rec.CommonName == "" {
				rec.CommonName = cert.Subject.CommonName
			}
			if rec.SerialNumber == "" {
				rec.SerialNumber = x509certs.SerialHex(cert)
			}
			if rec.FingerprintSHA256 == "" {
				rec.FingerprintSHA256 = x509certs.FingerprintSHA256(cert)
			}
		}
	}

	switch {
	case len(rec.DNSNames) == 0:
		return CertificateRecord{}, fmt.Errorf("%w: record %q has no DNS names", ErrMalformedRecord, rec.ID)
	case rec.Issuer == "":
		return CertificateRecord{}, fmt.Errorf("%w: record %q has no issuer", ErrMalformedRecord, rec.ID)
	case notBeforeErr != nil:
		return CertificateRecord{}, fmt.Errorf("%w: record %q not_before: %v", ErrMalformedRecord, rec.ID, notBeforeErr)
	case notAfterErr != nil:
		return CertificateRecord{}, fmt.Errorf("%w: record %q not_after: %v", ErrMalformedRecord, rec.ID, notAfterErr)
	}

	rec.IsExpired = p.now.After(rec.NotAfter)
	return rec, nil
}

// embeddedCertificate decodes the cert_der or pem field, returning nil when
// neither is present or decodable.
func (p *recordParser) embeddedCertificate(w *wireRecord) *x509.Certificate {
	if p.certs == nil {
		return nil
	}
	var (
		cert *x509.Certificate
		err  error
	)
	der, pem := rawString(w.CertDER), rawString(w.PEM)
	switch {
	case der != "":
		cert, err = p.certs.DecodeBase64(der)
	case pem != "":
		cert, err = p.certs.Decode([]byte(pem))
	default:
		return nil
	}
	if err != nil {
		return nil
	}
	return cert
}

func parseID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return "", fmt.Errorf("%w: empty id", ErrMalformedRecord)
		}
		return s, nil
	}

	// Some log operators expose numeric identifiers.
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: id must be a string or number", ErrMalformedRecord)
}

func parseIssuer(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var obj wireIssuer
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(firstNonEmpty(obj.Name, obj.FriendlyName))
	}
	return ""
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func cleanNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// rawString returns raw as a string, or "" when it is absent or not a JSON string.
func rawString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// rawBool reports the JSON boolean in raw; ok is false for any other type.
func rawBool(raw json.RawMessage) (v, ok bool) {
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return false, false
	}
	return v, true
}

// rawStrings returns the string elements of a JSON array, skipping elements of
// other types. Anything but an array yields nil.
func rawStrings(raw json.RawMessage) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := rawString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
