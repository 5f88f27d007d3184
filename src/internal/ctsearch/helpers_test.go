// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package ctsearch

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fixedNow is the clock used by every test that derives expiry.
var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// selfSigned creates a throwaway certificate for backfill tests.
func selfSigned(t *testing.T, cn string, dnsNames []string, notBefore, notAfter time.Time) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(0xc0ffee),
		Subject:      pkix.Name{CommonName: cn},
		Issuer:       pkix.Name{CommonName: cn},
		DNSNames:     dnsNames,
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

// wireJSON renders a minimal upstream certificate object.
func wireJSON(id string, names []string, notAfter time.Time) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return fmt.Sprintf(`{"id":%q,"dns_names":[%s],"issuer":"Test CA","not_before":%q,"not_after":%q}`,
		id, strings.Join(quoted, ","),
		notAfter.AddDate(-1, 0, 0).Format(time.RFC3339),
		notAfter.Format(time.RFC3339))
}

// wireArray joins objects into an upstream array body.
func wireArray(objects ...string) string {
	return "[" + strings.Join(objects, ",") + "]"
}

// mustJSON marshals v or fails the test.
func mustJSON(t *testing.T, v any) string {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
