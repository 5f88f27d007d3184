// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package ctsearch implements a client for the [SSLMate] certificate search API,
// which indexes [Certificate Transparency] logs by domain name.
//
// The package translates a [SearchRequest] into an upstream HTTP query, executes it
// with an optional API key, and normalizes the heterogeneous JSON returned by the
// upstream into [CertificateRecord] values. Parsing is lenient per record: a malformed
// certificate object is skipped without failing the whole search.
//
// A [Client] is safe for concurrent use. Its options are fixed at construction and
// requests share one rate limiter.
//
// Example usage:
//
//	client := ctsearch.NewClient(ctsearch.Options{APIKey: os.Getenv("SSLMATE_API_KEY")})
//	result, err := client.Search(ctx, ctsearch.SearchRequest{Domain: "example.com", Limit: 10})
//	if err != nil {
//		return err
//	}
//	for _, rec := range result.Records {
//		fmt.Println(rec.ID, rec.DNSNames)
//	}
//
// [SSLMate]: https://sslmate.com/ct_search_api/
// [Certificate Transparency]: https://certificate.transparency.dev/
package ctsearch
