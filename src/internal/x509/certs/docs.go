// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package x509certs provides decoding helpers for [X.509] certificates embedded in
// certificate transparency search records. It accepts [PEM], DER, base64 DER and
// [PKCS7] input, and exposes the summary values (names, serial, fingerprint) used to
// backfill records whose upstream summary fields are incomplete.
//
// [X.509]: https://grokipedia.com/page/X.509
// [PKCS7]: https://grokipedia.com/page/PKCS_7
// [PEM]: https://grokipedia.com/page/PEM#privacy-enhanced-mail
package x509certs
