// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package jsonrpc provides helper functions for [JSON-RPC 2.0] parameter handling.
// It converts typed parameters or raw wire arguments into the generic argument
// maps carried by tools/call requests.
//
// [JSON-RPC 2.0]: https://www.jsonrpc.org/specification
package jsonrpc
