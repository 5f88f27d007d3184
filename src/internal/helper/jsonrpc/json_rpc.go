// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// UnmarshalFromMap converts a map/any to a struct via JSON round-trip.
//
// It facilitates converting a generic map (e.g., from JSON-RPC parameters)
// into a strongly-typed struct. This is done by marshaling the map to JSON
// and then unmarshaling it into the destination struct.
//
// Parameters:
//   - src: Source map or value to convert
//   - dest: Pointer to destination struct
//
// Returns:
//   - error: Error if marshaling or unmarshaling fails
func UnmarshalFromMap(src any, dest any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Arguments converts typed tool parameters, or the raw arguments of a tools/call
// request, into the generic argument map the request carries. Fields omitted by their json tags are absent
// from the result, so optional parameters keep their "not supplied" meaning.
//
// Parameters:
//   - params: Struct, map or json.RawMessage holding the tool parameters
//
// Returns:
//   - map[string]any: Argument map (never nil on success)
//   - error: Error if params is not a JSON object
func Arguments(params any) (map[string]any, error) {
	if params == nil {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := UnmarshalFromMap(params, &args); err != nil {
		return nil, fmt.Errorf("tool arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
