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
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/H0llyW00dzZ/sslmate-mcp/src/internal/ctsearch"
	"github.com/H0llyW00dzZ/sslmate-mcp/src/logger"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xeipuuv/gojsonschema"
)

// Error kinds carried in the error envelope.
const (
	KindInvalidArgument = "invalid_argument"
	KindUnknownTool     = "unknown_tool"
	KindNetworkError    = "network_error"
	KindUpstreamError   = "upstream_error"
	KindInternalError   = "internal_error"
)

// Error sub-kinds refining [KindUpstreamError] and [KindNetworkError].
const (
	SubKindRateLimited       = "rate_limited"
	SubKindNotFound          = "not_found"
	SubKindMalformedRecord   = "malformed_record"
	SubKindMalformedResponse = "malformed_response"
	SubKindTimeout           = "timeout"
	SubKindCanceled          = "canceled"
)

// rateLimitAdvice is appended to rate-limited errors so the assistant can relay it.
const rateLimitAdvice = "The SSLMate public tier is rate limited; supply an SSLMate API key " +
	"(SSLMATE_API_KEY, --api-key or upstream.apiKey in the config file) to raise the limit."

// redactedSecret replaces configured secrets in every error message.
const redactedSecret = "[REDACTED]"

// Operation implements the logic of a single tool.
//
// The arguments have already been validated against the tool's input schema,
// so an Operation may read them with the typed helpers in this package.
// The returned payload is serialized as JSON; a returned error is classified
// into the error envelope by the [Dispatcher].
type Operation func(ctx context.Context, args map[string]any) (any, error)

// ToolDefinition pairs an [MCP] tool specification with the operation behind it.
//
// Fields:
//   - Tool: The MCP tool definition containing name, description, and input schema
//   - Operation: The function that implements the tool's logic
//   - Role: Short label used in instructions and logs
//
// [MCP]: https://modelcontextprotocol.io/docs/getting-started/intro
type ToolDefinition struct {
	Tool      mcp.Tool
	Operation Operation
	Role      string
}

// ToolError is the structured failure returned to the caller.
type ToolError struct {
	Kind    string `json:"kind"`
	SubKind string `json:"sub_kind,omitempty"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface so a ToolError can travel through error returns.
func (e *ToolError) Error() string {
	if e.SubKind != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.SubKind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ToolResult is the outcome of [Dispatcher.Invoke]: exactly one of Payload or Error is set.
type ToolResult struct {
	Payload any
	Error   *ToolError
}

// IsError reports whether the invocation failed.
func (r ToolResult) IsError() bool { return r.Error != nil }

// MarshalJSON renders the payload on success and {"error":{...}} on failure.
func (r ToolResult) MarshalJSON() ([]byte, error) {
	if r.Error != nil {
		return json.Marshal(struct {
			Error *ToolError `json:"error"`
		}{r.Error})
	}
	return json.Marshal(r.Payload)
}

// Text returns the indented JSON form used as tool-call content.
func (r ToolResult) Text() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error":{"kind":%q,"message":%q}}`, KindInternalError, "failed to encode result")
	}
	return string(data)
}

// DispatcherConfig holds the collaborators injected into a [Dispatcher].
type DispatcherConfig struct {
	// Logger receives one line per call. Nil discards.
	Logger logger.Logger
	// Secrets are replaced with [REDACTED] in every error message.
	Secrets []string
}

// registeredTool is a tool with its compiled argument schema.
type registeredTool struct {
	def       ToolDefinition
	schema    *gojsonschema.Schema
	hasDomain bool
}

// Dispatcher routes tool invocations to their operations.
//
// It validates arguments against each tool's declared input schema, applies the
// hostname-shape check to any "domain" argument, runs the operation and
// converts every failure, including panics, into a [ToolError]. Invoke never
// returns a Go error.
//
// A Dispatcher is immutable after construction and safe for concurrent use.
type Dispatcher struct {
	tools   map[string]*registeredTool
	names   []string
	log     logger.Logger
	secrets []string
}

// NewDispatcher compiles the input schema of every definition and returns a dispatcher.
//
// It fails when two definitions share a name, when a definition has no operation,
// or when a schema cannot be compiled.
func NewDispatcher(cfg DispatcherConfig, defs ...ToolDefinition) (*Dispatcher, error) {
	d := &Dispatcher{
		tools: make(map[string]*registeredTool, len(defs)),
		log:   cfg.Logger,
	}
	if d.log == nil {
		d.log = logger.NewMCPLogger(nil, logger.LevelSilent)
	}
	for _, s := range cfg.Secrets {
		if s = strings.TrimSpace(s); s != "" {
			d.secrets = append(d.secrets, s)
		}
	}

	for _, def := range defs {
		name := def.Tool.Name
		if name == "" {
			return nil, errors.New("tool definition without a name")
		}
		if _, dup := d.tools[name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		if def.Operation == nil {
			return nil, fmt.Errorf("tool %q has no operation", name)
		}

		raw, err := json.Marshal(def.Tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal input schema of %q: %w", name, err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to compile input schema of %q: %w", name, err)
		}

		_, hasDomain := def.Tool.InputSchema.Properties[argDomain]
		d.tools[name] = &registeredTool{def: def, schema: schema, hasDomain: hasDomain}
		d.names = append(d.names, name)
	}
	sort.Strings(d.names)

	return d, nil
}

// Tools returns the registered definitions ordered by name.
func (d *Dispatcher) Tools() []ToolDefinition {
	out := make([]ToolDefinition, 0, len(d.names))
	for _, name := range d.names {
		out = append(out, d.tools[name].def)
	}
	return out
}

// Invoke runs the named tool with args and returns its result.
//
// Parameters:
//   - ctx: Context whose cancellation aborts the upstream request
//   - name: Registered tool name
//   - args: Decoded tool arguments; nil is treated as an empty object
//
// Returns:
//   - *ToolResult: Never nil. On failure Error carries the kind, optional
//     sub-kind, the offending field or upstream status, and a message with
//     every configured secret redacted.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args map[string]any) (result *ToolResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorf("tool %s panicked: %v\n%s", name, r, debug.Stack())
			result = d.fail(&ToolError{Kind: KindInternalError, Message: "internal error while running tool"})
		}
		d.logCall(name, start, result)
	}()

	tool, ok := d.tools[name]
	if !ok {
		return d.fail(&ToolError{
			Kind:    KindUnknownTool,
			Message: fmt.Sprintf("unknown tool %q (available: %s)", name, strings.Join(d.names, ", ")),
		})
	}

	if args == nil {
		args = map[string]any{}
	}

	if terr := tool.validate(args); terr != nil {
		return d.fail(terr)
	}

	if tool.hasDomain {
		if domain, ok := args[argDomain].(string); ok {
			if err := ctsearch.ValidateDomain(domain); err != nil {
				return d.fail(classifyError(err))
			}
		}
	}

	payload, err := tool.def.Operation(ctx, args)
	if err != nil {
		return d.fail(classifyError(err))
	}
	return &ToolResult{Payload: payload}
}

// validate checks args against the tool's compiled input schema.
// Only the first violation is reported, naming its field.
func (t *registeredTool) validate(args map[string]any) *ToolError {
	res, err := t.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return &ToolError{Kind: KindInvalidArgument, Message: fmt.Sprintf("arguments are not a valid object: %v", err)}
	}
	if res.Valid() {
		return nil
	}

	// gojsonschema reports in map order; pick a stable first violation.
	errs := res.Errors()
	sort.SliceStable(errs, func(i, j int) bool { return schemaField(errs[i]) < schemaField(errs[j]) })

	first := errs[0]
	field := schemaField(first)
	return &ToolError{
		Kind:    KindInvalidArgument,
		Field:   field,
		Message: (&ctsearch.InvalidArgumentError{Field: field, Reason: first.Description()}).Error(),
	}
}

// schemaField returns the argument a schema violation refers to.
// Root-level errors such as a missing required property carry it in the details.
func schemaField(e gojsonschema.ResultError) string {
	field := e.Field()
	if field == gojsonschema.STRING_CONTEXT_ROOT || field == "" {
		if p, ok := e.Details()["property"].(string); ok {
			return p
		}
	}
	return field
}

// classifyError maps an error from the validation pipeline or an operation
// onto the error envelope.
func classifyError(err error) *ToolError {
	var (
		iae *ctsearch.InvalidArgumentError
		ue  *ctsearch.UpstreamError
		ne  *ctsearch.NetworkError
		te  *ToolError
	)

	switch {
	case errors.As(err, &te):
		return te
	case errors.As(err, &iae):
		return &ToolError{Kind: KindInvalidArgument, Field: iae.Field, Message: iae.Error()}
	case errors.As(err, &ue):
		out := &ToolError{Kind: KindUpstreamError, Status: ue.Status, Message: ue.Error()}
		switch {
		case ctsearch.IsRateLimited(err):
			out.SubKind = SubKindRateLimited
			out.Message += ". " + rateLimitAdvice
		case ue.NotFound():
			out.SubKind = SubKindNotFound
		}
		return out
	case errors.Is(err, ctsearch.ErrMalformedRecord):
		return &ToolError{Kind: KindUpstreamError, SubKind: SubKindMalformedRecord, Message: err.Error()}
	case errors.Is(err, ctsearch.ErrMalformedResponse):
		return &ToolError{Kind: KindUpstreamError, SubKind: SubKindMalformedResponse, Message: err.Error()}
	case errors.As(err, &ne):
		out := &ToolError{Kind: KindNetworkError, Message: ne.Error()}
		if ne.Timeout {
			out.SubKind = SubKindTimeout
		}
		return out
	case errors.Is(err, context.Canceled):
		return &ToolError{Kind: KindNetworkError, SubKind: SubKindCanceled, Message: "request canceled"}
	case errors.Is(err, context.DeadlineExceeded):
		return &ToolError{Kind: KindNetworkError, SubKind: SubKindTimeout, Message: "request timed out"}
	default:
		return &ToolError{Kind: KindInternalError, Message: err.Error()}
	}
}

// fail redacts the error and wraps it in a result.
func (d *Dispatcher) fail(te *ToolError) *ToolResult {
	for _, s := range d.secrets {
		te.Message = strings.ReplaceAll(te.Message, s, redactedSecret)
	}
	return &ToolResult{Error: te}
}

func (d *Dispatcher) logCall(name string, start time.Time, result *ToolResult) {
	elapsed := time.Since(start).Round(time.Millisecond)
	switch {
	case result == nil:
		d.log.Errorf("tool=%s duration=%s outcome=missing_result", name, elapsed)
	case result.Error != nil:
		outcome := result.Error.Kind
		if result.Error.SubKind != "" {
			outcome += "/" + result.Error.SubKind
		}
		d.log.Warnf("tool=%s duration=%s outcome=%s message=%q", name, elapsed, outcome, result.Error.Message)
	default:
		d.log.Infof("tool=%s duration=%s outcome=ok", name, elapsed)
	}
}
