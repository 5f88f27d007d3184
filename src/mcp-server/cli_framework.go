// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/template"
	"time"

	"github.com/H0llyW00dzZ/sslmate-mcp/src/internal/ctsearch"
	"github.com/H0llyW00dzZ/sslmate-mcp/src/internal/helper/posix"
	"github.com/H0llyW00dzZ/sslmate-mcp/src/logger"
	"github.com/H0llyW00dzZ/sslmate-mcp/src/mcp-server/templates"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cliHelpData holds the data used to populate the CLI help template.
//
// It is used internally by BuildRootCommand to prepare data for the
// embedded cli_help.md template.
//
// Fields:
//   - ExeName: The name of the executable binary for command examples
//   - InstructionsFlagName: The formatted instructions flag name (e.g., "--instructions")
//   - ConfigFlagName: The formatted config flag name (e.g., "--config")
//   - APIKeyFlagName: The formatted API key flag name (e.g., "--api-key")
//   - LogLevelFlagName: The formatted log level flag name (e.g., "--log-level")
//   - HTTPFlagName: The formatted HTTP address flag name (e.g., "--http")
//   - HelpFlagName: The formatted help flag name (e.g., "--help")
type cliHelpData struct {
	ExeName              string
	InstructionsFlagName string
	ConfigFlagName       string
	APIKeyFlagName       string
	LogLevelFlagName     string
	HTTPFlagName         string
	HelpFlagName         string
}

// Flag names shared by BuildRootCommand and extractFlagNames.
const (
	flagInstructions = "instructions"
	flagConfig       = "config"
	flagAPIKey       = "api-key"
	flagLogLevel     = "log-level"
	flagHTTP         = "http"
	flagHelp         = "help"
)

// CLIFramework integrates Cobra CLI with MCP server capabilities.
//
// Key features:
//   - Dynamic executable naming based on actual binary path (not hardcoded)
//   - [Gopls-style] --instructions flag printing the instructions sent to MCP clients
//   - Configuration file support via --config flag or MCP_SSLMATE_CONFIG_FILE environment variable
//   - Default MCP server startup on stdio when no arguments are provided
//   - Streamable HTTP transport via --http
//   - One-shot "search" subcommand sharing the server's validation and error envelope
//
// [Gopls-style]: https://tip.golang.org/gopls/features/mcp#instructions-to-the-model
type CLIFramework struct {
	configFile   string
	apiKey       string
	logLevel     string
	httpAddr     string
	embed        templates.EmbedFS
	version      string
	instructions string
	stdin        io.Reader
}

// NewCLIFramework creates a new CLI framework instance with MCP server integration.
//
// Parameters:
//   - configFile: Path to the MCP server configuration file.
//     Can be overridden via --config flag or MCP_SSLMATE_CONFIG_FILE environment variable.
//   - deps: Server dependencies; Embed, Version and Instructions are used.
//     Empty Instructions are rendered from the built-in tools on demand.
//
// Returns:
//   - *CLIFramework: Initialized CLI framework ready for building commands.
//
// Configuration loading is deferred until a command runs so flags and
// environment variables are applied in order.
func NewCLIFramework(configFile string, deps ServerDependencies) *CLIFramework {
	embed := deps.Embed
	if embed == nil {
		embed = templates.MagicEmbed
	}
	return &CLIFramework{
		configFile:   configFile,
		embed:        embed,
		version:      deps.Version,
		instructions: deps.Instructions,
		stdin:        os.Stdin,
	}
}

// BuildRootCommand creates the root Cobra command with integrated MCP server capabilities.
//
// Command behavior:
//   - With --instructions: Displays the MCP instructions and exits
//   - With the search subcommand: Runs one search and prints a table or JSON
//   - Without arguments: Starts the MCP server (stdio, or HTTP with --http)
//
// [gopls-style]: https://tip.golang.org/gopls/features/mcp#instructions-to-the-model
func (cf *CLIFramework) BuildRootCommand() *cobra.Command {
	// Use cross-platform executable name extraction for consistent UX
	exeName := posix.GetExecutableName()

	rootCmd := &cobra.Command{
		Use:          exeName,
		Short:        "SSLMate certificate transparency search over MCP",
		Version:      cf.version,
		SilenceUsage: true,
	}

	// Cobra normally adds this during Execute, but the help template needs its name now
	rootCmd.Flags().BoolP(flagHelp, "h", false, "help for "+exeName)

	var showInstructions bool
	rootCmd.PersistentFlags().BoolVar(&showInstructions, flagInstructions, false, "print the instructions sent to MCP clients")
	rootCmd.PersistentFlags().StringVar(&cf.configFile, flagConfig, cf.configFile, "path to MCP server configuration file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&cf.apiKey, flagAPIKey, "", "SSLMate API key (overrides SSLMATE_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&cf.logLevel, flagLogLevel, "", "log level: debug, info, warn, error or silent (overrides LOG_LEVEL)")
	rootCmd.Flags().StringVar(&cf.httpAddr, flagHTTP, "", "serve streamable HTTP on this address instead of stdio")

	data := extractFlagNames(rootCmd)
	data.ExeName = exeName

	longDesc, examples, err := cf.loadAndExecuteCLIHelpTemplate(data)
	if err != nil {
		// Template processing failures are critical errors during command building
		panic(fmt.Sprintf("failed to process CLI help template: %v", err))
	}
	rootCmd.Long = longDesc
	rootCmd.Example = examples

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if showInstructions {
			return cf.printInstructions(cmd.OutOrStdout())
		}
		if len(args) > 0 {
			return fmt.Errorf("unexpected arguments: %s for %q", strings.Join(args, " "), exeName)
		}
		return cf.startMCPServer(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	}

	rootCmd.AddCommand(cf.newSearchCommand())

	return rootCmd
}

// loadAndExecuteCLIHelpTemplate renders cli_help.md and splits it into the
// Long description and the Examples section.
func (cf *CLIFramework) loadAndExecuteCLIHelpTemplate(data cliHelpData) (longDesc, examples string, err error) {
	templateBytes, err := cf.embed.ReadFile("cli_help.md")
	if err != nil {
		return "", "", fmt.Errorf("failed to load CLI help template: %w", err)
	}

	tmpl, err := template.New("cli_help").Option("missingkey=error").Parse(string(templateBytes))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse CLI help template: %w", err)
	}

	var result strings.Builder
	if err := tmpl.Execute(&result, data); err != nil {
		return "", "", fmt.Errorf("failed to execute CLI help template: %w", err)
	}

	return cf.parseTemplateResult(result.String())
}

// parseTemplateResult parses the template execution result to extract Long description and Examples.
// It looks for the "## Examples" marker and splits the content accordingly.
//
// Parameters:
//   - templateResult: The rendered template output as a string
//
// Returns:
//   - longDesc: The Long description text (everything before "## Examples")
//   - examples: The Examples section text (everything after "## Examples")
//   - err: Parsing errors if the template format is invalid
func (cf *CLIFramework) parseTemplateResult(templateResult string) (longDesc, examples string, err error) {
	examplesMarker := "## Examples"
	markerIndex := strings.Index(templateResult, examplesMarker)
	if markerIndex == -1 {
		return "", "", fmt.Errorf("CLI help template has invalid format - missing '## Examples' section")
	}

	// Find the start of the line containing "## Examples"
	lineStart := strings.LastIndex(templateResult[:markerIndex], "\n")
	if lineStart == -1 {
		lineStart = 0
	} else {
		lineStart++
	}

	// Find the end of the line containing "## Examples"
	lineEnd := strings.Index(templateResult[markerIndex:], "\n")
	if lineEnd == -1 {
		lineEnd = len(templateResult) - markerIndex
	}
	lineEnd += markerIndex

	longDesc = strings.TrimSpace(templateResult[:lineStart])
	examples = strings.TrimSpace(templateResult[lineEnd:])

	return longDesc, examples, nil
}

// extractFlagNames looks up the registered flags and formats them with the "--" prefix,
// so the help text always matches the actual flag names.
// A flag that cannot be found falls back to its default name.
func extractFlagNames(rootCmd *cobra.Command) cliHelpData {
	name := func(f *pflag.Flag, fallback string) string {
		if f != nil {
			return "--" + f.Name
		}
		return "--" + fallback
	}
	persistent := rootCmd.PersistentFlags()
	local := rootCmd.Flags()

	return cliHelpData{
		InstructionsFlagName: name(persistent.Lookup(flagInstructions), flagInstructions),
		ConfigFlagName:       name(persistent.Lookup(flagConfig), flagConfig),
		APIKeyFlagName:       name(persistent.Lookup(flagAPIKey), flagAPIKey),
		LogLevelFlagName:     name(persistent.Lookup(flagLogLevel), flagLogLevel),
		HTTPFlagName:         name(local.Lookup(flagHTTP), flagHTTP),
		HelpFlagName:         name(local.Lookup(flagHelp), flagHelp),
	}
}

// runOptions collects the persistent flag values.
func (cf *CLIFramework) runOptions() RunOptions {
	return RunOptions{
		ConfigFile: cf.configFile,
		APIKey:     cf.apiKey,
		LogLevel:   cf.logLevel,
		HTTPAddr:   cf.httpAddr,
	}
}

// startMCPServer starts the MCP server directly without requiring a 'server' subcommand.
//
// Signal handling:
//   - Intercepts SIGINT (Ctrl+C) and SIGTERM signals
//   - Uses context cancellation for graceful shutdown
//
// Returns:
//   - nil: When the server shuts down gracefully due to signal interruption
//   - error: Configuration loading, server building or transport errors
func (cf *CLIFramework) startMCPServer(parent context.Context, stdout, stderr io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}

	l := logger.NewCLILogger()
	l.SetOutput(stderr)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			// Clear the line (including any ^C) and show clean shutdown message
			l.Printf("\rReceived signal %s, initiating graceful shutdown...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return Serve(ctx, cf.version, cf.runOptions(), cf.stdin, stdout, stderr)
}

// printInstructions writes the instructions MCP clients receive, similar to [gopls].
//
// [gopls]: https://tip.golang.org/gopls/features/mcp#instructions-to-the-model
func (cf *CLIFramework) printInstructions(w io.Writer) error {
	instructions := cf.instructions
	if instructions == "" {
		var err error
		if instructions, err = DefaultInstructions(); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, instructions)
	return err
}

// searchFlags holds the flags of the search subcommand.
type searchFlags struct {
	includeSubdomains bool
	includeExpired    bool
	limit             int
	json              bool
}

// newSearchCommand builds "search <domain>", a one-shot search_certificates call.
func (cf *CLIFramework) newSearchCommand() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search <domain>",
		Short: "Search certificate transparency logs for a domain and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs := map[string]any{
				argDomain:            args[0],
				argIncludeSubdomains: flags.includeSubdomains,
				argIncludeExpired:    flags.includeExpired,
			}
			if cmd.Flags().Changed("limit") {
				toolArgs[argLimit] = flags.limit
			}
			return cf.runSearch(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), toolArgs, flags.json)
		},
	}

	cmd.Flags().BoolVar(&flags.includeSubdomains, "include-subdomains", false, "also match every subdomain")
	cmd.Flags().BoolVar(&flags.includeExpired, "include-expired", false, "include expired certificates")
	cmd.Flags().IntVar(&flags.limit, "limit", ctsearch.DefaultLimit,
		fmt.Sprintf("maximum number of certificates (%d to %d); defaults to defaults.limit from the configuration", ctsearch.MinLimit, ctsearch.MaxLimit))
	cmd.Flags().BoolVar(&flags.json, "json", false, "print the raw JSON result instead of a table")

	return cmd
}

// runSearch resolves the configuration, invokes search_certificates through a
// [Dispatcher] and renders the outcome. A failed search prints the error
// envelope and returns the [ToolError].
func (cf *CLIFramework) runSearch(ctx context.Context, stdout, stderr io.Writer, args map[string]any, asJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	config, err := resolveConfig(cf.runOptions())
	if err != nil {
		return err
	}

	l := logger.NewCLILogger()
	l.SetOutput(stderr)
	l.SetLevel(config.level())

	if _, ok := args[argLimit]; !ok {
		args[argLimit] = config.Defaults.Limit
	}

	client := ctsearch.NewClient(config.ClientOptions(cf.version, l))
	d, err := NewDispatcher(DispatcherConfig{
		Logger:  l,
		Secrets: []string{config.Upstream.APIKey},
	}, createTools(client)...)
	if err != nil {
		return err
	}

	result := d.Invoke(ctx, toolSearchCertificates, args)
	if result.IsError() {
		fmt.Fprintln(stdout, result.Text())
		return result.Error
	}

	if asJSON {
		_, err := fmt.Fprintln(stdout, result.Text())
		return err
	}

	sr, ok := result.Payload.(*ctsearch.SearchResult)
	if !ok {
		return errors.New("unexpected search result type")
	}
	_, err = io.WriteString(stdout, renderSearchTable(sr))
	return err
}

// renderSearchTable formats a search result as a markdown table followed by a summary line.
func renderSearchTable(sr *ctsearch.SearchResult) string {
	var buf bytes.Buffer

	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: true})),
	)
	table.Header([]string{"ID", "DNS Names", "Issuer", "Not Before", "Not After", "Expired"})

	rows := make([][]string, 0, len(sr.Records))
	for _, r := range sr.Records {
		rows = append(rows, []string{
			r.ID,
			strings.Join(r.DNSNames, ", "),
			r.Issuer,
			r.NotBefore.UTC().Format(time.RFC3339),
			r.NotAfter.UTC().Format(time.RFC3339),
			fmt.Sprintf("%t", r.IsExpired),
		})
	}
	table.Bulk(rows)
	table.Render()

	fmt.Fprintf(&buf, "\n%d certificate(s) for %s (limit %d)\n", sr.Count, sr.Query.Domain, sr.EffectiveLimit)
	return buf.String()
}
