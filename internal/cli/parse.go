package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cronrun/internal/callexpr"
	"github.com/roach88/cronrun/internal/registry"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	StrictNesting bool
}

// ParsedArg is one decoded argument.
type ParsedArg struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// ParsedCall is the dry-run view of one call expression.
type ParsedCall struct {
	Raw      string      `json:"raw"`
	Service  string      `json:"service,omitempty"`
	Function string      `json:"function,omitempty"`
	Args     []ParsedArg `json:"args"`
	Allowed  bool        `json:"allowed"`
	Error    string      `json:"error,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <call>...",
		Short: "Parse call expressions without running them",
		Long: `Parse call expressions and show how each argument decodes.

Nothing is invoked. For each call the service, function and decoded
arguments are printed along with whether the service is allow-listed.
Arguments that fall back to text are reported as warnings.

Exit codes:
  0 - every call parsed and names an allowed service
  1 - at least one call is malformed or names a disallowed service

Example:
  cronrun parse "TestService.test1(1, 'a', true, {a:1})"
  cronrun parse --format json "OrderService.sync(10)"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.StrictNesting, "strict", false, "reject unbalanced brackets (overrides parser.strict_nesting)")

	return cmd
}

func runParse(opts *ParseOptions, exprs []string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	strict := cfg.Parser.StrictNesting
	if cmd.Flags().Changed("strict") {
		strict = opts.StrictNesting
	}
	reg := registry.New(cfg.AllowedServices)

	calls := make([]ParsedCall, 0, len(exprs))
	invalid := 0
	for _, raw := range exprs {
		call := parseOne(raw, strict, reg)
		if call.Error != "" || !call.Allowed {
			invalid++
		}
		calls = append(calls, call)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		if err := formatter.Success(calls); err != nil {
			return err
		}
	} else {
		for _, c := range calls {
			writeParsedCall(cmd.OutOrStdout(), c)
		}
	}

	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d calls invalid", invalid, len(calls)))
	}
	return nil
}

func parseOne(raw string, strict bool, reg *registry.Registry) ParsedCall {
	call := ParsedCall{Raw: raw, Args: []ParsedArg{}}
	p := callexpr.New(
		callexpr.WithStrictNesting(strict),
		callexpr.WithDecodeErrorHandler(func(_ string, err error) {
			call.Warnings = append(call.Warnings, err.Error())
		}),
	)

	expr, err := p.Parse(raw)
	if err != nil {
		call.Error = err.Error()
		return call
	}

	call.Service = expr.ServiceName
	call.Function = expr.FunctionName
	call.Allowed = reg.IsAllowed(expr.ServiceName)
	if !call.Allowed {
		call.Error = (&registry.UnauthorizedServiceError{Service: expr.ServiceName}).Error()
	}
	for _, a := range expr.Args {
		call.Args = append(call.Args, ParsedArg{Kind: string(a.Kind()), Value: a.String()})
	}
	return call
}

func writeParsedCall(w io.Writer, c ParsedCall) {
	fmt.Fprintln(w, c.Raw)
	if c.Service == "" {
		fmt.Fprintf(w, "  error:    %s\n", c.Error)
		return
	}

	allowed := "allowed"
	if !c.Allowed {
		allowed = "NOT allowed"
	}
	fmt.Fprintf(w, "  service:  %s (%s)\n", c.Service, allowed)
	fmt.Fprintf(w, "  function: %s\n", c.Function)
	for i, a := range c.Args {
		fmt.Fprintf(w, "  arg %d:    %-10s %s\n", i, a.Kind, a.Value)
	}
	for _, warn := range c.Warnings {
		fmt.Fprintf(w, "  warning:  %s\n", warn)
	}
}
