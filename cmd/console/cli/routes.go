package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/riordi80/vocational-training-final-project/internal/guard"
)

// RoutesOptions defines available flags for the routes command.
type RoutesOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// RouteSummary is one manifest entry in JSON output.
type RouteSummary struct {
	guard.Rule
	Requirement string `json:"requirement"`
}

// RoutesCommand prints the route manifest.
func RoutesCommand(manifest []byte, opts RoutesOptions) int {
	m, err := guard.ParseManifest(manifest)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "routes: %v\n", err)
		return 1
	}
	rules := m.Rules()
	if opts.JSONOutput {
		out := make([]RouteSummary, 0, len(rules))
		for _, rule := range rules {
			out = append(out, RouteSummary{Rule: rule, Requirement: rule.Describe()})
		}
		if err := json.NewEncoder(opts.Stdout).Encode(out); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "routes: encode json: %v\n", err)
			return 1
		}
		return 0
	}

	tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PATTERN\tMETHODS\tREQUIRES\tTITLE")
	for _, rule := range rules {
		methods := strings.Join(rule.Methods, ",")
		if methods == "" {
			methods = "*"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rule.Pattern, methods, rule.Describe(), rule.Title)
	}
	if err := tw.Flush(); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "routes: %v\n", err)
		return 1
	}
	return 0
}
