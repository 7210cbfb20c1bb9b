package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vizbridge/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Graphs []string          `json:"graphs,omitempty"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// ValidationIssue is one problem found in a graph definition.
type ValidationIssue struct {
	Graph   string `json:"graph,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <graphs-dir>",
		Short: "Validate graph definitions",
		Long: `Validate the CUE graph definitions in a directory.

Every entry under the top-level graph field is compiled and checked:
element ids, edge endpoints, combo references, state styles, layout,
behaviors and event declarations. All problems are reported, not only
the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, graphsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := LoadGraphs(graphsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, graphsDir)

	issues := validateGraphs(loadResult, formatter)
	for _, err := range loadErrors {
		issues = append(issues, loadIssue(err))
	}

	if len(issues) > 0 {
		return outputValidationErrors(formatter, issues)
	}
	return outputValidateSuccess(formatter, loadResult.Names())
}

// validateGraphs runs schema validation on every compiled graph.
func validateGraphs(result *LoadResult, formatter *OutputFormatter) []ValidationIssue {
	var issues []ValidationIssue
	for _, g := range result.Graphs {
		formatter.VerboseLog("Validating graph: %s", g.Name)
		for _, e := range compiler.Validate(g) {
			issues = append(issues, ValidationIssue{
				Graph:   g.Name,
				Field:   e.Field,
				Message: e.Message,
				Code:    e.Code,
			})
		}
	}
	return issues
}

func loadIssue(err error) ValidationIssue {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return ValidationIssue{
			Field:   "load",
			Message: loadErr.Message,
			Code:    loadErr.Code,
			Line:    loadErr.Line(),
		}
	}
	return ValidationIssue{Field: "load", Message: err.Error(), Code: ErrCodeGeneric}
}

// validateAndFirstError validates a single graph, returning the first
// problem as an error.
func validateAndFirstError(g *compiler.GraphSpec) error {
	if errs := compiler.Validate(g); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func outputValidateSuccess(formatter *OutputFormatter, graphs []string) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Graphs: graphs})
	}

	fmt.Fprintf(formatter.Writer, "✓ All graphs valid (%d)\n", len(graphs))
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, issues []ValidationIssue) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, issue := range issues {
		switch {
		case issue.Graph != "":
			fmt.Fprintf(formatter.Writer, "graph %s\n", issue.Graph)
		case issue.Line > 0:
			fmt.Fprintf(formatter.Writer, "line %d\n", issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", issue.Code, issue.Field, issue.Message)
	}
	return failure
}
