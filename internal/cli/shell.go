package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
)

const shellPrompt = "tts-editor> "

// ErrUnterminatedQuote indicates a shell line with an open quote.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// NewShellCommand creates the interactive shell. Every line runs as a
// command against the same session, so the engine, the undo history and the
// audio cache survive between lines.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run commands interactively against one session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := rootOpts.Session(cmd)
			if err != nil {
				return err
			}

			return runShell(cmd, rootOpts)
		},
	}
}

func runShell(cmd *cobra.Command, rootOpts *RootOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	scanner := bufio.NewScanner(cmd.InOrStdin())

	for {
		if rootOpts.Format == FormatText {
			_, _ = io.WriteString(out, shellPrompt)
		}

		if !scanner.Scan() {
			break
		}

		args, err := splitLine(scanner.Text())
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)

			continue
		}

		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit":
			return nil
		case "shell":
			_, _ = fmt.Fprintln(errOut, "Error: already in the shell")

			continue
		}

		lineOpts := *rootOpts
		line := NewRootCommand(&lineOpts)
		line.SetArgs(args)
		line.SetIn(cmd.InOrStdin())
		line.SetOut(out)
		line.SetErr(errOut)

		err = line.ExecuteContext(ctx)
		if err != nil {
			_ = lineOpts.formatter(line).Error(err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	err := scanner.Err()
	if err != nil {
		return fmt.Errorf("failed to read shell input: %w", err)
	}

	return nil
}

// splitLine splits a shell line into words. Single and double quotes group
// words, and a backslash escapes the next character outside single quotes.
func splitLine(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		escaped bool
		inWord  bool
	)

	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)

			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case unicode.IsSpace(r):
			if inWord {
				args = append(args, current.String())
				current.Reset()

				inWord = false
			}
		default:
			current.WriteRune(r)

			inWord = true
		}
	}

	if quote != 0 || escaped {
		return nil, ErrUnterminatedQuote
	}

	if inWord {
		args = append(args, current.String())
	}

	return args, nil
}
