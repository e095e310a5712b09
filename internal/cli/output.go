package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{FormatText, FormatJSON, FormatYAML}

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// usageError reports a command used wrongly.
func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf(format, args...)}
}

// GetExitCode extracts the exit code from an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return ExitFailure
}

// Response is the envelope of structured output.
type Response struct {
	Status string `json:"status"          yaml:"status"`
	Data   any    `json:"data,omitempty"  yaml:"data,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// OutputFormatter writes command results in the selected format.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// Success writes data. Text output uses the value's String method when it
// has one.
func (f *OutputFormatter) Success(data any) error {
	switch f.Format {
	case FormatJSON:
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	case FormatYAML:
		return f.writeYAML(Response{Status: "ok", Data: data})
	}

	if data == nil {
		return nil
	}

	if stringer, ok := data.(fmt.Stringer); ok {
		_, err := fmt.Fprint(f.Writer, stringer.String())

		return err
	}

	_, err := fmt.Fprintln(f.Writer, data)

	return err
}

// Error writes a failure.
func (f *OutputFormatter) Error(err error) error {
	switch f.Format {
	case FormatJSON:
		return json.NewEncoder(f.Writer).Encode(Response{Status: "error", Error: err.Error()})
	case FormatYAML:
		return f.writeYAML(Response{Status: "error", Error: err.Error()})
	}

	_, writeErr := fmt.Fprintf(f.errWriter(), "Error: %v\n", err)

	return writeErr
}

// VerboseLog writes diagnostics to the error writer in verbose mode.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}

	_, _ = fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) writeYAML(value any) error {
	encoder := yaml.NewEncoder(f.Writer)
	encoder.SetIndent(2)

	err := encoder.Encode(value)
	if err != nil {
		return fmt.Errorf("failed to encode yaml output: %w", err)
	}

	return encoder.Close()
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}

	return f.Writer
}
