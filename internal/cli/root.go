// Package cli implements the tts-editor command line: one-shot commands over
// the persisted projects and an interactive shell that keeps the engine warm.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
)

// ErrNoProject indicates a command that needs an open project.
var ErrNoProject = errors.New("no project open: pass --project or run 'project open'")

// SessionOpener opens the session commands operate on.
type SessionOpener func(ctx context.Context, opts *RootOptions, errOut io.Writer) (*Session, error)

// sessionHolder is shared by every command tree built over the same options.
type sessionHolder struct {
	open    SessionOpener
	session *Session
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string
	ConfigPath string
	Project    string

	sessions *sessionHolder
}

// NewRootOptions returns options that open sessions from the configuration.
func NewRootOptions() *RootOptions {
	return NewRootOptionsWith(openSession)
}

// NewRootOptionsWith returns options that open sessions with open.
func NewRootOptionsWith(open SessionOpener) *RootOptions {
	return &RootOptions{
		Verbose:    false,
		Format:     FormatText,
		ConfigPath: "",
		Project:    "",
		sessions:   &sessionHolder{open: open, session: nil},
	}
}

// Session returns the open session, opening it on first use. A session
// opened with --project has that project, given by id or name, loaded.
func (o *RootOptions) Session(cmd *cobra.Command) (*Session, error) {
	if o.sessions.session != nil {
		return o.sessions.session, nil
	}

	session, err := o.sessions.open(cmd.Context(), o, cmd.ErrOrStderr())
	if err != nil {
		return nil, &ExitError{Code: ExitFailure, Message: "failed to open session", Err: err}
	}

	o.sessions.session = session

	if o.Project != "" && session.State.Project() == nil {
		id, resolveErr := resolveProject(session.State.Settings(), o.Project)
		if resolveErr != nil {
			return nil, resolveErr
		}

		err = session.State.LoadProject(cmd.Context(), id)
		if err != nil {
			return nil, err
		}
	}

	return session, nil
}

// ProjectSession is Session for commands that need an open project.
func (o *RootOptions) ProjectSession(cmd *cobra.Command) (*Session, error) {
	session, err := o.Session(cmd)
	if err != nil {
		return nil, err
	}

	if session.State.Project() == nil {
		return nil, ErrNoProject
	}

	return session, nil
}

// EngineSession is ProjectSession with the engine started.
func (o *RootOptions) EngineSession(cmd *cobra.Command) (*Session, error) {
	session, err := o.ProjectSession(cmd)
	if err != nil {
		return nil, err
	}

	err = session.StartEngine(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}

	return session, nil
}

// CloseSession closes the session if one was opened.
func (o *RootOptions) CloseSession() error {
	session := o.sessions.session
	if session == nil {
		return nil
	}

	o.sessions.session = nil

	return session.Close()
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// NewRootCommand creates the root command over opts. Flag defaults are taken
// from opts, so a tree built over a copy inherits its settings.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tts-editor",
		Short: "Segment voicing editor",
		Long: `Edit projects of text segments and voice them with the speech engine.

Projects, presets, the user dictionary and keyboard shortcuts are persisted in
the configured store. Engine work is delegated to an engine worker over NATS.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if !isValidFormat(opts.Format) {
				return usageError("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}

			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", opts.Verbose, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", opts.Format, "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", opts.ConfigPath, "path to a TOML configuration file")
	cmd.PersistentFlags().StringVarP(&opts.Project, "project", "p", opts.Project, "id of the project to open")

	cmd.AddCommand(NewProjectCommand(opts))
	cmd.AddCommand(NewSegmentCommand(opts))
	cmd.AddCommand(NewUndoCommand(opts))
	cmd.AddCommand(NewRedoCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewPlayCommand(opts))
	cmd.AddCommand(NewPlayAllCommand(opts))
	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewSaveAllCommand(opts))
	cmd.AddCommand(NewDictCommand(opts))
	cmd.AddCommand(NewPresetCommand(opts))
	cmd.AddCommand(NewLicenseCommand(opts))
	cmd.AddCommand(NewShortcutCommand(opts))
	cmd.AddCommand(NewWorkerCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, opts *RootOptions, args []string, in io.Reader, out, errOut io.Writer) int {
	cmd := NewRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	err := cmd.ExecuteContext(ctx)
	err = errors.Join(err, opts.CloseSession())

	if err != nil {
		formatter := &OutputFormatter{Format: opts.Format, Writer: out, ErrWriter: errOut, Verbose: opts.Verbose}
		if !isValidFormat(opts.Format) {
			formatter.Format = FormatText
		}

		_ = formatter.Error(err)
	}

	return GetExitCode(err)
}
