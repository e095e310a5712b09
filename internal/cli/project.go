package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/model"
)

// ErrAmbiguousProject indicates a project name shared by several projects.
var ErrAmbiguousProject = errors.New("project name is ambiguous")

// resolveProject finds a project by id or, failing that, by unique name.
func resolveProject(settings *model.Settings, ref string) (string, error) {
	if settings.Info(ref) != nil {
		return ref, nil
	}

	var found []string

	for _, info := range settings.ProjectInfo {
		if info.Name == ref {
			found = append(found, info.ID)
		}
	}

	switch len(found) {
	case 0:
		return "", core.NotFoundf("project %s", ref)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%w: %q matches %d projects", ErrAmbiguousProject, ref, len(found))
	}
}

// NewProjectCommand creates the project command group.
func NewProjectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	cmd.AddCommand(
		newProjectListCommand(rootOpts),
		newProjectAddCommand(rootOpts),
		newProjectOpenCommand(rootOpts),
		newProjectCloseCommand(rootOpts),
		newProjectRemoveCommand(rootOpts),
		newProjectRenameCommand(rootOpts),
		newProjectExportCommand(rootOpts),
		newProjectImportCommand(rootOpts),
	)

	return cmd
}

func newProjectListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects, most recently opened first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := rootOpts.Session(cmd)
			if err != nil {
				return err
			}

			return rootOpts.formatter(cmd).Success(newProjectList(session.State.Settings(), session.State.Project()))
		},
	}
}

func newProjectAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Create a project and open it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rootOpts.Session(cmd)
			if err != nil {
				return err
			}

			id, err := session.State.AddProject(args[0])
			if err != nil {
				return err
			}

			message := messagef("Created project %s", args[0])
			message.ID = id

			return rootOpts.formatter(cmd).Success(message)
		},
	}
}

func newProjectOpenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open <id|name>",
		Short: "Open a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rootOpts.Session(cmd)
			if err != nil {
				return err
			}

			id, err := resolveProject(session.State.Settings(), args[0])
			if err != nil {
				return err
			}

			err = session.State.LoadProject(cmd.Context(), id)
			if err != nil {
				return err
			}

			project := session.State.Project()

			return rootOpts.formatter(cmd).Success(newSegmentList(project, session.Editor.CachedAudio()))
		},
	}
}

func newProjectCloseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close the open project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := rootOpts.Session(cmd)
			if err != nil {
				return err
			}

			session.State.UnloadProject()

			return rootOpts.formatter(cmd).Success(messagef("Project closed"))
		},
	}
}

func newProjectRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id|name>",
		Aliases: []string{"rm"},
		Short:   "Delete a project",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rootOpts.Session(cmd)
			if err != nil {
				return err
			}

			id, err := resolveProject(session.State.Settings(), args[0])
			if err != nil {
				return err
			}

			err = session.State.RemoveProject(cmd.Context(), id)
			if err != nil {
				return err
			}

			return rootOpts.formatter(cmd).Success(messagef("Removed project %s", args[0]))
		},
	}
}

func newProjectRenameCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id|name> <new-name>",
		Short: "Rename a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rootOpts.Session(cmd)
			if err != nil {
				return err
			}

			id, err := resolveProject(session.State.Settings(), args[0])
			if err != nil {
				return err
			}

			err = session.State.RenameProject(id, args[1])
			if err != nil {
				return err
			}

			return rootOpts.formatter(cmd).Success(messagef("Renamed project to %s", args[1]))
		},
	}
}

func newProjectExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write settings and every project to a bundle file",
		Long: `Write settings and every project to a JSON bundle file.

Projects that cannot be read are left out and reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rootOpts.Session(cmd)
			if err != nil {
				return err
			}

			data, err := session.State.ExportAll(cmd.Context())
			if err != nil {
				return err
			}

			err = os.WriteFile(args[0], data, 0o600)
			if err != nil {
				return fmt.Errorf("failed to write bundle %s: %w", args[0], err)
			}

			return rootOpts.formatter(cmd).Success(messagef("Exported to %s", args[0]))
		},
	}
}

func newProjectImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace all stored data with a bundle file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return usageError("failed to read bundle %s: %v", args[0], err)
			}

			session, err := rootOpts.Session(cmd)
			if err != nil {
				return err
			}

			err = session.State.ImportAll(cmd.Context(), data)
			if err != nil {
				return err
			}

			settings := session.State.Settings()

			return rootOpts.formatter(cmd).Success(messagef("Imported %d projects", len(settings.ProjectInfo)))
		},
	}
}
