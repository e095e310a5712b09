package cli

import (
	"github.com/spf13/cobra"
)

func historyView(session *Session) HistoryView {
	index, length := session.State.HistoryPosition()

	return HistoryView{
		Index:   index,
		Length:  length,
		CanUndo: session.State.CanUndo(),
		CanRedo: session.State.CanRedo(),
	}
}

func newTravelCommand(rootOpts *RootOptions, use, short string, travel func(session *Session) (bool, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := rootOpts.ProjectSession(cmd)
			if err != nil {
				return err
			}

			moved, err := travel(session)
			if err != nil {
				return err
			}

			if !moved {
				rootOpts.formatter(cmd).VerboseLog("Nothing to %s", use)
			}

			return showSegments(cmd, rootOpts, session)
		},
	}
}

// NewUndoCommand creates the undo command. History lives only as long as the
// session, so undo is useful in the shell.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	return newTravelCommand(rootOpts, "undo", "Restore the previous snapshot of the project",
		func(session *Session) (bool, error) {
			return session.Editor.Undo()
		})
}

// NewRedoCommand creates the redo command.
func NewRedoCommand(rootOpts *RootOptions) *cobra.Command {
	return newTravelCommand(rootOpts, "redo", "Restore the next snapshot of the project",
		func(session *Session) (bool, error) {
			return session.Editor.Redo()
		})
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the undo history position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := rootOpts.ProjectSession(cmd)
			if err != nil {
				return err
			}

			return rootOpts.formatter(cmd).Success(historyView(session))
		},
	}
}
