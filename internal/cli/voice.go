package cli

import (
	"github.com/spf13/cobra"

	"github.com/book-expert/tts-editor/internal/editor"
)

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	var queue bool

	cmd := &cobra.Command{
		Use:   "play <segment>",
		Short: "Voice a segment and play it",
		Long: `Voice a segment and play it.

The segment cuts short whatever is playing unless --queue is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rootOpts.EngineSession(cmd)
			if err != nil {
				return err
			}

			segment, err := resolveSegment(session.State.Project(), args[0])
			if err != nil {
				return err
			}

			pending, err := session.Editor.Play(cmd.Context(), segment.ID, !queue)

			return finishPlayback(cmd, rootOpts, session, pending, err)
		},
	}

	cmd.Flags().BoolVar(&queue, "queue", false, "play after the segments already queued")

	return cmd
}

// NewPlayAllCommand creates the play-all command.
func NewPlayAllCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "play-all",
		Short: "Voice and play every segment in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := rootOpts.EngineSession(cmd)
			if err != nil {
				return err
			}

			pending, err := session.Editor.PlayAll(cmd.Context())

			return finishPlayback(cmd, rootOpts, session, pending, err)
		},
	}
}

// finishPlayback waits for synthesis and then for the queue to drain.
func finishPlayback(cmd *cobra.Command, rootOpts *RootOptions, session *Session, pending *editor.Pending, err error) error {
	waitErr := pending.Wait(cmd.Context())
	if err != nil {
		return err
	}

	if waitErr != nil {
		return waitErr
	}

	formatter := rootOpts.formatter(cmd)
	formatter.VerboseLog("Playback %s", session.Editor.PlaybackState())

	err = session.Editor.WaitPlayback(cmd.Context())
	if err != nil {
		return err
	}

	return formatter.Success(messagef("Played"))
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "save <segment>",
		Short: "Voice a segment and save it as a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rootOpts.EngineSession(cmd)
			if err != nil {
				return err
			}

			project := session.State.Project()

			segment, err := resolveSegment(project, args[0])
			if err != nil {
				return err
			}

			target := exportDir(session, dir)

			pending, err := session.Editor.SaveAudio(cmd.Context(), segment.ID, target)
			if err != nil {
				return err
			}

			err = pending.Wait(cmd.Context())
			if err != nil {
				return err
			}

			_, index := project.Segment(segment.ID)

			return rootOpts.formatter(cmd).Success(
				messagef("Saved %s", editor.AudioFileName(index, len(project.TextData), segment)))
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory to save into (default from configuration)")

	return cmd
}

// NewSaveAllCommand creates the save-all command.
func NewSaveAllCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "save-all",
		Short: "Voice every segment and save them as numbered WAV files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := rootOpts.EngineSession(cmd)
			if err != nil {
				return err
			}

			target := exportDir(session, dir)

			pending, err := session.Editor.SaveAllAudio(cmd.Context(), target)
			waitErr := pending.Wait(cmd.Context())

			if err != nil {
				return err
			}

			if waitErr != nil {
				return waitErr
			}

			return rootOpts.formatter(cmd).Success(
				messagef("Saved %d files to %s", len(session.State.Project().TextData), target))
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory to save into (default from configuration)")

	return cmd
}

func exportDir(session *Session, dir string) string {
	if dir != "" {
		return dir
	}

	return session.Config.Paths.ExportDir
}
