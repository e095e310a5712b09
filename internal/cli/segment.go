package cli

import (
	"errors"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/model"
)

// ErrNotAnalyzed indicates a segment without phonetic units.
var ErrNotAnalyzed = errors.New("segment is not analyzed")

// resolveSegment finds a segment by id or by its 1-based position.
func resolveSegment(project *model.Project, ref string) (model.Segment, error) {
	segment, _ := project.Segment(ref)
	if segment != nil {
		return *segment, nil
	}

	position, err := strconv.Atoi(ref)
	if err == nil && position >= 1 && position <= len(project.TextData) {
		return project.TextData[position-1], nil
	}

	return model.Segment{}, core.NotFoundf("segment %s", ref)
}

// segmentCommand builds a subcommand that runs against one resolved segment.
func segmentCommand(
	rootOpts *RootOptions,
	use, short string,
	args cobra.PositionalArgs,
	run func(cmd *cobra.Command, session *Session, segment model.Segment, args []string) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rootOpts.ProjectSession(cmd)
			if err != nil {
				return err
			}

			segment, err := resolveSegment(session.State.Project(), args[0])
			if err != nil {
				return err
			}

			return run(cmd, session, segment, args[1:])
		},
	}
}

// NewSegmentCommand creates the segment command group.
func NewSegmentCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "segment",
		Aliases: []string{"seg"},
		Short:   "Edit the segments of the open project",
		Long: `Edit the segments of the open project.

Segments are addressed by id or by 1-based position.`,
	}

	cmd.AddCommand(
		newSegmentListCommand(rootOpts),
		newSegmentShowCommand(rootOpts),
		newSegmentAddCommand(rootOpts),
		newSegmentRemoveCommand(rootOpts),
		newSegmentMoveCommand(rootOpts, "up", "Move a segment one place up"),
		newSegmentMoveCommand(rootOpts, "down", "Move a segment one place down"),
		newSegmentTextCommand(rootOpts),
		newSegmentSpeakerCommand(rootOpts),
		newSegmentConfigCommand(rootOpts),
		newSegmentAccentCommand(rootOpts),
		newSegmentLengthCommand(rootOpts),
		newSegmentKanaCommand(rootOpts),
	)

	return cmd
}

func showSegments(cmd *cobra.Command, rootOpts *RootOptions, session *Session) error {
	return rootOpts.formatter(cmd).Success(newSegmentList(session.State.Project(), session.Editor.CachedAudio()))
}

func showSegment(cmd *cobra.Command, rootOpts *RootOptions, session *Session, id string) error {
	segment, _ := session.State.Project().Segment(id)
	if segment == nil {
		return core.NotFoundf("segment %s", id)
	}

	return rootOpts.formatter(cmd).Success(SegmentDetail{Segment: *segment})
}

func newSegmentListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List segments",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := rootOpts.ProjectSession(cmd)
			if err != nil {
				return err
			}

			return showSegments(cmd, rootOpts, session)
		},
	}
}

func newSegmentShowCommand(rootOpts *RootOptions) *cobra.Command {
	return segmentCommand(rootOpts, "show <segment>", "Show a segment with its phonetic units", cobra.ExactArgs(1),
		func(cmd *cobra.Command, session *Session, segment model.Segment, _ []string) error {
			return showSegment(cmd, rootOpts, session, segment.ID)
		})
}

func newSegmentAddCommand(rootOpts *RootOptions) *cobra.Command {
	var after string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an empty segment",
		Long: `Add an empty segment after --after, or at the end.

The new segment takes the speaker and synthesis config of the one before it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := rootOpts.ProjectSession(cmd)
			if err != nil {
				return err
			}

			project := session.State.Project()
			anchor := ""

			switch {
			case after != "":
				segment, resolveErr := resolveSegment(project, after)
				if resolveErr != nil {
					return resolveErr
				}

				anchor = segment.ID
			case len(project.TextData) > 0:
				anchor = project.TextData[len(project.TextData)-1].ID
			}

			id, err := session.Editor.AddSegment(anchor)
			if err != nil {
				return err
			}

			message := messagef("Added segment")
			message.ID = id

			return rootOpts.formatter(cmd).Success(message)
		},
	}

	cmd.Flags().StringVar(&after, "after", "", "segment to insert after")

	return cmd
}

func newSegmentRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := segmentCommand(rootOpts, "remove <segment>", "Remove a segment", cobra.ExactArgs(1),
		func(cmd *cobra.Command, session *Session, segment model.Segment, _ []string) error {
			err := session.Editor.RemoveSegment(segment.ID)
			if err != nil {
				return err
			}

			return showSegments(cmd, rootOpts, session)
		})
	cmd.Aliases = []string{"rm"}

	return cmd
}

func newSegmentMoveCommand(rootOpts *RootOptions, direction, short string) *cobra.Command {
	return segmentCommand(rootOpts, direction+" <segment>", short, cobra.ExactArgs(1),
		func(cmd *cobra.Command, session *Session, segment model.Segment, _ []string) error {
			move := session.Editor.MoveUp
			if direction == "down" {
				move = session.Editor.MoveDown
			}

			err := move(segment.ID)
			if err != nil {
				return err
			}

			return showSegments(cmd, rootOpts, session)
		})
}

func newSegmentTextCommand(rootOpts *RootOptions) *cobra.Command {
	var skipAnalysis bool

	cmd := &cobra.Command{
		Use:   "text <segment> <text>...",
		Short: "Set the text of a segment and analyze it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				session *Session
				err     error
			)

			if skipAnalysis {
				session, err = rootOpts.ProjectSession(cmd)
			} else {
				session, err = rootOpts.EngineSession(cmd)
			}

			if err != nil {
				return err
			}

			segment, err := resolveSegment(session.State.Project(), args[0])
			if err != nil {
				return err
			}

			pending, err := session.Editor.SetText(cmd.Context(), segment.ID, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}

			err = pending.Wait(cmd.Context())
			if err != nil {
				return err
			}

			return showSegment(cmd, rootOpts, session, segment.ID)
		},
	}

	cmd.Flags().BoolVar(&skipAnalysis, "no-analyze", false, "set the text without starting the engine")

	return cmd
}

func newSegmentSpeakerCommand(rootOpts *RootOptions) *cobra.Command {
	names := make([]string, 0, len(model.Speakers))
	for _, speaker := range model.Speakers {
		names = append(names, speaker.DisplayName())
	}

	return segmentCommand(rootOpts, "speaker <segment> <"+strings.Join(names, "|")+">",
		"Set the speaker of a segment", cobra.ExactArgs(2),
		func(cmd *cobra.Command, session *Session, segment model.Segment, args []string) error {
			speaker, err := parseSpeaker(args[0])
			if err != nil {
				return usageError("%v", err)
			}

			err = session.Editor.SetSpeaker(segment.ID, speaker)
			if err != nil {
				return err
			}

			return showSegment(cmd, rootOpts, session, segment.ID)
		})
}

func newSegmentConfigCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		config model.SynthConfig
		preset string
	)

	cmd := segmentCommand(rootOpts, "config <segment>", "Change the synthesis config of a segment", cobra.ExactArgs(1),
		func(cmd *cobra.Command, session *Session, segment model.Segment, _ []string) error {
			if preset != "" {
				err := session.Editor.ApplyPreset(segment.ID, preset)
				if err != nil {
					return err
				}

				return showSegment(cmd, rootOpts, session, segment.ID)
			}

			next := segment.SynthConfig
			flags := cmd.Flags()

			if flags.Changed("speed") {
				next.Speed = config.Speed
			}

			if flags.Changed("volume") {
				next.Volume = config.Volume
			}

			if flags.Changed("pitch") {
				next.Pitch = config.Pitch
			}

			if flags.Changed("whisper") {
				next.Whisper = config.Whisper
			}

			err := session.Editor.SetSynthConfig(segment.ID, next)
			if err != nil {
				return err
			}

			return showSegment(cmd, rootOpts, session, segment.ID)
		})

	defaults := model.DefaultSynthConfig()
	cmd.Flags().Float64Var(&config.Speed, "speed", defaults.Speed, "speaking speed")
	cmd.Flags().Float64Var(&config.Volume, "volume", defaults.Volume, "volume")
	cmd.Flags().Float64Var(&config.Pitch, "pitch", defaults.Pitch, "pitch")
	cmd.Flags().BoolVar(&config.Whisper, "whisper", defaults.Whisper, "whisper")
	cmd.Flags().StringVar(&preset, "preset", "", "apply the preset with this id instead")
	cmd.MarkFlagsMutuallyExclusive("preset", "speed")
	cmd.MarkFlagsMutuallyExclusive("preset", "volume")
	cmd.MarkFlagsMutuallyExclusive("preset", "pitch")
	cmd.MarkFlagsMutuallyExclusive("preset", "whisper")

	return cmd
}

func newSegmentAccentCommand(rootOpts *RootOptions) *cobra.Command {
	return segmentCommand(rootOpts, "accent <segment> <unit> <high|low>",
		"Set the accent of one phonetic unit", cobra.ExactArgs(3),
		func(cmd *cobra.Command, session *Session, segment model.Segment, args []string) error {
			unit, err := parseUnitIndex(args[0])
			if err != nil {
				return err
			}

			accent, err := parseAccent(args[1])
			if err != nil {
				return usageError("%v", err)
			}

			err = session.Editor.SetAccent(segment.ID, unit, accent)
			if err != nil {
				return err
			}

			return showSegment(cmd, rootOpts, session, segment.ID)
		})
}

func newSegmentLengthCommand(rootOpts *RootOptions) *cobra.Command {
	return segmentCommand(rootOpts, "length <segment> <unit> <total>",
		"Rescale one phonetic unit to a total length", cobra.ExactArgs(3),
		func(cmd *cobra.Command, session *Session, segment model.Segment, args []string) error {
			unit, err := parseUnitIndex(args[0])
			if err != nil {
				return err
			}

			total, err := strconv.ParseFloat(args[1], 64)
			if err != nil || total < 0 {
				return usageError("length %q is not a non-negative number", args[1])
			}

			err = session.Editor.SetLength(segment.ID, unit, total)
			if err != nil {
				return err
			}

			return showSegment(cmd, rootOpts, session, segment.ID)
		})
}

func newSegmentKanaCommand(rootOpts *RootOptions) *cobra.Command {
	return segmentCommand(rootOpts, "kana <segment> <reading>",
		"Replace the phonetic units of an analyzed segment", cobra.ExactArgs(2),
		func(cmd *cobra.Command, session *Session, segment model.Segment, args []string) error {
			moras, err := parseReading(args[0])
			if err != nil {
				return usageError("%v", err)
			}

			units, err := respell(segment.KanaData, moras)
			if err != nil {
				return err
			}

			err = session.Editor.SetKanaData(segment.ID, units)
			if err != nil {
				return err
			}

			return showSegment(cmd, rootOpts, session, segment.ID)
		})
}

// respell pairs typed moras with the lengths of the units they replace. Extra
// moras reuse the lengths of the last unit.
func respell(current []model.PhoneticUnit, moras []model.DictMora) ([]model.KanaData, error) {
	if len(current) == 0 {
		return nil, ErrNotAnalyzed
	}

	units := make([]model.KanaData, 0, len(moras))
	for i, mora := range moras {
		source := current[min(i, len(current)-1)]
		units = append(units, model.KanaData{
			Kana:    mora.Kana,
			Accent:  mora.Accent,
			Lengths: append([]float64{}, source.Lengths...),
		})
	}

	return units, nil
}
