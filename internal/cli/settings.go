package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/book-expert/tts-editor/internal/model"
)

// settingsCommand builds a subcommand that needs only the session.
func settingsCommand(
	rootOpts *RootOptions,
	use, short string,
	args cobra.PositionalArgs,
	run func(cmd *cobra.Command, session *Session, args []string) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rootOpts.Session(cmd)
			if err != nil {
				return err
			}

			return run(cmd, session, args)
		},
	}
}

// NewDictCommand creates the user dictionary command group.
func NewDictCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dict",
		Short: "Edit the user dictionary",
		Long: `Edit the user dictionary.

Readings are space-separated moras; a trailing ^ marks a high accent,
as in "ト ウ^ キョ^ ウ^".`,
	}

	list := settingsCommand(rootOpts, "list", "List dictionary entries", cobra.NoArgs,
		func(cmd *cobra.Command, session *Session, _ []string) error {
			return rootOpts.formatter(cmd).Success(newDictList(session.State.Settings().UserDict))
		})
	list.Aliases = []string{"ls"}

	var rename string

	set := settingsCommand(rootOpts, "set <word> <reading>", "Add or change a dictionary entry", cobra.ExactArgs(2),
		func(cmd *cobra.Command, session *Session, args []string) error {
			reading, err := parseReading(args[1])
			if err != nil {
				return usageError("%v", err)
			}

			err = session.Editor.SetDictEntry(args[0], reading, rename)
			if err != nil {
				return err
			}

			return rootOpts.formatter(cmd).Success(newDictList(session.State.Settings().UserDict))
		})
	set.Flags().StringVar(&rename, "replace", "", "existing word this entry replaces")

	remove := settingsCommand(rootOpts, "remove <word>", "Delete a dictionary entry", cobra.ExactArgs(1),
		func(cmd *cobra.Command, session *Session, args []string) error {
			err := session.Editor.RemoveDictEntry(args[0])
			if err != nil {
				return err
			}

			return rootOpts.formatter(cmd).Success(newDictList(session.State.Settings().UserDict))
		})
	remove.Aliases = []string{"rm"}

	cmd.AddCommand(list, set, remove)

	return cmd
}

func presetList(settings *model.Settings) PresetList {
	return append(PresetList{settings.PresetsDefault}, settings.Presets...)
}

// NewPresetCommand creates the preset command group.
func NewPresetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Manage synthesis presets",
	}

	list := settingsCommand(rootOpts, "list", "List presets", cobra.NoArgs,
		func(cmd *cobra.Command, session *Session, _ []string) error {
			return rootOpts.formatter(cmd).Success(presetList(session.State.Settings()))
		})
	list.Aliases = []string{"ls"}

	var config model.SynthConfig

	add := settingsCommand(rootOpts, "add <name>", "Register a preset", cobra.MinimumNArgs(1),
		func(cmd *cobra.Command, session *Session, args []string) error {
			id, err := session.Editor.RegisterPreset(strings.Join(args, " "), config)
			if err != nil {
				return err
			}

			message := messagef("Registered preset %s", strings.Join(args, " "))
			message.ID = id

			return rootOpts.formatter(cmd).Success(message)
		})

	defaults := model.DefaultSynthConfig()
	add.Flags().Float64Var(&config.Speed, "speed", defaults.Speed, "speaking speed")
	add.Flags().Float64Var(&config.Volume, "volume", defaults.Volume, "volume")
	add.Flags().Float64Var(&config.Pitch, "pitch", defaults.Pitch, "pitch")
	add.Flags().BoolVar(&config.Whisper, "whisper", defaults.Whisper, "whisper")

	remove := settingsCommand(rootOpts, "remove <id>", "Delete a preset", cobra.ExactArgs(1),
		func(cmd *cobra.Command, session *Session, args []string) error {
			err := session.Editor.RemovePreset(args[0])
			if err != nil {
				return err
			}

			return rootOpts.formatter(cmd).Success(presetList(session.State.Settings()))
		})
	remove.Aliases = []string{"rm"}

	apply := segmentCommand(rootOpts, "apply <segment> <preset-id>", "Apply a preset to a segment", cobra.ExactArgs(2),
		func(cmd *cobra.Command, session *Session, segment model.Segment, args []string) error {
			err := session.Editor.ApplyPreset(segment.ID, args[0])
			if err != nil {
				return err
			}

			return showSegment(cmd, rootOpts, session, segment.ID)
		})

	cmd.AddCommand(list, add, remove, apply)

	return cmd
}

// NewLicenseCommand creates the license command.
func NewLicenseCommand(rootOpts *RootOptions) *cobra.Command {
	var agree bool

	cmd := settingsCommand(rootOpts, "license", "Show or accept the voice license", cobra.NoArgs,
		func(cmd *cobra.Command, session *Session, _ []string) error {
			if agree {
				err := session.Editor.AgreeLicense()
				if err != nil {
					return err
				}
			}

			if session.State.Settings().LicenseAgreed {
				return rootOpts.formatter(cmd).Success(messagef("License accepted"))
			}

			return rootOpts.formatter(cmd).Success(messagef("License not accepted; run with --agree to accept"))
		})
	cmd.Flags().BoolVar(&agree, "agree", false, "accept the license")

	return cmd
}

// NewShortcutCommand creates the keyboard shortcut command group.
func NewShortcutCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shortcut",
		Short: "Manage keyboard shortcuts",
	}

	list := settingsCommand(rootOpts, "list", "List keyboard shortcuts", cobra.NoArgs,
		func(cmd *cobra.Command, session *Session, _ []string) error {
			return rootOpts.formatter(cmd).Success(newShortcutList(session.State.Settings().KeyboardShortcuts))
		})
	list.Aliases = []string{"ls"}

	var shortcut model.Shortcut

	set := settingsCommand(rootOpts, "set <action> <code>", "Rebind an action", cobra.ExactArgs(2),
		func(cmd *cobra.Command, session *Session, args []string) error {
			binding := shortcut
			binding.Code = args[1]

			err := session.Editor.SetShortcut(args[0], binding)
			if err != nil {
				return err
			}

			return rootOpts.formatter(cmd).Success(newShortcutList(session.State.Settings().KeyboardShortcuts))
		})
	set.Flags().BoolVar(&shortcut.Alt, "alt", false, "require Alt")
	set.Flags().BoolVar(&shortcut.Shift, "shift", false, "require Shift")
	set.Flags().StringVar(&shortcut.Desc, "desc", "", "description (kept when empty)")

	reset := settingsCommand(rootOpts, "reset", "Restore the default shortcuts", cobra.NoArgs,
		func(cmd *cobra.Command, session *Session, _ []string) error {
			err := session.Editor.ResetShortcuts()
			if err != nil {
				return err
			}

			return rootOpts.formatter(cmd).Success(newShortcutList(session.State.Settings().KeyboardShortcuts))
		})

	cmd.AddCommand(list, set, reset)

	return cmd
}
