package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	t.Parallel()

	cmd := NewRootCommand(NewRootOptions())
	require.NotNil(t, cmd)
	assert.Equal(t, "tts-editor", cmd.Use)
	assert.Contains(t, cmd.Long, "engine worker")
}

func TestCommandPresence(t *testing.T) {
	t.Parallel()

	commands := [][]string{
		{"project", "list"}, {"project", "add"}, {"project", "open"}, {"project", "close"},
		{"project", "remove"}, {"project", "rename"}, {"project", "export"}, {"project", "import"},
		{"segment", "list"}, {"segment", "show"}, {"segment", "add"}, {"segment", "remove"},
		{"segment", "up"}, {"segment", "down"}, {"segment", "text"}, {"segment", "speaker"},
		{"segment", "config"}, {"segment", "accent"}, {"segment", "length"}, {"segment", "kana"},
		{"undo"}, {"redo"}, {"history"}, {"play"}, {"play-all"}, {"save"}, {"save-all"},
		{"dict", "list"}, {"dict", "set"}, {"dict", "remove"},
		{"preset", "list"}, {"preset", "add"}, {"preset", "remove"}, {"preset", "apply"},
		{"license"}, {"shortcut", "list"}, {"shortcut", "set"}, {"shortcut", "reset"},
		{"worker"}, {"shell"},
	}

	cmd := NewRootCommand(NewRootOptions())

	for _, path := range commands {
		subCmd, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		require.NotNil(t, subCmd)
		assert.Equal(t, path[len(path)-1], subCmd.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	t.Parallel()

	cmd := NewRootCommand(NewRootOptions())

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	projectFlag := cmd.PersistentFlags().Lookup("project")
	require.NotNil(t, projectFlag)
	assert.Equal(t, "p", projectFlag.Shorthand)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestSubcommandFlags(t *testing.T) {
	t.Parallel()

	cmd := NewRootCommand(NewRootOptions())

	testCases := []struct {
		path     []string
		flag     string
		defValue string
	}{
		{path: []string{"segment", "add"}, flag: "after", defValue: ""},
		{path: []string{"segment", "text"}, flag: "no-analyze", defValue: "false"},
		{path: []string{"segment", "config"}, flag: "preset", defValue: ""},
		{path: []string{"segment", "config"}, flag: "speed", defValue: "1"},
		{path: []string{"play"}, flag: "queue", defValue: "false"},
		{path: []string{"save"}, flag: "dir", defValue: ""},
		{path: []string{"save-all"}, flag: "dir", defValue: ""},
		{path: []string{"dict", "set"}, flag: "replace", defValue: ""},
		{path: []string{"preset", "add"}, flag: "whisper", defValue: "false"},
		{path: []string{"license"}, flag: "agree", defValue: "false"},
		{path: []string{"shortcut", "set"}, flag: "shift", defValue: "false"},
	}

	for _, testCase := range testCases {
		subCmd, _, err := cmd.Find(testCase.path)
		require.NoError(t, err)

		flag := subCmd.Flags().Lookup(testCase.flag)
		require.NotNil(t, flag, "%v --%s", testCase.path, testCase.flag)
		assert.Equal(t, testCase.defValue, flag.DefValue)
	}
}

func TestSplitLine(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		line    string
		want    []string
		wantErr bool
	}{
		{name: "plain", line: "segment add", want: []string{"segment", "add"}},
		{name: "extra spaces", line: "  play   1  ", want: []string{"play", "1"}},
		{name: "double quotes", line: `dict set 東京 "ト ウ^ キョ^ ウ^"`, want: []string{"dict", "set", "東京", "ト ウ^ キョ^ ウ^"}},
		{name: "single quotes keep backslash", line: `text 'a\b'`, want: []string{"text", `a\b`}},
		{name: "escaped space", line: `project add my\ book`, want: []string{"project", "add", "my book"}},
		{name: "empty quotes", line: `project add ""`, want: []string{"project", "add", ""}},
		{name: "blank", line: "   ", want: nil},
		{name: "unterminated", line: `project add "demo`, wantErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, err := splitLine(testCase.line)
			if testCase.wantErr {
				require.ErrorIs(t, err, ErrUnterminatedQuote)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, testCase.want, got)
		})
	}
}
