// Package speech implements core.SpeechEngine by running an external engine
// command. The command is stateless; the engine keeps its dictionaries,
// models and user dictionary in a working directory and passes their paths
// on every invocation.
package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/model"
)

var (
	// ErrNotInitialized is returned when the engine is used before Init.
	ErrNotInitialized = errors.New("engine not initialized")
	// ErrBinaryEmpty indicates that no engine command was configured.
	ErrBinaryEmpty = errors.New("engine command cannot be empty")
)

const (
	dictDirName      = "dict"
	modelsDirName    = "models"
	userDictFileName = "user-dict.json"
	filePermissions  = 0o600
	dirPermissions   = 0o750
)

// Config holds the engine command settings.
type Config struct {
	// Binary is the engine executable, looked up in PATH when not absolute.
	Binary string
	// WorkDir receives the dictionary and model files on Init.
	WorkDir string
}

// CommandEngine implements core.SpeechEngine by calling the engine binary.
type CommandEngine struct {
	config      Config
	log         *logger.Logger
	initialized bool
	userDict    bool
}

// New creates a new CommandEngine.
func New(cfg Config, log *logger.Logger) (*CommandEngine, error) {
	if cfg.Binary == "" {
		return nil, ErrBinaryEmpty
	}

	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "tts-editor-engine")
	}

	return &CommandEngine{
		config:      cfg,
		log:         log,
		initialized: false,
		userDict:    false,
	}, nil
}

func (e *CommandEngine) dictDir() string {
	return filepath.Join(e.config.WorkDir, dictDirName)
}

func (e *CommandEngine) modelsDir() string {
	return filepath.Join(e.config.WorkDir, modelsDirName)
}

func (e *CommandEngine) userDictPath() string {
	return filepath.Join(e.config.WorkDir, userDictFileName)
}

// CheckBackend asks the engine whether its compute backend is usable.
func (e *CommandEngine) CheckBackend(ctx context.Context) (bool, error) {
	output, err := e.run(ctx, nil, "check")
	if err != nil {
		return false, err
	}

	var ok bool

	err = json.Unmarshal(output, &ok)
	if err != nil {
		return false, fmt.Errorf("failed to decode backend check output %q: %w", strings.TrimSpace(string(output)), err)
	}

	return ok, nil
}

// Init writes the dictionary and model files into the working directory and
// lets the engine verify them.
func (e *CommandEngine) Init(ctx context.Context, dict []core.AssetFile, models core.ModelFiles) error {
	e.initialized = false

	for _, dir := range []string{e.dictDir(), e.modelsDir()} {
		err := os.MkdirAll(dir, dirPermissions)
		if err != nil {
			return fmt.Errorf("failed to create engine directory '%s': %w", dir, err)
		}
	}

	for _, file := range dict {
		err := os.WriteFile(filepath.Join(e.dictDir(), filepath.Base(file.Name)), file.Data, filePermissions)
		if err != nil {
			return fmt.Errorf("failed to write dictionary file '%s': %w", file.Name, err)
		}
	}

	modelFiles := map[string][]byte{
		"duration.json": models.Duration,
		"f0.json":       models.F0,
		"volume.json":   models.Volume,
	}

	for name, data := range modelFiles {
		err := os.WriteFile(filepath.Join(e.modelsDir(), name), data, filePermissions)
		if err != nil {
			return fmt.Errorf("failed to write model file '%s': %w", name, err)
		}
	}

	_, err := e.run(ctx, nil, "init", "--dict", e.dictDir(), "--models", e.modelsDir())
	if err != nil {
		return err
	}

	e.initialized = true
	e.log.Info("Engine initialized with %d dictionary files", len(dict))

	return nil
}

// LoadUserDict replaces the user dictionary.
func (e *CommandEngine) LoadUserDict(_ context.Context, dict model.UserDict) error {
	if !e.initialized {
		return ErrNotInitialized
	}

	data, err := json.Marshal(dict)
	if err != nil {
		return fmt.Errorf("failed to marshal user dictionary: %w", err)
	}

	err = os.WriteFile(e.userDictPath(), data, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to write user dictionary: %w", err)
	}

	e.userDict = true

	return nil
}

// ClearUserDict drops the user dictionary.
func (e *CommandEngine) ClearUserDict(_ context.Context) error {
	if !e.initialized {
		return ErrNotInitialized
	}

	err := os.Remove(e.userDictPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove user dictionary: %w", err)
	}

	e.userDict = false

	return nil
}

func (e *CommandEngine) dictArgs() []string {
	args := []string{"--dict", e.dictDir()}
	if e.userDict {
		args = append(args, "--user-dict", e.userDictPath())
	}

	return args
}

// Analyze converts text into phonetic units.
func (e *CommandEngine) Analyze(ctx context.Context, text string) ([]model.KanaData, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}

	args := append([]string{"analyze"}, e.dictArgs()...)

	output, err := e.run(ctx, []byte(text), args...)
	if err != nil {
		return nil, err
	}

	units := []model.KanaData{}

	err = json.Unmarshal(output, &units)
	if err != nil {
		return nil, fmt.Errorf("failed to decode analysis output: %w", err)
	}

	return units, nil
}

type synthHeader struct {
	SampleRate int `json:"sampleRate"`
}

// Synthesize voices the analyzed units. The engine writes little-endian
// float32 samples to a temporary file and reports the sample rate on stdout.
func (e *CommandEngine) Synthesize(ctx context.Context, input core.SynthInput) (core.SynthOutput, error) {
	if !e.initialized {
		return core.SynthOutput{}, ErrNotInitialized
	}

	request, err := json.Marshal(input)
	if err != nil {
		return core.SynthOutput{}, fmt.Errorf("failed to marshal synthesis input: %w", err)
	}

	tempFile, err := os.CreateTemp("", "tts-editor-synth-*.f32")
	if err != nil {
		return core.SynthOutput{}, fmt.Errorf("failed to create temp file for synthesis output: %w", err)
	}

	_ = tempFile.Close()

	defer func() {
		removeErr := os.Remove(tempFile.Name())
		if removeErr != nil {
			e.log.Warn("Failed to remove temp file '%s': %v", tempFile.Name(), removeErr)
		}
	}()

	output, err := e.run(ctx, request, "synth", "--models", e.modelsDir(), "--output", tempFile.Name())
	if err != nil {
		return core.SynthOutput{}, err
	}

	var header synthHeader

	err = json.Unmarshal(output, &header)
	if err != nil {
		return core.SynthOutput{}, fmt.Errorf("failed to decode synthesis output: %w", err)
	}

	raw, err := os.ReadFile(tempFile.Name())
	if err != nil {
		return core.SynthOutput{}, fmt.Errorf("failed to read audio data from temp file: %w", err)
	}

	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	return core.SynthOutput{SampleRate: header.SampleRate, Samples: samples}, nil
}

func (e *CommandEngine) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	// #nosec G204 -- the binary comes from the local configuration file
	cmd := exec.CommandContext(ctx, e.config.Binary, args...)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	err := cmd.Run()
	if err != nil {
		return nil, fmt.Errorf("engine %s failed: %w - output: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}

	return stdout.Bytes(), nil
}
