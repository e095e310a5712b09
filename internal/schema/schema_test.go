package schema_test

import (
	"testing"

	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/model"
	"github.com/book-expert/tts-editor/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	projectID = "11111111-1111-4111-8111-111111111111"
	segmentID = "22222222-2222-4222-8222-222222222222"
)

func newValidator(t *testing.T) *schema.Validator {
	t.Helper()

	validator, err := schema.New()
	require.NoError(t, err)

	return validator
}

func validProject() *model.Project {
	project := model.NewProject(projectID)
	segment := model.NewSegment(segmentID, model.SpeakerLayney, model.DefaultSynthConfig())
	segment.KanaData = model.Analyzed([]model.KanaData{{Kana: "a", Accent: model.AccentHigh, Lengths: []float64{0.2}}})
	project.TextData = append(project.TextData, segment)

	return project
}

func TestValidate_DefaultSettings(t *testing.T) {
	t.Parallel()

	_, err := newValidator(t).ValidateValue(schema.Settings, model.DefaultSettings())
	require.NoError(t, err)
}

func TestValidate_Project(t *testing.T) {
	t.Parallel()

	_, err := newValidator(t).ValidateValue(schema.Project, validProject())
	require.NoError(t, err)
}

func TestValidate_RejectsBadSpeaker(t *testing.T) {
	t.Parallel()

	project := validProject()
	project.TextData[0].SpeakerID = "nobody"

	_, err := newValidator(t).ValidateValue(schema.Project, project)
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestValidate_RejectsNonUUID(t *testing.T) {
	t.Parallel()

	project := validProject()
	project.ID = "not-a-uuid"

	_, err := newValidator(t).ValidateValue(schema.Project, project)
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestValidate_RejectsNullList(t *testing.T) {
	t.Parallel()

	err := newValidator(t).Validate(schema.Project, []byte(`{"id":"`+projectID+`","textData":null}`))
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestValidate_RejectsUnknownField(t *testing.T) {
	t.Parallel()

	err := newValidator(t).Validate(schema.Project, []byte(`{"id":"`+projectID+`","textData":[],"extra":1}`))
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestValidate_RejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	err := newValidator(t).Validate(schema.Settings, []byte(`{"projectInfo": [`))
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestValidate_RejectsOutOfRangeConfig(t *testing.T) {
	t.Parallel()

	project := validProject()
	project.TextData[0].SynthConfig.Volume = 3

	_, err := newValidator(t).ValidateValue(schema.Project, project)
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestValidate_RejectsModifiedDefaultPreset(t *testing.T) {
	t.Parallel()

	settings := model.DefaultSettings()
	settings.PresetsDefault.Config.Speed = 1.5

	_, err := newValidator(t).ValidateValue(schema.Settings, settings)
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestValidate_RejectsEmptyDictReading(t *testing.T) {
	t.Parallel()

	settings := model.DefaultSettings()
	settings.UserDict["word"] = []model.DictMora{}

	_, err := newValidator(t).ValidateValue(schema.Settings, settings)
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestValidate_Bundle(t *testing.T) {
	t.Parallel()

	settings := model.DefaultSettings()
	settings.ProjectInfo = append(settings.ProjectInfo, model.ProjectInfo{ID: projectID, Name: "demo", Date: 1})
	bundle := model.Bundle{Settings: *settings, Projects: []model.Project{*validProject()}}

	data, err := newValidator(t).ValidateValue(schema.Bundle, bundle)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"projects"`)
}

func TestValidate_RejectsDuplicateIDs(t *testing.T) {
	t.Parallel()

	validator := newValidator(t)

	project := validProject()
	project.TextData = append(project.TextData, project.TextData[0])

	_, err := validator.ValidateValue(schema.Project, project)
	require.ErrorIs(t, err, core.ErrValidation)
	require.ErrorIs(t, err, schema.ErrDuplicateID)
	assert.Contains(t, err.Error(), segmentID)

	settings := model.DefaultSettings()
	info := model.ProjectInfo{ID: projectID, Name: "demo", Date: 1}
	settings.ProjectInfo = append(settings.ProjectInfo, info, info)

	_, err = validator.ValidateValue(schema.Settings, settings)
	require.ErrorIs(t, err, schema.ErrDuplicateID)

	settings.ProjectInfo = settings.ProjectInfo[:1]
	bundle := model.Bundle{Settings: *settings, Projects: []model.Project{*validProject(), *validProject()}}

	_, err = validator.ValidateValue(schema.Bundle, bundle)
	require.ErrorIs(t, err, schema.ErrDuplicateID)
	assert.Contains(t, err.Error(), projectID)

	bundle.Projects = []model.Project{*project}

	_, err = validator.ValidateValue(schema.Bundle, bundle)
	require.ErrorIs(t, err, schema.ErrDuplicateID)
	assert.Contains(t, err.Error(), "projects[0]")
}
