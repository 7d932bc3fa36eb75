package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bookgen/internal/model"
)

func TestDefaults_CoverAllGenerativeStages(t *testing.T) {
	t.Parallel()

	set := Defaults()
	for _, stage := range []model.Stage{model.StageSpec, model.StageTOC, model.StagePlan, model.StageDraft} {
		tmpl := set.ForStage(stage)
		assert.NotEmpty(t, tmpl.System, "stage %s", stage)
		assert.NotEmpty(t, tmpl.User, "stage %s", stage)
	}
	assert.NotEmpty(t, set[KeyTOCLines].System)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	t.Parallel()

	set, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), set)
}

func TestLoad_OverridesReplaceWholeTemplates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	overrides := `
toc:
  system: "custom toc system"
  user: "custom toc user %s %d"
`
	require.NoError(t, os.WriteFile(path, []byte(overrides), 0o644))

	set, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "custom toc system", set.ForStage(model.StageTOC).System)
	// Untouched templates keep their defaults.
	assert.Equal(t, Defaults().ForStage(model.StageSpec), set.ForStage(model.StageSpec))
}

func TestLoad_MissingFileIsAnError(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
