package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/adkstream"
)

const ownedChartSchema = `{
  "type": "object",
  "required": ["type", "title", "data", "owner"],
  "properties": {"owner": {"type": "string"}}
}`

func TestLoadChartValidatorFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.json")
	require.NoError(t, os.WriteFile(path, []byte(ownedChartSchema), 0o600))

	v, err := loadChartValidator(path, nil)
	require.NoError(t, err)

	err = v.Validate(map[string]any{"type": "pie", "title": "Split", "data": map[string]any{}})
	assert.ErrorIs(t, err, adkstream.ErrInvalidChart)

	assert.NoError(t, v.Validate(map[string]any{"type": "pie", "title": "Split", "data": map[string]any{}, "owner": "ops"}))
}

func TestLoadChartValidatorFromStdin(t *testing.T) {
	v, err := loadChartValidator("-", strings.NewReader(ownedChartSchema))
	require.NoError(t, err)
	assert.Error(t, v.Validate(map[string]any{}))
}

func TestLoadChartValidatorErrors(t *testing.T) {
	_, err := loadChartValidator(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)

	_, err = loadChartValidator("-", strings.NewReader("   "))
	assert.Error(t, err)

	_, err = loadChartValidator("-", strings.NewReader("{not json"))
	assert.Error(t, err)

	v, err := loadChartValidator("", nil)
	assert.NoError(t, err)
	assert.Nil(t, v)
}
