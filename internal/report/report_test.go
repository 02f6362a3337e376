package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gait.report/internal/novelty"
)

func fixtureGroups() []Group {
	normal := []novelty.Result{
		{Label: novelty.Normal, DecisionValue: 0.02},
		{Label: novelty.Normal, DecisionValue: 0.05},
		{Label: novelty.Anomalous, DecisionValue: -0.01},
	}
	abnormal := []novelty.Result{
		{Label: novelty.Anomalous, DecisionValue: -0.4},
		{Label: novelty.Anomalous, DecisionValue: -0.2},
	}
	return []Group{{Name: "normal", Results: normal}, {Name: "abnormal", Results: abnormal}, {Name: "empty"}}
}

func TestDecisionRange(t *testing.T) {
	lo, hi, ok := DecisionRange(fixtureGroups()...)
	require.True(t, ok)
	assert.Equal(t, -0.4, lo)
	assert.Equal(t, 0.05, hi)

	_, _, ok = DecisionRange(Group{Name: "empty"})
	assert.False(t, ok)
}

func TestWriteDecisionPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.png")
	require.NoError(t, WriteDecisionPlot(path, "Validation", fixtureGroups()...))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("\x89PNG\r\n\x1a\n")), "not a PNG")

	assert.ErrorIs(t, WriteDecisionPlot(path, "x"), ErrNoData)
	assert.Error(t, WriteDecisionPlot(filepath.Join(t.TempDir(), "missing", "x.png"), "x", fixtureGroups()...))
}

func TestWriteDecisionChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDecisionChart(&buf, "Validation", fixtureGroups()...))

	html := buf.String()
	assert.True(t, strings.Contains(html, "echarts"))
	assert.Contains(t, html, "Validation")
	assert.Contains(t, html, "abnormal")
	assert.Contains(t, html, "rows=5 anomalous=3")

	assert.ErrorIs(t, WriteDecisionChart(&buf, "x", Group{Name: "empty"}), ErrNoData)
}

func TestWriteDecisionChartFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.html")
	require.NoError(t, WriteDecisionChartFile(path, "Validation", fixtureGroups()...))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "<html")
}
