package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, imaging.Save(ringImage(40, 15), filepath.Join(dir, "Pressure Indicator.png")))
	require.NoError(t, imaging.Save(barImage(40, 20), filepath.Join(dir, "gate_valve.jpg")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	base, _ := newTestBase(t)
	report, err := IngestDir(context.Background(), base, dir)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Found)
	assert.Equal(t, 2, report.Learned)
	assert.Contains(t, report.Failed, "broken.png")
	assert.Equal(t, 2, report.Total)

	match, err := base.Search(context.Background(), ringImage(40, 15), 1)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "pressure_indicator_instrument", match.ID)
}

func TestIngestDir_Rerun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, imaging.Save(ringImage(40, 15), filepath.Join(dir, "centrifugal_pump.png")))

	base, _ := newTestBase(t)
	for i := 0; i < 2; i++ {
		report, err := IngestDir(context.Background(), base, dir)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Total)
	}
}

func TestIngestDir_MissingFolder(t *testing.T) {
	base, _ := newTestBase(t)
	_, err := IngestDir(context.Background(), base, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
