package tabletcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsOutOfRangeFields(t *testing.T) {
	cases := []func(*Options){
		func(o *Options) { o.FlushThresholdRows = 0 },
		func(o *Options) { o.CompactionLayerThreshold = 0 },
		func(o *Options) { o.BlockCacheBytes = -1 },
		func(o *Options) { o.WriteBatchRows = 0 },
	}
	for _, mutate := range cases {
		o := Default()
		mutate(&o)
		require.Error(t, o.Validate())
	}
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tablet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flush_threshold_rows: 500\n"), 0o644))

	o, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 500, o.FlushThresholdRows)
	require.Equal(t, Default().CompactionLayerThreshold, o.CompactionLayerThreshold)
	require.Equal(t, Default().WriteBatchRows, o.WriteBatchRows)
}

func TestLoadRejectsInvalidOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tablet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("write_batch_rows: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}
