// Package tabletcfg is the YAML-loadable configuration surface for a
// tablet process: flush/compaction thresholds, block cache sizing, and
// the write-batch size used while draining a row source into a layer.
package tabletcfg

import (
	"os"

	"github.com/goccy/go-yaml"

	"github.com/colstore/tablet/errs"
)

// Options configures a running tablet's operational knobs. Schema and
// storage root are supplied separately at Open, since they identify
// which tablet this is rather than how it behaves.
type Options struct {
	// FlushThresholdRows is a memstore row count for flushing. It is
	// loaded and validated only: the tablet does not read it, and a
	// flush happens only when Tablet.Flush is called.
	FlushThresholdRows int `yaml:"flush_threshold_rows" validate:"min=1"`
	// CompactionLayerThreshold is a layer count for compacting. It is
	// loaded and validated only: the tablet does not read it, and a
	// compaction happens only when Tablet.Compact is called.
	CompactionLayerThreshold int `yaml:"compaction_layer_threshold" validate:"min=1"`
	// BlockCacheBytes is the decompressed-block cache budget shared by
	// every open column file.
	BlockCacheBytes int64 `yaml:"block_cache_bytes" validate:"min=0"`
	// WriteBatchRows bounds the row.Block batch size used while
	// writing a new layer (flush or compaction output).
	WriteBatchRows int `yaml:"write_batch_rows" validate:"min=1"`
}

// Default returns conservative defaults suitable for local development.
func Default() Options {
	return Options{
		FlushThresholdRows:       1 << 20,
		CompactionLayerThreshold: 8,
		BlockCacheBytes:          64 << 20,
		WriteBatchRows:           1024,
	}
}

// Load reads and validates a YAML options file at path, applying
// Default() for any zero-valued field the file omits.
func Load(path string) (Options, error) {
	opt := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, errs.IOErrorf("tabletcfg: read %q: %v", path, err)
	}
	if err := yaml.Unmarshal(data, &opt); err != nil {
		return Options{}, errs.InvalidArgumentf("tabletcfg: parse %q: %v", path, err)
	}
	if err := opt.Validate(); err != nil {
		return Options{}, err
	}
	return opt, nil
}

// Validate reports InvalidArgument if any field is out of range.
func (o Options) Validate() error {
	if o.FlushThresholdRows < 1 {
		return errs.InvalidArgumentf("tabletcfg: flush_threshold_rows must be >= 1")
	}
	if o.CompactionLayerThreshold < 1 {
		return errs.InvalidArgumentf("tabletcfg: compaction_layer_threshold must be >= 1")
	}
	if o.BlockCacheBytes < 0 {
		return errs.InvalidArgumentf("tabletcfg: block_cache_bytes must be >= 0")
	}
	if o.WriteBatchRows < 1 {
		return errs.InvalidArgumentf("tabletcfg: write_batch_rows must be >= 1")
	}
	return nil
}
