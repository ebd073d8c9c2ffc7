package config

import "github.com/ajitpratap0/hvol/pkg/errors"

// NativeConfig contains the native connector's settings
type NativeConfig struct {
	// SnapshotDir receives a JSON snapshot of each file on flush; empty disables snapshots
	SnapshotDir string `yaml:"snapshot_dir" json:"snapshot_dir"`
	// LoadSnapshots lets Open fall back to a snapshot when the file is not in memory
	LoadSnapshots bool `yaml:"load_snapshots" json:"load_snapshots"`
}

// NewNativeConfig returns the native connector defaults
func NewNativeConfig() NativeConfig {
	return NativeConfig{
		LoadSnapshots: true,
	}
}

// PassthruConfig contains the pass-through connector's defaults, used when a
// file is opened with an info blob that leaves them out
type PassthruConfig struct {
	// CompressionAlgorithm selects payload compression (none, gzip, snappy, lz4, zstd, s2)
	CompressionAlgorithm string `yaml:"compression_algorithm" json:"compression_algorithm"`
	// CompressionLevel is fastest, default, better or best
	CompressionLevel string `yaml:"compression_level" json:"compression_level"`
}

// NewPassthruConfig returns the pass-through connector defaults
func NewPassthruConfig() PassthruConfig {
	return PassthruConfig{
		CompressionAlgorithm: "none",
		CompressionLevel:     "default",
	}
}

// Validate checks the compression settings
func (p PassthruConfig) Validate() error {
	switch p.CompressionAlgorithm {
	case "", "none", "gzip", "snappy", "lz4", "zstd", "s2":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown compression algorithm %q", p.CompressionAlgorithm)
	}
	switch p.CompressionLevel {
	case "", "fastest", "default", "better", "best":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown compression level %q", p.CompressionLevel)
	}
	return nil
}
