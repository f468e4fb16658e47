package config

import (
	"fmt"
	"path"
	"path/filepath"
)

// Layout is the set of remote locations derived from a single base directory.
type Layout struct {
	BaseDir           string
	AssetsDir         string
	ReposDir          string
	ManifestPath      string
	ConfigPath        string
	LocalBlobstoreDir string
	SyncedReleasesDir string
}

// NewLayout derives every remote location from baseDir.
// Remote paths are always slash-separated regardless of the local OS.
func NewLayout(baseDir string) Layout {
	return Layout{
		BaseDir:           baseDir,
		AssetsDir:         path.Join(baseDir, "assets"),
		ReposDir:          path.Join(baseDir, "repos"),
		ManifestPath:      path.Join(baseDir, "manifest.yml"),
		ConfigPath:        path.Join(baseDir, "config.json"),
		LocalBlobstoreDir: path.Join(baseDir, "blobstore"),
		SyncedReleasesDir: path.Join(baseDir, "synced-releases"),
	}
}

// InstallerPath is where the installer binary ends up after the asset sync.
func (l Layout) InstallerPath() string {
	return path.Join(l.AssetsDir, "provisioner")
}

// BootstrapConfig is the read-only view of one provisioning run.
// It is built once, before anything is uploaded.
type BootstrapConfig struct {
	Layout

	// LocalAssetsDir is the absolute local path of the asset bundle.
	LocalAssetsDir string

	FullStemcellCompatibility bool
	AgentInfrastructure       string
	AgentPlatform             string
	AgentConfiguration        map[string]any

	CreateReleaseCmd string
}

// NewBootstrapConfig validates cfg and freezes it into a BootstrapConfig.
func NewBootstrapConfig(cfg *Config) (BootstrapConfig, error) {
	if err := Validate(cfg); err != nil {
		return BootstrapConfig{}, err
	}

	assetsDir, err := filepath.Abs(cfg.AssetsDir)
	if err != nil {
		return BootstrapConfig{}, fmt.Errorf("resolve assets dir: %w", err)
	}

	return BootstrapConfig{
		Layout:                    NewLayout(cfg.BaseDir),
		LocalAssetsDir:            assetsDir,
		FullStemcellCompatibility: cfg.FullStemcellCompatibility,
		AgentInfrastructure:       cfg.AgentInfrastructure,
		AgentPlatform:             cfg.AgentPlatform,
		AgentConfiguration:        cfg.AgentConfiguration,
		CreateReleaseCmd:          cfg.CreateReleaseCmd,
	}, nil
}
