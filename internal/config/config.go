package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds operator-supplied settings for one provisioning target.
type Config struct {
	// BaseDir is the remote directory every uploaded artifact lives under.
	BaseDir string `yaml:"base_dir" toml:"base_dir"`
	// AssetsDir is the local asset bundle that contains the installer binary.
	AssetsDir string `yaml:"assets_dir" toml:"assets_dir"`
	// ManifestFile is the local deployment manifest. Empty means no manifest.
	ManifestFile string `yaml:"manifest_file" toml:"manifest_file"`
	// FullStemcellCompatibility makes the installer provision every stemcell dependency.
	FullStemcellCompatibility bool `yaml:"full_stemcell_compatibility" toml:"full_stemcell_compatibility"`
	// AgentInfrastructure is passed through to the agent provisioner.
	AgentInfrastructure string `yaml:"agent_infrastructure" toml:"agent_infrastructure"`
	// AgentPlatform is passed through to the agent provisioner.
	AgentPlatform string `yaml:"agent_platform" toml:"agent_platform"`
	// AgentConfiguration is free-form agent settings passed through verbatim.
	AgentConfiguration map[string]any `yaml:"agent_configuration" toml:"agent_configuration"`
	// CreateReleaseCmd builds a dev release inside a release directory.
	CreateReleaseCmd string `yaml:"create_release_cmd" toml:"create_release_cmd"`
	// SSH describes how to reach the remote machine.
	SSH SSH `yaml:"ssh" toml:"ssh"`
}

// SSH holds connection settings for the remote machine.
type SSH struct {
	// Address is host:port of the SSH daemon.
	Address string `yaml:"address" toml:"address"`
	// User is the login user; privileged commands go through sudo.
	User string `yaml:"user" toml:"user"`
	// PrivateKeyPath points at an unencrypted private key.
	PrivateKeyPath string `yaml:"private_key_path" toml:"private_key_path"`
	// KnownHostsPath enables host key verification when set.
	KnownHostsPath string `yaml:"known_hosts_path" toml:"known_hosts_path"`
	// ConnectTimeout is a Go duration string, e.g. "10s".
	ConnectTimeout string `yaml:"connect_timeout" toml:"connect_timeout"`
}

const (
	// DefaultConfigFilename is the default settings filename.
	DefaultConfigFilename = "bosh-bootstrap.yaml"

	// DefaultBaseDir is the remote directory used when base_dir is not set.
	DefaultBaseDir = "/opt/vagrant-bosh"

	// DefaultAssetsDir is the local asset bundle used when assets_dir is not set.
	DefaultAssetsDir = "assets"

	// DefaultCreateReleaseCmd builds a dev release with the bosh CLI.
	DefaultCreateReleaseCmd = "bosh -n create release --force"

	// DefaultAgentInfrastructure matches the installer's built-in defaults.
	DefaultAgentInfrastructure = "warden"

	// DefaultAgentPlatform matches the installer's built-in defaults.
	DefaultAgentPlatform = "ubuntu"

	// DefaultSSHUser is the login user of stock Vagrant boxes.
	DefaultSSHUser = "vagrant"

	// DefaultConnectTimeout bounds the SSH handshake.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultFilePermissions is the permission used when saving settings.
	DefaultFilePermissions = 0o600
)

var (
	errConfigIsNotSet        = errors.New("configuration is not set")
	errSSHAddressRequired    = errors.New("ssh address must be provided")
	errPrivateKeyRequired    = errors.New("ssh private key path must be provided")
	errBaseDirNotAbsolute    = errors.New("base dir must be an absolute path")
	errCreateReleaseCmdEmpty = errors.New("create release command must not be empty")
)

// Load reads settings from path (YAML, or TOML for a .toml extension),
// applies defaults and validates them.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if isTOML(path) {
		err = toml.Unmarshal(contents, &cfg)
	} else {
		err = yaml.Unmarshal(contents, &cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to path in the format implied by its extension.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)

	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks required fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if !path.IsAbs(cfg.BaseDir) {
		return fmt.Errorf("%q: %w", cfg.BaseDir, errBaseDirNotAbsolute)
	}

	if strings.TrimSpace(cfg.CreateReleaseCmd) == "" {
		return errCreateReleaseCmdEmpty
	}

	if _, err := shellwords.Parse(cfg.CreateReleaseCmd); err != nil {
		return fmt.Errorf("invalid create release command: %w", err)
	}

	if cfg.SSH.Address == "" {
		return errSSHAddressRequired
	}

	if _, _, err := net.SplitHostPort(cfg.SSH.Address); err != nil {
		return fmt.Errorf("invalid ssh address: %w", err)
	}

	if cfg.SSH.PrivateKeyPath == "" {
		return errPrivateKeyRequired
	}

	if _, err := time.ParseDuration(cfg.SSH.ConnectTimeout); err != nil {
		return fmt.Errorf("invalid ssh connect timeout: %w", err)
	}

	return nil
}

// Timeout returns the parsed SSH connect timeout.
func (s SSH) Timeout() time.Duration {
	timeout, err := time.ParseDuration(s.ConnectTimeout)
	if err != nil || timeout <= 0 {
		return DefaultConnectTimeout
	}

	return timeout
}

// ReadManifest returns the manifest text, or "" when no manifest is configured.
func (c *Config) ReadManifest() (string, error) {
	if c.ManifestFile == "" {
		return "", nil
	}

	contents, err := os.ReadFile(filepath.Clean(c.ManifestFile))
	if err != nil {
		return "", fmt.Errorf("read manifest: %w", err)
	}

	return string(contents), nil
}

func applyDefaults(cfg *Config) {
	if cfg.BaseDir == "" {
		cfg.BaseDir = DefaultBaseDir
	}

	if cfg.AssetsDir == "" {
		cfg.AssetsDir = DefaultAssetsDir
	}

	if cfg.CreateReleaseCmd == "" {
		cfg.CreateReleaseCmd = DefaultCreateReleaseCmd
	}

	if cfg.AgentInfrastructure == "" {
		cfg.AgentInfrastructure = DefaultAgentInfrastructure
	}

	if cfg.AgentPlatform == "" {
		cfg.AgentPlatform = DefaultAgentPlatform
	}

	if cfg.SSH.User == "" {
		cfg.SSH.User = DefaultSSHUser
	}

	if cfg.SSH.ConnectTimeout == "" {
		cfg.SSH.ConnectTimeout = DefaultConnectTimeout.String()
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
