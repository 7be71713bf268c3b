package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/installtool/internal/domain/release"
)

// Config holds everything a deployment run needs apart from credentials.
type Config struct {
	// Hosts lists the three deployment targets in rollout order.
	Hosts []HostConfig `yaml:"hosts" validate:"len=3,dive"`
	// Manifest is the path to the trusted checksum manifest.
	Manifest string `yaml:"manifest" validate:"required"`
	// Search describes where installable packages are discovered.
	Search SearchConfig `yaml:"search"`
	// SSH tunes the remote session transport.
	SSH SSHConfig `yaml:"ssh"`
	// InstallCommand is the privileged install template; {path} is replaced
	// by the quoted staged package path.
	InstallCommand string `yaml:"install_command"`
	// StagingPrefix names the remote staging directory: <prefix>-YYYYMMDD.
	StagingPrefix string `yaml:"staging_prefix" validate:"omitempty,excludesall=/"`
}

// HostConfig is the YAML form of a release.HostProfile.
type HostConfig struct {
	// ID is RCC, DCC or BCC.
	ID string `yaml:"id" validate:"required,oneof=RCC DCC BCC"`
	// Address is the SSH endpoint, host:port.
	Address string `yaml:"address" validate:"required,hostname_port"`
	// Username is offered as the default login when prompting.
	Username string `yaml:"username"`
	// Prefixes are the expected package-name prefixes.
	Prefixes []string `yaml:"prefixes" validate:"min=1,dive,required"`
}

// SearchConfig describes package discovery.
type SearchConfig struct {
	// Root is the directory searched for packages.
	Root string `yaml:"root"`
	// Pattern is the filename glob, *.rpm by default.
	Pattern string `yaml:"pattern"`
	// Architecture keeps only filenames containing this substring when set.
	Architecture string `yaml:"architecture"`
	// Recursive descends into subdirectories of Root.
	Recursive bool `yaml:"recursive"`
}

// SSHConfig tunes the remote session transport.
type SSHConfig struct {
	// ConnectTimeout bounds session establishment only.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// KnownHosts is the known_hosts file used to verify host keys.
	KnownHosts string `yaml:"known_hosts"`
	// InsecureIgnoreHostKey disables host key verification.
	InsecureIgnoreHostKey bool `yaml:"insecure_ignore_host_key"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "installtool-settings.yaml"

	// DefaultEnvFilename is the optional dotenv file read by Load.
	DefaultEnvFilename = ".env"

	// DefaultConnectTimeout bounds SSH session establishment.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultPattern matches installable packages.
	DefaultPattern = "*.rpm"

	// DefaultStagingPrefix names the remote staging directory.
	DefaultStagingPrefix = "installtool"

	// DefaultInstallCommand installs one staged package.
	DefaultInstallCommand = "yum -y install " + PathPlaceholder

	// PathPlaceholder is substituted with the staged package path.
	PathPlaceholder = "{path}"

	// DefaultFilePermissions is the permission for files written by Save.
	DefaultFilePermissions = 0o600
)

// Environment overrides applied by Load.
const (
	EnvManifest   = "INSTALLTOOL_MANIFEST"
	EnvSearchRoot = "INSTALLTOOL_SEARCH_ROOT"
	EnvKnownHosts = "INSTALLTOOL_KNOWN_HOSTS"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errHostOrder is returned when hosts are not listed as RCC, DCC, BCC.
	errHostOrder = errors.New("hosts must be listed as RCC, DCC, BCC")
	// errNoPlaceholder is returned when the install command cannot reference the package.
	errNoPlaceholder = errors.New("install_command must contain " + PathPlaceholder)
	// errHostKeyPolicy is returned when neither known_hosts nor the insecure opt-in is set.
	errHostKeyPolicy = errors.New("ssh.known_hosts is required unless ssh.insecure_ignore_host_key is set")

	//nolint:gochecknoglobals // Validator caches struct metadata; one per process.
	validateOnce sync.Once
	//nolint:gochecknoglobals // See validateOnce.
	structValidator *validator.Validate
)

// Load reads configuration from path, applies environment overrides and validates it.
// Overrides come from the process environment and from an optional .env in the working directory.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = godotenv.Load(DefaultEnvFilename); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DefaultEnvFilename, err)
	}

	ApplyEnv(&cfg, os.LookupEnv)

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path after validating it.
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

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// ApplyEnv overrides paths from the environment.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if value, ok := lookup(EnvManifest); ok && strings.TrimSpace(value) != "" {
		cfg.Manifest = strings.TrimSpace(value)
	}

	if value, ok := lookup(EnvSearchRoot); ok && strings.TrimSpace(value) != "" {
		cfg.Search.Root = strings.TrimSpace(value)
	}

	if value, ok := lookup(EnvKnownHosts); ok && strings.TrimSpace(value) != "" {
		cfg.SSH.KnownHosts = strings.TrimSpace(value)
	}
}

// Validate checks cfg and fills defaults for optional fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := getValidator().Struct(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	for i, host := range cfg.Hosts {
		if release.HostID(host.ID) != release.HostOrder[i] {
			return fmt.Errorf("hosts[%d] is %s: %w", i, host.ID, errHostOrder)
		}
	}

	if cfg.SSH.ConnectTimeout <= 0 {
		cfg.SSH.ConnectTimeout = DefaultConnectTimeout
	}

	if cfg.SSH.KnownHosts == "" && !cfg.SSH.InsecureIgnoreHostKey {
		return errHostKeyPolicy
	}

	if cfg.Search.Pattern == "" {
		cfg.Search.Pattern = DefaultPattern
	}

	if cfg.Search.Root == "" {
		cfg.Search.Root = "."
	}

	if cfg.StagingPrefix == "" {
		cfg.StagingPrefix = DefaultStagingPrefix
	}

	if cfg.InstallCommand == "" {
		cfg.InstallCommand = DefaultInstallCommand
	}

	if !strings.Contains(cfg.InstallCommand, PathPlaceholder) {
		return errNoPlaceholder
	}

	return nil
}

// HostProfiles converts the hosts section into domain profiles.
func (c *Config) HostProfiles() []release.HostProfile {
	profiles := make([]release.HostProfile, 0, len(c.Hosts))
	for _, host := range c.Hosts {
		profiles = append(profiles, release.HostProfile{
			ID:       release.HostID(host.ID),
			Address:  host.Address,
			Username: host.Username,
			Prefixes: append([]string(nil), host.Prefixes...),
		})
	}

	return profiles
}

// Registry builds the manifest registry from the hosts section.
func (c *Config) Registry() (*release.Registry, error) {
	registry, err := release.NewRegistry(c.HostProfiles())
	if err != nil {
		return nil, fmt.Errorf("build host registry: %w", err)
	}

	return registry, nil
}

// getValidator returns the process-wide validator reporting yaml field names.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
			if name == "" || name == "-" {
				return field.Name
			}

			return name
		})

		structValidator = v
	})

	return structValidator
}
