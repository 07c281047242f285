package config

import (
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/lab47/provision/pkg/hashdetect"
	"github.com/lab47/provision/pkg/platform"
	"github.com/lab47/provision/pkg/verification"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "PROVISION"

	DefaultSource      = "https://github.com/Anjok07/ultimatevocalremovergui/archive/refs/heads/master.zip"
	DefaultDestination = "~/UltimateVocalRemover"
	DefaultEntryPoint  = "UVR.py"
	DefaultManifest    = "requirements.txt"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Destination string
	Scratch     string

	Source     string
	ArchiveSum string

	ArchiveSigner    string
	ArchiveSignature string

	EntryPoint    string
	Python        string
	VenvName      string
	Manifest      string
	ExtraPackages []string

	SystemDeps        bool
	RequireSystemDeps bool
	Sudo              bool
	Platforms         []string

	AppName      string
	LauncherName string
	Summary      bool

	// Env is added to the environment of every subprocess.
	Env map[string]string

	LogLevel string
	LogFile  string
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("destination", DefaultDestination)
	v.SetDefault("scratch", "")
	v.SetDefault("source", DefaultSource)
	v.SetDefault("archive_sum", "")
	v.SetDefault("archive_signer", "")
	v.SetDefault("archive_signature", "")
	v.SetDefault("entry_point", DefaultEntryPoint)
	v.SetDefault("python", "")
	v.SetDefault("venv_name", "venv")
	v.SetDefault("manifest", DefaultManifest)
	v.SetDefault("extra_packages", []string{})
	v.SetDefault("system_deps", true)
	v.SetDefault("require_system_deps", false)
	v.SetDefault("sudo", true)
	v.SetDefault("platforms", []string{"linux-arch", "linux-debian", "macos", "windows"})
	v.SetDefault("app_name", "Ultimate Vocal Remover GUI")
	v.SetDefault("launcher_name", "launch_uvr")
	v.SetDefault("summary", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
}

// New returns a viper instance with defaults set and PROVISION_* environment
// variables bound.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

func expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	return homedir.Expand(path)
}

func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Destination:       v.GetString("destination"),
		Scratch:           v.GetString("scratch"),
		Source:            v.GetString("source"),
		ArchiveSum:        v.GetString("archive_sum"),
		ArchiveSigner:     v.GetString("archive_signer"),
		ArchiveSignature:  v.GetString("archive_signature"),
		EntryPoint:        v.GetString("entry_point"),
		Python:            v.GetString("python"),
		VenvName:          v.GetString("venv_name"),
		Manifest:          v.GetString("manifest"),
		ExtraPackages:     v.GetStringSlice("extra_packages"),
		SystemDeps:        v.GetBool("system_deps"),
		RequireSystemDeps: v.GetBool("require_system_deps"),
		Sudo:              v.GetBool("sudo"),
		Platforms:         v.GetStringSlice("platforms"),
		AppName:           v.GetString("app_name"),
		LauncherName:      v.GetString("launcher_name"),
		Summary:           v.GetBool("summary"),
		LogLevel:          v.GetString("log_level"),
		Env:               map[string]string{},
		LogFile:           v.GetString("log_file"),
	}

	// viper folds map keys to lower case when reading files.
	for k, val := range v.GetStringMapString("env") {
		cfg.Env[strings.ToUpper(k)] = val
	}

	var err error

	cfg.Destination, err = expand(cfg.Destination)
	if err != nil {
		return nil, err
	}

	cfg.Scratch, err = expand(cfg.Scratch)
	if err != nil {
		return nil, err
	}

	cfg.LogFile, err = expand(cfg.LogFile)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Destination == "":
		return errors.Wrapf(ErrInvalidConfig, "destination is required")
	case c.Source == "":
		return errors.Wrapf(ErrInvalidConfig, "source is required")
	case c.EntryPoint == "":
		return errors.Wrapf(ErrInvalidConfig, "entry_point is required")
	case c.Manifest == "":
		return errors.Wrapf(ErrInvalidConfig, "manifest is required")
	}

	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		return errors.Wrapf(ErrInvalidConfig, "unknown log_level %q", c.LogLevel)
	}

	if _, err := c.Families(); err != nil {
		return err
	}

	if _, err := c.ExpectedSum(); err != nil {
		return err
	}

	if err := c.Verifier().Check(); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "archive_signer: %s", err)
	}

	return nil
}

// Families resolves the platforms setting into the families an install may
// run on.
func (c *Config) Families() ([]platform.Family, error) {
	var out []platform.Family

	for _, name := range c.Platforms {
		f, err := platform.ParseFamily(name)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "platforms: %s", err)
		}

		out = append(out, f)
	}

	return out, nil
}

// ExpectedSum is nil when no archive_sum is configured.
func (c *Config) ExpectedSum() (*hashdetect.Sum, error) {
	if c.ArchiveSum == "" {
		return nil, nil
	}

	sum, err := hashdetect.ParseSum(c.ArchiveSum)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "archive_sum: %s", err)
	}

	return sum, nil
}

// Verifier is disabled when no archive_signer is configured.
func (c *Config) Verifier() *verification.Verifier {
	return &verification.Verifier{
		Signer:    c.ArchiveSigner,
		Signature: c.ArchiveSignature,
	}
}
