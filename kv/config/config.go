package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
)

// Config holds the store and coordinator settings. Fields map to the
// TOML file loaded at startup; keys missing from the file keep their
// defaults.
type Config struct {
	StoreAddr       string `toml:"store-addr"`
	CoordinatorAddr string `toml:"coordinator-addr"`
	LogLevel        string `toml:"log-level"`

	// Directory to store the data in. Should exist and be writable.
	DBPath string `toml:"db-path"`

	// Replica count setting; Validate requires at least 1. The
	// coordinator does not read it: definitions without a replica count
	// get the coordinator's own default of 3.
	ReplicaNum int32 `toml:"replica-num"`

	// Interval between metric recomputations on the coordinator.
	MetricsUpdateInterval Duration `toml:"metrics-update-interval"`

	// Region size limits. Validate requires RegionSplitSize not to exceed
	// RegionMaxSize; nothing in this module splits regions by size.
	RegionMaxSize   uint64 `toml:"region-max-size"`
	RegionSplitSize uint64 `toml:"region-split-size"`
}

const (
	KB uint64 = 1024
	MB uint64 = 1024 * 1024
)

func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db-path must not be empty")
	}
	if c.ReplicaNum < 1 {
		return errors.New("replica-num must be at least 1")
	}
	if c.RegionSplitSize > c.RegionMaxSize {
		return errors.New("region-split-size must not exceed region-max-size")
	}
	return nil
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func NewDefaultConfig() *Config {
	return &Config{
		CoordinatorAddr:       "127.0.0.1:22001",
		StoreAddr:             "127.0.0.1:20160",
		LogLevel:              getLogLevel(),
		DBPath:                "/tmp/dingokv",
		ReplicaNum:            3,
		MetricsUpdateInterval: NewDuration(60 * time.Second),
		RegionMaxSize:         144 * MB,
		RegionSplitSize:       96 * MB,
	}
}

func NewTestConfig() *Config {
	return &Config{
		LogLevel:              getLogLevel(),
		DBPath:                "/tmp/dingokv",
		ReplicaNum:            1,
		MetricsUpdateInterval: NewDuration(100 * time.Millisecond),
		RegionMaxSize:         144 * MB,
		RegionSplitSize:       96 * MB,
	}
}

// Load reads a TOML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	c := NewDefaultConfig()
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown configuration item %s", undecoded[0].String())
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
