package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/lagoon-network/lagoon/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key.pem"

	// DefaultBadgerFile is the default name of the folder containing the
	// Badger journal database
	DefaultBadgerFile = "badger_db"

	// DefaultJournalFile is the default name of the file-backed journal
	DefaultJournalFile = "journal"

	// DefaultPartiesFile is the default name of the party-set file
	DefaultPartiesFile = "parties.json"
)

// Default configuration values.
const (
	DefaultLogLevel           = "debug"
	DefaultBindAddr           = "127.0.0.1:1337"
	DefaultServiceAddr        = "127.0.0.1:8000"
	DefaultTCPTimeout         = 1000 * time.Millisecond
	DefaultPingInterval       = 1000 * time.Millisecond
	DefaultQueueCapacity      = 512
	DefaultWaitDepth          = 128
	DefaultWaitRetries        = 16
	DefaultStore              = false
	DefaultNetwork            = "devnet"
	DefaultContestationPeriod = 60 * time.Second
	DefaultSlotLength         = time.Second
	DefaultWindow             = 2160
)

// Config contains all the configuration properties of a lagoon node.
type Config struct {
	// DataDir is the top-level directory containing lagoon configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, duplicates the log output to a file.
	LogFile string `mapstructure:"log-file"`

	// BindAddr is the local address:port where this node talks to the other
	// head parties.
	BindAddr string `mapstructure:"listen"`

	// ServiceAddr is the address:port of the HTTP status/command service.
	ServiceAddr string `mapstructure:"service-listen"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// TCPTimeout is the timeout of transport connections.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// PingInterval is the period of the peer-liveness ping.
	PingInterval time.Duration `mapstructure:"ping"`

	// QueueCapacity bounds the node's event queue.
	QueueCapacity int `mapstructure:"queue-capacity"`

	// WaitDepth bounds the number of parked Wait events.
	WaitDepth int `mapstructure:"wait-depth"`

	// WaitRetries bounds the Wait retries of one event.
	WaitRetries int `mapstructure:"wait-retries"`

	// Store activates the Badger-backed journal instead of the flat file.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing the Badger journal files.
	DatabaseDir string `mapstructure:"db"`

	// Network selects the base chain: devnet, testnet or mainnet. On
	// mainnet the commit value cap applies.
	Network string `mapstructure:"network"`

	// ContestationPeriod is the on-chain delay after close during which a
	// better snapshot can overrule the closing one.
	ContestationPeriod time.Duration `mapstructure:"contestation-period"`

	// SystemStart anchors slot 0 of the base chain.
	SystemStart time.Time `mapstructure:"system-start"`

	// SlotLength is the duration of one base-chain slot.
	SlotLength time.Duration `mapstructure:"slot-length"`

	// Window is the number of retained chain states for rollback, bounded
	// by the security parameter of the base chain.
	Window int `mapstructure:"window"`

	// SeedInput is the output reference funding the init transaction.
	SeedInput string `mapstructure:"seed-input"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// Key is the private key of the node.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:            DefaultDataDir(),
		LogLevel:           DefaultLogLevel,
		BindAddr:           DefaultBindAddr,
		ServiceAddr:        DefaultServiceAddr,
		TCPTimeout:         DefaultTCPTimeout,
		PingInterval:       DefaultPingInterval,
		QueueCapacity:      DefaultQueueCapacity,
		WaitDepth:          DefaultWaitDepth,
		WaitRetries:        DefaultWaitRetries,
		Store:              DefaultStore,
		DatabaseDir:        DefaultDatabaseDir(),
		Network:            DefaultNetwork,
		ContestationPeriod: DefaultContestationPeriod,
		SystemStart:        time.Now().Add(-24 * time.Hour).UTC(),
		SlotLength:         DefaultSlotLength,
		Window:             DefaultWindow,
		SeedInput:          "seed#0",
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	return config
}

// SetDataDir sets the top-level lagoon directory, and updates the database
// directory if it is currently set to the default value.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// JournalFile returns the full path of the file-backed journal.
func (c *Config) JournalFile() string {
	return filepath.Join(c.DataDir, DefaultJournalFile)
}

// Logger returns a formatted logrus Entry, with prefix set to "lagoon".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, level := range logrus.AllLevels {
				pathMap[level] = c.LogFile
			}
			c.logger.Hooks.Add(lfshook.NewHook(pathMap, new(logrus.JSONFormatter)))
		}
	}
	return c.logger.WithField("prefix", "lagoon")
}

// DefaultDatabaseDir returns the default path for the badger journal files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level lagoon
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Lagoon")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Lagoon")
		} else {
			return filepath.Join(home, ".lagoon")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
