package ucsi

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the platform paths and polling parameters backends use.
type Config struct {
	// SysfsRoot is the root of the Type-C class device tree.
	SysfsRoot string

	// PowerSupplyRoot is the root of the power supply class device tree,
	// used for connector status snapshots.
	PowerSupplyRoot string

	// DebugfsCommandPath and DebugfsResponsePath are the UCSI debug
	// interface control and message files.
	DebugfsCommandPath  string
	DebugfsResponsePath string

	// PollInterval and PollAttempts bound how long the debug interface
	// backend waits for a command to complete.
	PollInterval time.Duration
	PollAttempts int
}

// DefaultConfig returns the stock Linux paths and a ten second total polling
// budget.
func DefaultConfig() *Config {
	return &Config{
		SysfsRoot:           "/sys/class/typec",
		PowerSupplyRoot:     "/sys/class/power_supply",
		DebugfsCommandPath:  "/sys/kernel/debug/usb/ucsi/USBC000:00/command",
		DebugfsResponsePath: "/sys/kernel/debug/usb/ucsi/USBC000:00/response",
		PollInterval:        10 * time.Millisecond,
		PollAttempts:        1000,
	}
}

// LoadConfig reads configuration from the given file, with UCSI_ prefixed
// environment variables taking precedence over file values and defaults
// filling the rest. An empty path loads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	def := DefaultConfig()
	v.SetDefault("sysfs.root", def.SysfsRoot)
	v.SetDefault("power_supply.root", def.PowerSupplyRoot)
	v.SetDefault("debugfs.command", def.DebugfsCommandPath)
	v.SetDefault("debugfs.response", def.DebugfsResponsePath)
	v.SetDefault("debugfs.poll_interval", def.PollInterval)
	v.SetDefault("debugfs.poll_attempts", def.PollAttempts)
	v.SetEnvPrefix("UCSI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	cfg := &Config{
		SysfsRoot:           v.GetString("sysfs.root"),
		PowerSupplyRoot:     v.GetString("power_supply.root"),
		DebugfsCommandPath:  v.GetString("debugfs.command"),
		DebugfsResponsePath: v.GetString("debugfs.response"),
		PollInterval:        v.GetDuration("debugfs.poll_interval"),
		PollAttempts:        v.GetInt("debugfs.poll_attempts"),
	}
	if cfg.PollInterval <= 0 || cfg.PollAttempts <= 0 {
		return nil, fmt.Errorf("config: polling parameters must be positive")
	}
	return cfg, nil
}
