package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	consts "github.com/khanhnv2901/gatespy/internal/shared/constants"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	defaultRateLimit       = 10
	defaultRateBurst       = 20
	defaultOutputDir       = "."
	envPrefix              = "GATESPY"
	legacyScannerURLEnv    = "ANALYZER_URL"
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	ScannerURL     string
	ScannerTimeout time.Duration
	Serve          ServeConfig
	Analyze        AnalyzeConfig
}

// ServeConfig holds the flag-driven settings of the serve command.
type ServeConfig struct {
	Addr            string
	CORSOrigins     []string
	RateLimit       int
	RateBurst       int
	ShutdownTimeout time.Duration
}

// AnalyzeConfig holds the flag-driven settings of the analyze command.
type AnalyzeConfig struct {
	Gateway  string
	Format   string
	Export   bool
	PDF      bool
	OutDir   string
	Progress bool
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		ScannerURL:     consts.DefaultScannerURL,
		ScannerTimeout: consts.DefaultScannerTimeout,
		Serve: ServeConfig{
			Addr:            consts.DefaultListenAddr,
			RateLimit:       defaultRateLimit,
			RateBurst:       defaultRateBurst,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Analyze: AnalyzeConfig{
			Format:   formatText,
			OutDir:   defaultOutputDir,
			Progress: true,
		},
	}
}

// initConfig wires the config file and environment into viper. ANALYZER_URL is honoured
// alongside GATESPY_SCANNER_URL for scanner deployments that already export it.
func initConfig(v *viper.Viper, file string) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath("$HOME")
		v.SetConfigName(".gatespy")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("scanner_url", envPrefix+"_SCANNER_URL", legacyScannerURLEnv)

	_ = v.ReadInConfig()
}

// applyConfigDefaults merges config file and environment values into the runtime config
// when the user did not explicitly set the corresponding flag.
func applyConfigDefaults(cmd *cobra.Command, v *viper.Viper, cfg *CLIConfig) {
	flags := cmd.Flags()

	applyStringDefault(v, flags, "scanner_url", "scanner-url", func(s string) { cfg.ScannerURL = s })
	applyDurationDefault(v, flags, "scanner_timeout", "scanner-timeout", func(d time.Duration) { cfg.ScannerTimeout = d })

	applyStringDefault(v, flags, "addr", "addr", func(s string) { cfg.Serve.Addr = s })
	applyStringSliceDefault(v, flags, "cors_origins", "cors-origins", func(s []string) { cfg.Serve.CORSOrigins = s })
	applyIntDefault(v, flags, "rate_limit", "rate-limit", func(n int) { cfg.Serve.RateLimit = n })
	applyIntDefault(v, flags, "rate_burst", "rate-burst", func(n int) { cfg.Serve.RateBurst = n })
	applyDurationDefault(v, flags, "shutdown_timeout", "shutdown-timeout", func(d time.Duration) { cfg.Serve.ShutdownTimeout = d })

	applyStringDefault(v, flags, "gateway", "gateway", func(s string) { cfg.Analyze.Gateway = s })
	applyStringDefault(v, flags, "format", "format", func(s string) { cfg.Analyze.Format = s })
	applyStringDefault(v, flags, "out", "out", func(s string) { cfg.Analyze.OutDir = s })
}

func flagChanged(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	flag := flags.Lookup(name)
	return flag != nil && flag.Changed
}

func applyStringDefault(v *viper.Viper, flags *pflag.FlagSet, key, flag string, setter func(string)) {
	if !v.IsSet(key) || flagChanged(flags, flag) {
		return
	}
	if s := v.GetString(key); s != "" {
		setter(s)
	}
}

func applyIntDefault(v *viper.Viper, flags *pflag.FlagSet, key, flag string, setter func(int)) {
	if !v.IsSet(key) || flagChanged(flags, flag) {
		return
	}
	setter(v.GetInt(key))
}

func applyDurationDefault(v *viper.Viper, flags *pflag.FlagSet, key, flag string, setter func(time.Duration)) {
	if !v.IsSet(key) || flagChanged(flags, flag) {
		return
	}
	if d := v.GetDuration(key); d > 0 {
		setter(d)
	}
}

func applyStringSliceDefault(v *viper.Viper, flags *pflag.FlagSet, key, flag string, setter func([]string)) {
	if !v.IsSet(key) || flagChanged(flags, flag) {
		return
	}
	setter(v.GetStringSlice(key))
}
