package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "jobwatch"
)

type Config struct {
	Session  *SessionConfig  `mapstructure:"session"`
	Browser  *BrowserConfig  `mapstructure:"browser"`
	Search   *SearchConfig   `mapstructure:"search"`
	Matching *MatchingConfig `mapstructure:"matching"`
	Pushover *PushoverConfig `mapstructure:"pushover"`
	Output   *OutputConfig   `mapstructure:"output"`
}

type SessionConfig struct {
	File        string `mapstructure:"file"`
	MaxAgeHours int    `mapstructure:"max-age-hours"`
	Save        *bool  `mapstructure:"save"`
}

type BrowserConfig struct {
	LoginURL        string `mapstructure:"login-url"`
	Headless        *bool  `mapstructure:"headless"`
	TimeoutSeconds  int    `mapstructure:"timeout-seconds"`
	UserAgent       string `mapstructure:"user-agent"`
	RotateUserAgent bool   `mapstructure:"rotate-user-agent"`
	ScreenshotDir   string `mapstructure:"screenshot-dir"`
	UsernameFile    string `mapstructure:"username-file"`
	PasswordFile    string `mapstructure:"password-file"`
}

type SearchConfig struct {
	State                 string  `mapstructure:"state"`
	PostedWithin          string  `mapstructure:"posted-within"`
	MaxRetries            int     `mapstructure:"max-retries"`
	RetryBaseDelaySeconds float64 `mapstructure:"retry-base-delay-seconds"`
	PageDelayMinSeconds   float64 `mapstructure:"page-delay-min-seconds"`
	PageDelayMaxSeconds   float64 `mapstructure:"page-delay-max-seconds"`
	RequestTimeoutSeconds int     `mapstructure:"request-timeout-seconds"`
}

type MatchingConfig struct {
	Enabled            bool    `mapstructure:"enabled"`
	ProfileFile        string  `mapstructure:"profile-file"`
	APIKeyFile         string  `mapstructure:"api-key-file"`
	Model              string  `mapstructure:"model"`
	MaxRetries         int     `mapstructure:"max-retries"`
	MaxLogLength       int     `mapstructure:"max-log-length"`
	Tier1Threshold     float64 `mapstructure:"tier1-threshold"`
	FinalThreshold     float64 `mapstructure:"final-threshold"`
	JobDelayMinSeconds float64 `mapstructure:"job-delay-min-seconds"`
	JobDelayMaxSeconds float64 `mapstructure:"job-delay-max-seconds"`
}

type PushoverConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Token       string `mapstructure:"token"`
	TokenFile   string `mapstructure:"token-file"`
	UserKey     string `mapstructure:"user-key"`
	UserKeyFile string `mapstructure:"user-key-file"`
}

type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	DocsDir   string `mapstructure:"docs-dir"`
	ReportURL string `mapstructure:"report-url"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobwatch is a job-board watcher that scrapes Robert Half postings and scores them against your profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("matching.api-key-file", "JOBWATCH_GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding JOBWATCH_GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobwatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
