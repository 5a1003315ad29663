package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jwhalen/jobwatch/internal/ai"
	"github.com/jwhalen/jobwatch/internal/ai/gemini"
	"github.com/jwhalen/jobwatch/internal/browser"
	"github.com/jwhalen/jobwatch/internal/logger"
	"github.com/jwhalen/jobwatch/internal/notify"
	"github.com/jwhalen/jobwatch/internal/pipeline"
	"github.com/jwhalen/jobwatch/internal/profile"
	"github.com/jwhalen/jobwatch/internal/report"
	"github.com/jwhalen/jobwatch/internal/roberthalf"
	"github.com/jwhalen/jobwatch/internal/secrets"
	"github.com/jwhalen/jobwatch/internal/session"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	defaultSessionFile    = ".session/session_data.json"
	defaultSessionMaxAge  = 12 * time.Hour
	defaultState          = "TX"
	defaultPostedWithin   = "PAST_24_HOURS"
	defaultMaxRetries     = 3
	defaultRetryBaseDelay = 5 * time.Second
	defaultPageDelayMin   = 5 * time.Second
	defaultPageDelayMax   = 15 * time.Second
	defaultJobDelayMin    = 1 * time.Second
	defaultJobDelayMax    = 3 * time.Second
	defaultOutputDir      = "output"
	defaultDocsDir        = "docs"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one complete watch pass: fetch, diff, score, report, notify",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("analyze-all", "a", false, "analyze every fetched job, not only new ones")
	runCmd.Flags().BoolP("test-mode", "t", false, "force analysis and notification even without new jobs")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before analyzing jobs")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the jobwatch", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}
	if config.Browser == nil || config.Browser.LoginURL == "" {
		logger.Fatal("browser.login-url is required to authenticate")
	}

	creds, err := resolveCredentials(config)
	if err != nil {
		logger.Fatal(
			"loading job board credentials",
			zap.Error(err),
			zap.String("hint", "set ROBERTHALF_USERNAME and ROBERTHALF_PASSWORD environment variables or the browser.*-file config keys"),
		)
	}

	sessions := session.NewManager(
		newSessionStore(config, logger),
		browser.NewAuthenticator(creds, browserOptions(config), logger),
		logger,
	)

	searchCfg := searchConfig(config)
	board := roberthalf.New(logger, requestTimeout(config))

	scorer, err := newScorer(ctx, config, logger)
	if err != nil {
		logger.Fatal("building match scorer", zap.Error(err))
	}

	notifier, err := newNotifier(config, logger)
	if err != nil {
		logger.Fatal("building notifier", zap.Error(err))
	}

	outputDir, docsDir, reportURL := outputSettings(config)
	reports := report.NewWriter(outputDir, docsDir, searchCfg.State, searchCfg.PostedWithin, logger)

	opts := pipeline.Options{
		Search:      searchCfg,
		AnalyzeAll:  flagSet(cmd, "analyze-all"),
		TestMode:    flagSet(cmd, "test-mode"),
		ReportURL:   reportURL,
		JobDelayMin: defaultJobDelayMin,
		JobDelayMax: defaultJobDelayMax,
	}
	if config.Matching != nil {
		if d := secondsDuration(config.Matching.JobDelayMinSeconds); d > 0 {
			opts.JobDelayMin = d
		}
		if d := secondsDuration(config.Matching.JobDelayMaxSeconds); d > 0 {
			opts.JobDelayMax = d
		}
	}
	if !flagSet(cmd, "auto-approve") {
		opts.Confirm = confirmAnalysis
	}

	p := pipeline.New(pipeline.Deps{
		Sessions: sessions,
		Board:    board,
		Scorer:   scorer,
		Reports:  reports,
		Notifier: notifier,
		Logger:   logger,
	})

	result, err := p.Run(ctx, opts)
	switch {
	case errors.Is(err, session.ErrUnavailable):
		logger.Fatal("no usable session and authentication failed", zap.Error(err))
	case errors.Is(err, roberthalf.ErrSessionInvalid):
		logger.Fatal("session rejected by the job board", zap.Error(err))
	case errors.Is(err, roberthalf.ErrFetchFailed):
		logger.Fatal("job search failed despite a valid session", zap.Error(err))
	case err != nil:
		logger.Fatal("run failed", zap.Error(err))
	}

	logger.Info("run complete",
		zap.Int("total_jobs", len(result.Jobs)),
		zap.Int("new_jobs", len(result.NewIDs)),
		zap.Int("analyzed", result.Analyzed),
		zap.String("report", result.Summary.JSONPath),
	)
}

func flagSet(cmd *cobra.Command, name string) bool {
	flag := cmd.Flag(name)
	return flag != nil && flag.Value.String() == "true"
}

// confirmAnalysis asks before spending API credits on a batch of jobs.
func confirmAnalysis(count int) bool {
	prompt := promptui.Select{
		Label: fmt.Sprintf("Analyze %d jobs with Gemini?", count),
		Items: []string{PromptYes, PromptNo},
	}
	_, answer, err := prompt.Run()
	if err != nil {
		return false
	}
	return answer == PromptYes
}

func resolveCredentials(config *Config) (browser.Credentials, error) {
	username, err := secrets.Load(secrets.Source{
		Name: "robert half username",
		File: config.Browser.UsernameFile,
		Env:  "ROBERTHALF_USERNAME",
	})
	if err != nil {
		return browser.Credentials{}, err
	}

	password, err := secrets.Load(secrets.Source{
		Name: "robert half password",
		File: config.Browser.PasswordFile,
		Env:  "ROBERTHALF_PASSWORD",
	})
	if err != nil {
		return browser.Credentials{}, err
	}

	return browser.Credentials{Username: username, Password: password}, nil
}

func newSessionStore(config *Config, logger *zap.Logger) *session.Store {
	file := defaultSessionFile
	maxAge := defaultSessionMaxAge
	save := true

	if config.Session != nil {
		if config.Session.File != "" {
			file = config.Session.File
		}
		if config.Session.MaxAgeHours > 0 {
			maxAge = time.Duration(config.Session.MaxAgeHours) * time.Hour
		}
		if config.Session.Save != nil {
			save = *config.Session.Save
		}
	}

	return session.NewStore(file, maxAge, save, logger)
}

func browserOptions(config *Config) browser.Options {
	opts := browser.Options{
		LoginURL: config.Browser.LoginURL,
		Headless: true,
	}
	if config.Browser.Headless != nil {
		opts.Headless = *config.Browser.Headless
	}
	if config.Browser.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(config.Browser.TimeoutSeconds) * time.Second
	}
	opts.UserAgent = config.Browser.UserAgent
	opts.RotateUserAgent = config.Browser.RotateUserAgent
	opts.ScreenshotDir = config.Browser.ScreenshotDir
	return opts
}

func searchConfig(config *Config) roberthalf.SearchConfig {
	cfg := roberthalf.SearchConfig{
		State:          defaultState,
		PostedWithin:   defaultPostedWithin,
		MaxRetries:     defaultMaxRetries,
		RetryBaseDelay: defaultRetryBaseDelay,
		PageDelayMin:   defaultPageDelayMin,
		PageDelayMax:   defaultPageDelayMax,
	}

	if config.Search == nil {
		return cfg
	}
	if config.Search.State != "" {
		cfg.State = config.Search.State
	}
	if config.Search.PostedWithin != "" {
		cfg.PostedWithin = config.Search.PostedWithin
	}
	if config.Search.MaxRetries > 0 {
		cfg.MaxRetries = config.Search.MaxRetries
	}
	if d := secondsDuration(config.Search.RetryBaseDelaySeconds); d > 0 {
		cfg.RetryBaseDelay = d
	}
	if d := secondsDuration(config.Search.PageDelayMinSeconds); d > 0 {
		cfg.PageDelayMin = d
	}
	if d := secondsDuration(config.Search.PageDelayMaxSeconds); d > 0 {
		cfg.PageDelayMax = d
	}
	return cfg
}

func requestTimeout(config *Config) time.Duration {
	if config.Search != nil && config.Search.RequestTimeoutSeconds > 0 {
		return time.Duration(config.Search.RequestTimeoutSeconds) * time.Second
	}
	return 0
}

func newScorer(ctx context.Context, config *Config, log *zap.Logger) (ai.Scorer, error) {
	if config.Matching == nil || !config.Matching.Enabled {
		log.Info("match analysis is disabled")
		return nil, nil
	}

	if config.Matching.ProfileFile == "" {
		return nil, errors.New("matching.profile-file is required when matching is enabled")
	}

	prof, err := profile.Load(config.Matching.ProfileFile)
	if err != nil {
		return nil, fmt.Errorf("loading candidate profile: %w", err)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: config.Matching.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set matching.api-key-file or JOBWATCH_GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.WithFields(log, logger.StringFields(
		logger.StringField{Key: "provider", Value: "gemini"},
		logger.StringField{Key: logger.FieldModel, Value: config.Matching.Model},
	)...)

	generator, err := gemini.NewGenerator(ctx, apiKey, config.Matching.Model, config.Matching.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewScorer(generator, prof, gemini.Config{
		Tier1Threshold: config.Matching.Tier1Threshold,
		FinalThreshold: config.Matching.FinalThreshold,
		MaxLogLength:   config.Matching.MaxLogLength,
	}, log), nil
}

func newNotifier(config *Config, log *zap.Logger) (notify.Notifier, error) {
	if config.Pushover == nil || !config.Pushover.Enabled {
		log.Info("push notifications are disabled")
		return nil, nil
	}

	token, err := secrets.Load(secrets.Source{
		Name:  "pushover api token",
		Value: config.Pushover.Token,
		File:  config.Pushover.TokenFile,
		Env:   "JOBWATCH_PUSHOVER_TOKEN",
	})
	if err != nil {
		return nil, err
	}

	userKey, err := secrets.Load(secrets.Source{
		Name:  "pushover user key",
		Value: config.Pushover.UserKey,
		File:  config.Pushover.UserKeyFile,
		Env:   "JOBWATCH_PUSHOVER_USER_KEY",
	})
	if err != nil {
		return nil, err
	}

	return notify.NewPushover(token, userKey, log)
}

func outputSettings(config *Config) (outputDir, docsDir, reportURL string) {
	outputDir = defaultOutputDir
	docsDir = defaultDocsDir

	if config.Output != nil {
		if config.Output.Dir != "" {
			outputDir = config.Output.Dir
		}
		if config.Output.DocsDir != "" {
			docsDir = config.Output.DocsDir
		}
		reportURL = config.Output.ReportURL
	}
	return outputDir, docsDir, reportURL
}

func secondsDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
