package cmd

import (
	"fmt"
	"os"

	"curlcards-backend/lib/configutil"
	"curlcards-backend/lib/osutil"
	"curlcards-backend/lib/rosterstore"
	"curlcards-backend/lib/scrapers/curlingmembers"
	"curlcards-backend/lib/telemetry"

	"github.com/spf13/cobra"
)

type Config struct {
	BaseUrl  string   `json:"base_url"`
	CacheDir string   `json:"cache_dir"`
	League   string   `json:"league"`
	Day      string   `json:"day"`
	Gender   string   `json:"gender"`
	Times    []string `json:"times"`
}

var defaultConfig = Config{
	BaseUrl:  "https://curlingmembers.com",
	CacheDir: "cache",
	League:   "Mansfield",
	Day:      "Wednesday",
	Gender:   "M",
	Times:    []string{"6:35/8:45PM"},
}

var verbose bool
var config Config

var rootCmd = &cobra.Command{
	Use:   "curlcards",
	Short: "curlcards exports league night team card data from the club's membership portal.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		err := telemetry.SetupFromEnv(cmd.Context(), "curlcards")
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		telemetry.InstrumentPerfStats(cmd.Context())

		config, err = loadConfig()
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return telemetry.Shutdown(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func loadConfig() (Config, error) {
	cfg, err := configutil.ReadRecursively[Config]("config.json5")
	if os.IsNotExist(err) {
		return defaultConfig, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config.json5: %w", err)
	}

	if cfg.BaseUrl == "" {
		cfg.BaseUrl = defaultConfig.BaseUrl
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = defaultConfig.CacheDir
	}
	if cfg.League == "" {
		cfg.League = defaultConfig.League
	}
	if cfg.Day == "" {
		cfg.Day = defaultConfig.Day
	}
	if cfg.Gender == "" {
		cfg.Gender = defaultConfig.Gender
	}
	if cfg.Times == nil {
		cfg.Times = defaultConfig.Times
	}
	return cfg, nil
}

func newClient() (*curlingmembers.Client, error) {
	return curlingmembers.NewClient(curlingmembers.ClientOptions{
		BaseUrl:  config.BaseUrl,
		Username: os.Getenv("MCC_USERNAME"),
		Password: os.Getenv("MCC_PASSWORD"),
	})
}

func newStore() (*rosterstore.Store, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	return rosterstore.New(config.CacheDir, client), nil
}

func Execute() {
	if err := rootCmd.ExecuteContext(osutil.SignalContext()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
