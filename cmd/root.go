package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nraw/gamescanner/internal/utils"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `
   __ _  __ _ _ __ ___   ___  ___  ___ __ _ _ __  _ __   ___ _ __
  / _' |/ _' | '_ ' _ \ / _ \/ __|/ __/ _' | '_ \| '_ \ / _ \ '__|
 | (_| | (_| | | | | | |  __/\__ \ (_| (_| | | | | | | |  __/ |
  \__, |\__,_|_| |_| |_|\___||___/\___\__,_|_| |_|_| |_|\___|_|
  |___/
`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gamescanner",
	Short: "Turn board game barcodes into BoardGameGeek ids and log your plays.",
	Long: LOGO + `
gamescanner maps a scanned barcode or a free-text game name to its BoardGameGeek id,
remembers every answer, and can log plays, update your wishlist and list your collection.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gamescanner.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default is ~/.config/gamescanner/gamescanner.sqlite)")
	rootCmd.PersistentFlags().String("provider", "", "Search provider: brave, google or duckduckgo")

	viper.BindPFlag("proxy", rootCmd.PersistentFlags().Lookup("proxy"))
	viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("dbpath"))
	viper.BindPFlag("search.provider", rootCmd.PersistentFlags().Lookup("provider"))
}

func setDefaults() {
	viper.SetDefault("search.provider", "brave")
	viper.SetDefault("search.timeout", "15s")
	viper.SetDefault("brave.api_key", "")
	viper.SetDefault("google.api_key", "")
	viper.SetDefault("google.cx", "")
	viper.SetDefault("resolve.memo_size", 1000)
	viper.SetDefault("resolve.bad_words", []string{})
	viper.SetDefault("bgg.username", "")
	viper.SetDefault("bgg.password", "")
	viper.SetDefault("bgg.api_key", "")
	viper.SetDefault("bgg.concurrency", 5)
	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setDefaults()

	home, err := homedir.Dir()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(home)
		viper.SetConfigName(".gamescanner")
		viper.SetConfigType("yaml")
	}

	// search.provider -> SEARCH_PROVIDER, brave.api_key -> BRAVE_API_KEY, ...
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.BindEnv("bgg.password", "BGG_PASSWORD", "BGG_PASS")

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			configPath := filepath.Join(home, ".gamescanner.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Fprintf(os.Stderr, "Error creating config file: %s\n", err)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	if err := utils.SetLogLevel(levelString); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
