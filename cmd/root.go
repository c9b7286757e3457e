/*
 * channel-resolver keeps live channel manifest URLs fresh and serves them.
 * Copyright (C) 2025  Lucas Duport
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lucasduport/channel-resolver/pkg/cache"
	"github.com/lucasduport/channel-resolver/pkg/channels"
	"github.com/lucasduport/channel-resolver/pkg/database"
	"github.com/lucasduport/channel-resolver/pkg/discord"
	"github.com/lucasduport/channel-resolver/pkg/render"
	"github.com/lucasduport/channel-resolver/pkg/resolver"
	"github.com/lucasduport/channel-resolver/pkg/server"
	"github.com/lucasduport/channel-resolver/pkg/utils"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "channel-resolver",
	Short: "Keeps live channel manifest URLs fresh and serves them over HTTP",
	Long: `channel-resolver turns stable channel ids into the current HLS manifest
URL of each channel's embed page and serves them to playback clients.

It supports:
- Headless browser rendering with simulated player interaction
- Plain HTTP fetch with player configuration extraction
- Hourly background refresh with last-known-good fallback
- Optional PostgreSQL resolution history and Discord failure alerts`,

	Run: func(cmd *cobra.Command, args []string) {
		if err := run(); err != nil {
			utils.ErrorLog("%v", err)
			utils.Close()
			os.Exit(1)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Config file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.channel-resolver.yaml)")

	// Server
	rootCmd.Flags().Int("port", server.DefaultPort, "Listening port")
	rootCmd.Flags().Bool("debug-html", true, "Expose GET /debug/html-{id}")

	// Rendering
	rootCmd.Flags().String("renderer", string(render.ModeBrowser), "Page renderer: browser or fetch")
	rootCmd.Flags().String("chrome-path", "", "Chrome/Chromium binary (default: autodetect)")
	rootCmd.Flags().Bool("headless", true, "Run the browser headless")
	rootCmd.Flags().Duration("navigation-timeout", render.DefaultNavigationTimeout, "Page load budget in browser mode")
	rootCmd.Flags().Duration("fetch-timeout", render.DefaultFetchTimeout, "HTTP timeout in fetch mode")
	rootCmd.Flags().Duration("resolve-timeout", 0, "Overall budget of one resolution (default 60s browser, 15s fetch)")
	rootCmd.Flags().Duration("poll-interval", resolver.DefaultPollInterval, "Progress interval while waiting for a manifest")

	// Refresh
	rootCmd.Flags().Duration("refresh-interval", cache.DefaultRefreshInterval, "Period of the background refresh")
	rootCmd.Flags().Bool("refresh-on-start", true, "Refresh every channel at startup")

	// History
	rootCmd.Flags().Bool("history-enabled", false, "Journal resolutions to PostgreSQL (DB_* variables)")
	rootCmd.Flags().Duration("history-retention", 30*24*time.Hour, "Age after which history rows are pruned at startup")

	// Logging
	rootCmd.Flags().Bool("debug-logging", false, "Enable debug logging")
	rootCmd.Flags().String("log-file", "", "Also write logs to this file")

	// Bind all flags to viper
	if err := viper.BindPFlags(rootCmd.Flags()); err != nil {
		utils.ErrorLog("Error binding PFlags to viper: %v", err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory and current directory
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".channel-resolver")
	}

	// Replace hyphens with underscores in environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Read environment variables
	viper.AutomaticEnv()

	// Read in config file if found
	if err := viper.ReadInConfig(); err == nil {
		utils.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

// run wires every component and blocks until SIGINT or SIGTERM.
func run() error {
	if viper.GetBool("debug-logging") {
		utils.SetDebug(true)
	}
	if path := viper.GetString("log-file"); path != "" {
		if err := utils.SetLogFile(path); err != nil {
			return err
		}
	}
	defer utils.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	utils.InfoLog("[channel-resolver] Server is starting...")
	table := channels.Default()
	utils.InfoLog("Serving %d channels: %s", table.Len(), strings.Join(table.IDs(), ", "))

	renderer, closeRenderer, err := newRenderer()
	if err != nil {
		return err
	}
	defer closeRenderer()

	res := resolver.New(table, renderer, resolver.Options{
		Timeout:      viper.GetDuration("resolve-timeout"),
		PollInterval: viper.GetDuration("poll-interval"),
	})
	utils.InfoLog("Renderer: %s, resolution budget %v", res.Mode(), res.Timeout())

	var (
		opts    []cache.Option
		history server.HistoryReader
	)
	if viper.GetBool("history-enabled") {
		db, err := database.NewDBManager(ctx, database.ConnString())
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()
		if _, err := db.PruneResolutions(ctx, viper.GetDuration("history-retention")); err != nil {
			utils.WarnLog("Failed to prune resolution history: %v", err)
		}
		opts = append(opts, cache.WithJournal(db))
		history = db
	} else {
		utils.InfoLog("Bootstrap: resolution history is DISABLED")
	}

	notifier, err := discord.NewNotifierFromEnv()
	if err != nil {
		return err
	}
	if notifier != nil {
		defer notifier.Close()
		opts = append(opts, cache.WithAlerter(notifier))
	}

	coordinator := cache.NewCoordinator(table, res, opts...)
	scheduler := cache.NewScheduler(coordinator,
		viper.GetDuration("refresh-interval"), viper.GetBool("refresh-on-start"))
	scheduler.Start(ctx)

	conf := &server.Config{
		Port:    viper.GetInt("port"),
		Cache:   coordinator,
		History: history,
	}
	if viper.GetBool("debug-html") {
		conf.Snapshots = res
	}

	serveErr := server.NewServer(conf).Serve(ctx)
	stop()

	select {
	case <-scheduler.Done():
	case <-time.After(5 * time.Second):
		utils.WarnLog("Refresh still running at shutdown; abandoning it")
	}
	return serveErr
}

// newRenderer builds the configured page renderer and its cleanup.
func newRenderer() (render.Renderer, func(), error) {
	switch mode := render.Mode(strings.ToLower(viper.GetString("renderer"))); mode {
	case render.ModeBrowser:
		browser := render.NewBrowser(render.BrowserOptions{
			ExecPath: viper.GetString("chrome-path"),
			Headless: viper.GetBool("headless"),
		})
		return render.NewBrowserRenderer(browser, viper.GetDuration("navigation-timeout")), browser.Close, nil
	case render.ModeFetch:
		return render.NewFetchRenderer(viper.GetDuration("fetch-timeout")), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown renderer %q (want %s or %s)", mode, render.ModeBrowser, render.ModeFetch)
	}
}
