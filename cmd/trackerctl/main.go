// Command trackerctl provisions and maintains a Brave Steps deployment.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cppla/bravesteps/app"
	"github.com/cppla/bravesteps/config"
	"github.com/cppla/bravesteps/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "trackerctl",
		Short:         "Operate the Brave Steps tracker database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv("APP_CONFIG", configPath)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json (default config/config.json)")

	root.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newUsersCmd(),
		newExportCmd(),
		newRemindersCmd(),
	)
	return root
}

// open loads config and wires the services the commands share.
func open() (*app.App, error) {
	cfg := config.Load()
	log, err := utils.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("open app", zap.Error(err))
		return nil, err
	}
	return a, nil
}

// withApp opens the app for the duration of fn.
func withApp(fn func(a *app.App) error) error {
	a, err := open()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
