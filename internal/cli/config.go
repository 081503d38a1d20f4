package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dshills/cphelper/internal/command"
	"github.com/dshills/cphelper/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the language configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, errOut, err := setup()
		if err != nil {
			exitCode = fail(errOut, err)
			return nil
		}
		path := os.Getenv("CPR_CONFIG")
		if path == "" {
			if path, err = config.DefaultPath(); err != nil {
				exitCode = fail(errOut, err)
				return nil
			}
		}

		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(stderr, "Config file already exists at %s\n", path)
			return nil
		}
		if err := config.WriteStarter(path); err != nil {
			exitCode = fail(errOut, err)
			return nil
		}
		fmt.Fprintf(stdout, "Config file created at %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the configured languages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, errOut, err := setup()
		if err != nil {
			exitCode = fail(errOut, err)
			return nil
		}
		cfg, err := config.Load()
		if err != nil {
			exitCode = fail(errOut, err)
			return nil
		}

		placeholders := make([]string, 0, len(command.Placeholders()))
		for _, name := range command.Placeholders() {
			placeholders = append(placeholders, "${"+name+"}")
		}
		fmt.Fprintf(stdout, "Config file: %s\n", cfg.Path)
		fmt.Fprintf(stdout, "Placeholders: %s\n", strings.Join(placeholders, ", "))
		for _, lang := range cfg.Languages {
			fmt.Fprintf(stdout, "\n%s (%s)\n", lang.Name, strings.Join(lang.Extensions, ", "))
			for i, c := range lang.Commands {
				fmt.Fprintf(stdout, "  %d. %s\n", i+1, c)
			}
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, errOut, err := setup()
		if err != nil {
			exitCode = fail(errOut, err)
			return nil
		}
		path, err := config.Find()
		if err != nil {
			if errors.Is(err, config.ErrNotFound) {
				if locations, lerr := config.Locations(); lerr == nil {
					fmt.Fprintf(stderr, "Looked in:\n  %s\n", strings.Join(locations, "\n  "))
				}
			}
			exitCode = fail(errOut, err)
			return nil
		}
		fmt.Fprintln(stdout, path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}
