package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dshills/cphelper/internal/cache"
	"github.com/spf13/cobra"
)

var flagEntries bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the remembered inputs and expected outputs",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every remembered input and expected output",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, errOut, err := setup()
		if err != nil {
			exitCode = fail(errOut, err)
			return nil
		}
		if err := cache.Clear(settings.CacheFile); err != nil {
			exitCode = fail(errOut, fmt.Errorf("clearing cache: %w", err))
			return nil
		}
		fmt.Fprintln(stdout, "Cache cleared.")
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, errOut, err := setup()
		if err != nil {
			exitCode = fail(errOut, err)
			return nil
		}
		store, err := cache.Open(settings.CacheFile)
		if err != nil {
			exitCode = fail(errOut, err)
			return nil
		}
		data, err := json.MarshalIndent(store.GetStats(), "", "  ")
		if err != nil {
			exitCode = fail(errOut, err)
			return nil
		}
		fmt.Fprintln(stdout, string(data))

		if flagEntries && store.Len() > 0 {
			fmt.Fprintln(stdout)
			tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SAVED\tINPUT\tEXPECTED\tFILE")
			for _, e := range store.Entries() {
				expected := "-"
				if e.HasExpected() {
					expected = fmt.Sprintf("%dB", len(*e.Expected))
				}
				fmt.Fprintf(tw, "%s\t%dB\t%s\t%s\n",
					e.CreatedAt.Local().Format(time.DateTime), len(e.Input), expected, e.Path)
			}
			if err := tw.Flush(); err != nil {
				exitCode = fail(errOut, err)
			}
		}
		return nil
	},
}

var cacheForgetCmd = &cobra.Command{
	Use:   "forget <file>",
	Short: "Forget the input and expected output remembered for one file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, errOut, err := setup()
		if err != nil {
			exitCode = fail(errOut, err)
			return nil
		}
		file, err := filepath.Abs(args[0])
		if err != nil {
			exitCode = fail(errOut, err)
			return nil
		}
		store, err := cache.Open(settings.CacheFile)
		if err != nil {
			exitCode = fail(errOut, err)
			return nil
		}
		removed, err := store.Remove(file)
		if cerr := store.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			exitCode = fail(errOut, fmt.Errorf("updating cache: %w", err))
			return nil
		}
		if removed {
			fmt.Fprintf(stdout, "Forgot %s\n", file)
		} else {
			fmt.Fprintf(stdout, "Nothing cached for %s\n", file)
		}
		return nil
	},
}

func init() {
	cacheShowCmd.Flags().BoolVar(&flagEntries, "entries", false, "List every cached file")
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheForgetCmd)
}
