package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var watchIgnore []string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage filesystem watchers that keep a dataset synced",
}

var watchStartCmd = &cobra.Command{
	Use:   "start [path]",
	Short: "Start watching a local directory for changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := eng.WatchLocal(cmd.Context(), args[0], projectFlag, datasetFlag, watchIgnore)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "watching %s as %s\n", args[0], id)
		return nil
	},
}

var watchStopCmd = &cobra.Command{
	Use:   "stop [path]",
	Short: "Stop watching a path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return eng.StopWatching(cmd.Context(), args[0])
	},
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active watchers",
	RunE: func(cmd *cobra.Command, args []string) error {
		watchers, err := eng.WatchersList(cmd.Context(), projectFlag)
		if err != nil {
			return err
		}
		for _, w := range watchers {
			fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", w.ID, w.ProjectID, w.RootPath)
		}
		return nil
	},
}

func init() {
	watchStartCmd.Flags().StringSliceVar(&watchIgnore, "ignore", nil, "Additional ignore glob patterns")
	watchCmd.AddCommand(watchStartCmd, watchStopCmd, watchListCmd)
}
