package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	clearDryRun  bool
	historyLimit int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document counts per dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := eng.Stats(cmd.Context(), projectFlag)
		if err != nil {
			return err
		}
		for _, s := range stats {
			fmt.Fprintf(os.Stdout, "%s\t%s\t%d docs\n", s.Dataset.ID, s.CollectionName, s.DocumentCount)
		}
		return nil
	},
}

var listScopesCmd = &cobra.Command{
	Use:   "list-scopes",
	Short: "List datasets registered under a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		datasets, err := eng.ListScopes(cmd.Context(), projectFlag)
		if err != nil {
			return err
		}
		for _, d := range datasets {
			fmt.Fprintf(os.Stdout, "%s\t%s\tglobal=%v\n", d.ID, d.Name, d.Global)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent ingestion jobs for a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := eng.History(cmd.Context(), projectFlag, historyLimit)
		if err != nil {
			return err
		}
		for _, j := range jobs {
			fmt.Fprintf(os.Stdout, "%s\t%s\t%s\t%s\n", j.ID, j.DatasetID, j.Status, j.Phase)
		}
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop a dataset's (or a project's) backing collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := eng.Clear(cmd.Context(), projectFlag, datasetFlag, clearDryRun)
		if err != nil {
			return err
		}
		for _, c := range result.Collections {
			fmt.Fprintln(os.Stdout, c)
		}
		fmt.Fprintf(os.Stdout, "%d collection(s) deleted\n", result.CollectionsDeleted)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a project/dataset has anything indexed",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := eng.GetStatus(cmd.Context(), projectFlag, datasetFlag)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "project=%s dataset=%s collection=%s indexed=%v\n",
			status.Project, status.Dataset, status.CollectionName, status.Indexed)
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and control background ingestion jobs",
}

var jobsGetCmd = &cobra.Command{
	Use:   "get [job-id]",
	Short: "Get a job's current status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := eng.JobGet(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s\t%s\t%s\t%d/%d files\t%d chunks\n",
			job.ID, job.Status, job.Phase, job.FilesProcessed, job.TotalFiles, job.ChunksCreated)
		return nil
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel [job-id]",
	Short: "Cancel a running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return eng.JobCancel(args[0])
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearDryRun, "dry-run", false, "Report what would be deleted without deleting it")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum number of jobs to show")

	jobsCmd.AddCommand(jobsGetCmd, jobsCancelCmd)
}
