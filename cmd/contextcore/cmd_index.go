package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ferg-cod3s/contextcore/internal/engine"
	"github.com/ferg-cod3s/contextcore/internal/ingest"
)

var (
	indexMaxFileSize int64
	indexIgnore      []string
	gitBranch        string
	gitCloneDir      string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Ingest content into a project/dataset",
}

var indexLocalCmd = &cobra.Command{
	Use:   "local [path]",
	Short: "Index a local directory tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := eng.IndexLocal(cmd.Context(), engine.IndexLocalRequest{
			Path:           args[0],
			Project:        projectFlag,
			Dataset:        datasetFlag,
			MaxFileSize:    indexMaxFileSize,
			IgnorePatterns: indexIgnore,
			OnProgress:     printProgress,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "started job %s\n", jobID)
		return nil
	},
}

var indexGitCmd = &cobra.Command{
	Use:   "git [remote-url]",
	Short: "Shallow-clone and index a git repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cloneDir := gitCloneDir
		if cloneDir == "" {
			dir, err := os.MkdirTemp("", "contextcore-clone-*")
			if err != nil {
				return fmt.Errorf("create clone dir: %w", err)
			}
			cloneDir = dir
		}

		jobID, err := eng.IndexGit(cmd.Context(), engine.IndexGitRequest{
			RemoteURL:  args[0],
			Branch:     gitBranch,
			Project:    projectFlag,
			Dataset:    datasetFlag,
			CloneDir:   cloneDir,
			OnProgress: printProgress,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "started job %s (cloned to %s)\n", jobID, cloneDir)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync [path]",
	Short: "Synchronously re-index a local directory against its last snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chunks, err := eng.SyncLocal(cmd.Context(), args[0], projectFlag, datasetFlag, indexIgnore)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "synced %d chunks\n", chunks)
		return nil
	},
}

func printProgress(p ingest.Progress) {
	fmt.Fprintf(os.Stderr, "[%s] %d/%d files, %d chunks\n", p.Phase, p.FilesProcessed, p.TotalFiles, p.ChunksCreated)
}

func init() {
	indexLocalCmd.Flags().Int64Var(&indexMaxFileSize, "max-file-size", 1<<20, "Skip files larger than this many bytes")
	indexLocalCmd.Flags().StringSliceVar(&indexIgnore, "ignore", nil, "Additional ignore glob patterns")
	indexGitCmd.Flags().StringVar(&gitBranch, "branch", "", "Branch to clone (defaults to the remote's default branch)")
	indexGitCmd.Flags().StringVar(&gitCloneDir, "clone-dir", "", "Directory to clone into (defaults to a temp dir)")
	syncCmd.Flags().StringSliceVar(&indexIgnore, "ignore", nil, "Additional ignore glob patterns")

	indexCmd.AddCommand(indexLocalCmd, indexGitCmd)
}
