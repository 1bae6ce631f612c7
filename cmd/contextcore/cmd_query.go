package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ferg-cod3s/contextcore/internal/engine"
	"github.com/ferg-cod3s/contextcore/internal/query"
	"github.com/ferg-cod3s/contextcore/internal/smartquery"
)

var (
	queryTopK          int
	queryThreshold     float32
	queryIncludeGlobal bool
	queryRepo          string
	queryLang          string
	queryPathPrefix    string
	queryRerank        bool
	querySynthesize    bool
	queryStrategies    []string
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search a project's indexed datasets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := eng.Query(cmd.Context(), buildQueryRequest(args[0]))
		if err != nil {
			return err
		}
		printHits(resp.Hits)
		return nil
	},
}

var smartQueryCmd = &cobra.Command{
	Use:   "smart-query [text]",
	Short: "Search with LLM query rewriting/HyDE and optional answer synthesis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategies := make([]smartquery.Strategy, 0, len(queryStrategies))
		for _, s := range queryStrategies {
			strategies = append(strategies, smartquery.Strategy(s))
		}
		if len(strategies) == 0 {
			strategies = smartquery.DefaultStrategies()
		}

		result, err := eng.SmartQuery(cmd.Context(), engine.SmartQueryRequest{
			QueryRequest: buildQueryRequest(args[0]),
			Strategies:   strategies,
			Synthesize:   querySynthesize,
		})
		if err != nil {
			return err
		}

		if result.Answer != nil {
			fmt.Fprintln(os.Stdout, result.Answer.Text)
			fmt.Fprintln(os.Stdout, "---")
		}
		printHits(result.Response.Hits)
		return nil
	},
}

func buildQueryRequest(text string) engine.QueryRequest {
	return engine.QueryRequest{
		Query:         text,
		Project:       projectFlag,
		Dataset:       datasetFlag,
		IncludeGlobal: queryIncludeGlobal,
		TopK:          queryTopK,
		Threshold:     queryThreshold,
		Repo:          queryRepo,
		Lang:          queryLang,
		PathPrefix:    queryPathPrefix,
		Rerank:        queryRerank,
	}
}

func printHits(hits []query.Hit) {
	for i, h := range hits {
		path, _ := h.Document.Metadata["file_path"].(string)
		fmt.Fprintf(os.Stdout, "%d. %s (score=%.4f, method=%s)\n", i+1, path, h.Scores.Final, h.Method)
	}
}

func init() {
	for _, c := range []*cobra.Command{queryCmd, smartQueryCmd} {
		c.Flags().IntVar(&queryTopK, "top-k", 10, "Maximum number of results")
		c.Flags().Float32Var(&queryThreshold, "threshold", 0.5, "Minimum raw similarity to include a result")
		c.Flags().BoolVar(&queryIncludeGlobal, "include-global", true, "Include datasets marked global")
		c.Flags().StringVar(&queryRepo, "repo", "", "Restrict to a repository")
		c.Flags().StringVar(&queryLang, "lang", "", "Restrict to a language")
		c.Flags().StringVar(&queryPathPrefix, "path-prefix", "", "Restrict to a path prefix")
		c.Flags().BoolVar(&queryRerank, "rerank", false, "Apply cross-encoder reranking")
	}
	smartQueryCmd.Flags().BoolVar(&querySynthesize, "synthesize", false, "Synthesize a cited answer from the fused results")
	smartQueryCmd.Flags().StringSliceVar(&queryStrategies, "strategy", nil, "Enhancement strategies: rewrite, hyde (default: both)")
}
