package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/recall/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search a user's memories",
		Long:  "Search memories by relevance (full-text) or, without FTS5, by substring and recency.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().IntP("top-k", "k", 0, "Max results (default: search.default_top_k from config)")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags; match memories carrying any of them")
	cmd.Flags().Bool("include-expired", false, "Include expired memories")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	topK, _ := cmd.Flags().GetInt("top-k")
	tagsStr, _ := cmd.Flags().GetString("tags")
	includeExpired, _ := cmd.Flags().GetBool("include-expired")
	user := requireUser("search")

	if topK == 0 {
		topK = cfg.Search.DefaultTopK
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := s.Search(cmd.Context(), store.SearchParams{
		UserID:         user,
		Query:          strings.Join(args, " "),
		TopK:           topK,
		TagAny:         splitTags(tagsStr),
		IncludeExpired: includeExpired,
	})
	if err != nil {
		exitErr("search", err)
	}

	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
