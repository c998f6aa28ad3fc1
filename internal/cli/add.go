package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/recall/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Remember a fact",
		Long:  "Remember a fact for a user. Text can be a positional arg or piped via stdin. Adding the same text again refreshes it.",
		Run:   runAdd,
	}

	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	cmd.Flags().Int("ttl", 0, "Days until the memory expires (0 = never)")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	tagsStr, _ := cmd.Flags().GetString("tags")
	ttl, _ := cmd.Flags().GetInt("ttl")
	user := requireUser("add")

	// Get text: positional arg first, then check stdin
	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			text = string(b)
		}
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	id, err := s.Add(cmd.Context(), store.AddParams{
		UserID:  user,
		Text:    strings.TrimSpace(text),
		Tags:    splitTags(tagsStr),
		TTLDays: ttl,
	})
	if err != nil {
		exitErr("add", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%d}`+"\n", id)
}
