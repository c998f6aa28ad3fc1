package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Permanently remove deleted and expired memories",
		Run:   runPurge,
	}

	RootCmd.AddCommand(cmd)
}

func runPurge(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	deleted, indexed, err := s.Purge(cmd.Context())
	if err != nil {
		exitErr("purge", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"deleted":%d,"index_entries":%d}`+"\n", deleted, indexed)
}
