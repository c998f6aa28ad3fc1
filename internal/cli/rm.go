package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm <id>...",
		Short: "Forget memories by id",
		Long:  "Soft-delete memories owned by the user. Ids owned by someone else are ignored. Run purge to reclaim space.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRm,
	}

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	user := requireUser("rm")

	ids, err := parseIDs(args)
	if err != nil {
		exitErr("rm", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := s.Delete(cmd.Context(), user, ids)
	if err != nil {
		exitErr("rm", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"deleted":%d}`+"\n", n)
}
