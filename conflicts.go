package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newConflictsCmd stays for symmetry with spec §7's reserved Conflict error
// kind. Last-write-wins never surfaces a conflict to callers — there is no
// server-mediated resolution step to list — so this command only explains
// that and points at the optional LWW audit log for diagnostics.
func newConflictsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "Explain conflict handling (LWW never surfaces conflicts)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Println("docsync resolves every conflict with last-write-wins on last_modified; " +
				"no conflict is ever left for manual resolution. Each sync cycle's LWW " +
				"decisions are recorded in the local lww_audit table for diagnostics only.")
			return nil
		},
		Annotations: map[string]string{skipConfigAnnotation: "true"},
	}
}
