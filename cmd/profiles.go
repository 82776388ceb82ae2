package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/sale-shoe-crawler/internal/profile"
)

// newProfilesCmd lists the registered profiles. It needs no services, so it
// replaces the root hooks with no-ops.
func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "profiles",
		Short:             "Lists crawlable profiles and their default sections",
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		PersistentPostRun: func(*cobra.Command, []string) {},
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROFILE\tBRAND\tDEFAULT SECTIONS")
			for _, name := range profile.Names() {
				p, err := profile.New(name, profile.Options{})
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name(), p.Brand(), strings.Join(p.DefaultSections(), ", "))
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("write profiles: %w", err)
			}
			return nil
		},
	}
}
