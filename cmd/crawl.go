package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sale-shoe-crawler/internal/profile"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl <profile> [section...|all]",
		Short: "Crawls one retailer profile",
		Long: `Seeds the frontier with the profile's sale sections (all defaults when no
section is given, or "all"), crawls until no work is left and exits.`,
		Args: validateCrawlArgs,
		RunE: runCrawlCommand,
	}
}

// validateCrawlArgs runs before any service is built, so an unknown profile
// never touches the database.
func validateCrawlArgs(_ *cobra.Command, args []string) error {
	known := profile.Names()
	if len(args) == 0 {
		return fmt.Errorf("profile is required (known: %s)", strings.Join(known, ", "))
	}
	if !slices.Contains(known, strings.ToLower(strings.TrimSpace(args[0]))) {
		return fmt.Errorf("%w %q (known: %s)", profile.ErrUnknownProfile, args[0], strings.Join(known, ", "))
	}
	return nil
}

func runCrawlCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	name, sections := args[0], args[1:]
	summary, err := appInstance.Crawl(cmd.Context(), name, sections)
	if err != nil {
		return fmt.Errorf("crawl %s: %w", name, err)
	}
	appInstance.Logger().Info("crawl command finished",
		zap.String("profile", summary.Profile),
		zap.Int("completed", summary.Completed),
		zap.Int("records", summary.Records),
	)
	return nil
}
