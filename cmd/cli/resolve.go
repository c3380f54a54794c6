package cli

import (
	"errors"
	"fmt"

	"github.com/miekg/dns"
	"github.com/spf13/cobra"

	"github.com/301redirect/redirector/cmd"
	customerrors "github.com/301redirect/redirector/internal/errors"
	"github.com/301redirect/redirector/internal/repository"
	"github.com/301redirect/redirector/internal/services"
)

// ResolveCmd runs the resolution pipeline for one host without serving or counting a hit.
var ResolveCmd = &cobra.Command{
	Use:   "resolve [host]",
	Short: "Show how a host would be redirected",
	Long: `Looks up the CNAME answers for the host (or the fixed domain in fixed mode),
prints the extracted subdomain and the matching record. The hit counter is
not incremented.

Example:
  redirector resolve go.customer.com`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	cmd.RootCmd.AddCommand(ResolveCmd)
}

func runResolve(c *cobra.Command, args []string) error {
	out := c.OutOrStdout()
	opts := cmd.LookupOptions()

	name := opts.FixedDomain
	if name == "" {
		host, err := services.NormalizeHost(args[0])
		if err != nil {
			return fmt.Errorf("%q: %w", args[0], err)
		}
		name = host
	}

	cnames, closeResolver, err := cmd.NewResolver()
	if err != nil {
		return err
	}
	defer closeResolver()

	answers, err := cnames.ResolveCNAME(c.Context(), name)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Lookup: %s\n", name)
	data := make([]string, 0, len(answers))
	for _, a := range answers {
		fmt.Fprintf(out, "  %s\t%d\t%s\t%s\n", a.Name, a.TTL, dns.TypeToString[a.Type], a.Data)
		data = append(data, a.Data)
	}
	if len(answers) == 0 {
		fmt.Fprintln(out, "  (no answers)")
	}

	subdomain := services.ExtractSubdomain(data, opts.ApexDomain)
	if subdomain == "" {
		fmt.Fprintf(out, "No answer points at %s: NotFound\n", opts.ApexDomain)
		return nil
	}
	fmt.Fprintf(out, "Subdomain: %s\n", subdomain)

	db, err := repository.OpenDatabase(cmd.Cfg.Database.DSN, cmd.Log)
	if err != nil {
		return err
	}
	defer repository.Close(db)

	redirect, err := repository.NewRedirectRepository(db).FindBySubdomain(c.Context(), subdomain)
	if errors.Is(err, customerrors.ErrRecordNotFound) {
		fmt.Fprintf(out, "No record for %s: NotFound\n", subdomain)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Location: %s\n", redirect.URL)
	fmt.Fprintf(out, "Hits: %d\n", redirect.Hits)
	return nil
}
