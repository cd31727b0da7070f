package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/askdex/internal/domain/query/intent"
	"github.com/kailas-cloud/askdex/internal/domain/query/response"
	chiTransport "github.com/kailas-cloud/askdex/internal/transport/chi"
	"github.com/kailas-cloud/askdex/internal/usecase/route"
)

type askFlags struct {
	user      string
	kind      string
	page      int
	skipCache bool
	asJSON    bool
}

func newAskCmd(g *globalFlags) *cobra.Command {
	f := &askFlags{}
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question about audit findings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.build(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			question := strings.Join(args, " ")
			opts := route.Options{UserID: f.user, Page: f.page, SkipCache: f.skipCache}

			var resp response.Response
			if f.kind != "" {
				kind, perr := intent.ParseKind(f.kind)
				if perr != nil {
					return perr
				}
				resp, err = a.Router.ExecuteAs(cmd.Context(), question, kind, opts)
			} else {
				resp, err = a.Router.Route(cmd.Context(), question, opts)
			}
			if err != nil {
				return userError(err)
			}

			if f.asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			return renderResponse(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&f.user, "user", "cli", "user id for quota accounting")
	cmd.Flags().StringVar(&f.kind, "kind", "", "force an execution kind (simple, complex, hybrid)")
	cmd.Flags().IntVar(&f.page, "page", 1, "result page for large data answers")
	cmd.Flags().BoolVar(&f.skipCache, "no-cache", false, "bypass the intent cache")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the raw JSON response")
	return cmd
}

func newClassifyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <question>",
		Short: "Show how a question would be routed without executing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.build(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			c, err := a.Router.Classify(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return userError(err)
			}
			return writeJSON(cmd.OutOrStdout(), chiTransport.ClassifyResponse{
				Intent:        c.Intent,
				EffectiveKind: c.Effective,
				Scores:        c.Scores,
				Rule:          c.Rule,
			})
		},
	}
}

// userError renders a router error as its message and hint.
func userError(err error) error {
	rerr, ok := route.AsError(err)
	if !ok {
		return err
	}
	if rerr.Hint == "" {
		return fmt.Errorf("%s", rerr.Message)
	}
	return fmt.Errorf("%s %s", rerr.Message, rerr.Hint)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderResponse prints a response for a terminal.
func renderResponse(w io.Writer, resp response.Response) error {
	fmt.Fprintf(w, "[%s] %s\n", resp.Kind, resp.Answer)

	if len(resp.Records) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDATE\tSEVERITY\tSTATUS\tTITLE")
		for _, r := range resp.Records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Date, r.Severity, r.Status, r.Title)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if a := resp.Analysis; a != nil && a.Performed && a.Text != resp.Answer {
		fmt.Fprintf(w, "\n%s\n", a.Text)
	}
	if a := resp.Analysis; a != nil && len(a.References) > 0 {
		ids := make([]string, len(a.References))
		for i, ref := range a.References {
			ids[i] = ref.ID
		}
		fmt.Fprintf(w, "\nSources: %s\n", strings.Join(ids, ", "))
	}

	for _, warn := range resp.Metadata.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	if p := resp.Pagination; p != nil && p.Paginated {
		fmt.Fprintf(w, "page %d of %d (%d findings)\n", p.Page, p.TotalPages, p.Total)
	}
	return nil
}

func newUsageCmd(g *globalFlags) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show a user's analytical query quota for today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.build(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			report, err := a.Usage.GetReport(cmd.Context(), user)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&user, "user", "cli", "user id")
	return cmd
}
