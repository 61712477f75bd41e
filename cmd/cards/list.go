package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vanshika/quickpay/backend/internal/service"
)

func listCmd(factory serviceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list [client-id]",
		Short: "List a client's cards grouped across entities",
		Long: `List a client's cards, one row per physical card.

Examples:
  cards list 1001
  cards list 1001 --json
  cards list 1001 --fixtures ./fixtures`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseClientID(args[0])
			if err != nil {
				return err
			}
			svc, release, err := open(cmd, factory)
			if err != nil {
				return err
			}
			defer release()

			view, err := svc.Cards(cmd.Context(), clientID)
			if err != nil {
				return fmt.Errorf("load cards: %w", err)
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return outputJSON(cmd.OutOrStdout(), view)
			}
			return outputCards(cmd.OutOrStdout(), view)
		},
	}
}

func outputJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func outputCards(w io.Writer, view service.CardView) error {
	if len(view.Cards) == 0 {
		fmt.Fprintf(w, "Client %d has no cards on file.\n", view.ClientID)
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DEFAULT\tCARD\tHOLDER\tPROFILE\tENTITIES\tMISSING\tFINGERPRINT")
		for _, c := range view.Cards {
			marker := ""
			if c.IsDefault {
				marker = "*"
			}
			fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\t%s\t%s\n",
				marker,
				c.CardType,
				c.LastFour,
				c.HolderName,
				c.PaymentProfileID,
				joinOrDash(c.Entities),
				joinOrDash(c.MissingEntities),
				c.Fingerprint,
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if view.Warning != "" {
		fmt.Fprintf(w, "warning: %s\n", view.Warning)
	}
	for _, s := range view.Skipped {
		fmt.Fprintf(w, "skipped profile %s: %s\n", s.PaymentProfileID, s.Reason)
	}
	return nil
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}
