package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanshika/quickpay/backend/internal/service"
)

var errAborted = errors.New("aborted")

func setDefaultCmd(factory serviceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-default [client-id] [fingerprint]",
		Short: "Make a card the client's default payment method",
		Long: `Make a card the client's default payment method.

The fingerprint is shown by "cards list".

Examples:
  cards set-default 1001 4242-Ada-Lovelace
  cards set-default 1001 4242-Ada-Lovelace --yes`,
		Args: cobra.ExactArgs(2),
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

			ctx := cmd.Context()
			conf, err := svc.BeginSetDefault(ctx, clientID, args[1])
			if err != nil {
				return err
			}
			if err := confirm(cmd, svc, conf); err != nil {
				return err
			}
			view, err := svc.ConfirmSetDefault(ctx, clientID, conf.Token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ending in %s is now the default card.\n", conf.CardType, conf.LastFour)
			return outputCards(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func deleteCmd(factory serviceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [client-id] [payment-profile-id]",
		Short: "Delete a card from one or every entity",
		Long: `Delete a card. Without --entity every association of the card is removed.

Examples:
  cards delete 1001 500013
  cards delete 1001 500013 --entity cg --yes`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseClientID(args[0])
			if err != nil {
				return err
			}
			entity, _ := cmd.Flags().GetString("entity")

			svc, release, err := open(cmd, factory)
			if err != nil {
				return err
			}
			defer release()

			ctx := cmd.Context()
			conf, err := svc.BeginDelete(ctx, clientID, args[1], strings.TrimSpace(entity))
			if err != nil {
				return err
			}
			if err := confirm(cmd, svc, conf); err != nil {
				return err
			}
			view, err := svc.ConfirmDelete(ctx, clientID, conf.Token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s ending in %s (%s).\n", conf.CardType, conf.LastFour, conf.Scope)
			return outputCards(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().StringP("entity", "e", "", "Only remove the card from this entity")
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

// confirm shows the dialog message and waits for y/yes on stdin unless
// --yes was given. Any other answer cancels the pending confirmation.
func confirm(cmd *cobra.Command, svc *service.CardService, conf service.Confirmation) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, conf.Message)

	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return nil
	}

	fmt.Fprint(out, "Proceed? [y/N] ")
	if !readYes(cmd.InOrStdin()) {
		if err := svc.Cancel(conf.ClientID, conf.Token); err != nil {
			return fmt.Errorf("cancel confirmation: %w", err)
		}
		return errAborted
	}
	return nil
}

func readYes(in io.Reader) bool {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func parseClientID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid client id %q", raw)
	}
	return id, nil
}
