package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/lab-portal-api/internal/app"
	"github.com/jwalitptl/lab-portal-api/internal/service/pricing"
)

var resolveUser string

var resolvePriceCmd = &cobra.Command{
	Use:   "resolve-price <exam-id>",
	Short: "Show the price an exam resolves to for a user (or the public)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver := app.NewResolver(*cfg, repos, nil, log)
		return runResolve(cmd.Context(), cmd.OutOrStdout(), resolver, args[0], resolveUser)
	},
}

func init() {
	resolvePriceCmd.Flags().StringVar(&resolveUser, "user", "", "user id to resolve for; empty resolves the public price")
}

func runResolve(ctx context.Context, out io.Writer, resolver pricing.PriceResolver, rawExam, rawUser string) error {
	examID, err := uuid.Parse(rawExam)
	if err != nil {
		return fmt.Errorf("invalid exam id %q", rawExam)
	}
	var userID *uuid.UUID
	if rawUser != "" {
		id, err := uuid.Parse(rawUser)
		if err != nil {
			return fmt.Errorf("invalid user id %q", rawUser)
		}
		userID = &id
	}

	res, err := resolver.ResolvePrice(ctx, examID, userID)
	if errors.Is(err, pricing.ErrPriceNotFound) {
		fmt.Fprintln(out, "no price available")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "price:  %s\n", res.Price.StringFixed(2))
	fmt.Fprintf(out, "tariff: %s\n", res.TariffName)
	if res.ReferenceName != "" {
		fmt.Fprintf(out, "reference: %s\n", res.ReferenceName)
	}
	fmt.Fprintf(out, "source: %s\n", res.Source)
	return nil
}
