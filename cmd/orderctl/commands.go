package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"order-service/internal/biz"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const commandTimeout = 2 * time.Minute

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [order-number]",
		Short: "Approve or reject a payment awaiting verification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := operator(cmd)
			if err != nil {
				return err
			}
			reject, _ := cmd.Flags().GetBool("reject")
			return withApp(cmd, func(ctx context.Context, app *CtlApp) error {
				out, err := app.reconciler.ManualVerify(ctx, args[0], !reject, op)
				if err != nil {
					return err
				}
				printOutcome(cmd, out)
				return nil
			})
		},
	}
	cmd.Flags().Bool("reject", false, "reject the payment and restore stock")
	return cmd
}

func utrOverrideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "utr-override [order-number] [utr]",
		Short: "Record a bank transfer found on the statement against an order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := operator(cmd)
			if err != nil {
				return err
			}
			p := &biz.ManualPayment{OrderNumber: args[0], UTR: args[1]}
			if raw, _ := cmd.Flags().GetString("amount"); raw != "" {
				amount, err := decimal.NewFromString(raw)
				if err != nil {
					return fmt.Errorf("invalid --amount %q: %w", raw, err)
				}
				p.Amount = decimal.NewNullDecimal(amount)
			}
			p.MerchantVPA, _ = cmd.Flags().GetString("merchant-vpa")
			return withApp(cmd, func(ctx context.Context, app *CtlApp) error {
				out, err := app.reconciler.ManualUTROverride(ctx, p, op)
				if err != nil {
					return err
				}
				printOutcome(cmd, out)
				return nil
			})
		},
	}
	cmd.Flags().String("amount", "", "amount shown on the bank statement")
	cmd.Flags().String("merchant-vpa", "", "payee VPA shown on the bank statement")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [order-number] [completed|cancelled|refunded]",
		Short: "Update fulfillment status of an order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := operator(cmd)
			if err != nil {
				return err
			}
			status, ok := biz.ParseOrderStatus(strings.ToLower(args[1]))
			if !ok {
				return fmt.Errorf("unknown status %q", args[1])
			}
			return withApp(cmd, func(ctx context.Context, app *CtlApp) error {
				o, err := app.orders.UpdateFulfillmentStatus(ctx, args[0], status, op)
				if err != nil {
					return err
				}
				cmd.Printf("%s\t%s\n", o.OrderNumber, o.Status)
				return nil
			})
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Cancel stale pending orders and flag overdue verifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *CtlApp) error {
				result, err := app.sweep.SweepStaleOrders(ctx)
				if err != nil {
					return err
				}
				cmd.Printf("cancelled:        %d\n", len(result.Cancelled))
				for _, no := range result.Cancelled {
					cmd.Printf("  %s\n", no)
				}
				cmd.Printf("newly flagged:    %d\n", len(result.FlaggedOverdue))
				for _, no := range result.FlaggedOverdue {
					cmd.Printf("  %s\n", no)
				}
				cmd.Printf("overdue verifies: %d\n", result.OverdueVerifies)
				return nil
			})
		},
	}
}

func listUnmatchedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-unmatched",
		Short: "List payment evidence that matched no order",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, _ := cmd.Flags().GetInt("page")
			pageSize, _ := cmd.Flags().GetInt("page-size")
			return withApp(cmd, func(ctx context.Context, app *CtlApp) error {
				payments, total, err := app.reconciler.ListUnmatched(ctx, page, pageSize)
				if err != nil {
					return err
				}
				cmd.Printf("total: %d\n", total)
				for _, p := range payments {
					amount := "-"
					if p.Amount.Valid {
						amount = p.Amount.Decimal.StringFixed(2)
					}
					kind := "success"
					if p.Failure {
						kind = "failure"
					}
					cmd.Printf("%s\t%s\t%s\t%s\t%s\t%s\n",
						p.CreatedAt.Format(time.RFC3339), p.Rail, p.PaymentRef, amount, kind, p.CounterpartyVPA)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntP("page", "p", 1, "page number")
	cmd.Flags().IntP("page-size", "n", 20, "page size")
	return cmd
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *CtlApp) error) error {
	app, cleanup, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	return fn(ctx, app)
}

func printOutcome(cmd *cobra.Command, out *biz.Outcome) {
	cmd.Printf("order:   %s\n", out.OrderNumber)
	cmd.Printf("status:  %s\n", out.Status)
	cmd.Printf("result:  %s\n", out.Result)
	cmd.Printf("message: %s\n", out.Message)
	if out.ExpectedAmount.Valid || out.ReceivedAmount.Valid {
		cmd.Printf("amount:  expected %s, received %s\n", fixed(out.ExpectedAmount), fixed(out.ReceivedAmount))
	}
}

func fixed(a decimal.NullDecimal) string {
	if !a.Valid {
		return "-"
	}
	return a.Decimal.StringFixed(2)
}
