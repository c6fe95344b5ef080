// ledgerctl runs ledger operations from the command line: manual
// reconciliation, balance lookups and trial grants.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inbound-genie/internal/app"
	"inbound-genie/internal/audit"
	"inbound-genie/internal/auth"
	"inbound-genie/internal/billing"
	"inbound-genie/internal/config"
	"inbound-genie/internal/credits"
	"inbound-genie/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Inbound Genie credit ledger operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	reconcileCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Bill every billable call that has no usage log yet",
		RunE:  cmdReconcile,
	}

	balanceCmd = &cobra.Command{
		Use:   "balance",
		Short: "Print an account's balance, status and trial state",
		RunE:  cmdBalance,
	}

	grantTrialCmd = &cobra.Command{
		Use:   "grant-trial",
		Short: "Grant the free trial to an account, creating it if needed",
		RunE:  cmdGrantTrial,
	}

	flags struct {
		Account string
		All     bool
		Workers int
	}

	// operator is recorded as the actor of audit events written by ledgerctl.
	operator = audit.Actor{UserID: "ledgerctl", Role: auth.RoleService}
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flags.Account, "account", "", "account id")
	reconcileCmd.Flags().BoolVar(&flags.All, "all", false, "reconcile every account")
	reconcileCmd.Flags().IntVar(&flags.Workers, "workers", 0, "calls billed in parallel per account (default RECONCILE_WORKERS)")

	rootCmd.AddCommand(reconcileCmd, balanceCmd, grantTrialCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("ledgerctl failed", "err", err)
		os.Exit(1)
	}
}

// open loads config and builds the same components the API uses.
func open(cmd *cobra.Command) (context.Context, *app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.App.Env).With("cmd", cmd.Name())
	slog.SetDefault(log)

	ctx := logger.With(cmd.Context(), log)
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return ctx, a, nil
}

func cmdReconcile(cmd *cobra.Command, _ []string) error {
	if flags.Account == "" && !flags.All {
		return errors.New("either --account or --all is required")
	}
	ctx, a, err := open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if flags.Workers > 0 {
		a.Reconciler.WithWorkers(flags.Workers)
	}

	var res billing.Result
	if flags.All {
		res, err = a.Worker.ReconcileAll(ctx)
	} else {
		res, err = a.Reconciler.ReconcileUnbilledCalls(ctx, flags.Account)
		if err == nil {
			if aerr := a.Audit.LogReconciliation(ctx, flags.Account, operator, res.Processed, res.Errors, res.Skipped); aerr != nil {
				logger.From(ctx).Warn("audit reconciliation failed", "err", aerr)
			}
		}
	}
	if err != nil {
		return err
	}
	return printJSON(res)
}

func cmdBalance(cmd *cobra.Command, _ []string) error {
	if flags.Account == "" {
		return errors.New("--account is required")
	}
	ctx, a, err := open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	acct, err := a.Ledger.GetAccount(ctx, flags.Account)
	if err != nil {
		return fmt.Errorf("account %s: %w", flags.Account, err)
	}
	state := credits.StatusFor(acct.Balance)
	return printJSON(map[string]any{
		"account_id": acct.ID,
		"balance":    acct.Balance,
		"status":     state.Status,
		"tier":       state.Tier,
		"message":    state.Message,
		"trial":      credits.TrialStateFor(acct.TrialExpiresAt, acct.PaymentStatus, time.Now()),
	})
}

func cmdGrantTrial(cmd *cobra.Command, _ []string) error {
	if flags.Account == "" {
		return errors.New("--account is required")
	}
	ctx, a, err := open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	acct, granted, err := a.Ledger.GrantTrial(ctx, flags.Account)
	if err != nil {
		return err
	}
	if granted && acct.TrialExpiresAt != nil {
		if aerr := a.Audit.LogTrialGranted(ctx, flags.Account, operator, *acct.TrialExpiresAt); aerr != nil {
			logger.From(ctx).Warn("audit trial grant failed", "err", aerr)
		}
	}
	return printJSON(map[string]any{"granted": granted, "account": acct})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
