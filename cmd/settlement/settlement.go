package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/simorq_settlement/config"
	"github.com/Alijeyrad/simorq_settlement/internal/app"
	"github.com/Alijeyrad/simorq_settlement/internal/settlement"
	"github.com/Alijeyrad/simorq_settlement/pkg/logs"
)

func NewSettlementCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settlement",
		Short: "Settle, quote and inspect sessions from the command line",
	}

	cmd.AddCommand(NewSettleCommand())
	cmd.AddCommand(NewQuoteCommand())
	cmd.AddCommand(NewGetCommand())

	return cmd
}

func NewSettleCommand() *cobra.Command {
	var req settlement.Request

	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Settle one completed session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc settlement.Service) error {
				res, err := svc.Settle(ctx, req)
				if perr := printJSON(res); perr != nil {
					return perr
				}
				return err
			})
		},
	}

	requestFlags(cmd, &req)
	return cmd
}

func NewQuoteCommand() *cobra.Command {
	var req settlement.Request

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Compute the breakdown for a session without writing to the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc settlement.Service) error {
				q, err := svc.Quote(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(q)
			})
		},
	}

	requestFlags(cmd, &req)
	return cmd
}

func NewGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show the live ledger entries of a settled session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc settlement.Service) error {
				s, err := svc.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(s)
			})
		},
	}

	return cmd
}

func requestFlags(cmd *cobra.Command, req *settlement.Request) {
	f := cmd.Flags()
	f.StringVar(&req.SessionID, "session", "", "session id")
	f.StringVar(&req.PayerID, "payer", "", "payer account id")
	f.StringVar(&req.PayeeID, "payee", "", "payee account id")
	f.Int64Var(&req.BaseAmount, "amount", 0, "session base amount in minor units")
	f.StringVar(&req.Category, "category", "", "session category")
	f.IntVar(&req.DurationMinutes, "duration", 0, "session duration in minutes")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("payer")
	_ = cmd.MarkFlagRequired("payee")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("duration")
}

// withService starts the infrastructure and service graph without the HTTP
// server or worker, runs fn, and waits for side effects before stopping.
func withService(cmd *cobra.Command, fn func(context.Context, settlement.Service) error) error {
	cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
	if err != nil {
		return err
	}

	logger := logs.New(cfg)
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	var svc settlement.Service
	fxApp := fx.New(
		fx.Supply(cfg),
		app.InfraModule,
		app.ServiceModule,
		fx.Populate(&svc),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	)

	startCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	runErr := fn(cmd.Context(), svc)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	if err := fxApp.Stop(stopCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}

	return runErr
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
