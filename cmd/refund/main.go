package main

import (
	"context"
	"fmt"
	"os"

	"private-transfer-relay/config"
	"private-transfer-relay/internal/adapter/chain"
	pgStorage "private-transfer-relay/internal/adapter/storage/postgres"
	"private-transfer-relay/internal/core/domain"
	"private-transfer-relay/internal/core/ports"
	"private-transfer-relay/pkg/logger"

	"github.com/urfave/cli/v2"
)

var optionConfig = &cli.StringFlag{
	Name:    "config",
	Usage:   "path to config file",
	EnvVars: []string{"PTR_CONFIG"},
}

// The refund tool is the manual counterpart of the executor: when a transfer
// failed after funds were swept, an operator pays the sender's counterparty
// back out of the relayer account and marks the transfer refunded.
func main() {
	app := &cli.App{
		Name:  "relay-refund",
		Usage: "Operator tool for remediating failed private transfers",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List failed transfers awaiting remediation",
				Flags:  []cli.Flag{optionConfig},
				Action: listFailed,
			},
			{
				Name:  "issue",
				Usage: "Refund one failed transfer from the relayer account",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Transfer id to refund",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "execute",
						Usage: "Actually send funds; without it the tool only reports what it would do",
					},
					optionConfig,
				},
				Action: issueRefund,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Exited with error: %v\n", err)
		os.Exit(1)
	}
}

func listFailed(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	ctx := context.Background()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	repo := pgStorage.NewTransferRepo(pool)
	failed, err := repo.ListByStatus(ctx, domain.TransferStatusFailed)
	if err != nil {
		return err
	}

	if len(failed) == 0 {
		fmt.Println("no failed transfers")
		return nil
	}
	for _, t := range failed {
		fmt.Printf("%s  requester=%d  amount=%s  recipient=%s  updated=%s\n",
			t.ID, t.RequesterID, domain.FormatCoins(t.Amount), t.Recipient,
			t.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func issueRefund(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	ctx := context.Background()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	repo := pgStorage.NewTransferRepo(pool)
	t, err := repo.GetByID(ctx, c.String("id"))
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("transfer %s not found", c.String("id"))
	}
	if t.Status != domain.TransferStatusFailed {
		return fmt.Errorf("transfer %s is %s, only failed transfers can be refunded", t.ID, t.Status)
	}

	feePolicy := domain.FeePolicy{
		FixedUnits:  cfg.Fees.FixedUnits,
		VariableBps: cfg.Fees.VariableBps,
		SweepBuffer: cfg.Fees.SweepBufferUnits,
		MinAmount:   cfg.Fees.MinAmountUnits,
		MaxAmount:   cfg.Fees.MaxAmountUnits,
	}
	refundAmount := feePolicy.RecipientGets(t.Amount)

	fmt.Printf("transfer %s: refund %s coins to %s from the relayer account\n",
		t.ID, domain.FormatCoins(refundAmount), t.Recipient)

	if !c.Bool("execute") {
		fmt.Println("dry run, pass --execute to send")
		return nil
	}

	chainClient, err := chain.NewClient(ctx, cfg.Chain, log)
	if err != nil {
		return fmt.Errorf("connect to chain RPC: %w", err)
	}
	defer chainClient.Close()

	txRef, err := chainClient.SendTransfer(ctx, cfg.Chain.RelayerKey, t.Recipient, refundAmount)
	if err != nil {
		return fmt.Errorf("send refund: %w", err)
	}

	if err := repo.UpdateStatus(ctx, t.ID, domain.TransferStatusFailed, domain.TransferStatusRefunded, ports.TxRefs{WithdrawTx: &txRef}); err != nil {
		// The funds moved; surface the bookkeeping failure loudly.
		return fmt.Errorf("refund sent (%s) but status update failed: %w", txRef, err)
	}

	fmt.Printf("refunded, tx %s\n", txRef)
	return nil
}
