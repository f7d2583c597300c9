package service

import (
	"context"
	"time"

	"debitcard_back/pkg/chainclient"
	"debitcard_back/pkg/config"
	"debitcard_back/pkg/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Reconciler settles pending rows whose watcher is gone: the user
// disconnected, the process restarted, or the ledger write failed.
type Reconciler struct {
	txs    repository.Transactions
	ledger *LedgerService
	chain  Chain
	cfg    config.ReconcileConfig
	now    func() time.Time
}

type ReconcileReport struct {
	Checked   int
	Credited  int
	Failed    int
	Unchanged int
}

func NewReconciler(txs repository.Transactions, ledger *LedgerService, chain Chain, cfg config.ReconcileConfig) *Reconciler {
	return &Reconciler{
		txs:    txs,
		ledger: ledger,
		chain:  chain,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Run checks one batch of pending rows older than PendingAge.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	rows, err := r.txs.ListPending(ctx, r.now().Add(-r.cfg.PendingAge), r.cfg.BatchSize)
	if err != nil {
		return report, errors.Wrap(err, "list pending transactions")
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++
		log := logrus.WithField("tx_hash", row.TxHash)

		status, err := r.chain.Status(ctx, common.HexToHash(row.TxHash))
		if err != nil {
			log.Warnf("reconcile: receipt lookup failed: %s", err)
			report.Unchanged++
			continue
		}

		switch status {
		case chainclient.ReceiptSuccess:
			_, err := r.ledger.Credit(ctx, CreditRequest{
				UserID:    row.UserID,
				TxHash:    row.TxHash,
				Amount:    row.Amount,
				USDAmount: row.USDAmount,
			})
			if err != nil && !errors.Is(err, repository.ErrAlreadyCredited) {
				report.Unchanged++
				continue
			}
			report.Credited++
		case chainclient.ReceiptFailed:
			if err := r.txs.MarkFailed(ctx, row.TxHash); err != nil {
				log.Errorf("reconcile: mark failed: %s", err)
				report.Unchanged++
				continue
			}
			report.Failed++
		default:
			report.Unchanged++
		}
	}

	if report.Checked > 0 {
		logrus.WithFields(logrus.Fields{
			"checked":   report.Checked,
			"credited":  report.Credited,
			"failed":    report.Failed,
			"unchanged": report.Unchanged,
		}).Info("reconcile pass finished")
	}
	return report, nil
}
