package chainclient

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrMalformedTx   = errors.New("malformed transaction")
	ErrWrongChain    = errors.New("transaction signed for another chain")
	ErrWrongReceiver = errors.New("transaction is not addressed to the treasury")
	ErrWrongValue    = errors.New("transaction value does not match the quote")
	ErrWrongSender   = errors.New("transaction is not signed by the connected wallet")
	ErrReverted      = errors.New("transaction reverted")
)

type ReceiptStatus int

const (
	ReceiptNotFound ReceiptStatus = iota
	ReceiptSuccess
	ReceiptFailed
)

// Backend is the subset of ethclient.Client the top-up flow needs.
type Backend interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Client struct {
	backend      Backend
	chainID      *big.Int
	treasury     common.Address
	decimals     int32
	pollInterval time.Duration
}

func New(backend Backend, chainID int64, treasury string, decimals int32, pollInterval time.Duration) *Client {
	return &Client{
		backend:      backend,
		chainID:      big.NewInt(chainID),
		treasury:     common.HexToAddress(treasury),
		decimals:     decimals,
		pollInterval: pollInterval,
	}
}

// Dial connects to the chain RPC and checks that it serves the configured chain.
func Dial(ctx context.Context, rpcURL string, chainID int64, treasury string, decimals int32, pollInterval time.Duration) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "dial rpc")
	}
	remote, err := ec.ChainID(ctx)
	if err != nil {
		ec.Close()
		return nil, errors.Wrap(err, "query chain id")
	}
	if remote.Int64() != chainID {
		ec.Close()
		return nil, errors.Errorf("rpc serves chain %s, configured %d", remote, chainID)
	}
	return New(ec, chainID, treasury, decimals, pollInterval), nil
}

func (c *Client) Treasury() common.Address {
	return c.treasury
}

func (c *Client) ChainID() int64 {
	return c.chainID.Int64()
}

// ToWei converts a token amount to the smallest unit, truncating the remainder.
func (c *Client) ToWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(c.decimals).Truncate(0).BigInt()
}

func (c *Client) FromWei(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -c.decimals)
}

// DecodeTransfer parses a signed raw transaction and checks that it is the
// quoted native transfer from wallet to the treasury.
func (c *Client) DecodeTransfer(rawHex string, wallet common.Address, valueWei *big.Int) (*types.Transaction, error) {
	raw, err := hexutil.Decode(rawHex)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedTx, err.Error())
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, errors.Wrap(ErrMalformedTx, err.Error())
	}
	if tx.ChainId().Cmp(c.chainID) != 0 {
		return nil, ErrWrongChain
	}
	if tx.To() == nil || *tx.To() != c.treasury {
		return nil, ErrWrongReceiver
	}
	if tx.Value().Cmp(valueWei) != 0 {
		return nil, ErrWrongValue
	}
	sender, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedTx, err.Error())
	}
	if sender != wallet {
		return nil, ErrWrongSender
	}
	return tx, nil
}

func (c *Client) Broadcast(ctx context.Context, tx *types.Transaction) error {
	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return errors.Wrap(err, "broadcast transaction")
	}
	return nil
}

// Status reports the receipt state of hash without waiting.
func (c *Client) Status(ctx context.Context, hash common.Hash) (ReceiptStatus, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return ReceiptNotFound, nil
	}
	if err != nil {
		return ReceiptNotFound, errors.Wrap(err, "fetch receipt")
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return ReceiptSuccess, nil
	}
	return ReceiptFailed, nil
}

// WaitConfirmed polls for the receipt until it is mined or ctx ends. There is
// no deadline of its own. Transient RPC errors are logged and polling goes on.
func (c *Client) WaitConfirmed(ctx context.Context, hash common.Hash) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	log := logrus.WithField("tx_hash", hash.Hex())
	for {
		status, err := c.Status(ctx, hash)
		switch {
		case err != nil:
			log.Warnf("receipt poll failed: %s", err)
		case status == ReceiptSuccess:
			return nil
		case status == ReceiptFailed:
			return ErrReverted
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
