package chain

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"private-transfer-relay/config"
	"private-transfer-relay/internal/core/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// weiPerUnit converts between the node's wei amounts and the relay's base
// units. One base unit is one gwei.
var weiPerUnit = big.NewInt(1_000_000_000)

const transferGasLimit = 21000

// Client implements ports.ChainClient against a JSON-RPC node. One instance
// holds the relayer key; deposit wallets are throwaway keys generated per
// transfer and never stored outside the transfer record.
type Client struct {
	eth             *ethclient.Client
	chainID         *big.Int
	relayerKey      *ecdsa.PrivateKey
	relayerAddr     common.Address
	receiptInterval time.Duration
	receiptTimeout  time.Duration
	log             zerolog.Logger
}

// NewClient dials the RPC endpoint and verifies the relayer key.
func NewClient(ctx context.Context, cfg config.ChainConfig, log zerolog.Logger) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	key, err := parsePrivateKey(cfg.RelayerKey)
	if err != nil {
		return nil, fmt.Errorf("relayer key: %w", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	log.Info().
		Str("chain_id", chainID.String()).
		Str("relayer", addr.Hex()).
		Msg("chain client connected")

	return &Client{
		eth:             eth,
		chainID:         chainID,
		relayerKey:      key,
		relayerAddr:     addr,
		receiptInterval: cfg.ReceiptInterval,
		receiptTimeout:  cfg.ReceiptTimeout,
		log:             log,
	}, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// Balance returns the confirmed balance of an address in base units.
func (c *Client) Balance(ctx context.Context, address string) (int64, error) {
	if !common.IsHexAddress(address) {
		return 0, fmt.Errorf("invalid address: %s", address)
	}
	wei, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return 0, fmt.Errorf("balance of %s: %w", address, err)
	}
	return new(big.Int).Div(wei, weiPerUnit).Int64(), nil
}

// GenerateWallet creates a throwaway keypair for a single deposit.
func (c *Client) GenerateWallet() (string, string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", "", fmt.Errorf("generate deposit key: %w", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	secret := hex.EncodeToString(crypto.FromECDSA(key))
	return address, secret, nil
}

// SendTransfer submits a plain value transfer signed with fromSecret and
// blocks until the transaction is mined. It returns the transaction hash.
// The sender must hold amount plus the gas cost on top.
func (c *Client) SendTransfer(ctx context.Context, fromSecret string, toAddress string, amount int64) (string, error) {
	if !common.IsHexAddress(toAddress) {
		return "", fmt.Errorf("invalid destination address: %s", toAddress)
	}
	key, err := parsePrivateKey(fromSecret)
	if err != nil {
		return "", err
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}
	value := new(big.Int).Mul(big.NewInt(amount), weiPerUnit)
	return c.submit(ctx, key, common.HexToAddress(toAddress), value, gasPrice)
}

// Sweep drains the address behind fromSecret to toAddress. The sweep's own
// gas cost at the current suggested price is kept back, plus reserve base
// units of dust, because on this chain the sender pays gas out of the same
// balance being swept. Nothing is submitted when that leaves no value.
func (c *Client) Sweep(ctx context.Context, fromSecret string, toAddress string, reserve int64) (string, int64, error) {
	if !common.IsHexAddress(toAddress) {
		return "", 0, fmt.Errorf("invalid destination address: %s", toAddress)
	}
	key, err := parsePrivateKey(fromSecret)
	if err != nil {
		return "", 0, err
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	balance, err := c.eth.BalanceAt(ctx, from, nil)
	if err != nil {
		return "", 0, fmt.Errorf("balance of %s: %w", from.Hex(), err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("suggest gas price: %w", err)
	}

	amount := sweepAmount(balance, gasPrice, reserve)
	if amount <= 0 {
		return "", 0, fmt.Errorf("%w: address %s holds %s wei against %s wei gas plus %d units reserve",
			ports.ErrInsufficientBalance, from.Hex(), balance, gasPrice, reserve)
	}

	value := new(big.Int).Mul(big.NewInt(amount), weiPerUnit)
	tx, err := c.submit(ctx, key, common.HexToAddress(toAddress), value, gasPrice)
	if err != nil {
		return "", 0, err
	}
	return tx, amount, nil
}

// sweepAmount converts a wei balance into the base units a sweep can move at
// the given gas price, keeping back the transfer's gas cost and reserve
// units of dust. Non-positive means the address is not worth sweeping.
func sweepAmount(balance, gasPrice *big.Int, reserve int64) int64 {
	gasCost := new(big.Int).Mul(gasPrice, big.NewInt(transferGasLimit))
	spendable := new(big.Int).Sub(balance, gasCost)
	return new(big.Int).Div(spendable, weiPerUnit).Int64() - reserve
}

func (c *Client) submit(ctx context.Context, key *ecdsa.PrivateKey, to common.Address, value *big.Int, gasPrice *big.Int) (string, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("pending nonce: %w", err)
	}

	tx := types.NewTransaction(nonce, to, value, transferGasLimit, gasPrice, nil)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), key)
	if err != nil {
		return "", fmt.Errorf("sign transfer: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send transfer: %w", err)
	}
	c.log.Debug().
		Str("tx", signed.Hash().Hex()).
		Str("from", from.Hex()).
		Str("to", to.Hex()).
		Str("value", value.String()).
		Msg("transfer submitted")

	if err := c.waitMined(ctx, signed.Hash()); err != nil {
		return "", err
	}
	return signed.Hash().Hex(), nil
}

// waitMined polls for the receipt until the transaction lands in a block or
// the timeout elapses.
func (c *Client) waitMined(ctx context.Context, hash common.Hash) error {
	deadline := time.Now().Add(c.receiptTimeout)
	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction %s reverted in block %s", hash.Hex(), receipt.BlockNumber)
			}
			return nil
		}
		if err != nil {
			c.log.Debug().Err(err).Str("tx", hash.Hex()).Msg("receipt not available yet")
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for receipt of %s", hash.Hex())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.receiptInterval):
		}
	}
}

// RelayerAddress returns the address sweeps land on.
func (c *Client) RelayerAddress() string {
	return c.relayerAddr.Hex()
}

// IsValidAddress reports whether the string is a well-formed hex address.
func (c *Client) IsValidAddress(address string) bool {
	return common.IsHexAddress(address)
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}
