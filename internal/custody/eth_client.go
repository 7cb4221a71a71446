package custody

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// erc20ABI covers the two transfer entry points the bridge custody uses.
const erc20ABI = `[
  {"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"type":"bool"}],"stateMutability":"nonpayable"},
  {"type":"function","name":"transferFrom","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"type":"bool"}],"stateMutability":"nonpayable"},
  {"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"type":"uint256"}],"stateMutability":"view"}
]`

// EthClient escrows value in an ERC-20 token contract on the lock chain.
type EthClient struct {
	client    *ethclient.Client
	contract  *bind.BoundContract
	abi       abi.ABI
	token     common.Address
	escrow    common.Address
	chainID   *big.Int
	transacts *bind.TransactOpts
}

type EthClientConfig struct {
	RPCURL        string
	PrivateKeyHex string
	TokenContract string
	EscrowAddress string
}

func NewEthClient(ctx context.Context, cfg EthClientConfig) (*EthClient, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.TokenContract == "" {
		return nil, fmt.Errorf("token contract address is required")
	}
	if cfg.EscrowAddress == "" {
		return nil, fmt.Errorf("escrow address is required")
	}
	if cfg.PrivateKeyHex == "" {
		return nil, fmt.Errorf("private key is required for custody transfers")
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	token := common.HexToAddress(cfg.TokenContract)
	bound := bind.NewBoundContract(token, parsedABI, cli, cli, cli)

	pk, err := parsePrivateKey(cfg.PrivateKeyHex)
	if err != nil {
		return nil, err
	}

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	txOpts, err := bind.NewKeyedTransactorWithChainID(pk, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	txOpts.Context = ctx
	txOpts.GasLimit = 0 // let node estimate
	txOpts.GasPrice = nil
	txOpts.Nonce = nil

	return &EthClient{
		client:    cli,
		contract:  bound,
		abi:       parsedABI,
		token:     token,
		escrow:    common.HexToAddress(cfg.EscrowAddress),
		chainID:   chainID,
		transacts: txOpts,
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

// Deposit pulls amount from the sender into the escrow account. The
// sender must have approved the bridge operator beforehand.
func (c *EthClient) Deposit(ctx context.Context, from common.Address, amount *big.Int) error {
	opts := *c.transacts
	opts.Context = ctx

	tx, err := c.contract.Transact(&opts, "transferFrom", from, c.escrow, amount)
	if err != nil {
		return fmt.Errorf("deposit tx: %w", err)
	}

	receipt, err := WaitForReceipt(ctx, c.client, tx)
	if err != nil {
		return fmt.Errorf("deposit receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("deposit tx %s reverted", tx.Hash().Hex())
	}
	return nil
}

// Release pays escrowed funds back out of the escrow account.
func (c *EthClient) Release(ctx context.Context, to common.Address, amount *big.Int) error {
	opts := *c.transacts
	opts.Context = ctx

	tx, err := c.contract.Transact(&opts, "transfer", to, amount)
	if err != nil {
		return fmt.Errorf("release tx: %w", err)
	}

	receipt, err := WaitForReceipt(ctx, c.client, tx)
	if err != nil {
		return fmt.Errorf("release receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("release tx %s reverted", tx.Hash().Hex())
	}
	return nil
}

func (c *EthClient) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("rpc client not configured")
	}
	_, err := c.client.BlockNumber(ctx)
	return err
}

// WaitForReceipt polls until the transaction is mined or context cancelled.
func WaitForReceipt(ctx context.Context, client *ethclient.Client, tx *types.Transaction) (*types.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, tx.Hash())
		if receipt != nil {
			return receipt, nil
		}
		if err != nil && err.Error() != "not found" {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
