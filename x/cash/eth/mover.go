// Package eth settles escrow fund movements on an ERC-20 token.
//
// The mover submits transferFrom calls through a keyed operator
// account. Parties grant the operator an allowance out of band; the
// ledger only observes whether the submission succeeded.
package eth

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	keeper "github.com/keeperd/keeper"
	"github.com/keeperd/keeper/errors"
	"github.com/keeperd/keeper/x/cash"
)

const erc20ABI = `[
  {"constant":false,"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transferFrom","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
  {"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// Mover implements cash.CoinMover against an ERC-20 token contract.
type Mover struct {
	client *ethclient.Client
	token  *bind.BoundContract
	opts   *bind.TransactOpts
}

var _ cash.CoinMover = (*Mover)(nil)

type Config struct {
	// RPCURL of the node the transactions are submitted through.
	RPCURL string
	// Token is the hex address of the ERC-20 contract.
	Token string
	// PrivateKeyHex of the operator account submitting transferFrom.
	PrivateKeyHex string
}

func NewMover(ctx context.Context, cfg Config) (*Mover, error) {
	if cfg.RPCURL == "" {
		return nil, errors.Wrap(errors.ErrInput, "rpc url is required")
	}
	if !common.IsHexAddress(cfg.Token) {
		return nil, errors.Wrap(errors.ErrInput, "token address is required")
	}
	if cfg.PrivateKeyHex == "" {
		return nil, errors.Wrap(errors.ErrInput, "operator key is required")
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, errors.Wrap(err, "dial rpc")
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse abi")
	}
	token := bind.NewBoundContract(common.HexToAddress(cfg.Token), parsedABI, cli, cli, cli)

	pk, err := parsePrivateKey(cfg.PrivateKeyHex)
	if err != nil {
		return nil, err
	}
	chainID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch chain id")
	}
	opts, err := bind.NewKeyedTransactorWithChainID(pk, chainID)
	if err != nil {
		return nil, errors.Wrap(err, "transactor")
	}
	opts.GasLimit = 0 // let the node estimate

	return &Mover{
		client: cli,
		token:  token,
		opts:   opts,
	}, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInput, "parse private key")
	}
	return key, nil
}

// MoveCoins submits transferFrom(src, dst, amount) on the token.
func (m *Mover) MoveCoins(ctx context.Context, src, dst keeper.Address, amount int64) error {
	if amount <= 0 {
		return errors.Wrapf(errors.ErrAmount, "non-positive amount %d", amount)
	}
	if err := src.Validate(); err != nil {
		return errors.Wrap(err, "source")
	}
	if err := dst.Validate(); err != nil {
		return errors.Wrap(err, "destination")
	}

	opts := *m.opts
	opts.Context = ctx

	_, err := m.token.Transact(&opts, "transferFrom",
		common.BytesToAddress(src), common.BytesToAddress(dst), big.NewInt(amount))
	if err != nil {
		return errors.Wrapf(errors.ErrTransfer, "transferFrom: %s", err)
	}
	return nil
}

// Balance reads balanceOf(addr) from the token contract.
func (m *Mover) Balance(ctx context.Context, addr keeper.Address) (int64, error) {
	if err := addr.Validate(); err != nil {
		return 0, errors.Wrap(err, "address")
	}
	var out []interface{}
	err := m.token.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", common.BytesToAddress(addr))
	if err != nil {
		return 0, errors.Wrap(err, "balanceOf")
	}
	bal, ok := out[0].(*big.Int)
	if !ok || !bal.IsInt64() {
		return 0, errors.Wrap(errors.ErrOverflow, "balance")
	}
	return bal.Int64(), nil
}

// Ping verifies the node connection is alive.
func (m *Mover) Ping(ctx context.Context) error {
	_, err := m.client.BlockNumber(ctx)
	return err
}
