package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"vaultswap.backend/internal/domain/entities"
)

var (
	dialEVMClient    = ethclient.Dial
	getClientChainID = func(client *ethclient.Client, ctx context.Context) (*big.Int, error) {
		return client.ChainID(ctx)
	}
)

// ErrNotConnected is returned when the client has no RPC connection
var ErrNotConnected = errors.New("evm client not connected")

const (
	defaultDeployGasLimit = 3_000_000
	chainIDTimeout        = 10 * time.Second
)

// EVMClient provides EVM blockchain interaction
type EVMClient struct {
	client  *ethclient.Client
	chainID *big.Int
	// testCallView allows deterministic unit tests without network sockets.
	testCallView func(ctx context.Context, to string, data []byte) ([]byte, error)
}

// NewEVMClient dials rpcURL and pins the chain id reported by the node.
// Signing uses that id, so a node that cannot answer eth_chainId is rejected.
func NewEVMClient(rpcURL string) (*EVMClient, error) {
	conn, err := dialEVMClient(rpcURL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), chainIDTimeout)
	defer cancel()
	id, err := getClientChainID(conn, ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	return &EVMClient{client: conn, chainID: id}, nil
}

// NewEVMClientWithCallView creates an EVM client that uses an injected CallView implementation.
// This is intended for unit tests where RPC sockets are unavailable.
func NewEVMClientWithCallView(chainID *big.Int, callViewFn func(ctx context.Context, to string, data []byte) ([]byte, error)) *EVMClient {
	if chainID == nil {
		chainID = big.NewInt(1)
	}
	return &EVMClient{
		chainID:      chainID,
		testCallView: callViewFn,
	}
}

// ChainID returns the chain ID
func (c *EVMClient) ChainID() *big.Int {
	return c.chainID
}

// GetBalance returns the native balance of address in wei
func (c *EVMClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}
	return c.client.BalanceAt(ctx, common.HexToAddress(address), nil)
}

var balanceOfSelector = common.Hex2Bytes("70a08231")

// GetTokenBalance calls balanceOf(owner) on an ERC20 contract
func (c *EVMClient) GetTokenBalance(ctx context.Context, tokenAddress, ownerAddress string) (*big.Int, error) {
	calldata := make([]byte, 0, 36)
	calldata = append(calldata, balanceOfSelector...)
	calldata = append(calldata, common.LeftPadBytes(common.HexToAddress(ownerAddress).Bytes(), 32)...)

	out, err := c.CallView(ctx, tokenAddress, calldata)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(out), nil
}

// AssetBalance returns the owner's balance of asset in base units
func (c *EVMClient) AssetBalance(ctx context.Context, asset entities.Asset, owner string) (*big.Int, error) {
	if asset.IsNative() {
		return c.GetBalance(ctx, owner)
	}
	if asset.Address == "" {
		return nil, fmt.Errorf("asset %s has no contract address", asset.Symbol)
	}
	return c.GetTokenBalance(ctx, asset.Address, owner)
}

// CodeAt returns the runtime bytecode deployed at address
func (c *EVMClient) CodeAt(ctx context.Context, address string) ([]byte, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}
	return c.client.CodeAt(ctx, common.HexToAddress(address), nil)
}

// CallView executes a read-only contract call
func (c *EVMClient) CallView(ctx context.Context, to string, data []byte) ([]byte, error) {
	if c.testCallView != nil {
		return c.testCallView(ctx, to, data)
	}
	if c.client == nil {
		return nil, ErrNotConnected
	}
	addr := common.HexToAddress(to)
	msg := ethereum.CallMsg{
		To:   &addr,
		Data: data,
	}
	return c.client.CallContract(ctx, msg, nil)
}

// DeployContract signs and broadcasts a contract creation transaction.
// The returned address is derived from the sender and nonce.
func (c *EVMClient) DeployContract(ctx context.Context, key *ecdsa.PrivateKey, bytecode []byte, gasLimit uint64) (common.Address, common.Hash, error) {
	if c.client == nil {
		return common.Address{}, common.Hash{}, ErrNotConnected
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Address{}, common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Address{}, common.Hash{}, fmt.Errorf("gas price: %w", err)
	}
	if gasLimit == 0 {
		gasLimit = defaultDeployGasLimit
	}

	tx := types.NewContractCreation(nonce, big.NewInt(0), gasLimit, gasPrice, bytecode)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), key)
	if err != nil {
		return common.Address{}, common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return common.Address{}, common.Hash{}, fmt.Errorf("broadcast: %w", err)
	}
	return crypto.CreateAddress(from, nonce), signed.Hash(), nil
}

// Close closes the client connection
func (c *EVMClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}
