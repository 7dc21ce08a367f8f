package blockchain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"vaultswap.backend/internal/domain/entities"
)

func TestClientFactory_DialErrorIsWrapped(t *testing.T) {
	f := NewClientFactory()
	_, err := f.GetEVMClient("://bad-url")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to create EVM client")
	require.Empty(t, f.evmClients)
}

func TestClientFactory_DialsOncePerEndpoint(t *testing.T) {
	f := NewClientFactory()
	dials := 0
	f.dial = func(rpcURL string) (*EVMClient, error) {
		dials++
		require.Equal(t, "https://base.example/rpc", rpcURL)
		return NewEVMClientWithCallView(big.NewInt(8453), nil), nil
	}

	a, err := f.GetEVMClient("https://base.example/rpc")
	require.NoError(t, err)
	b, err := f.GetEVMClient(" https://base.example/rpc/ ")
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Equal(t, 1, dials)
}

func TestClientFactory_AgainstNode(t *testing.T) {
	srv := fakeNode(t, nil)
	f := NewClientFactory()
	c1, err := f.GetEVMClient(srv.URL)
	require.NoError(t, err)
	c2, err := f.GetEVMClient(srv.URL + "/")
	require.NoError(t, err)
	require.Same(t, c1, c2)
	f.CloseAll()
}

func TestClientFactory_RegisterAndClose(t *testing.T) {
	f := NewClientFactory()
	f.dial = func(string) (*EVMClient, error) { return nil, errors.New("no network") }
	c := NewEVMClientWithCallView(big.NewInt(8453), nil)
	f.RegisterEVMClient("stub://rpc/", c)

	got, err := f.GetEVMClient("stub://rpc")
	require.NoError(t, err)
	require.Same(t, c, got)

	f.CloseAll()
	require.Empty(t, f.evmClients)
	_, err = f.GetEVMClient("stub://rpc")
	require.EqualError(t, err, "failed to create EVM client: no network")
}

func TestEVMClient_NotConnected(t *testing.T) {
	c := &EVMClient{chainID: big.NewInt(1)}
	ctx := context.Background()
	addr := "0x1111111111111111111111111111111111111111"

	_, err := c.GetBalance(ctx, addr)
	require.ErrorIs(t, err, ErrNotConnected)
	_, err = c.GetTokenBalance(ctx, "0x2222222222222222222222222222222222222222", addr)
	require.ErrorIs(t, err, ErrNotConnected)
	_, err = c.CodeAt(ctx, addr)
	require.ErrorIs(t, err, ErrNotConnected)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, _, err = c.DeployContract(ctx, key, []byte{0x60, 0x00}, 0)
	require.ErrorIs(t, err, ErrNotConnected)

	c.Close()
}

func TestEVMClient_AssetBalanceUsesCallView(t *testing.T) {
	var gotTo string
	c := NewEVMClientWithCallView(nil, func(_ context.Context, to string, data []byte) ([]byte, error) {
		gotTo = to
		require.Equal(t, "70a08231", common.Bytes2Hex(data[:4]))
		require.Len(t, data, 36)
		return big.NewInt(1234).Bytes(), nil
	})
	require.Equal(t, big.NewInt(1), c.ChainID())

	usdc := entities.Asset{Symbol: entities.AssetUSDC, Kind: entities.AssetKindStable, Decimals: 6, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"}
	bal, err := c.AssetBalance(context.Background(), usdc, "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	require.Equal(t, int64(1234), bal.Int64())
	require.Equal(t, usdc.Address, gotTo)

	_, err = c.AssetBalance(context.Background(), entities.Asset{Symbol: entities.AssetTRZRY}, "0x1")
	require.Error(t, err)

	failing := NewEVMClientWithCallView(nil, func(context.Context, string, []byte) ([]byte, error) {
		return nil, errors.New("rpc down")
	})
	_, err = failing.AssetBalance(context.Background(), usdc, "0x1")
	require.EqualError(t, err, "rpc down")
}
