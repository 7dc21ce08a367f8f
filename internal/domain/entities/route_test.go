package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoutePayload_SigningRequests(t *testing.T) {
	trade := SigningRequest{Kind: SigningKindTrade, Type: "settler_metatransaction"}
	approval := SigningRequest{Kind: SigningKindApproval, Type: "permit"}

	var p RoutePayload = &ZeroXRoutePayload{Trade: trade}
	assert.Equal(t, RouteProviderZeroX, p.Provider())
	assert.Equal(t, []SigningRequest{trade}, p.SigningRequests())

	p = &ZeroXRoutePayload{Approval: &approval, Trade: trade}
	assert.Equal(t, []SigningRequest{approval, trade}, p.SigningRequests())

	permit := SigningRequest{Kind: SigningKindPermit, Type: "permit2"}
	p = &UniswapXRoutePayload{Permit: permit}
	assert.Equal(t, RouteProviderUniswapX, p.Provider())
	assert.Equal(t, []SigningRequest{permit}, p.SigningRequests())
}
