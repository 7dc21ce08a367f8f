package entities

import "math/big"

// RouteProviderName tags the Route union
type RouteProviderName string

const (
	RouteProviderZeroX    RouteProviderName = "0x"
	RouteProviderUniswapX RouteProviderName = "uniswapx"
)

// SigningKind names the payload a route needs signed
type SigningKind string

const (
	SigningKindApproval SigningKind = "approval"
	SigningKindTrade    SigningKind = "trade"
	SigningKindPermit   SigningKind = "permit"
)

// TypedDataField is one member of an EIP-712 struct type
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypedDataDomain is the EIP-712 domain separator input
type TypedDataDomain struct {
	Name              string `json:"name,omitempty"`
	Version           string `json:"version,omitempty"`
	ChainID           int64  `json:"chainId,omitempty"`
	VerifyingContract string `json:"verifyingContract,omitempty"`
	Salt              string `json:"salt,omitempty"`
}

// TypedData is a complete EIP-712 payload
type TypedData struct {
	Types       map[string][]TypedDataField `json:"types"`
	PrimaryType string                      `json:"primaryType"`
	Domain      TypedDataDomain             `json:"domain"`
	Message     map[string]any              `json:"message"`
}

// SigningRequest is one payload a route wants signed
type SigningRequest struct {
	Kind      SigningKind `json:"kind"`
	Type      string      `json:"type"`
	TypedData TypedData   `json:"typedData"`
}

// SignedPayload is a signature over a SigningRequest
type SignedPayload struct {
	Kind      SigningKind `json:"kind"`
	Type      string      `json:"type"`
	TypedData TypedData   `json:"typedData"`
	Signature string      `json:"signature"`
	V         uint8       `json:"v"`
	R         string      `json:"r"`
	S         string      `json:"s"`
}

// RoutePayload is the provider specific part of a Route
type RoutePayload interface {
	Provider() RouteProviderName
	SigningRequests() []SigningRequest
}

// ZeroXFill is one liquidity source in a 0x route
type ZeroXFill struct {
	Source        string `json:"source"`
	ProportionBps int    `json:"proportionBps"`
}

// ZeroXRoutePayload is a 0x gasless quote. Approval is nil when allowance is already in place.
type ZeroXRoutePayload struct {
	Approval *SigningRequest `json:"approval,omitempty"`
	Trade    SigningRequest  `json:"trade"`
	Fills    []ZeroXFill     `json:"fills"`
	ZID      string          `json:"zid,omitempty"`
}

func (p *ZeroXRoutePayload) Provider() RouteProviderName { return RouteProviderZeroX }

func (p *ZeroXRoutePayload) SigningRequests() []SigningRequest {
	var out []SigningRequest
	if p.Approval != nil {
		out = append(out, *p.Approval)
	}
	return append(out, p.Trade)
}

// UniswapXRoutePayload is a UniswapX Dutch order awaiting a Permit2 signature
type UniswapXRoutePayload struct {
	QuoteID      string         `json:"quoteId"`
	RequestID    string         `json:"requestId"`
	Routing      string         `json:"routing"`
	EncodedOrder string         `json:"encodedOrder"`
	OrderHash    string         `json:"orderHash,omitempty"`
	Permit       SigningRequest `json:"permit"`
	RawQuote     map[string]any `json:"rawQuote,omitempty"`
}

func (p *UniswapXRoutePayload) Provider() RouteProviderName { return RouteProviderUniswapX }

func (p *UniswapXRoutePayload) SigningRequests() []SigningRequest {
	return []SigningRequest{p.Permit}
}

// Route is an executable path for a swap
type Route struct {
	Provider       RouteProviderName `json:"provider"`
	InputAsset     AssetSymbol       `json:"inputAsset"`
	OutputAsset    AssetSymbol       `json:"outputAsset"`
	SellAmount     *big.Int          `json:"sellAmount"`
	BuyAmount      *big.Int          `json:"buyAmount"`
	MinBuyAmount   *big.Int          `json:"minBuyAmount"`
	PriceImpactBps int               `json:"priceImpactBps"`
	GasEstimate    uint64            `json:"gasEstimate"`
	Summary        string            `json:"summary"`
	Payload        RoutePayload      `json:"payload"`
}

// RouteRequest asks the providers for routes
type RouteRequest struct {
	ChainID     int64
	InputAsset  Asset
	OutputAsset Asset
	SellAmount  *big.Int
	SlippageBps int
	Taker       string
}

// ExecutionResult is a provider's answer to a submission
type ExecutionResult struct {
	Success        bool   `json:"success"`
	TradeHash      string `json:"tradeHash"`
	TxHash         string `json:"txHash,omitempty"`
	RequiresRefund bool   `json:"requiresRefund,omitempty"`
	RefundTxHash   string `json:"refundTxHash,omitempty"`
}

// RouteState is the normalized trade status
type RouteState string

const (
	RouteStatePending   RouteState = "pending"
	RouteStateConfirmed RouteState = "confirmed"
	RouteStateFailed    RouteState = "failed"
)

// RouteStatus is a provider's status for a submitted trade
type RouteStatus struct {
	State        RouteState `json:"state"`
	TxHash       string     `json:"txHash,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	RefundTxHash string     `json:"refundTxHash,omitempty"`
}
