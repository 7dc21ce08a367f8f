package routeprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
)

// UniswapXConfig configures the Uniswap trading API adapter
type UniswapXConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// UniswapX trades through signed Dutch orders filled by third-party fillers
type UniswapX struct {
	api *apiClient
}

func NewUniswapX(cfg UniswapXConfig) *UniswapX {
	return &UniswapX{
		api: newAPIClient(string(entities.RouteProviderUniswapX), cfg.BaseURL, cfg.Timeout, map[string]string{
			"x-api-key": cfg.APIKey,
		}),
	}
}

func (u *UniswapX) Name() entities.RouteProviderName { return entities.RouteProviderUniswapX }

type uniswapXQuoteRequest struct {
	Type              string   `json:"type"`
	Amount            string   `json:"amount"`
	TokenInChainID    int64    `json:"tokenInChainId"`
	TokenOutChainID   int64    `json:"tokenOutChainId"`
	TokenIn           string   `json:"tokenIn"`
	TokenOut          string   `json:"tokenOut"`
	Swapper           string   `json:"swapper"`
	SlippageTolerance float64  `json:"slippageTolerance,omitempty"`
	RoutingPreference string   `json:"routingPreference"`
	Protocols         []string `json:"protocols"`
}

type uniswapXPermitData struct {
	Domain entities.TypedDataDomain             `json:"domain"`
	Types  map[string][]entities.TypedDataField `json:"types"`
	Values map[string]any                       `json:"values"`
}

type uniswapXOrderOutput struct {
	StartAmount string `json:"startAmount"`
	EndAmount   string `json:"endAmount"`
}

type uniswapXQuoteResponse struct {
	RequestID  string              `json:"requestId"`
	Routing    string              `json:"routing"`
	Quote      json.RawMessage     `json:"quote"`
	PermitData *uniswapXPermitData `json:"permitData"`
}

type uniswapXQuoteBody struct {
	EncodedOrder string `json:"encodedOrder"`
	OrderID      string `json:"orderId"`
	QuoteID      string `json:"quoteId"`
	OrderInfo    struct {
		Outputs []uniswapXOrderOutput `json:"outputs"`
	} `json:"orderInfo"`
}

// Quote requests a Dutch order quote. Classic (non-UniswapX) routings are
// not executable here and yield a nil route.
func (u *UniswapX) Quote(ctx context.Context, req entities.RouteRequest) (*entities.Route, error) {
	body := uniswapXQuoteRequest{
		Type:              "EXACT_INPUT",
		Amount:            req.SellAmount.String(),
		TokenInChainID:    req.ChainID,
		TokenOutChainID:   req.ChainID,
		TokenIn:           req.InputAsset.Address,
		TokenOut:          req.OutputAsset.Address,
		Swapper:           req.Taker,
		RoutingPreference: "BEST_PRICE",
		Protocols:         []string{"UNISWAPX_V2"},
	}
	if req.SlippageBps > 0 {
		body.SlippageTolerance = float64(req.SlippageBps) / 100
	}

	var resp uniswapXQuoteResponse
	if err := u.api.do(ctx, http.MethodPost, "/quote", body, &resp); err != nil {
		if domainerrors.IsProviderKind(err, domainerrors.ProviderErrorNoLiquidity) {
			return nil, nil
		}
		return nil, err
	}
	if !strings.HasPrefix(strings.ToUpper(resp.Routing), "DUTCH") || resp.PermitData == nil {
		return nil, nil
	}

	var quote uniswapXQuoteBody
	if err := json.Unmarshal(resp.Quote, &quote); err != nil {
		return nil, u.malformed("quote", err)
	}
	if len(quote.OrderInfo.Outputs) == 0 {
		return nil, u.malformed("quote", fmt.Errorf("order has no outputs"))
	}
	out := quote.OrderInfo.Outputs[0]
	buy, err := parseAmount(out.StartAmount)
	if err != nil {
		return nil, u.malformed("startAmount", err)
	}
	minBuy, err := parseAmount(out.EndAmount)
	if err != nil {
		minBuy = new(big.Int).Set(buy)
	}

	var raw map[string]any
	_ = json.Unmarshal(resp.Quote, &raw)

	payload := &entities.UniswapXRoutePayload{
		QuoteID:      quote.QuoteID,
		RequestID:    resp.RequestID,
		Routing:      resp.Routing,
		EncodedOrder: quote.EncodedOrder,
		OrderHash:    quote.OrderID,
		RawQuote:     raw,
		Permit: entities.SigningRequest{
			Kind: entities.SigningKindPermit,
			Type: "permit2",
			TypedData: entities.TypedData{
				Types:       resp.PermitData.Types,
				PrimaryType: rootType(resp.PermitData.Types),
				Domain:      resp.PermitData.Domain,
				Message:     resp.PermitData.Values,
			},
		},
	}

	return &entities.Route{
		Provider:     entities.RouteProviderUniswapX,
		InputAsset:   req.InputAsset.Symbol,
		OutputAsset:  req.OutputAsset.Symbol,
		SellAmount:   req.SellAmount,
		BuyAmount:    buy,
		MinBuyAmount: minBuy,
		Summary:      "UniswapX " + resp.Routing,
		Payload:      payload,
	}, nil
}

type uniswapXOrderRequest struct {
	Signature string         `json:"signature"`
	Quote     map[string]any `json:"quote"`
	Routing   string         `json:"routing"`
}

type uniswapXOrderResponse struct {
	RequestID   string `json:"requestId"`
	OrderID     string `json:"orderId"`
	OrderStatus string `json:"orderStatus"`
}

// Submit posts the Permit2-signed order
func (u *UniswapX) Submit(ctx context.Context, route *entities.Route, _ int64, signed []entities.SignedPayload) (*entities.ExecutionResult, error) {
	payload, ok := route.Payload.(*entities.UniswapXRoutePayload)
	if !ok {
		return nil, u.malformed("route payload", fmt.Errorf("got %T", route.Payload))
	}
	var signature string
	for _, s := range signed {
		if s.Kind == entities.SigningKindPermit {
			signature = s.Signature
		}
	}
	if signature == "" {
		return nil, &domainerrors.ProviderError{
			Provider: string(entities.RouteProviderUniswapX),
			Kind:     domainerrors.ProviderErrorInvalidSignature,
			Message:  "permit signature missing",
		}
	}

	var resp uniswapXOrderResponse
	body := uniswapXOrderRequest{Signature: signature, Quote: payload.RawQuote, Routing: payload.Routing}
	if err := u.api.do(ctx, http.MethodPost, "/order", body, &resp); err != nil {
		return nil, err
	}
	return &entities.ExecutionResult{Success: resp.OrderID != "", TradeHash: resp.OrderID}, nil
}

type uniswapXOrdersResponse struct {
	Orders []struct {
		OrderID     string `json:"orderId"`
		OrderStatus string `json:"orderStatus"`
		TxHash      string `json:"txHash"`
	} `json:"orders"`
}

func (u *UniswapX) Status(ctx context.Context, orderID string) (*entities.RouteStatus, error) {
	var resp uniswapXOrdersResponse
	if err := u.api.do(ctx, http.MethodGet, "/orders?orderIds="+url.QueryEscape(orderID), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Orders) == 0 {
		return &entities.RouteStatus{State: entities.RouteStatePending}, nil
	}

	order := resp.Orders[0]
	status := &entities.RouteStatus{State: entities.RouteStatePending, TxHash: order.TxHash}
	switch strings.ToLower(order.OrderStatus) {
	case "filled":
		status.State = entities.RouteStateConfirmed
	case "expired", "error", "cancelled", "insufficient-funds":
		status.State = entities.RouteStateFailed
		status.Reason = "order " + strings.ToLower(order.OrderStatus)
	}
	return status, nil
}

func (u *UniswapX) malformed(field string, err error) error {
	return &domainerrors.ProviderError{
		Provider: string(entities.RouteProviderUniswapX),
		Kind:     domainerrors.ProviderErrorUnknown,
		Message:  fmt.Sprintf("malformed %s: %v", field, err),
	}
}

// rootType returns the struct type no other type references, which is the
// primary type of a Permit2 payload
func rootType(types map[string][]entities.TypedDataField) string {
	referenced := make(map[string]bool)
	for _, fields := range types {
		for _, f := range fields {
			referenced[strings.TrimSuffix(f.Type, "[]")] = true
		}
	}
	var roots []string
	for name := range types {
		if name != "EIP712Domain" && !referenced[name] {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)
	if len(roots) == 0 {
		return ""
	}
	return roots[0]
}
