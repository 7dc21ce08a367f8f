package routeprovider

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
)

// eip712 signature type in 0x's signature envelope
const zeroXSignatureTypeEIP712 = 2

// ZeroXConfig configures the 0x gasless API adapter
type ZeroXConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ZeroX trades through the 0x gasless (meta-transaction) API
type ZeroX struct {
	api *apiClient
}

func NewZeroX(cfg ZeroXConfig) *ZeroX {
	return &ZeroX{
		api: newAPIClient(string(entities.RouteProviderZeroX), cfg.BaseURL, cfg.Timeout, map[string]string{
			"0x-api-key": cfg.APIKey,
			"0x-version": "v2",
		}),
	}
}

func (z *ZeroX) Name() entities.RouteProviderName { return entities.RouteProviderZeroX }

type zeroXSigningStep struct {
	Type   string             `json:"type"`
	Hash   string             `json:"hash"`
	EIP712 entities.TypedData `json:"eip712"`
}

type zeroXQuote struct {
	LiquidityAvailable bool              `json:"liquidityAvailable"`
	BuyAmount          string            `json:"buyAmount"`
	MinBuyAmount       string            `json:"minBuyAmount"`
	SellAmount         string            `json:"sellAmount"`
	Approval           *zeroXSigningStep `json:"approval"`
	Trade              *zeroXSigningStep `json:"trade"`
	Route              struct {
		Fills []struct {
			Source        string `json:"source"`
			ProportionBps string `json:"proportionBps"`
		} `json:"fills"`
	} `json:"route"`
	Fees struct {
		GasFee *struct {
			Amount string `json:"amount"`
		} `json:"gasFee"`
	} `json:"fees"`
	ZID string `json:"zid"`
}

// Quote asks for a gasless quote. No liquidity yields a nil route.
func (z *ZeroX) Quote(ctx context.Context, req entities.RouteRequest) (*entities.Route, error) {
	params := url.Values{}
	params.Set("chainId", strconv.FormatInt(req.ChainID, 10))
	params.Set("sellToken", req.InputAsset.Address)
	params.Set("buyToken", req.OutputAsset.Address)
	params.Set("sellAmount", req.SellAmount.String())
	params.Set("taker", req.Taker)
	if req.SlippageBps > 0 {
		params.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	}

	var q zeroXQuote
	if err := z.api.do(ctx, http.MethodGet, "/gasless/quote?"+params.Encode(), nil, &q); err != nil {
		if domainerrors.IsProviderKind(err, domainerrors.ProviderErrorNoLiquidity) {
			return nil, nil
		}
		return nil, err
	}
	if !q.LiquidityAvailable || q.Trade == nil {
		return nil, nil
	}

	buy, err := parseAmount(q.BuyAmount)
	if err != nil {
		return nil, z.malformed("buyAmount", err)
	}
	minBuy, err := parseAmount(q.MinBuyAmount)
	if err != nil {
		minBuy = new(big.Int).Set(buy)
	}
	sell := req.SellAmount
	if parsed, err := parseAmount(q.SellAmount); err == nil {
		sell = parsed
	}

	payload := &entities.ZeroXRoutePayload{
		Trade: entities.SigningRequest{Kind: entities.SigningKindTrade, Type: q.Trade.Type, TypedData: q.Trade.EIP712},
		ZID:   q.ZID,
	}
	if q.Approval != nil {
		payload.Approval = &entities.SigningRequest{Kind: entities.SigningKindApproval, Type: q.Approval.Type, TypedData: q.Approval.EIP712}
	}
	sources := make([]string, 0, len(q.Route.Fills))
	for _, f := range q.Route.Fills {
		bps, _ := strconv.Atoi(f.ProportionBps)
		payload.Fills = append(payload.Fills, entities.ZeroXFill{Source: f.Source, ProportionBps: bps})
		sources = append(sources, f.Source)
	}

	return &entities.Route{
		Provider:     entities.RouteProviderZeroX,
		InputAsset:   req.InputAsset.Symbol,
		OutputAsset:  req.OutputAsset.Symbol,
		SellAmount:   sell,
		BuyAmount:    buy,
		MinBuyAmount: minBuy,
		Summary:      strings.Join(sources, " > "),
		Payload:      payload,
	}, nil
}

type zeroXSignature struct {
	V             uint8  `json:"v"`
	R             string `json:"r"`
	S             string `json:"s"`
	SignatureType int    `json:"signatureType"`
}

type zeroXSignedStep struct {
	Type      string             `json:"type"`
	EIP712    entities.TypedData `json:"eip712"`
	Signature zeroXSignature     `json:"signature"`
}

type zeroXSubmitRequest struct {
	ChainID  int64            `json:"chainId"`
	Approval *zeroXSignedStep `json:"approval,omitempty"`
	Trade    zeroXSignedStep  `json:"trade"`
}

type zeroXSubmitResponse struct {
	TradeHash string `json:"tradeHash"`
	Type      string `json:"type"`
	ZID       string `json:"zid"`
}

// Submit sends the signed approval and trade
func (z *ZeroX) Submit(ctx context.Context, route *entities.Route, chainID int64, signed []entities.SignedPayload) (*entities.ExecutionResult, error) {
	body := zeroXSubmitRequest{ChainID: chainID}
	for _, s := range signed {
		step := &zeroXSignedStep{
			Type:      s.Type,
			EIP712:    s.TypedData,
			Signature: zeroXSignature{V: s.V, R: s.R, S: s.S, SignatureType: zeroXSignatureTypeEIP712},
		}
		switch s.Kind {
		case entities.SigningKindApproval:
			body.Approval = step
		case entities.SigningKindTrade:
			body.Trade = *step
		}
	}
	if body.Trade.Type == "" {
		return nil, &domainerrors.ProviderError{
			Provider: string(entities.RouteProviderZeroX),
			Kind:     domainerrors.ProviderErrorInvalidSignature,
			Message:  "trade signature missing",
		}
	}

	var resp zeroXSubmitResponse
	if err := z.api.do(ctx, http.MethodPost, "/gasless/submit", body, &resp); err != nil {
		return nil, err
	}
	return &entities.ExecutionResult{Success: resp.TradeHash != "", TradeHash: resp.TradeHash}, nil
}

type zeroXStatusResponse struct {
	Status       string `json:"status"`
	Reason       string `json:"reason"`
	RefundTxHash string `json:"refundTxHash"`
	Transactions []struct {
		Hash string `json:"hash"`
	} `json:"transactions"`
}

func (z *ZeroX) Status(ctx context.Context, tradeHash string) (*entities.RouteStatus, error) {
	var resp zeroXStatusResponse
	if err := z.api.do(ctx, http.MethodGet, "/gasless/status/"+url.PathEscape(tradeHash), nil, &resp); err != nil {
		return nil, err
	}

	status := &entities.RouteStatus{State: entities.RouteStatePending, Reason: resp.Reason, RefundTxHash: resp.RefundTxHash}
	if n := len(resp.Transactions); n > 0 {
		status.TxHash = resp.Transactions[n-1].Hash
	}
	switch strings.ToLower(resp.Status) {
	case "succeeded", "confirmed":
		status.State = entities.RouteStateConfirmed
	case "failed":
		status.State = entities.RouteStateFailed
	}
	return status, nil
}

func (z *ZeroX) malformed(field string, err error) error {
	return &domainerrors.ProviderError{
		Provider: string(entities.RouteProviderZeroX),
		Kind:     domainerrors.ProviderErrorUnknown,
		Message:  fmt.Sprintf("malformed %s: %v", field, err),
	}
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}
