package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/shopspring/decimal"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
)

const quoteDeadline = 24 * time.Hour

// Config configures the one-click bridge client
type Config struct {
	BaseURL string
	JWT     string
	Timeout time.Duration
}

// OneClick is a BridgeProvider backed by the 1Click deposit-address API
type OneClick struct {
	client *oneclick.APIClient
	jwt    string
	now    func() time.Time

	mu     sync.Mutex
	tokens []oneclick.TokenResponse
}

func NewOneClick(cfg Config) *OneClick {
	conf := oneclick.NewConfiguration()
	if cfg.BaseURL != "" {
		conf.Servers = oneclick.ServerConfigurations{{URL: strings.TrimRight(cfg.BaseURL, "/")}}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	conf.HTTPClient = &http.Client{Timeout: timeout}

	return &OneClick{
		client: oneclick.NewAPIClient(conf),
		jwt:    cfg.JWT,
		now:    time.Now,
	}
}

func (o *OneClick) authed(ctx context.Context) context.Context {
	if o.jwt == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, o.jwt)
}

// Quote resolves both assets, converts the amount to base units and asks
// for a deposit address
func (o *OneClick) Quote(ctx context.Context, input entities.BridgeQuoteInput) (*entities.BridgeRoute, error) {
	origin, err := o.findToken(ctx, input.OriginAsset, input.OriginChain)
	if err != nil {
		return nil, err
	}
	dest, err := o.findToken(ctx, input.DestinationAsset, input.DestinationChain)
	if err != nil {
		return nil, err
	}

	amount := decimal.NewFromFloat(input.Amount).Shift(int32(origin.GetDecimals())).Truncate(0)
	if !amount.IsPositive() {
		return nil, domainerrors.ErrInvalidAmount
	}

	req := oneclick.NewQuoteRequest(
		input.Dry,
		"EXACT_INPUT",
		float32(input.SlippageBps),
		origin.GetAssetId(),
		"ORIGIN_CHAIN",
		dest.GetAssetId(),
		amount.String(),
		input.RefundTo,
		"ORIGIN_CHAIN",
		input.Recipient,
		"DESTINATION_CHAIN",
		o.now().Add(quoteDeadline),
	)

	resp, httpResp, err := o.client.OneClickAPI.GetQuote(o.authed(ctx)).QuoteRequest(*req).Execute()
	if err != nil {
		return nil, apiError("quote", httpResp, err)
	}
	defer httpResp.Body.Close()
	if resp == nil {
		return nil, fmt.Errorf("%w: empty quote response", domainerrors.ErrBridgeFailure)
	}

	quote := resp.GetQuote()
	return &entities.BridgeRoute{
		DepositAddress: quote.GetDepositAddress(),
		DepositMemo:    quote.GetDepositMemo(),
		AmountIn:       quote.GetAmountIn(),
		AmountOut:      quote.GetAmountOut(),
		TimeEstimate:   float64(quote.GetTimeEstimate()),
		Deadline:       quote.GetDeadline(),
	}, nil
}

// SubmitDeposit tells the bridge about the deposit transaction
func (o *OneClick) SubmitDeposit(ctx context.Context, depositAddress, txHash string) error {
	req := oneclick.NewSubmitDepositTxRequestWithDefaults()
	req.SetTxHash(txHash)
	req.SetDepositAddress(depositAddress)
	_, httpResp, err := o.client.OneClickAPI.SubmitDepositTx(o.authed(ctx)).SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return apiError("submit deposit", httpResp, err)
	}
	defer httpResp.Body.Close()
	return nil
}

func (o *OneClick) Status(ctx context.Context, depositAddress string) (*entities.BridgeStatus, error) {
	resp, httpResp, err := o.client.OneClickAPI.GetExecutionStatus(o.authed(ctx)).DepositAddress(depositAddress).Execute()
	if err != nil {
		return nil, apiError("status", httpResp, err)
	}
	defer httpResp.Body.Close()

	raw := string(resp.GetStatus())
	status := &entities.BridgeStatus{
		DepositAddress: depositAddress,
		State:          MapStatus(raw),
		RawStatus:      raw,
		UpdatedAt:      resp.GetUpdatedAt(),
	}
	details := resp.GetSwapDetails()
	for _, tx := range details.GetDestinationChainTxHashes() {
		if h := tx.GetHash(); h != "" {
			status.DestinationTxHash = h
		}
	}
	status.AmountOut = details.GetAmountOutFormatted()
	return status, nil
}

// MapStatus folds the bridge's execution statuses into BridgeState
func MapStatus(raw string) entities.BridgeState {
	switch strings.ToUpper(raw) {
	case "SUCCESS":
		return entities.BridgeStateSuccess
	case "REFUNDED":
		return entities.BridgeStateRefunded
	case "FAILED":
		return entities.BridgeStateFailed
	}
	return entities.BridgeStatePending
}

func (o *OneClick) supportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tokens != nil {
		return o.tokens, nil
	}

	tokens, httpResp, err := o.client.OneClickAPI.GetTokens(o.authed(ctx)).Execute()
	if err != nil {
		return nil, apiError("tokens", httpResp, err)
	}
	defer httpResp.Body.Close()
	o.tokens = tokens
	return tokens, nil
}

func (o *OneClick) findToken(ctx context.Context, symbol, chain string) (*oneclick.TokenResponse, error) {
	tokens, err := o.supportedTokens(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tokens {
		t := tokens[i]
		if strings.EqualFold(t.GetSymbol(), symbol) && (chain == "" || strings.EqualFold(t.GetBlockchain(), chain)) {
			return &t, nil
		}
	}
	return nil, domainerrors.NewError(fmt.Sprintf("token %s not supported on %s", symbol, chain), domainerrors.ErrInvalidInput)
}

// apiError pulls the message out of the error body when there is one
func apiError(op string, httpResp *http.Response, err error) error {
	if httpResp == nil || httpResp.Body == nil {
		return fmt.Errorf("%w: %s: %v", domainerrors.ErrBridgeFailure, op, err)
	}
	defer httpResp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64<<10))
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return fmt.Errorf("%w: %s (status %d): %s", domainerrors.ErrBridgeFailure, op, httpResp.StatusCode, payload.Message)
	}
	return fmt.Errorf("%w: %s (status %d): %v", domainerrors.ErrBridgeFailure, op, httpResp.StatusCode, err)
}
