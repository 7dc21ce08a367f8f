package routeprovider

import (
	"encoding/json"
	"net/http"
	"strings"

	domainerrors "vaultswap.backend/internal/domain/errors"
)

// expiredPrefix is how both APIs flag a quote that went stale before submission
const expiredPrefix = "EXPIRED:"

var codeKinds = map[string]domainerrors.ProviderErrorKind{
	"EXPIRED":                          domainerrors.ProviderErrorExpired,
	"QUOTE_EXPIRED":                    domainerrors.ProviderErrorExpired,
	"META_TRANSACTION_EXPIRY_TOO_SOON": domainerrors.ProviderErrorExpired,
	"ORDER_EXPIRED":                    domainerrors.ProviderErrorExpired,
	"INSUFFICIENT_BALANCE":             domainerrors.ProviderErrorInsufficientBalance,
	"INSUFFICIENT_FUNDS":               domainerrors.ProviderErrorInsufficientBalance,
	"INSUFFICIENT_ALLOWANCE":           domainerrors.ProviderErrorInsufficientAllowance,
	"INSUFFICIENT_LIQUIDITY":           domainerrors.ProviderErrorNoLiquidity,
	"NO_QUOTES_AVAILABLE":              domainerrors.ProviderErrorNoLiquidity,
	"QUOTE_ERROR":                      domainerrors.ProviderErrorNoLiquidity,
	"INVALID_SIGNATURE":                domainerrors.ProviderErrorInvalidSignature,
	"SIGNATURE_INVALID":                domainerrors.ProviderErrorInvalidSignature,
	"REQUIRES_IMPORT":                  domainerrors.ProviderErrorRequiresImport,
	"TOKEN_NOT_IMPORTED":               domainerrors.ProviderErrorRequiresImport,
	"REFUNDED":                         domainerrors.ProviderErrorRefunded,
	"RATE_LIMITED":                     domainerrors.ProviderErrorRateLimited,
	"TOO_MANY_REQUESTS":                domainerrors.ProviderErrorRateLimited,
}

// errorBody covers the 0x ({name, message, data}) and Uniswap
// ({errorCode, detail}) error envelopes
type errorBody struct {
	Name         string `json:"name"`
	Message      string `json:"message"`
	ErrorCode    string `json:"errorCode"`
	Detail       string `json:"detail"`
	Reason       string `json:"reason"`
	RefundTxHash string `json:"refundTxHash"`
	Data         struct {
		Code         string `json:"code"`
		Details      any    `json:"details"`
		RefundTxHash string `json:"refundTxHash"`
	} `json:"data"`
}

// ParseError classifies a non-2xx provider response
func ParseError(provider string, status int, body []byte) *domainerrors.ProviderError {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	code := firstNonEmpty(eb.Data.Code, eb.ErrorCode, eb.Name)
	message := firstNonEmpty(eb.Message, eb.Detail, eb.Reason, strings.TrimSpace(string(body)), http.StatusText(status))

	perr := &domainerrors.ProviderError{
		Provider:     provider,
		Kind:         classify(code, message, status),
		Message:      message,
		StatusCode:   status,
		RefundTxHash: firstNonEmpty(eb.Data.RefundTxHash, eb.RefundTxHash),
	}
	applyFlags(perr)
	return perr
}

// FailureError builds the error for a trade the provider reported as failed
func FailureError(provider, reason, refundTxHash string) *domainerrors.ProviderError {
	perr := &domainerrors.ProviderError{
		Provider:     provider,
		Kind:         classify("", reason, 0),
		Message:      reason,
		RefundTxHash: refundTxHash,
	}
	if perr.Kind == domainerrors.ProviderErrorUnknown && refundTxHash != "" {
		perr.Kind = domainerrors.ProviderErrorRefunded
	}
	applyFlags(perr)
	return perr
}

// TransportError wraps a request that never got a response
func TransportError(provider string, err error) *domainerrors.ProviderError {
	return &domainerrors.ProviderError{
		Provider: provider,
		Kind:     domainerrors.ProviderErrorUnavailable,
		Message:  err.Error(),
	}
}

func classify(code, message string, status int) domainerrors.ProviderErrorKind {
	if kind, ok := codeKinds[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return kind
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(message)), expiredPrefix) {
		return domainerrors.ProviderErrorExpired
	}
	switch {
	case status == http.StatusTooManyRequests:
		return domainerrors.ProviderErrorRateLimited
	case status >= http.StatusInternalServerError:
		return domainerrors.ProviderErrorUnavailable
	}
	return domainerrors.ProviderErrorUnknown
}

func applyFlags(perr *domainerrors.ProviderError) {
	switch perr.Kind {
	case domainerrors.ProviderErrorRequiresImport:
		perr.RequiresImport = true
	case domainerrors.ProviderErrorRefunded:
		perr.RequiresRefund = true
	}
	if perr.RefundTxHash != "" {
		perr.RequiresRefund = true
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
