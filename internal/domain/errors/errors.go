package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Generic domain errors
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrBadRequest    = errors.New("bad request")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
)

// Swap pipeline errors
var (
	ErrUnsupportedPair      = errors.New("unsupported asset pair")
	ErrSameAssetSwap        = errors.New("input and output asset are the same")
	ErrWeakPassword         = errors.New("password must be at least 8 characters")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrQuoteNotFound        = errors.New("quote not found")
	ErrQuoteExpired         = errors.New("quote expired")
	ErrAlreadyInProgress    = errors.New("swap already in progress for this quote")
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrWrongPassword        = errors.New("wrong wallet password")
	ErrDuplicateWallet      = errors.New("a funded wallet already exists")
	ErrLegacyKeyUnbound     = errors.New("legacy wallet key has no password bound; sign once with a new password first")
	ErrIntentCreationFailed = errors.New("failed to record swap intent")
	ErrNoRouteFound         = errors.New("no route found")
	ErrPollingTimeout       = errors.New("swap status polling timed out")
	ErrFundedWalletArchive  = errors.New("wallet holds a balance; confirmation required to archive")
	ErrIntentTerminal       = errors.New("intent is in a terminal status")
	ErrInvalidTransition    = errors.New("invalid intent status transition")
	ErrStaleStatus          = errors.New("intent status changed concurrently")
	ErrSwapFailed           = errors.New("swap failed on-chain")
	ErrPriceUnavailable     = errors.New("price unavailable")
	ErrInvalidPrivateKey    = errors.New("invalid private key")
	ErrProviderFailure      = errors.New("route provider failure")
	ErrBridgeFailure        = errors.New("bridge provider failure")
)

// Error codes returned to API clients
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeConflict            = "CONFLICT"
	CodeInternalError       = "INTERNAL_ERROR"
	CodeUnsupportedPair     = "UNSUPPORTED_PAIR"
	CodeSameAssetSwap       = "SAME_ASSET_SWAP"
	CodeWeakPassword        = "WEAK_PASSWORD"
	CodeLegacyKeyUnbound    = "LEGACY_KEY_UNBOUND"
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeQuoteNotFound       = "QUOTE_NOT_FOUND"
	CodeQuoteExpired        = "QUOTE_EXPIRED"
	CodeAlreadyInProgress   = "ALREADY_IN_PROGRESS"
	CodeWalletNotFound      = "WALLET_NOT_FOUND"
	CodeWrongPassword       = "WRONG_WALLET_PASSWORD"
	CodeDuplicateWallet     = "DUPLICATE_WALLET"
	CodeIntentCreation      = "INTENT_CREATION_FAILED"
	CodeNoRouteFound        = "NO_ROUTE_FOUND"
	CodePollingTimeout      = "POLLING_TIMEOUT"
	CodeFundedWalletArchive = "FUNDED_WALLET_ARCHIVE"
	CodeSwapFailed          = "SWAP_FAILED"
	CodePriceUnavailable    = "PRICE_UNAVAILABLE"
	CodeProviderError       = "PROVIDER_ERROR"
)

// AppError represents application error with HTTP status
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeBadRequest, message, ErrBadRequest)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, CodeForbidden, message, ErrForbidden)
}

func Conflict(message string) *AppError {
	return NewAppError(http.StatusConflict, CodeConflict, message, ErrAlreadyExists)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, "internal server error", err)
}

// NewError creates a bad request error with a custom message wrapping an existing error
func NewError(message string, err error) error {
	return NewAppError(http.StatusBadRequest, CodeBadRequest, message, err)
}

// QuoteExpiredError carries how long ago the quote expired
type QuoteExpiredError struct {
	QuoteID   string
	ExpiredAt time.Time
	Overage   time.Duration
}

func (e *QuoteExpiredError) Error() string {
	return fmt.Sprintf("quote %s expired %s ago", e.QuoteID, e.Overage.Round(time.Second))
}

func (e *QuoteExpiredError) Unwrap() error {
	return ErrQuoteExpired
}

// ProviderErrorKind classifies route provider failures
type ProviderErrorKind string

const (
	ProviderErrorExpired               ProviderErrorKind = "expired"
	ProviderErrorInsufficientBalance   ProviderErrorKind = "insufficient_balance"
	ProviderErrorInsufficientAllowance ProviderErrorKind = "insufficient_allowance"
	ProviderErrorNoLiquidity           ProviderErrorKind = "no_liquidity"
	ProviderErrorInvalidSignature      ProviderErrorKind = "invalid_signature"
	ProviderErrorRequiresImport        ProviderErrorKind = "requires_import"
	ProviderErrorRefunded              ProviderErrorKind = "refunded"
	ProviderErrorRateLimited           ProviderErrorKind = "rate_limited"
	ProviderErrorUnavailable           ProviderErrorKind = "unavailable"
	ProviderErrorUnknown               ProviderErrorKind = "unknown"
)

// ProviderError is a classified failure from a route provider. The flags
// tell callers whether funds moved even though the swap did not complete.
type ProviderError struct {
	Provider       string
	Kind           ProviderErrorKind
	Message        string
	StatusCode     int
	RequiresImport bool
	RequiresRefund bool
	RefundTxHash   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return ErrProviderFailure
}

// IsProviderKind reports whether err is a ProviderError of the given kind
func IsProviderKind(err error, kind ProviderErrorKind) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == kind
}

type mapping struct {
	target error
	status int
	code   string
}

var domainMappings = []mapping{
	{ErrUnsupportedPair, http.StatusBadRequest, CodeUnsupportedPair},
	{ErrSameAssetSwap, http.StatusBadRequest, CodeSameAssetSwap},
	{ErrWeakPassword, http.StatusBadRequest, CodeWeakPassword},
	{ErrInvalidAmount, http.StatusBadRequest, CodeInvalidAmount},
	{ErrInvalidPrivateKey, http.StatusBadRequest, CodeBadRequest},
	{ErrQuoteNotFound, http.StatusNotFound, CodeQuoteNotFound},
	{ErrQuoteExpired, http.StatusGone, CodeQuoteExpired},
	{ErrAlreadyInProgress, http.StatusConflict, CodeAlreadyInProgress},
	{ErrWalletNotFound, http.StatusNotFound, CodeWalletNotFound},
	{ErrWrongPassword, http.StatusUnauthorized, CodeWrongPassword},
	{ErrDuplicateWallet, http.StatusConflict, CodeDuplicateWallet},
	{ErrLegacyKeyUnbound, http.StatusConflict, CodeLegacyKeyUnbound},
	{ErrFundedWalletArchive, http.StatusConflict, CodeFundedWalletArchive},
	{ErrIntentCreationFailed, http.StatusInternalServerError, CodeIntentCreation},
	{ErrNoRouteFound, http.StatusUnprocessableEntity, CodeNoRouteFound},
	{ErrPollingTimeout, http.StatusAccepted, CodePollingTimeout},
	{ErrSwapFailed, http.StatusUnprocessableEntity, CodeSwapFailed},
	{ErrPriceUnavailable, http.StatusServiceUnavailable, CodePriceUnavailable},
	{ErrProviderFailure, http.StatusBadGateway, CodeProviderError},
	{ErrBridgeFailure, http.StatusBadGateway, CodeProviderError},
	{ErrNotFound, http.StatusNotFound, CodeNotFound},
	{ErrAlreadyExists, http.StatusConflict, CodeConflict},
	{ErrInvalidInput, http.StatusBadRequest, CodeBadRequest},
	{ErrBadRequest, http.StatusBadRequest, CodeBadRequest},
	{ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},
	{ErrForbidden, http.StatusForbidden, CodeForbidden},
}

// ToAppError maps any error onto an AppError, defaulting to 500
func ToAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, m := range domainMappings {
		if errors.Is(err, m.target) {
			return NewAppError(m.status, m.code, err.Error(), err)
		}
	}
	return InternalError(err)
}
