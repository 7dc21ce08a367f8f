package routeprovider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/pkg/logger"
)

// Adapter is one DEX API
type Adapter interface {
	Name() entities.RouteProviderName
	// Quote returns nil, nil when the provider has no route
	Quote(ctx context.Context, req entities.RouteRequest) (*entities.Route, error)
	Submit(ctx context.Context, route *entities.Route, chainID int64, signed []entities.SignedPayload) (*entities.ExecutionResult, error)
	Status(ctx context.Context, tradeHash string) (*entities.RouteStatus, error)
}

// Aggregator asks every adapter for a route and executes through whichever
// produced the chosen one
type Aggregator struct {
	chainID  int64
	adapters map[entities.RouteProviderName]Adapter
	order    []entities.RouteProviderName
}

func NewAggregator(chainID int64, adapters ...Adapter) *Aggregator {
	a := &Aggregator{chainID: chainID, adapters: make(map[entities.RouteProviderName]Adapter, len(adapters))}
	for _, ad := range adapters {
		if ad == nil {
			continue
		}
		if _, dup := a.adapters[ad.Name()]; !dup {
			a.order = append(a.order, ad.Name())
		}
		a.adapters[ad.Name()] = ad
	}
	return a
}

// GetBestRoute fans out to all adapters and returns routes best first by
// buy amount. One failing adapter does not hide the others' routes; the
// error is returned only when every adapter failed.
func (a *Aggregator) GetBestRoute(ctx context.Context, req entities.RouteRequest) ([]*entities.Route, error) {
	if req.SellAmount == nil || req.SellAmount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: sell amount must be positive", domainerrors.ErrInvalidInput)
	}

	var (
		mu     sync.Mutex
		routes []*entities.Route
		errs   []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range a.order {
		adapter := a.adapters[name]
		g.Go(func() error {
			route, err := adapter.Quote(gctx, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn(ctx, "route quote failed", zap.String("provider", string(adapter.Name())), zap.Error(err))
				errs = append(errs, err)
				return nil
			}
			if route != nil && route.BuyAmount != nil {
				routes = append(routes, route)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(routes) == 0 && len(errs) > 0 && len(errs) == len(a.order) {
		return nil, errs[0]
	}
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].BuyAmount.Cmp(routes[j].BuyAmount) > 0
	})
	return routes, nil
}

func (a *Aggregator) ExecuteRoute(ctx context.Context, route *entities.Route, _ string, _ int, signed []entities.SignedPayload) (*entities.ExecutionResult, error) {
	if route == nil {
		return nil, errors.New("nil route")
	}
	adapter, err := a.adapter(route.Provider)
	if err != nil {
		return nil, err
	}
	return adapter.Submit(ctx, route, a.chainID, signed)
}

func (a *Aggregator) GetStatus(ctx context.Context, provider entities.RouteProviderName, tradeHash string) (*entities.RouteStatus, error) {
	adapter, err := a.adapter(provider)
	if err != nil {
		return nil, err
	}
	return adapter.Status(ctx, tradeHash)
}

func (a *Aggregator) adapter(name entities.RouteProviderName) (Adapter, error) {
	adapter, ok := a.adapters[name]
	if !ok {
		return nil, &domainerrors.ProviderError{
			Provider: string(name),
			Kind:     domainerrors.ProviderErrorUnavailable,
			Message:  "provider not configured",
		}
	}
	return adapter, nil
}
