// Package pricefeed looks up spot prices from a Binance-style ticker endpoint
package pricefeed

import (
	"context"
	"fmt"
	"time"

	"hedge_advisor/internal/core"
	"hedge_advisor/pkg/cli"
	apperrors "hedge_advisor/pkg/errors"
	apphttp "hedge_advisor/pkg/http"

	"github.com/shopspring/decimal"
)

const tickerPath = "/api/v3/ticker/price"

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Feed implements core.IPriceFeed over HTTP
type Feed struct {
	client *apphttp.Client
	logger core.ILogger
}

// New creates a feed against baseURL. apiKey may be empty.
func New(baseURL, apiKey string, timeout time.Duration, logger core.ILogger) *Feed {
	return &Feed{
		client: apphttp.NewClient(baseURL, timeout, apphttp.HeaderSigner{Header: "X-MBX-APIKEY", Value: apiKey}),
		logger: logger.WithField("component", "price_feed"),
	}
}

// Price returns the last traded price for symbol
func (f *Feed) Price(ctx context.Context, symbol string) (float64, error) {
	symbol, err := cli.NormalizeSymbol(symbol)
	if err != nil {
		return 0, err
	}

	var tp tickerPrice
	if err := f.client.GetJSON(ctx, tickerPath, map[string]string{"symbol": symbol}, &tp); err != nil {
		f.logger.Warn("Price lookup failed", "symbol", symbol, "error", err)
		return 0, fmt.Errorf("%s: %w: %v", symbol, apperrors.ErrPriceUnavailable, err)
	}

	price, err := decimal.NewFromString(tp.Price)
	if err != nil || !price.IsPositive() {
		return 0, fmt.Errorf("%s: %w: bad price %q", symbol, apperrors.ErrPriceUnavailable, tp.Price)
	}

	f.logger.Debug("Price fetched", "symbol", symbol, "price", tp.Price)
	return price.InexactFloat64(), nil
}

var _ core.IPriceFeed = (*Feed)(nil)
