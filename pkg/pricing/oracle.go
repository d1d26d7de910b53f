package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/runeboard/runeboardx/pkg/utils"
	"go.uber.org/zap"
)

const (
	defaultOracleBaseURL = "https://api.coingecko.com/api/v3"
	oracleCoin           = "thorchain"
	// Lookup window around the requested timestamp; the oracle serves
	// sparse samples, so a tight window comes back empty.
	oracleWindow = int64(3600)
)

// Oracle resolves the USD price of the native token at an arbitrary moment
// from an external time-indexed price feed. Results are cached per hour
// bucket to bound external call volume.
type Oracle struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	cache   *xsync.Map[int64, float64]
}

// OracleOpts configures an Oracle.
type OracleOpts struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func NewOracle(o OracleOpts) *Oracle {
	if o.BaseURL == "" {
		o.BaseURL = defaultOracleBaseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{
		baseURL: o.BaseURL,
		client:  client,
		logger:  logger,
		cache:   xsync.NewMap[int64, float64](),
	}
}

type marketChart struct {
	Prices [][2]float64 `json:"prices"`
}

// PriceAt returns the USD price of the native token nearest to ts.
func (o *Oracle) PriceAt(ctx context.Context, ts int64) (float64, error) {
	bucket := ts / oracleWindow
	if price, ok := o.cache.Load(bucket); ok {
		return price, nil
	}

	url := fmt.Sprintf("%s/coins/%s/market_chart/range?vs_currency=usd&from=%d&to=%d",
		o.baseURL, oracleCoin, ts-oracleWindow, ts+oracleWindow)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("oracle request: %w", err)
	}
	if resp.StatusCode >= 300 {
		_ = utils.DrainAndClose(resp.Body)
		return 0, fmt.Errorf("oracle http %d", resp.StatusCode)
	}

	var chart marketChart
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		_ = utils.DrainAndClose(resp.Body)
		return 0, fmt.Errorf("oracle decode: %w", err)
	}
	if err := utils.DrainAndClose(resp.Body); err != nil {
		return 0, err
	}

	if len(chart.Prices) == 0 || chart.Prices[0][1] <= 0 {
		return 0, fmt.Errorf("oracle has no sample near ts=%d", ts)
	}

	price := chart.Prices[0][1]
	o.cache.Store(bucket, price)
	o.logger.Debug("oracle price cached",
		zap.Int64("bucket", bucket), zap.Float64("price", price))
	return price, nil
}
