package thornode

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
	"github.com/runeboard/runeboardx/pkg/utils"
	"go.uber.org/zap"
)

// Client queries historical pool reserves from chain nodes. Node addresses
// are bootstrapped from a seed endpoint and a random node serves each call,
// spreading load the way the reference crawler did.
type Client struct {
	network string
	seedURL string
	port    int
	client  *http.Client
	logger  *zap.Logger

	mu    sync.Mutex
	nodes []string
}

// Opts configures a chain query client.
type Opts struct {
	Network    string
	SeedURL    string
	Port       int
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func NewClient(o Opts) *Client {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Port <= 0 {
		o.Port = 1317
	}
	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		network: o.Network,
		seedURL: o.SeedURL,
		port:    o.Port,
		client:  client,
		logger:  logger,
	}
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		_ = utils.DrainAndClose(resp.Body)
		return fmt.Errorf("http %d from %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		_ = utils.DrainAndClose(resp.Body)
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return utils.DrainAndClose(resp.Body)
}

// refreshNodes re-reads the seed list.
func (c *Client) refreshNodes(ctx context.Context) error {
	var nodes []string
	if err := c.getJSON(ctx, c.seedURL, &nodes); err != nil {
		return fmt.Errorf("fetch seed list: %w", err)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("seed list is empty")
	}

	c.mu.Lock()
	c.nodes = nodes
	c.mu.Unlock()

	c.logger.Info("chain node list refreshed", zap.Int("nodes", len(nodes)))
	return nil
}

// pickNode returns a random known node, bootstrapping the list on first use.
func (c *Client) pickNode(ctx context.Context) (string, error) {
	c.mu.Lock()
	n := len(c.nodes)
	c.mu.Unlock()

	if n == 0 {
		if err := c.refreshNodes(ctx); err != nil {
			return "", err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodes[rand.Intn(len(c.nodes))], nil
}

// rawPool matches the node's pool response; amounts arrive as decimal strings
// of base units.
type rawPool struct {
	Asset        string `json:"asset"`
	BalanceAsset string `json:"balance_asset"`
	BalanceRune  string `json:"balance_rune"`
	PoolUnits    string `json:"pool_units"`
	Status       string `json:"status"`
}

func parseUnits(s string) uint64 {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// PoolsAt returns reserves of every pool at a historical height. An empty
// result on a height the chain no longer serves is not an error.
func (c *Client) PoolsAt(ctx context.Context, height uint64) ([]*ledger.PoolSnapshot, error) {
	node, err := c.pickNode(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("http://%s:%d/thorchain/pools?height=%d", node, c.port, height)
	var raw []rawPool
	if err := c.getJSON(ctx, url, &raw); err != nil {
		// A bad node should not poison subsequent calls.
		if rerr := c.refreshNodes(ctx); rerr != nil {
			c.logger.Warn("node list refresh failed", zap.Error(rerr))
		}
		return nil, fmt.Errorf("query pools at height %d: %w", height, err)
	}

	pools := make([]*ledger.PoolSnapshot, 0, len(raw))
	for _, rp := range raw {
		pools = append(pools, &ledger.PoolSnapshot{
			Network:      c.network,
			BlockHeight:  height,
			Pool:         rp.Asset,
			BalanceAsset: parseUnits(rp.BalanceAsset),
			BalanceRune:  parseUnits(rp.BalanceRune),
			PoolUnits:    parseUnits(rp.PoolUnits),
			Status:       rp.Status,
		})
	}
	return pools, nil
}
