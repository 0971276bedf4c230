// Package price reads live gold, currency and crypto quotes from TGJU.
package price

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	apperrors "github.com/kiarash-bot/kiarash/internal/errors"
	"github.com/kiarash-bot/kiarash/internal/httpclient"
	"github.com/kiarash-bot/kiarash/internal/logger"
	"github.com/kiarash-bot/kiarash/internal/metrics"
	"github.com/kiarash-bot/kiarash/internal/storage"
)

const (
	providerName = "tgju"
	snapshotKey  = "current"
)

// Line is one formatted row of a price list.
type Line struct {
	Label  string // item label, e.g. "سکه امامی" or "بیت‌کوین (BTC)"
	Price  string // display price with unit, e.g. "12,345 تومان" or "$2,650.10"
	Toman  string // crypto only: the rial quote in toman, "" when absent
	Change string // direction and percent, "" when the item has none
	Time   string // quote time as sent by the provider, "---" when absent
}

// Quote is one entry of the TGJU "current" map.
type Quote struct {
	Price     flexString `json:"p"`
	Direction string     `json:"dt"`
	Percent   flexString `json:"dp"`
	Time      flexString `json:"t"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(data)
	return nil
}

type ajaxResponse struct {
	Current map[string]Quote `json:"current"`
}

// Client fetches TGJU quotes. One snapshot serves all three lists until it expires.
type Client struct {
	url     string
	http    *httpclient.Client
	cache   *storage.JSONCache[map[string]Quote]
	metrics *metrics.Metrics
	logger  *logger.Logger
	group   singleflight.Group
	printer *message.Printer
}

// NewClient creates a Client. cache, m and log may be nil.
func NewClient(url string, http *httpclient.Client, cache *storage.JSONCache[map[string]Quote], m *metrics.Metrics, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}
	return &Client{
		url:     url,
		http:    http,
		cache:   cache,
		metrics: m,
		logger:  log.WithModule("price"),
		printer: message.NewPrinter(language.English),
	}
}

// NewSnapshotCache builds the quote snapshot cache stored in db.
func NewSnapshotCache(db storage.KeyValueStore, ttl time.Duration) *storage.JSONCache[map[string]Quote] {
	return storage.NewJSONCache[map[string]Quote](db, "price", ttl)
}

// Gold returns gold and coin prices in toman followed by the world ounce in USD.
func (c *Client) Gold(ctx context.Context) ([]Line, error) {
	quotes, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	lines := c.tomanLines(quotes, GoldItems)
	if q, ok := quotes[OunceItem.Key]; ok {
		lines = append(lines, Line{
			Label: OunceItem.Label,
			Price: "$" + orDash(string(q.Price)),
			Time:  orDash(strings.TrimSpace(string(q.Time))),
		})
	}
	return lines, nil
}

// Currency returns foreign currency prices in toman.
func (c *Client) Currency(ctx context.Context) ([]Line, error) {
	quotes, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return c.tomanLines(quotes, CurrencyItems), nil
}

// Crypto returns crypto prices in USD with the toman equivalent when known.
func (c *Client) Crypto(ctx context.Context) ([]Line, error) {
	quotes, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(CryptoAssets))
	for _, a := range CryptoAssets {
		usd, ok := quotes[a.Key]
		if !ok {
			continue
		}
		line := Line{
			Label:  fmt.Sprintf("%s (%s)", a.Name, a.Symbol),
			Price:  "$" + orDash(string(usd.Price)),
			Change: ChangeText(usd.Direction, string(usd.Percent)),
			Time:   orDash(strings.TrimSpace(string(usd.Time))),
		}
		if irr, ok := quotes[a.Key+"-irr"]; ok && irr.Price != "" {
			line.Toman = c.ToToman(string(irr.Price)) + " تومان"
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (c *Client) tomanLines(quotes map[string]Quote, items []Item) []Line {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		q, ok := quotes[it.Key]
		if !ok {
			continue
		}
		lines = append(lines, Line{
			Label:  it.Label,
			Price:  c.ToToman(orDash(string(q.Price))) + " تومان",
			Change: ChangeText(q.Direction, string(q.Percent)),
			Time:   orDash(strings.TrimSpace(string(q.Time))),
		})
	}
	return lines
}

// ToToman converts a rial price such as "1,234,560" to grouped toman ("123,456").
// Unparseable input is returned unchanged.
func (c *Client) ToToman(rial string) string {
	clean := strings.NewReplacer(",", "", "\t", "", " ", "").Replace(rial)
	v, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return rial
	}
	return c.printer.Sprintf("%d", v/10)
}

// ChangeText renders the direction and percent of a quote change.
func ChangeText(direction, percent string) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(percent), 64)
	if err == nil && v > 0 {
		switch direction {
		case "high":
			return "🔺 +" + percent + "%"
		case "low":
			return "🔻 -" + percent + "%"
		}
	}
	return "➖ بدون تغییر"
}

func orDash(s string) string {
	if s == "" {
		return "---"
	}
	return s
}

// snapshot returns the current quote map, from cache when fresh.
func (c *Client) snapshot(ctx context.Context) (map[string]Quote, error) {
	if c.cache != nil {
		quotes, ok, err := c.cache.Get(ctx, snapshotKey)
		if err == nil && ok {
			c.recordCache(true)
			return quotes, nil
		}
		c.recordCache(false)
	}

	v, err, shared := c.group.Do(snapshotKey, func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithDeadline(fetchCtx, deadline)
			defer cancel()
		}

		quotes, err := c.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			if err := c.cache.Put(fetchCtx, snapshotKey, quotes); err != nil {
				c.logger.WithError(err).WarnContext(ctx, "Failed to save price snapshot to cache")
			}
		}
		return quotes, nil
	})
	if shared && c.metrics != nil {
		c.metrics.RecordSingleflightDedup("price")
	}
	if err != nil {
		return nil, err
	}
	return v.(map[string]Quote), nil
}

func (c *Client) fetch(ctx context.Context) (map[string]Quote, error) {
	start := time.Now()
	var resp ajaxResponse
	err := c.http.GetJSON(ctx, c.url, &resp)
	if err == nil && len(resp.Current) == 0 {
		err = errors.New("empty quote map")
	}

	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
		err = fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
	default:
		status = "error"
		err = apperrors.NewUpstreamError(providerName, httpclient.StatusCode(err), err)
	}
	if c.metrics != nil {
		c.metrics.RecordProviderRequest(providerName, status, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	return resp.Current, nil
}

func (c *Client) recordCache(hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.RecordCacheHit("price")
	} else {
		c.metrics.RecordCacheMiss("price")
	}
}
