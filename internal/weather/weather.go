// Package weather is the WeatherAPI.com client behind the current-weather and
// date-scoped forecast features.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/kiarash-bot/kiarash/internal/errors"
	"github.com/kiarash-bot/kiarash/internal/httpclient"
	"github.com/kiarash-bot/kiarash/internal/jalali"
	"github.com/kiarash-bot/kiarash/internal/logger"
	"github.com/kiarash-bot/kiarash/internal/metrics"
	"github.com/kiarash-bot/kiarash/internal/storage"
)

const providerName = "weatherapi"

// codeNoLocation is WeatherAPI's error code for "No matching location found".
const codeNoLocation = 1006

// ErrDateUnavailable is returned by Forecast when the city is known but the
// requested date is outside the provider's forecast horizon. It wraps
// errors.ErrNotFound.
var ErrDateUnavailable = fmt.Errorf("%w: date outside forecast horizon", apperrors.ErrNotFound)

// Current is the current-conditions report for one location.
type Current struct {
	Location    string  `json:"location"`
	Condition   string  `json:"condition"`
	TempC       float64 `json:"temp_c"`
	FeelsLikeC  float64 `json:"feelslike_c"`
	Humidity    int     `json:"humidity"`
	WindKph     float64 `json:"wind_kph"`
	GustKph     float64 `json:"gust_kph"`
	PressureMb  float64 `json:"pressure_mb"`
	PrecipMm    float64 `json:"precip_mm"`
	Cloud       int     `json:"cloud"`
	VisKm       float64 `json:"vis_km"`
	UV          float64 `json:"uv"`
	LastUpdated string  `json:"last_updated"`
}

// ForecastDay is the daily forecast for one date.
type ForecastDay struct {
	Location     string  `json:"location"`
	Date         string  `json:"date"` // YYYY-MM-DD
	Condition    string  `json:"condition"`
	MinTempC     float64 `json:"mintemp_c"`
	MaxTempC     float64 `json:"maxtemp_c"`
	AvgTempC     float64 `json:"avgtemp_c"`
	AvgHumidity  float64 `json:"avghumidity"`
	MaxWindKph   float64 `json:"maxwind_kph"`
	ChanceOfRain int     `json:"daily_chance_of_rain"`
	TotalPrecip  float64 `json:"totalprecip_mm"`
	AvgVisKm     float64 `json:"avgvis_km"`
	UV           float64 `json:"uv"`
	Sunrise      string  `json:"sunrise"`
	Sunset       string  `json:"sunset"`
}

// Config configures a Client.
type Config struct {
	APIKey       string
	CurrentURL   string
	ForecastURL  string
	ForecastDays int
}

// Client fetches weather from WeatherAPI.com. Forecasts are cached per city and
// concurrent fetches of the same city share one request.
type Client struct {
	cfg     Config
	http    *httpclient.Client
	cache   *storage.JSONCache[[]ForecastDay]
	metrics *metrics.Metrics
	logger  *logger.Logger
	group   singleflight.Group
}

// NewClient creates a Client. cache, m and log may be nil.
func NewClient(cfg Config, http *httpclient.Client, cache *storage.JSONCache[[]ForecastDay], m *metrics.Metrics, log *logger.Logger) *Client {
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = 10
	}
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}
	return &Client{cfg: cfg, http: http, cache: cache, metrics: m, logger: log.WithModule("weather")}
}

// NewForecastCache builds the forecast cache stored in db.
func NewForecastCache(db storage.KeyValueStore, ttl time.Duration) *storage.JSONCache[[]ForecastDay] {
	return storage.NewJSONCache[[]ForecastDay](db, "forecast", ttl)
}

type apiCondition struct {
	Text string `json:"text"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// asError maps an error document onto the shared sentinels. Only an unknown
// location is a not-found; bad keys and exhausted quotas are provider failures.
func (e *apiError) asError(city string) error {
	if e.Code == codeNoLocation {
		return fmt.Errorf("%w: city %q: %s", apperrors.ErrNotFound, city, e.Message)
	}
	return apperrors.NewUpstreamError(providerName, 0, fmt.Errorf("code %d: %s", e.Code, e.Message))
}

type apiLocation struct {
	Name string `json:"name"`
}

type currentResponse struct {
	Location apiLocation `json:"location"`
	Current  struct {
		LastUpdated string       `json:"last_updated"`
		TempC       float64      `json:"temp_c"`
		Condition   apiCondition `json:"condition"`
		WindKph     float64      `json:"wind_kph"`
		PressureMb  float64      `json:"pressure_mb"`
		PrecipMm    float64      `json:"precip_mm"`
		Humidity    int          `json:"humidity"`
		Cloud       int          `json:"cloud"`
		FeelsLikeC  float64      `json:"feelslike_c"`
		VisKm       float64      `json:"vis_km"`
		UV          float64      `json:"uv"`
		GustKph     float64      `json:"gust_kph"`
	} `json:"current"`
	Error *apiError `json:"error"`
}

type forecastResponse struct {
	Location apiLocation `json:"location"`
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				MaxTempC          float64      `json:"maxtemp_c"`
				MinTempC          float64      `json:"mintemp_c"`
				AvgTempC          float64      `json:"avgtemp_c"`
				MaxWindKph        float64      `json:"maxwind_kph"`
				TotalPrecipMm     float64      `json:"totalprecip_mm"`
				AvgVisKm          float64      `json:"avgvis_km"`
				AvgHumidity       float64      `json:"avghumidity"`
				DailyChanceOfRain int          `json:"daily_chance_of_rain"`
				Condition         apiCondition `json:"condition"`
				UV                float64      `json:"uv"`
			} `json:"day"`
			Astro struct {
				Sunrise string `json:"sunrise"`
				Sunset  string `json:"sunset"`
			} `json:"astro"`
		} `json:"forecastday"`
	} `json:"forecast"`
	Error *apiError `json:"error"`
}

// Current returns the current conditions for city. Unknown cities yield ErrNotFound.
func (c *Client) Current(ctx context.Context, city string) (*Current, error) {
	query := ResolveCity(city)
	if query == "" {
		return nil, fmt.Errorf("%w: empty city", apperrors.ErrNotFound)
	}

	params := url.Values{}
	params.Set("key", c.cfg.APIKey)
	params.Set("q", query)
	params.Set("aqi", "no")
	params.Set("lang", "fa")

	var resp currentResponse
	if err := c.fetch(ctx, "weather_current", c.cfg.CurrentURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.asError(city)
	}

	cur := resp.Current
	return &Current{
		Location:    resp.Location.Name,
		Condition:   cur.Condition.Text,
		TempC:       cur.TempC,
		FeelsLikeC:  cur.FeelsLikeC,
		Humidity:    cur.Humidity,
		WindKph:     cur.WindKph,
		GustKph:     cur.GustKph,
		PressureMb:  cur.PressureMb,
		PrecipMm:    cur.PrecipMm,
		Cloud:       cur.Cloud,
		VisKm:       cur.VisKm,
		UV:          cur.UV,
		LastUpdated: cur.LastUpdated,
	}, nil
}

// Forecast returns the forecast for city on date. A date outside the provider's
// horizon yields ErrNotFound.
func (c *Client) Forecast(ctx context.Context, city string, date jalali.GregorianDate) (*ForecastDay, error) {
	query := ResolveCity(city)
	if query == "" {
		return nil, fmt.Errorf("%w: empty city", apperrors.ErrNotFound)
	}

	days, err := c.forecastDays(ctx, query)
	if err != nil {
		return nil, err
	}

	want := date.String()
	for i := range days {
		if days[i].Date == want {
			day := days[i]
			return &day, nil
		}
	}
	return nil, fmt.Errorf("%w: no forecast for %s on %s", ErrDateUnavailable, query, want)
}

// forecastDays returns the cached forecast horizon for query, fetching it once
// for all concurrent callers on a miss.
func (c *Client) forecastDays(ctx context.Context, query string) ([]ForecastDay, error) {
	key := cacheKey(query)

	if c.cache != nil {
		days, ok, err := c.cache.Get(ctx, key)
		if err == nil && ok {
			c.recordCache(true)
			return days, nil
		}
		c.recordCache(false)
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// Detached from the first caller so its cancellation does not fail the others.
		fetchCtx := context.WithoutCancel(ctx)
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithDeadline(fetchCtx, deadline)
			defer cancel()
		}

		days, err := c.fetchForecast(fetchCtx, query)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			if err := c.cache.Put(fetchCtx, key, days); err != nil {
				c.logger.WithError(err).WithField("city", query).WarnContext(ctx, "Failed to save forecast to cache")
			}
		}
		return days, nil
	})
	if shared && c.metrics != nil {
		c.metrics.RecordSingleflightDedup("forecast")
	}
	if err != nil {
		return nil, err
	}
	return v.([]ForecastDay), nil
}

func (c *Client) fetchForecast(ctx context.Context, query string) ([]ForecastDay, error) {
	params := url.Values{}
	params.Set("key", c.cfg.APIKey)
	params.Set("q", query)
	params.Set("days", strconv.Itoa(c.cfg.ForecastDays))
	params.Set("aqi", "no")
	params.Set("alerts", "no")
	params.Set("lang", "fa")

	var resp forecastResponse
	if err := c.fetch(ctx, "weather_forecast", c.cfg.ForecastURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.asError(query)
	}

	days := make([]ForecastDay, 0, len(resp.Forecast.ForecastDay))
	for _, fd := range resp.Forecast.ForecastDay {
		days = append(days, ForecastDay{
			Location:     resp.Location.Name,
			Date:         fd.Date,
			Condition:    fd.Day.Condition.Text,
			MinTempC:     fd.Day.MinTempC,
			MaxTempC:     fd.Day.MaxTempC,
			AvgTempC:     fd.Day.AvgTempC,
			AvgHumidity:  fd.Day.AvgHumidity,
			MaxWindKph:   fd.Day.MaxWindKph,
			ChanceOfRain: fd.Day.DailyChanceOfRain,
			TotalPrecip:  fd.Day.TotalPrecipMm,
			AvgVisKm:     fd.Day.AvgVisKm,
			UV:           fd.Day.UV,
			Sunrise:      fd.Astro.Sunrise,
			Sunset:       fd.Astro.Sunset,
		})
	}
	return days, nil
}

// fetch performs one provider call. WeatherAPI answers unknown locations with
// HTTP 400 and error code 1006; that document is decoded into out like a
// success. Any other error document stays a provider failure.
func (c *Client) fetch(ctx context.Context, op, rawURL string, out any) error {
	start := time.Now()
	err := c.http.GetJSON(ctx, rawURL, out)

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode < 500 && json.Unmarshal(statusErr.Body, out) == nil {
		if doc := apiErrorOf(out); doc != nil {
			if doc.Code == codeNoLocation {
				err = nil
			} else {
				err = fmt.Errorf("%w: code %d: %s", err, doc.Code, doc.Message)
			}
		}
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
		c.metrics.RecordProviderRequest(op, status, time.Since(start).Seconds())
	}
	return err
}

func apiErrorOf(out any) *apiError {
	switch v := out.(type) {
	case *currentResponse:
		return v.Error
	case *forecastResponse:
		return v.Error
	}
	return nil
}

func (c *Client) recordCache(hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.RecordCacheHit("forecast")
	} else {
		c.metrics.RecordCacheMiss("forecast")
	}
}
