package riot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/riftwatch/rift-harvester/internal/health"
	"github.com/riftwatch/rift-harvester/internal/model"
	"github.com/riftwatch/rift-harvester/internal/ratelimit"
	"github.com/riftwatch/rift-harvester/internal/telemetry"
)

// Endpoint classes used as the second half of rate-limit keys.
const (
	classMatch    = "match"
	classSummoner = "summoner"
	classLeague   = "league"
)

// Options configures a Client. Limiter and Breaker are required; they are
// shared with the rest of the engine so the diagnostics server can observe
// the same state the gateway acts on.
type Options struct {
	APIKey  string
	Timeout time.Duration
	Limiter *ratelimit.Limiter
	Breaker *health.Breaker
	Retry   health.RetryPolicy
	Logger  *zap.Logger
}

// Client is the typed gateway to the remote API. One pooled http.Client
// serves all platforms and endpoint classes.
type Client struct {
	http    *http.Client
	apiKey  string
	scheme  string
	limiter *ratelimit.Limiter
	breaker *health.Breaker
	retry   health.RetryPolicy
	log     *zap.Logger
}

// NewClient builds the gateway. A zero Timeout falls back to ten seconds.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:  opts.APIKey,
		scheme:  "https",
		limiter: opts.Limiter,
		breaker: opts.Breaker,
		retry:   opts.Retry,
		log:     log,
	}
}

// MatchIDsByPUUID pages a player's ranked match history on the platform's
// regional route. startTime and endTime are unix seconds; zero means
// unbounded on that side.
func (c *Client) MatchIDsByPUUID(ctx context.Context, p model.Platform, puuid string, queue model.Queue, start, count int, startTime, endTime int64) ([]string, error) {
	q := url.Values{}
	q.Set("queue", strconv.Itoa(queue.ID()))
	q.Set("start", strconv.Itoa(start))
	q.Set("count", strconv.Itoa(count))
	if startTime > 0 {
		q.Set("startTime", strconv.FormatInt(startTime, 10))
	}
	if endTime > 0 {
		q.Set("endTime", strconv.FormatInt(endTime, 10))
	}
	path := fmt.Sprintf("/lol/match/v5/matches/by-puuid/%s/ids?%s", url.PathEscape(puuid), q.Encode())

	body, err := c.get(ctx, p.Code, []string{p.RegionalHost}, classMatch, path)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := decode(body, &ids, "match-ids"); err != nil {
		return nil, err
	}
	return ids, nil
}

// MatchByID fetches and normalizes one full match record.
func (c *Client) MatchByID(ctx context.Context, p model.Platform, matchID string) (*model.Match, error) {
	path := "/lol/match/v5/matches/" + url.PathEscape(matchID)
	body, err := c.get(ctx, p.Code, []string{p.RegionalHost}, classMatch, path)
	if err != nil {
		return nil, err
	}
	return parseMatch(body)
}

// SummonerByPUUID resolves a player on the platform route, falling back to
// sibling hosts when the primary is unreachable.
func (c *Client) SummonerByPUUID(ctx context.Context, p model.Platform, puuid string) (*model.Summoner, error) {
	path := "/lol/summoner/v4/summoners/by-puuid/" + url.PathEscape(puuid)
	body, err := c.get(ctx, p.Code, platformHosts(p), classSummoner, path)
	if err != nil {
		return nil, err
	}
	return parseSummoner(body)
}

// SummonerByID resolves a player by encrypted summoner id.
func (c *Client) SummonerByID(ctx context.Context, p model.Platform, summonerID string) (*model.Summoner, error) {
	path := "/lol/summoner/v4/summoners/" + url.PathEscape(summonerID)
	body, err := c.get(ctx, p.Code, platformHosts(p), classSummoner, path)
	if err != nil {
		return nil, err
	}
	return parseSummoner(body)
}

// ChallengerLeague returns the challenger ladder for the queue.
func (c *Client) ChallengerLeague(ctx context.Context, p model.Platform, queue model.Queue) ([]model.LeagueEntry, error) {
	return c.leagueList(ctx, p, "/lol/league/v4/challengerleagues/by-queue/"+queue.APIName())
}

// GrandmasterLeague returns the grandmaster ladder for the queue.
func (c *Client) GrandmasterLeague(ctx context.Context, p model.Platform, queue model.Queue) ([]model.LeagueEntry, error) {
	return c.leagueList(ctx, p, "/lol/league/v4/grandmasterleagues/by-queue/"+queue.APIName())
}

// MasterLeague returns the master ladder for the queue.
func (c *Client) MasterLeague(ctx context.Context, p model.Platform, queue model.Queue) ([]model.LeagueEntry, error) {
	return c.leagueList(ctx, p, "/lol/league/v4/masterleagues/by-queue/"+queue.APIName())
}

// LeagueEntries returns one page of a tier/division listing. Pages are
// 1-based; an empty slice signals the end of the listing.
func (c *Client) LeagueEntries(ctx context.Context, p model.Platform, queue model.Queue, tier, division string, page int) ([]model.LeagueEntry, error) {
	path := fmt.Sprintf("/lol/league/v4/entries/%s/%s/%s?page=%d",
		queue.APIName(), url.PathEscape(tier), url.PathEscape(division), page)
	body, err := c.get(ctx, p.Code, platformHosts(p), classLeague, path)
	if err != nil {
		return nil, err
	}
	var entries []leagueEntryDTO
	if err := decode(body, &entries, "league-entries"); err != nil {
		return nil, err
	}
	return entriesToModel(entries), nil
}

func (c *Client) leagueList(ctx context.Context, p model.Platform, path string) ([]model.LeagueEntry, error) {
	body, err := c.get(ctx, p.Code, platformHosts(p), classLeague, path)
	if err != nil {
		return nil, err
	}
	var list leagueListDTO
	if err := decode(body, &list, "league-list"); err != nil {
		return nil, err
	}
	return entriesToModel(list.Entries), nil
}

func platformHosts(p model.Platform) []string {
	return append([]string{p.Host}, p.Fallbacks...)
}

// get runs one logical call: breaker admission, then per-attempt rate-limit
// permits inside the retry loop. The breaker is fed once with the final
// outcome; an open circuit consumes no permit at all.
func (c *Client) get(ctx context.Context, platform string, hosts []string, class, path string) ([]byte, error) {
	if !c.breaker.Allow(platform) {
		return nil, &PlatformUnavailableError{Platform: platform}
	}

	key := ratelimit.Key(platform, class)
	attempt := 0
	var body []byte
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		if attempt > 0 {
			telemetry.IncRetry(platform, class)
		}
		attempt++

		if err := c.limiter.Acquire(ctx, key); err != nil {
			return err
		}
		b, err := c.attempt(ctx, platform, hosts, class, path)
		if err != nil {
			if IsTransient(err) {
				c.log.Debug("request attempt failed",
					zap.String("platform", platform),
					zap.String("endpoint", class),
					zap.Int("attempt", attempt),
					zap.Error(err))
				return health.Retryable(err)
			}
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		// Only transport and 5xx failures count toward the breaker. Any
		// other completed response, a 404 or a 429 included, proves the
		// platform is serving. A call cut short before an answer (context
		// cancellation, shutdown) decides nothing and must release a
		// half-open probe slot it may hold.
		var te *TransientError
		switch {
		case errors.As(err, &te):
			c.breaker.OnFailure(platform)
		case platformResponded(err):
			c.breaker.OnSuccess(platform)
		default:
			c.breaker.OnProbeAbandoned(platform)
		}
		return nil, err
	}
	c.breaker.OnSuccess(platform)
	return body, nil
}

// attempt performs a single HTTP round trip, walking the fallback hosts on
// connection-level failures.
func (c *Client) attempt(ctx context.Context, platform string, hosts []string, class, path string) ([]byte, error) {
	var lastErr error
	for i, host := range hosts {
		body, err := c.roundTrip(ctx, platform, host, class, path)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if i+1 < len(hosts) && isConnectError(err) {
			c.log.Warn("host unreachable, trying fallback",
				zap.String("platform", platform),
				zap.String("host", host),
				zap.String("fallback", hosts[i+1]))
			continue
		}
		break
	}
	return nil, lastErr
}

func (c *Client) roundTrip(ctx context.Context, platform, host, class, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.scheme+"://"+host+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Riot-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		telemetry.ObserveRequest(platform, class, 0, time.Since(start))
		if ctx.Err() != nil {
			// A cut-short call says nothing about the platform.
			return nil, ctx.Err()
		}
		return nil, &TransientError{Platform: platform, Err: err}
	}
	defer resp.Body.Close()
	telemetry.ObserveRequest(platform, class, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
		return io.ReadAll(resp.Body)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w (status %d)", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusBadRequest:
		return nil, ErrBadRequest
	case resp.StatusCode == http.StatusTooManyRequests:
		ra := retryAfter(resp)
		if ra > 0 {
			// Honor the server's cool-down before the retry loop resumes.
			if err := sleepCtx(ctx, ra); err != nil {
				return nil, err
			}
		}
		return nil, &RateLimitedError{Platform: platform, RetryAfter: ra}
	case resp.StatusCode >= 500:
		return nil, &TransientError{Platform: platform, StatusCode: resp.StatusCode}
	default:
		return nil, &TransientError{Platform: platform, StatusCode: resp.StatusCode}
	}
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
