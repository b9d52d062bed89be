package trello

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/agencyboard/backend/internal/domain/migration"
)

// maxErrorBodySize limits how much of an error response body is read
const maxErrorBodySize = 8 * 1024

// Factory builds clients bound to a credential pair. Clients created with the
// same key and token share one rate limiter, so concurrent board imports for
// a single user stay inside the source's per-token budget.
type Factory struct {
	config *Config
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFactory creates a client factory with the given configuration
func NewFactory(cfg *Config, logger *zap.Logger) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		config:   cfg,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

// NewClient returns a client bound to the credential pair
func (f *Factory) NewClient(apiKey, apiToken string) migration.SourceClient {
	f.mu.Lock()
	key := apiKey + "\x00" + apiToken
	limiter, ok := f.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(f.config.RatePerSecond), f.config.RateBurst)
		f.limiters[key] = limiter
	}
	f.mu.Unlock()

	return &Client{
		config:   f.config,
		logger:   f.logger,
		apiKey:   apiKey,
		apiToken: apiToken,
		limiter:  limiter,
		httpClient: &http.Client{
			Timeout: f.config.RequestTimeout,
		},
		downloadClient: &http.Client{
			Timeout: f.config.DownloadTimeout,
		},
	}
}

// Client talks to the Trello REST API for one credential pair
type Client struct {
	config         *Config
	logger         *zap.Logger
	apiKey         string
	apiToken       string
	limiter        *rate.Limiter
	httpClient     *http.Client
	downloadClient *http.Client
}

// FetchBoard retrieves a single board
func (c *Client) FetchBoard(ctx context.Context, boardID string) (*migration.SourceBoard, error) {
	body, err := c.doRequest(ctx, "/boards/"+boardID, nil)
	if err != nil {
		return nil, err
	}
	var b trelloBoard
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("trello: failed to parse board response: %w", err)
	}
	return &migration.SourceBoard{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Desc,
		Closed:      b.Closed,
		URL:         b.URL,
	}, nil
}

// ListBoards retrieves all boards visible to the token owner
func (c *Client) ListBoards(ctx context.Context) ([]migration.SourceBoard, error) {
	body, err := c.doRequest(ctx, "/members/me/boards", url.Values{"filter": {"all"}})
	if err != nil {
		return nil, err
	}
	var raw []trelloBoard
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("trello: failed to parse boards response: %w", err)
	}
	boards := make([]migration.SourceBoard, len(raw))
	for i, b := range raw {
		boards[i] = migration.SourceBoard{
			ID:          b.ID,
			Name:        b.Name,
			Description: b.Desc,
			Closed:      b.Closed,
			URL:         b.URL,
		}
	}
	return boards, nil
}

// ListLists retrieves the board's lists, open and archived
func (c *Client) ListLists(ctx context.Context, boardID string) ([]migration.SourceList, error) {
	raw, err := listPaged[trelloList](ctx, c, "/boards/"+boardID+"/lists",
		url.Values{"filter": {"all"}}, func(l trelloList) string { return l.ID })
	if err != nil {
		return nil, err
	}
	lists := make([]migration.SourceList, len(raw))
	for i, l := range raw {
		lists[i] = migration.SourceList{
			ID:       l.ID,
			BoardID:  l.IDBoard,
			Name:     l.Name,
			Position: l.Pos,
			Closed:   l.Closed,
		}
	}
	sort.SliceStable(lists, func(i, j int) bool { return lists[i].Position < lists[j].Position })
	return lists, nil
}

// ListCards retrieves the board's cards, open and archived
func (c *Client) ListCards(ctx context.Context, boardID string) ([]migration.SourceCard, error) {
	raw, err := listPaged[trelloCard](ctx, c, "/boards/"+boardID+"/cards",
		url.Values{"filter": {"all"}}, func(card trelloCard) string { return card.ID })
	if err != nil {
		return nil, err
	}
	cards := make([]migration.SourceCard, len(raw))
	for i, card := range raw {
		cards[i] = migration.SourceCard{
			ID:          card.ID,
			BoardID:     card.IDBoard,
			ListID:      card.IDList,
			Name:        card.Name,
			Description: card.Desc,
			Position:    card.Pos,
			Due:         card.Due,
			Closed:      card.Closed,
			LabelIDs:    card.IDLabels,
		}
	}
	return cards, nil
}

// ListComments retrieves all comment actions on the board
func (c *Client) ListComments(ctx context.Context, boardID string) ([]migration.SourceComment, error) {
	raw, err := listPaged[trelloAction](ctx, c, "/boards/"+boardID+"/actions",
		url.Values{"filter": {"commentCard"}}, func(a trelloAction) string { return a.ID })
	if err != nil {
		return nil, err
	}
	comments := make([]migration.SourceComment, 0, len(raw))
	for _, a := range raw {
		if a.Type != "commentCard" {
			continue
		}
		comments = append(comments, migration.SourceComment{
			ID:       a.ID,
			CardID:   a.Data.Card.ID,
			Text:     a.Data.Text,
			AuthorID: a.MemberCreator.ID,
			Date:     a.Date,
		})
	}
	return comments, nil
}

// ListAttachments retrieves a card's attachments
func (c *Client) ListAttachments(ctx context.Context, cardID string) ([]migration.SourceAttachment, error) {
	body, err := c.doRequest(ctx, "/cards/"+cardID+"/attachments", nil)
	if err != nil {
		return nil, err
	}
	var raw []trelloAttachment
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("trello: failed to parse attachments response: %w", err)
	}
	attachments := make([]migration.SourceAttachment, 0, len(raw))
	for _, a := range raw {
		// Link attachments have no downloadable payload
		if !a.IsUpload {
			continue
		}
		attachments = append(attachments, migration.SourceAttachment{
			ID:       a.ID,
			CardID:   cardID,
			Name:     a.Name,
			URL:      a.URL,
			MimeType: a.MimeType,
			Bytes:    a.Bytes,
		})
	}
	return attachments, nil
}

// ListLabels retrieves the board's labels
func (c *Client) ListLabels(ctx context.Context, boardID string) ([]migration.SourceLabel, error) {
	raw, err := listPaged[trelloLabel](ctx, c, "/boards/"+boardID+"/labels", nil,
		func(l trelloLabel) string { return l.ID })
	if err != nil {
		return nil, err
	}
	labels := make([]migration.SourceLabel, len(raw))
	for i, l := range raw {
		labels[i] = migration.SourceLabel{
			ID:      l.ID,
			BoardID: l.IDBoard,
			Name:    l.Name,
			Color:   l.Color,
		}
	}
	return labels, nil
}

// ListChecklists retrieves the board's checklists with their items
func (c *Client) ListChecklists(ctx context.Context, boardID string) ([]migration.SourceChecklist, error) {
	raw, err := listPaged[trelloChecklist](ctx, c, "/boards/"+boardID+"/checklists",
		url.Values{"checkItems": {"all"}}, func(cl trelloChecklist) string { return cl.ID })
	if err != nil {
		return nil, err
	}
	checklists := make([]migration.SourceChecklist, len(raw))
	for i, cl := range raw {
		items := make([]migration.SourceChecklistItem, len(cl.CheckItems))
		for j, item := range cl.CheckItems {
			items[j] = migration.SourceChecklistItem{
				ID:       item.ID,
				Name:     item.Name,
				Checked:  item.State == "complete",
				Position: item.Pos,
			}
		}
		sort.SliceStable(items, func(a, b int) bool { return items[a].Position < items[b].Position })
		checklists[i] = migration.SourceChecklist{
			ID:     cl.ID,
			CardID: cl.IDCard,
			Name:   cl.Name,
			Items:  items,
		}
	}
	return checklists, nil
}

// DownloadAttachment streams the attachment bytes. Uploaded attachment URLs
// require OAuth header credentials rather than query parameters.
func (c *Client) DownloadAttachment(ctx context.Context, fileURL string) (io.ReadCloser, int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("trello: failed to build download request: %w", err)
	}
	req.Header.Set("Authorization",
		fmt.Sprintf(`OAuth oauth_consumer_key="%s", oauth_token="%s"`, c.apiKey, c.apiToken))

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("trello: download failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, 0, c.statusError(resp)
	}

	size := int64(-1)
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if parsed, err := strconv.ParseInt(cl, 10, 64); err == nil {
			size = parsed
		}
	}
	if size > c.config.MaxAttachmentSize {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("trello: attachment exceeds size limit (%d bytes)", size)
	}

	return &limitedReadCloser{
		reader: io.LimitReader(resp.Body, c.config.MaxAttachmentSize+1),
		closer: resp.Body,
		limit:  c.config.MaxAttachmentSize,
	}, size, nil
}

// listPaged fetches a complete collection by walking backwards through pages
// with the "before" cursor. Trello returns items newest-first; a short page
// means the walk is done.
func listPaged[T any](ctx context.Context, c *Client, path string, query url.Values, idOf func(T) string) ([]T, error) {
	var all []T
	before := ""
	for {
		q := url.Values{}
		for k, vs := range query {
			q[k] = vs
		}
		q.Set("limit", strconv.Itoa(c.config.PageSize))
		if before != "" {
			q.Set("before", before)
		}

		body, err := c.doRequest(ctx, path, q)
		if err != nil {
			return nil, err
		}
		var page []T
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("trello: failed to parse %s response: %w", path, err)
		}
		all = append(all, page...)
		if len(page) < c.config.PageSize {
			return all, nil
		}
		before = idOf(page[len(page)-1])
	}
}

// doRequest performs a GET against the API with credentials, rate limiting
// and retries. 429 responses honor Retry-After; 5xx responses retry with
// exponential backoff; auth and not-found errors are permanent.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	reqURL, err := c.buildURL(path, query)
	if err != nil {
		return nil, err
	}

	var body []byte
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("trello: failed to build request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("trello: request failed: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("trello: failed to read response: %w", err)
			}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			delay := retryAfter(resp)
			c.logger.Warn("source API rate limited",
				zap.String("path", path),
				zap.Duration("retry_after", delay))
			if delay > 0 {
				// Wait out the server-provided delay here; the retry policy
				// then adds its own interval on top
				if err := sleepContext(ctx, delay); err != nil {
					return backoff.Permanent(err)
				}
			}
			return migration.ErrSourceRateLimited
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(migration.ErrSourceUnauthorized)
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(migration.ErrSourceNotFound)
		case resp.StatusCode >= 500:
			return fmt.Errorf("trello: server error %d: %w", resp.StatusCode, migration.ErrSourceUnavailable)
		default:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
			return backoff.Permanent(fmt.Errorf("trello: unexpected status %d: %s", resp.StatusCode, string(msg)))
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.config.MaxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryInitialDelay
	b.MaxInterval = c.config.RetryMaxDelay
	b.MaxElapsedTime = 0
	return b
}

// buildURL appends credentials as query parameters; the URL itself must never
// be logged
func (c *Client) buildURL(path string, query url.Values) (string, error) {
	u, err := url.Parse(c.config.BaseURL + path)
	if err != nil {
		return "", fmt.Errorf("trello: invalid request path %q: %w", path, err)
	}
	q := u.Query()
	for k, vs := range query {
		q[k] = vs
	}
	q.Set("key", c.apiKey)
	q.Set("token", c.apiToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return migration.ErrSourceRateLimited
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return migration.ErrSourceUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return migration.ErrSourceNotFound
	case resp.StatusCode >= 500:
		return migration.ErrSourceUnavailable
	default:
		return fmt.Errorf("trello: unexpected status %d", resp.StatusCode)
	}
}

func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

// sleepContext blocks for d or until the context is cancelled
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// limitedReadCloser fails the read once the stream exceeds the configured
// cap, so an oversized body with no Content-Length is rejected instead of
// silently truncated. The underlying reader must be capped at limit+1.
type limitedReadCloser struct {
	reader io.Reader
	closer io.Closer
	limit  int64
	read   int64
	failed error
}

func (l *limitedReadCloser) Read(p []byte) (int, error) {
	if l.failed != nil {
		return 0, l.failed
	}
	n, err := l.reader.Read(p)
	l.read += int64(n)
	if l.read > l.limit {
		n -= int(l.read - l.limit)
		l.failed = fmt.Errorf("trello: attachment exceeds size limit (%d bytes)", l.limit)
		if n > 0 {
			return n, nil
		}
		return 0, l.failed
	}
	return n, err
}

func (l *limitedReadCloser) Close() error { return l.closer.Close() }

// Compile-time interface compliance checks
var (
	_ migration.SourceClient        = (*Client)(nil)
	_ migration.SourceClientFactory = (*Factory)(nil)
)
