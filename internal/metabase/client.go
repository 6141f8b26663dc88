// Package metabase implements the authenticated REST client for the
// Metabase API and the collection search built on top of it.
package metabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/metabase-mcp/internal/common"
)

// maxResponseBytes caps how much of a remote response is read into memory.
// Query results on wide cards can run to tens of megabytes.
const maxResponseBytes = 32 << 20

// Options configures a Client.
type Options struct {
	BaseURL        string
	APIKey         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	EnableHTTP2    bool
}

// Client talks to the Metabase REST API. Every request carries the API key
// header and runs on a fresh HTTP client with keep-alives disabled, so no
// connection state survives across tool invocations.
type Client struct {
	baseURL        string
	apiKey         string
	connectTimeout time.Duration
	readTimeout    time.Duration
	enableHTTP2    bool
	logger         *common.Logger
}

// New creates a Client for the Metabase instance at opts.BaseURL.
func New(opts Options, logger *common.Logger) *Client {
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		apiKey:         opts.APIKey,
		connectTimeout: connectTimeout,
		readTimeout:    readTimeout,
		enableHTTP2:    opts.EnableHTTP2,
		logger:         logger,
	}
}

// newHTTPClient builds the per-request HTTP client. HTTP/2 is only
// attempted when enabled because the dialer is customized.
func (c *Client) newHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: c.connectTimeout,
		}).DialContext,
		ForceAttemptHTTP2: c.enableHTTP2,
		DisableKeepAlives: true,
	}
	return &http.Client{
		Timeout:   c.readTimeout,
		Transport: transport,
	}
}

// do issues one authenticated request against baseURL/api<path> and returns
// the response body. Network failures become TransportError and non-2xx
// responses become RemoteAPIError, both naming the operation.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload interface{}) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	log := c.logger
	if id := common.CorrelationIDFromContext(ctx); id != "" {
		log = log.WithCorrelationId(id)
	}

	reqURL := c.baseURL + "/api" + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	log.Debug().
		Str("operation", op).
		Str("method", method).
		Str("url", reqURL).
		Msg("Metabase API request")

	start := time.Now()
	resp, err := c.newHTTPClient().Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, &TransportError{Op: op, URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: op, URL: reqURL, Err: err}
	}

	log.Debug().
		Str("operation", op).
		Int("status_code", resp.StatusCode).
		Dur("duration", duration).
		Int("bytes", len(body)).
		Msg("Metabase API response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteAPIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return body, nil
}

// ListDatabases returns the databases visible to the API key.
func (c *Client) ListDatabases(ctx context.Context) (*Page, error) {
	body, err := c.do(ctx, "list_databases", http.MethodGet, "/database", nil, nil)
	if err != nil {
		return nil, err
	}
	return normalizePage("list_databases", body)
}

// DatabaseMetadata returns the table descriptors of one database.
func (c *Client) DatabaseMetadata(ctx context.Context, databaseID int) ([]Table, error) {
	if databaseID <= 0 {
		return nil, &ValidationError{Op: "list_tables", Reason: "database_id must be a positive integer"}
	}
	body, err := c.do(ctx, "list_tables", http.MethodGet, "/database/"+strconv.Itoa(databaseID)+"/metadata", nil, nil)
	if err != nil {
		return nil, err
	}
	var meta struct {
		Tables []Table `json:"tables"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("list_tables: failed to decode response: %w", err)
	}
	return meta.Tables, nil
}

// TableQueryMetadata returns the raw query metadata of one table,
// including its field list.
func (c *Client) TableQueryMetadata(ctx context.Context, tableID int) (json.RawMessage, error) {
	if tableID <= 0 {
		return nil, &ValidationError{Op: "get_table_fields", Reason: "table_id must be a positive integer"}
	}
	body, err := c.do(ctx, "get_table_fields", http.MethodGet, "/table/"+strconv.Itoa(tableID)+"/query_metadata", nil, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// ListCards returns every card, optionally narrowed by the remote f
// filter. The card endpoint has no native pagination; the full set comes
// back as one page and callers slice it.
func (c *Client) ListCards(ctx context.Context, filter string) (*Page, error) {
	query := url.Values{}
	if filter != "" && filter != "all" {
		query.Set("f", filter)
	}
	body, err := c.do(ctx, "list_cards", http.MethodGet, "/card", query, nil)
	if err != nil {
		return nil, err
	}
	return normalizePage("list_cards", body)
}

// CardsByCollection returns the raw cards belonging to one collection. The
// card endpoint cannot filter by collection, so the full set is fetched
// and filtered here.
func (c *Client) CardsByCollection(ctx context.Context, collectionID int) ([]json.RawMessage, error) {
	if collectionID <= 0 {
		return nil, &ValidationError{Op: "list_cards_by_collection", Reason: "collection_id must be a positive integer"}
	}
	body, err := c.do(ctx, "list_cards_by_collection", http.MethodGet, "/card", nil, nil)
	if err != nil {
		return nil, err
	}
	page, err := normalizePage("list_cards_by_collection", body)
	if err != nil {
		return nil, err
	}

	cards := make([]json.RawMessage, 0)
	for _, item := range page.Items {
		var probe struct {
			CollectionID *int `json:"collection_id"`
		}
		if err := json.Unmarshal(item, &probe); err != nil {
			continue
		}
		if probe.CollectionID != nil && *probe.CollectionID == collectionID {
			cards = append(cards, item)
		}
	}
	return cards, nil
}

// ExecuteCard runs a saved card, optionally substituting parameters.
func (c *Client) ExecuteCard(ctx context.Context, cardID int, parameters map[string]interface{}) (json.RawMessage, error) {
	if cardID <= 0 {
		return nil, &ValidationError{Op: "execute_card", Reason: "card_id must be a positive integer"}
	}
	payload := map[string]interface{}{}
	if len(parameters) > 0 {
		payload["parameters"] = parameters
	}
	body, err := c.do(ctx, "execute_card", http.MethodPost, "/card/"+strconv.Itoa(cardID)+"/query", nil, payload)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// ExecuteQuery runs a native SQL query against one database. The query
// text is passed through as a payload field; validity is the caller's
// responsibility.
func (c *Client) ExecuteQuery(ctx context.Context, databaseID int, query string, nativeParameters []interface{}) (json.RawMessage, error) {
	if databaseID <= 0 {
		return nil, &ValidationError{Op: "execute_query", Reason: "database_id must be a positive integer"}
	}
	if strings.TrimSpace(query) == "" {
		return nil, &ValidationError{Op: "execute_query", Reason: "query is required"}
	}

	native := map[string]interface{}{"query": query}
	if len(nativeParameters) > 0 {
		native["parameters"] = nativeParameters
	}
	payload := map[string]interface{}{
		"database": databaseID,
		"type":     "native",
		"native":   native,
	}
	body, err := c.do(ctx, "execute_query", http.MethodPost, "/dataset", nil, payload)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// CreateCard saves a new native-SQL card displayed as a table.
func (c *Client) CreateCard(ctx context.Context, req CreateCardRequest) (json.RawMessage, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, &ValidationError{Op: "create_card", Reason: "name is required"}
	}
	if req.DatabaseID <= 0 {
		return nil, &ValidationError{Op: "create_card", Reason: "database_id must be a positive integer"}
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, &ValidationError{Op: "create_card", Reason: "query is required"}
	}

	visualization := req.VisualizationSettings
	if visualization == nil {
		visualization = map[string]interface{}{}
	}
	payload := map[string]interface{}{
		"name":        req.Name,
		"database_id": req.DatabaseID,
		"dataset_query": map[string]interface{}{
			"database": req.DatabaseID,
			"type":     "native",
			"native":   map[string]interface{}{"query": req.Query},
		},
		"display":                "table",
		"visualization_settings": visualization,
	}
	if req.Description != "" {
		payload["description"] = req.Description
	}
	if req.CollectionID != nil {
		payload["collection_id"] = *req.CollectionID
	}

	body, err := c.do(ctx, "create_card", http.MethodPost, "/card", nil, payload)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// ListCollections returns all collections visible to the API key.
func (c *Client) ListCollections(ctx context.Context) (*Page, error) {
	body, err := c.do(ctx, "list_collections", http.MethodGet, "/collection", nil, nil)
	if err != nil {
		return nil, err
	}
	return normalizePage("list_collections", body)
}

// CreateCollection creates a new collection. The API expects parent_id as
// a string.
func (c *Client) CreateCollection(ctx context.Context, req CreateCollectionRequest) (json.RawMessage, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, &ValidationError{Op: "create_collection", Reason: "name is required"}
	}

	payload := map[string]interface{}{"name": req.Name}
	if req.Description != "" {
		payload["description"] = req.Description
	}
	if req.Color != "" {
		payload["color"] = req.Color
	}
	if req.ParentID != nil {
		payload["parent_id"] = strconv.Itoa(*req.ParentID)
	}

	body, err := c.do(ctx, "create_collection", http.MethodPost, "/collection", nil, payload)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// Search queries the native search endpoint. Model filters repeat as
// models parameters; archived is always sent explicitly.
func (c *Client) Search(ctx context.Context, req SearchRequest) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("q", req.Query)
	query.Set("limit", strconv.Itoa(req.Limit))
	query.Set("archived", strconv.FormatBool(req.Archived))
	if req.SearchNativeQuery {
		query.Set("search_native_query", "true")
	}
	for _, m := range req.Models {
		query.Add("models", m)
	}

	body, err := c.do(ctx, "search_metabase", http.MethodGet, "/search", query, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}
