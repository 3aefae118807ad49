// Package monday implements catalog.Client against the monday.com GraphQL API.
//
// The client owns query construction and response decoding only. Retries,
// backoff and rate limiting are deliberately absent: failures surface to the
// operator who re-submits.
package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"intake/internal/catalog"
	"intake/internal/platform/metrics"
	dErrors "intake/pkg/domain-errors"
)

const defaultPageSize = 100

// Client talks to the monday.com v2 GraphQL endpoint.
type Client struct {
	httpClient *http.Client
	apiURL     string
	token      string
	pageSize   int
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for degraded decodes and call failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithPageSize overrides the listing page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// New creates a Client for the given API URL and token.
func New(apiURL, token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     apiURL,
		token:      token,
		pageSize:   defaultPageSize,
		logger:     slog.Default(),
		tracer:     otel.Tracer("intake/catalog/monday"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// api executes one GraphQL call and decodes the data envelope into out.
// GraphQL-level errors inside a 200 response are still remote failures.
func (c *Client) api(ctx context.Context, op, query string, variables map[string]any, out any) error {
	ctx, span := c.tracer.Start(ctx, "monday."+op,
		trace.WithAttributes(attribute.String("catalog.op", op)))
	defer span.End()

	start := time.Now()
	err := c.do(ctx, query, variables, out)
	c.metrics.ObserveCatalogCall(op, time.Since(start), err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.logger.ErrorContext(ctx, "catalog call failed", "op", op, "error", err)
		return dErrors.Wrap(err, dErrors.CodeRemote, "catalog call failed")
	}
	return nil
}

func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.token)
	req.Header.Set("API-Version", "2024-10")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}

	var envelope graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

type pageItems struct {
	Cursor string `json:"cursor"`
	Items  []struct {
		ID   catalog.ItemID `json:"id"`
		Name string         `json:"name"`
	} `json:"items"`
}

const listFirstPageQuery = `query ($board: [ID!], $limit: Int!) {
  boards(ids: $board) {
    items_page(limit: $limit) {
      cursor
      items { id name }
    }
  }
}`

const listNextPageQuery = `query ($cursor: String!, $limit: Int!) {
  next_items_page(cursor: $cursor, limit: $limit) {
    cursor
    items { id name }
  }
}`

// ListAll pages through a board listing until the service reports no further
// cursor, concatenating pages in server order.
func (c *Client) ListAll(ctx context.Context, board catalog.BoardID) ([]catalog.Item, error) {
	var first struct {
		Boards []struct {
			ItemsPage pageItems `json:"items_page"`
		} `json:"boards"`
	}
	err := c.api(ctx, "list_all", listFirstPageQuery, map[string]any{
		"board": []catalog.BoardID{board},
		"limit": c.pageSize,
	}, &first)
	if err != nil {
		return nil, err
	}
	if len(first.Boards) == 0 {
		return nil, dErrors.Newf(dErrors.CodeRemote, "board %d not visible to this token", board)
	}

	page := first.Boards[0].ItemsPage
	items := appendPage(nil, page)
	for page.Cursor != "" {
		var next struct {
			NextItemsPage pageItems `json:"next_items_page"`
		}
		err := c.api(ctx, "list_all", listNextPageQuery, map[string]any{
			"cursor": page.Cursor,
			"limit":  c.pageSize,
		}, &next)
		if err != nil {
			// No partial results: a failed page discards everything.
			return nil, err
		}
		page = next.NextItemsPage
		items = appendPage(items, page)
	}
	return items, nil
}

func appendPage(items []catalog.Item, page pageItems) []catalog.Item {
	for _, it := range page.Items {
		items = append(items, catalog.Item{ID: it.ID, Name: it.Name})
	}
	return items
}

const linkedIDsQuery = `query ($item: [ID!], $cols: [String!]) {
  items(ids: $item) {
    column_values(ids: $cols) {
      id
      value
      ... on BoardRelationValue { linked_item_ids }
    }
  }
}`

// LinkedIDs fetches the relation columns of one item in a single round trip.
// The service returns linked ids either pre-parsed (linked_item_ids) or as a
// JSON-text value; both normalize through decodeLinkedIDs. A column that
// cannot be decoded degrades to the empty slice and is logged.
func (c *Client) LinkedIDs(ctx context.Context, item catalog.ItemID, cols []catalog.ColumnID) (map[catalog.ColumnID][]catalog.ItemID, error) {
	var resp struct {
		Items []struct {
			ColumnValues []struct {
				ID            catalog.ColumnID `json:"id"`
				Value         json.RawMessage  `json:"value"`
				LinkedItemIDs json.RawMessage  `json:"linked_item_ids"`
			} `json:"column_values"`
		} `json:"items"`
	}
	err := c.api(ctx, "linked_ids", linkedIDsQuery, map[string]any{
		"item": []catalog.ItemID{item},
		"cols": cols,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "item %s not found", item)
	}

	out := make(map[catalog.ColumnID][]catalog.ItemID, len(cols))
	for _, col := range cols {
		out[col] = nil
	}
	for _, cv := range resp.Items[0].ColumnValues {
		raw := cv.LinkedItemIDs
		if len(raw) == 0 || string(raw) == "null" {
			raw = cv.Value
		}
		ids, err := decodeLinkedIDs(raw)
		if err != nil {
			c.logger.WarnContext(ctx, "undecodable relation payload, treating as empty",
				"column", cv.ID, "error", err)
			ids = nil
		}
		out[cv.ID] = ids
	}
	return out, nil
}

const namesQuery = `query ($ids: [ID!]) {
  items(ids: $ids) { id name }
}`

// Names batch-resolves item names. Empty input short-circuits without a call.
func (c *Client) Names(ctx context.Context, ids []catalog.ItemID) ([]catalog.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var resp struct {
		Items []struct {
			ID   catalog.ItemID `json:"id"`
			Name string         `json:"name"`
		} `json:"items"`
	}
	if err := c.api(ctx, "names", namesQuery, map[string]any{"ids": ids}, &resp); err != nil {
		return nil, err
	}
	items := make([]catalog.Item, 0, len(resp.Items))
	for _, it := range resp.Items {
		items = append(items, catalog.Item{ID: it.ID, Name: it.Name})
	}
	return items, nil
}

const itemTextsQuery = `query ($ids: [ID!], $col: [String!]) {
  items(ids: $ids) {
    id
    name
    column_values(ids: $col) { text }
  }
}`

// ItemTexts batch-resolves items with one text column for display labels.
func (c *Client) ItemTexts(ctx context.Context, ids []catalog.ItemID, col catalog.ColumnID) ([]catalog.ItemText, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var resp struct {
		Items []struct {
			ID           catalog.ItemID `json:"id"`
			Name         string         `json:"name"`
			ColumnValues []struct {
				Text string `json:"text"`
			} `json:"column_values"`
		} `json:"items"`
	}
	err := c.api(ctx, "item_texts", itemTextsQuery, map[string]any{
		"ids": ids,
		"col": []catalog.ColumnID{col},
	}, &resp)
	if err != nil {
		return nil, err
	}
	items := make([]catalog.ItemText, 0, len(resp.Items))
	for _, it := range resp.Items {
		text := ""
		if len(it.ColumnValues) > 0 {
			text = it.ColumnValues[0].Text
		}
		items = append(items, catalog.ItemText{ID: it.ID, Name: it.Name, Text: text})
	}
	return items, nil
}

const findByKeyQuery = `query ($board: ID!, $col: String!, $key: [String]!) {
  items_page_by_column_values(board_id: $board, columns: [{column_id: $col, column_values: $key}], limit: 1) {
    items { id }
  }
}`

// FindByKey is a point lookup by a unique natural-key column. At most one
// match is expected; the first result wins.
func (c *Client) FindByKey(ctx context.Context, board catalog.BoardID, col catalog.ColumnID, key string) (catalog.ItemID, bool, error) {
	var resp struct {
		ItemsPageByColumnValues struct {
			Items []struct {
				ID catalog.ItemID `json:"id"`
			} `json:"items"`
		} `json:"items_page_by_column_values"`
	}
	err := c.api(ctx, "find_by_key", findByKeyQuery, map[string]any{
		"board": board,
		"col":   col,
		"key":   []string{key},
	}, &resp)
	if err != nil {
		return "", false, err
	}
	items := resp.ItemsPageByColumnValues.Items
	if len(items) == 0 {
		return "", false, nil
	}
	return items[0].ID, true, nil
}

const createItemQuery = `mutation ($board: ID!, $name: String!, $values: JSON) {
  create_item(board_id: $board, item_name: $name, column_values: $values) {
    id
  }
}`

// CreateItem creates an item with the given column values and returns its id.
func (c *Client) CreateItem(ctx context.Context, board catalog.BoardID, name string, values map[catalog.ColumnID]any) (catalog.ItemID, error) {
	vars := map[string]any{"board": board, "name": name}
	if len(values) > 0 {
		encoded, err := json.Marshal(values)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "encode column values")
		}
		// The mutation takes column_values as a JSON-encoded string.
		vars["values"] = string(encoded)
	}
	var resp struct {
		CreateItem struct {
			ID catalog.ItemID `json:"id"`
		} `json:"create_item"`
	}
	if err := c.api(ctx, "create_item", createItemQuery, vars, &resp); err != nil {
		return "", err
	}
	if resp.CreateItem.ID == "" {
		return "", dErrors.New(dErrors.CodeRemote, "create_item returned no id")
	}
	return resp.CreateItem.ID, nil
}
