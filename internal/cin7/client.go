package cin7

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"promaster/internal/config"
)

const (
	contactsEndpoint       = "v1/Contacts"
	productsEndpoint       = "v1/Products"
	bomEndpoint            = "v1/BillsOfMaterials"
	usersEndpoint          = "v1/Users"
	salesOrdersEndpoint    = "v1/SalesOrders"
	purchaseOrdersEndpoint = "v1/PurchaseOrders"

	maxPages = 1000
)

// APIError is a non-2xx response from Cin7.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cin7 %s: status=%d body=%s", e.Endpoint, e.Status, e.Body)
}

// PostResponse carries the raw outcome of a create call. Callers decide
// success from Status and Results together.
type PostResponse struct {
	Status  int
	Body    []byte
	Results []PostResult
	Parsed  bool
}

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
	logger     *slog.Logger
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Cin7Timeout},
		limiter:    NewRateLimiter(cfg.Cin7RateLimit),
		logger:     logger,
	}
}

// Quote renders a value for a where clause.
func Quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (c *Client) ContactsWhere(ctx context.Context, where string) ([]Contact, error) {
	var raw []Contact
	if err := c.getList(ctx, contactsEndpoint, url.Values{"where": {where}}, &raw); err != nil {
		return nil, err
	}
	return keepValid(raw, Contact.validate, c.logger, contactsEndpoint), nil
}

func (c *Client) ContactsByCompany(ctx context.Context, company string) ([]Contact, error) {
	return c.ContactsWhere(ctx, "company="+Quote(company))
}

func (c *Client) ContactsByAccountNumber(ctx context.Context, account string) ([]Contact, error) {
	return c.ContactsWhere(ctx, "accountNumber="+Quote(account))
}

// ListSuppliers pages through every supplier contact.
func (c *Client) ListSuppliers(ctx context.Context) ([]Contact, error) {
	var out []Contact
	err := c.paged(ctx, contactsEndpoint, url.Values{"where": {"type=" + Quote("Supplier")}}, func(body []byte) (int, error) {
		var page []Contact
		if err := decodeList(body, &page); err != nil {
			return 0, err
		}
		out = append(out, keepValid(page, Contact.validate, c.logger, contactsEndpoint)...)
		return len(page), nil
	})
	return out, err
}

// ListUsers returns the staff directory, active or not.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	err := c.paged(ctx, usersEndpoint, url.Values{}, func(body []byte) (int, error) {
		var page []User
		if err := decodeList(body, &page); err != nil {
			return 0, err
		}
		out = append(out, page...)
		return len(page), nil
	})
	return out, err
}

// ListProducts pages through the full product catalogue.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var out []Product
	err := c.paged(ctx, productsEndpoint, url.Values{}, func(body []byte) (int, error) {
		var page []Product
		if err := decodeList(body, &page); err != nil {
			return 0, err
		}
		out = append(out, keepValid(page, Product.validate, c.logger, productsEndpoint)...)
		return len(page), nil
	})
	return out, err
}

// ProductByCode returns nil when no product carries the code.
func (c *Client) ProductByCode(ctx context.Context, code string) (*Product, error) {
	var raw []Product
	if err := c.getList(ctx, productsEndpoint, url.Values{"where": {"code=" + Quote(code)}}, &raw); err != nil {
		return nil, err
	}
	valid := keepValid(raw, Product.validate, c.logger, productsEndpoint)
	if len(valid) == 0 {
		return nil, nil
	}
	return &valid[0], nil
}

func (c *Client) BOMsByProductID(ctx context.Context, productID int) ([]BOM, error) {
	var out []BOM
	params := url.Values{"where": {"productId=" + strconv.Itoa(productID)}}
	if err := c.getList(ctx, bomEndpoint, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PostSalesOrders sends loadboms=false so kits stay single lines on the SO.
func (c *Client) PostSalesOrders(ctx context.Context, orders []SalesOrder) (PostResponse, error) {
	return c.post(ctx, salesOrdersEndpoint, url.Values{"loadboms": {"false"}}, orders)
}

func (c *Client) PostPurchaseOrders(ctx context.Context, orders []PurchaseOrder) (PostResponse, error) {
	return c.post(ctx, purchaseOrdersEndpoint, nil, orders)
}

func (c *Client) getList(ctx context.Context, endpoint string, params url.Values, out any) error {
	body, err := c.fetchJSON(ctx, endpoint, params)
	if err != nil {
		return err
	}
	return decodeList(body, out)
}

// paged walks page=1.. until a short page. handle returns the raw row
// count of the page it decoded.
func (c *Client) paged(ctx context.Context, endpoint string, params url.Values, handle func([]byte) (int, error)) error {
	rows := c.cfg.Cin7PageRows
	if rows <= 0 {
		rows = 250
	}
	for page := 1; page <= maxPages; page++ {
		query := url.Values{}
		for k, v := range params {
			query[k] = v
		}
		query.Set("page", strconv.Itoa(page))
		query.Set("rows", strconv.Itoa(rows))

		body, err := c.fetchJSON(ctx, endpoint, query)
		if err != nil {
			return err
		}
		n, err := handle(body)
		if err != nil {
			return fmt.Errorf("decode %s page %d: %w", endpoint, page, err)
		}
		if n < rows {
			return nil
		}
	}
	return fmt.Errorf("%s: more than %d pages", endpoint, maxPages)
}

func (c *Client) endpointURL(endpoint string, params url.Values) (string, error) {
	if err := c.cfg.Require("CIN7_API_BASE_URL", c.cfg.Cin7APIBaseURL); err != nil {
		return "", err
	}
	u, err := url.Parse(strings.TrimRight(c.cfg.Cin7APIBaseURL, "/") + "/" + endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			if strings.TrimSpace(v) != "" {
				q.Add(k, v)
			}
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	target, err := c.endpointURL(endpoint, params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{Endpoint: endpoint, Status: status, Body: string(body)}
	}
	return body, nil
}

// post never retries: a create call is not idempotent.
func (c *Client) post(ctx context.Context, endpoint string, params url.Values, payload any) (PostResponse, error) {
	target, err := c.endpointURL(endpoint, params)
	if err != nil {
		return PostResponse{}, err
	}
	blob, err := json.Marshal(payload)
	if err != nil {
		return PostResponse{}, fmt.Errorf("encode %s payload: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(blob))
	if err != nil {
		return PostResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return PostResponse{}, err
	}
	resp := PostResponse{Status: status, Body: body}
	var results []PostResult
	if err := json.Unmarshal(body, &results); err == nil {
		resp.Results = results
		resp.Parsed = true
	}
	return resp, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	if err := c.cfg.Require("CIN7_API_USERNAME", c.cfg.Cin7APIUsername); err != nil {
		return 0, nil, err
	}
	if err := c.cfg.Require("CIN7_API_KEY", c.cfg.Cin7APIKey); err != nil {
		return 0, nil, err
	}
	if err := c.limiter.Wait(req.Context()); err != nil {
		return 0, nil, err
	}
	req.SetBasicAuth(c.cfg.Cin7APIUsername, c.cfg.Cin7APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("cin7 %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read cin7 response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// decodeList accepts a bare JSON array or an object wrapping it in
// "Items" or "items".
func decodeList(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}
	if trimmed[0] != '{' {
		return errors.New("unexpected response shape")
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return err
	}
	for _, key := range []string{"Items", "items"} {
		if items, ok := wrapper[key]; ok {
			return json.Unmarshal(items, out)
		}
	}
	return errors.New("response object has no items array")
}

func keepValid[T any](items []T, validate func(T) error, logger *slog.Logger, endpoint string) []T {
	out := items[:0]
	for _, item := range items {
		if err := validate(item); err != nil {
			logger.Warn("skipping malformed record", "endpoint", endpoint, "err", err)
			continue
		}
		out = append(out, item)
	}
	return out
}
