package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/vanshika/quickpay/backend/internal/domain"
)

// V2Client speaks /quickpay/api/v2, where every response is wrapped in
// {"success": 0|1, "data": ..., "error": ...}.
type V2Client struct {
	t *transport
}

// NewV2 builds a V2 client. BaseURL is the host root, without the API prefix.
func NewV2(opts Options) *V2Client {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/") + "/quickpay/api/v2"
	return &V2Client{t: newTransport(opts, "upstream.v2")}
}

type envelope struct {
	Success json.RawMessage `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (e envelope) ok() bool {
	s := strings.Trim(string(bytes.TrimSpace(e.Success)), `"`)
	return s == "1" || s == "true"
}

func (c *V2Client) call(ctx context.Context, method, path string, query url.Values, body, dst any) error {
	status, raw, err := c.t.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	ep := endpoint(method, path)

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		msg := fmt.Sprintf("invalid response body: %v", err)
		if status < 200 || status > 299 {
			msg = http.StatusText(status)
		}
		return &APIError{Status: status, Endpoint: ep, Message: msg}
	}
	if !env.ok() || status < 200 || status > 299 {
		msg := env.Error
		if msg == "" {
			msg = "Unknown error occurred"
		}
		return &APIError{Status: status, Endpoint: ep, Message: msg}
	}
	if dst == nil {
		return nil
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return &APIError{Status: status, Endpoint: ep, Message: "response carried no data"}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &APIError{Status: status, Endpoint: ep, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

func clientPath(clientID int64, rest string) string {
	return "/clients/" + strconv.FormatInt(clientID, 10) + rest
}

// FetchClientDetail reads /clients/{id}/ and unwraps the envelope.
func (c *V2Client) FetchClientDetail(ctx context.Context, clientID int64) (domain.ClientDetail, error) {
	var detail domain.ClientDetail
	if err := c.call(ctx, http.MethodGet, clientPath(clientID, "/"), nil, nil, &detail); err != nil {
		return domain.ClientDetail{}, err
	}
	return detail, nil
}

// SetDefaultPaymentMethod flags one payment profile as the client default.
func (c *V2Client) SetDefaultPaymentMethod(ctx context.Context, clientID int64, paymentProfileID string) error {
	body := struct {
		PaymentProfileID string `json:"paymentProfileID"`
	}{paymentProfileID}
	return c.call(ctx, http.MethodPut, clientPath(clientID, "/payment-methods/set-default"), nil, body, nil)
}

// DeletePaymentMethod removes a profile, from one entity when entityCode is set.
func (c *V2Client) DeletePaymentMethod(ctx context.Context, clientID int64, paymentProfileID, entityCode string) error {
	var query url.Values
	if entityCode != "" {
		query = url.Values{"entityCode": {entityCode}}
	}
	path := clientPath(clientID, "/payment-methods/"+url.PathEscape(paymentProfileID))
	return c.call(ctx, http.MethodPost, path, query, nil, nil)
}

// CreatePaymentProfile creates a card and returns the profiles made for it.
func (c *V2Client) CreatePaymentProfile(ctx context.Context, in domain.NewPaymentProfile) ([]domain.PaymentProfile, error) {
	var resp profilesResponse
	if err := c.call(ctx, http.MethodPost, "/payment-profiles/create/", nil, in, &resp); err != nil {
		return nil, err
	}
	return resp.PaymentProfiles, nil
}

// ListClients filters and pages on the server.
func (c *V2Client) ListClients(ctx context.Context, filter ClientFilter) (domain.ClientPage, error) {
	filter = filter.normalized()
	query := url.Values{}
	query.Set("active", strconv.FormatBool(!filter.IncludeInactive))
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	query.Set("limit", strconv.Itoa(filter.Limit))
	query.Set("offset", strconv.Itoa(filter.Offset))

	var resp struct {
		Clients  []domain.Client `json:"clients"`
		Metadata struct {
			Total  int `json:"total"`
			Limit  int `json:"limit"`
			Offset int `json:"offset"`
		} `json:"metadata"`
	}
	if err := c.call(ctx, http.MethodGet, "/clients/", query, nil, &resp); err != nil {
		return domain.ClientPage{}, err
	}
	return domain.ClientPage{
		Clients: resp.Clients,
		Total:   resp.Metadata.Total,
		Limit:   resp.Metadata.Limit,
		Offset:  resp.Metadata.Offset,
	}, nil
}

// ListEntities returns the business units known upstream.
func (c *V2Client) ListEntities(ctx context.Context) ([]domain.Entity, error) {
	var resp struct {
		Entities []domain.Entity `json:"entities"`
	}
	if err := c.call(ctx, http.MethodGet, "/entities/", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

// ListInvoices lists one client's invoices, or all when ClientID is zero.
func (c *V2Client) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]domain.Invoice, error) {
	filter = filter.normalized()
	query := url.Values{}
	if filter.EntityCode != "" {
		query.Set("entityCode", filter.EntityCode)
	}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}

	path := "/invoices/"
	if filter.ClientID > 0 {
		path = clientPath(filter.ClientID, "/invoices/")
	} else {
		query.Set("limit", strconv.Itoa(filter.Limit))
		query.Set("offset", strconv.Itoa(filter.Offset))
	}

	var resp struct {
		Invoices []domain.Invoice `json:"invoices"`
	}
	if err := c.call(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
		return nil, err
	}
	if filter.ClientID > 0 {
		return page(resp.Invoices, filter.Limit, filter.Offset), nil
	}
	return resp.Invoices, nil
}

// AddNote attaches a note to the client.
func (c *V2Client) AddNote(ctx context.Context, note domain.NewNote) (domain.Note, error) {
	var resp struct {
		Note domain.Note `json:"note"`
	}
	if err := c.call(ctx, http.MethodPost, clientPath(note.ClientID, "/notes/create/"), nil, note, &resp); err != nil {
		return domain.Note{}, err
	}
	return resp.Note, nil
}

// Ping checks reachability through the entity listing.
func (c *V2Client) Ping(ctx context.Context) error {
	_, err := c.ListEntities(ctx)
	return err
}

var _ Client = (*V2Client)(nil)
