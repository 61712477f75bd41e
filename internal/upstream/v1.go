package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/vanshika/quickpay/backend/internal/domain"
)

// V1Client speaks the original API under /quickpay/api. Flags arrive as
// strings and failures as a non-2xx status with an {"error": ...} body.
type V1Client struct {
	t *transport
}

// NewV1 builds a V1 client. BaseURL is the host root, without the API prefix.
func NewV1(opts Options) *V1Client {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/") + "/quickpay/api"
	return &V1Client{t: newTransport(opts, "upstream.v1")}
}

func (c *V1Client) call(ctx context.Context, method, path string, body, dst any) error {
	status, raw, err := c.t.do(ctx, method, path, nil, body)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		msg := "Unknown error"
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{Status: status, Endpoint: endpoint(method, path), Message: msg}
	}
	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &APIError{Status: status, Endpoint: endpoint(method, path), Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

type v1ClientRef struct {
	ClientID int64 `json:"clientID"`
}

// FetchClientDetail posts the client id to /client.
func (c *V1Client) FetchClientDetail(ctx context.Context, clientID int64) (domain.ClientDetail, error) {
	var detail domain.ClientDetail
	if err := c.call(ctx, http.MethodPost, "/client", v1ClientRef{ClientID: clientID}, &detail); err != nil {
		return domain.ClientDetail{}, err
	}
	return detail, nil
}

// SetDefaultPaymentMethod flags one payment profile as the client default.
func (c *V1Client) SetDefaultPaymentMethod(ctx context.Context, clientID int64, paymentProfileID string) error {
	body := struct {
		ClientID         int64  `json:"clientID"`
		PaymentProfileID string `json:"paymentProfileID"`
	}{clientID, paymentProfileID}
	return c.call(ctx, http.MethodPost, "/client/paymentmethod/setdefault", body, nil)
}

// DeletePaymentMethod removes a profile, from one entity when entityCode is set.
func (c *V1Client) DeletePaymentMethod(ctx context.Context, clientID int64, paymentProfileID, entityCode string) error {
	body := struct {
		ClientID         int64  `json:"clientID"`
		PaymentProfileID string `json:"paymentProfileID"`
		EntityCode       string `json:"entityCode,omitempty"`
	}{clientID, paymentProfileID, entityCode}
	return c.call(ctx, http.MethodPost, "/client/paymentmethod/delete", body, nil)
}

// v1CreateProfile mirrors the legacy payload, which capitalises CardDetails.
type v1CreateProfile struct {
	BillingDetails domain.BillingDetails `json:"billingDetails"`
	CardDetails    domain.CardDetails    `json:"CardDetails"`
	ClientID       int64                 `json:"clientID"`
	Entity         string                `json:"entity,omitempty"`
	Note           string                `json:"note,omitempty"`
}

type profilesResponse struct {
	ClientID        domain.FlexID           `json:"clientID"`
	PaymentProfiles []domain.PaymentProfile `json:"paymentProfiles"`
}

// CreatePaymentProfile creates a card and returns the profiles made for it.
func (c *V1Client) CreatePaymentProfile(ctx context.Context, in domain.NewPaymentProfile) ([]domain.PaymentProfile, error) {
	body := v1CreateProfile{
		BillingDetails: in.BillingDetails,
		CardDetails:    in.CardDetails,
		ClientID:       in.ClientID,
		Entity:         in.Entity,
		Note:           in.Note,
	}
	var resp profilesResponse
	if err := c.call(ctx, http.MethodPost, "/client/paymentmethod/create", body, &resp); err != nil {
		return nil, err
	}
	return resp.PaymentProfiles, nil
}

// ListClients fetches the full listing; V1 has no server-side filtering so
// search, status and paging are applied here.
func (c *V1Client) ListClients(ctx context.Context, filter ClientFilter) (domain.ClientPage, error) {
	filter = filter.normalized()
	var resp struct {
		Clients []domain.Client `json:"clients"`
	}
	if err := c.call(ctx, http.MethodGet, "/clients", nil, &resp); err != nil {
		return domain.ClientPage{}, err
	}

	matched := filterClients(resp.Clients, filter)
	return domain.ClientPage{
		Clients: page(matched, filter.Limit, filter.Offset),
		Total:   len(matched),
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func filterClients(clients []domain.Client, filter ClientFilter) []domain.Client {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]domain.Client, 0, len(clients))
	for _, cl := range clients {
		if !filter.IncludeInactive && !strings.EqualFold(cl.ClientStatus, "active") {
			continue
		}
		if search != "" && !clientMatches(cl, search) {
			continue
		}
		out = append(out, cl)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

func clientMatches(cl domain.Client, search string) bool {
	for _, field := range []string{cl.CompanyName, cl.PrimaryContact, cl.Email, fmt.Sprint(cl.ClientID)} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// ListEntities returns the business units known upstream.
func (c *V1Client) ListEntities(ctx context.Context) ([]domain.Entity, error) {
	var resp struct {
		Entities []domain.Entity `json:"entities"`
	}
	if err := c.call(ctx, http.MethodPost, "/entities", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

// ListInvoices lists one client's invoices, or all when ClientID is zero.
func (c *V1Client) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]domain.Invoice, error) {
	filter = filter.normalized()
	var resp struct {
		Invoices []domain.Invoice `json:"invoices"`
	}
	var err error
	if filter.ClientID > 0 {
		err = c.call(ctx, http.MethodPost, "/client/invoices", v1ClientRef{ClientID: filter.ClientID}, &resp)
	} else {
		err = c.call(ctx, http.MethodGet, "/invoices", nil, &resp)
	}
	if err != nil {
		return nil, err
	}

	matched := make([]domain.Invoice, 0, len(resp.Invoices))
	for _, inv := range resp.Invoices {
		if filter.matches(inv) {
			matched = append(matched, inv)
		}
	}
	return page(matched, filter.Limit, filter.Offset), nil
}

// AddNote attaches a note to the client.
func (c *V1Client) AddNote(ctx context.Context, note domain.NewNote) (domain.Note, error) {
	body := struct {
		ClientID  int64  `json:"clientID"`
		Note      string `json:"note"`
		Important bool   `json:"important"`
		CreatedBy string `json:"createdBy"`
	}{note.ClientID, note.Note, note.Important, note.Author}
	var resp struct {
		Note domain.Note `json:"note"`
	}
	if err := c.call(ctx, http.MethodPost, "/client/note/add", body, &resp); err != nil {
		return domain.Note{}, err
	}
	return resp.Note, nil
}

// Ping checks reachability with the cheapest read the API offers.
func (c *V1Client) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/client/ids", nil, nil)
}

var _ Client = (*V1Client)(nil)
