package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/quickpay/backend/internal/domain"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

func recordingServer(t *testing.T, handler func(w http.ResponseWriter, req recordedRequest)) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &rec.Body))
		}
		seen = append(seen, rec)
		w.Header().Set("Content-Type", "application/json")
		handler(w, rec)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestV1FetchClientDetailKeepsStringFlags(t *testing.T) {
	srv, seen := recordingServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		_, _ = io.WriteString(w, `{"client":{"clientID":7,"companyName":"Atlas Voice"},
			"paymentProfiles":[{"paymentProfileID":"11","entity":"wc","lastFour":"4242",
			"billingDetails":{"firstName":"Ada","lastName":"Lovelace"},"isDefault":"True"}],
			"entities":["wc","cg"]}`)
	})

	detail, err := NewV1(Options{BaseURL: srv.URL}).FetchClientDetail(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	assert.Equal(t, http.MethodPost, (*seen)[0].Method)
	assert.Equal(t, "/quickpay/api/client", (*seen)[0].Path)
	assert.EqualValues(t, 7, (*seen)[0].Body["clientID"])

	require.Len(t, detail.PaymentProfiles, 1)
	assert.True(t, detail.PaymentProfiles[0].IsDefault.Bool())
	assert.Equal(t, "True", detail.PaymentProfiles[0].IsDefault.Raw())
	assert.Equal(t, []string{"wc", "cg"}, detail.EntityCodes())
}

func TestV1ErrorBody(t *testing.T) {
	srv, _ := recordingServer(t, func(w http.ResponseWriter, req recordedRequest) {
		if req.Path == "/quickpay/api/client/paymentmethod/setdefault" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"card expired"}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `not json`)
	})
	client := NewV1(Options{BaseURL: srv.URL})

	err := client.SetDefaultPaymentMethod(context.Background(), 7, "11")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "card expired", apiErr.Message)

	err = client.DeletePaymentMethod(context.Background(), 7, "11", "")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Unknown error", apiErr.Message)
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
}

func TestV1DeleteSendsEntityOnlyWhenScoped(t *testing.T) {
	srv, seen := recordingServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		_, _ = io.WriteString(w, `{}`)
	})
	client := NewV1(Options{BaseURL: srv.URL})

	require.NoError(t, client.DeletePaymentMethod(context.Background(), 7, "11", ""))
	require.NoError(t, client.DeletePaymentMethod(context.Background(), 7, "11", "cg"))

	require.Len(t, *seen, 2)
	_, hasEntity := (*seen)[0].Body["entityCode"]
	assert.False(t, hasEntity)
	assert.Equal(t, "cg", (*seen)[1].Body["entityCode"])
}

func TestV1CreateUsesLegacyCardDetailsKey(t *testing.T) {
	srv, seen := recordingServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		_, _ = io.WriteString(w, `{"clientID":"7","paymentProfiles":[{"paymentProfileID":"90","entity":"wc","lastFour":"1881"}]}`)
	})

	created, err := NewV1(Options{BaseURL: srv.URL}).CreatePaymentProfile(context.Background(), domain.NewPaymentProfile{
		ClientID:    7,
		CardDetails: domain.CardDetails{CardNumber: "4012888888881881", ExpirationDate: "12/29", CardCode: "123"},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "90", created[0].PaymentProfileID)

	body := (*seen)[0].Body
	assert.Contains(t, body, "CardDetails")
	assert.NotContains(t, body, "cardDetails")
}

func TestV1ListClientsFiltersLocally(t *testing.T) {
	srv, _ := recordingServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		_, _ = io.WriteString(w, `{"clients":[
			{"clientID":3,"companyName":"Metro Voice","clientStatus":"active"},
			{"clientID":1,"companyName":"Atlas Media","clientStatus":"Active"},
			{"clientID":2,"companyName":"Atlas Outreach","clientStatus":"inactive"}]}`)
	})
	client := NewV1(Options{BaseURL: srv.URL})

	res, err := client.ListClients(context.Background(), ClientFilter{Search: "atlas"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Clients, 1)
	assert.EqualValues(t, 1, res.Clients[0].ClientID)

	res, err = client.ListClients(context.Background(), ClientFilter{IncludeInactive: true, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Clients, 2)
	assert.EqualValues(t, 1, res.Clients[0].ClientID)
	assert.EqualValues(t, 2, res.Clients[1].ClientID)
}

func TestV1TransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	err := NewV1(Options{BaseURL: srv.URL}).Ping(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
