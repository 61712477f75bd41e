package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/vanshika/quickpay/backend/internal/cards"
	"github.com/vanshika/quickpay/backend/internal/domain"
	"github.com/vanshika/quickpay/backend/internal/linkstore"
	"github.com/vanshika/quickpay/backend/internal/service"
	"github.com/vanshika/quickpay/backend/internal/upstream"
)

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger  *slog.Logger
	service *service.CardService
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, svc *service.CardService) *APIHandlers {
	return &APIHandlers{
		logger:  logger,
		service: svc,
	}
}

func (h *APIHandlers) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /clients", h.listClients)
	mux.HandleFunc("GET /entities", h.listEntities)
	mux.HandleFunc("GET /invoices", h.listInvoices)
	mux.HandleFunc("GET /clients/{id}/cards", h.getCards)
	mux.HandleFunc("POST /clients/{id}/cards/{fingerprint}/default/confirmation", h.beginSetDefault)
	mux.HandleFunc("POST /clients/{id}/cards/default", h.confirmSetDefault)
	mux.HandleFunc("DELETE /clients/{id}/cards/confirmation", h.cancelConfirmation)
	mux.HandleFunc("POST /clients/{id}/payment-profiles/{ppid}/delete/confirmation", h.beginDelete)
	mux.HandleFunc("POST /clients/{id}/payment-profiles/delete", h.confirmDelete)
	mux.HandleFunc("POST /clients/{id}/payment-profiles", h.createPaymentProfile)
	mux.HandleFunc("GET /clients/{id}/invoices", h.listInvoices)
	mux.HandleFunc("POST /clients/{id}/notes", h.addNote)
	mux.HandleFunc("GET /clients/{id}/shared-cards", h.sharedCards)
}

func (h *APIHandlers) listClients(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := h.service.ListClients(r.Context(), upstream.ClientFilter{
		IncludeInactive: strings.EqualFold(query.Get("active"), "false"),
		Search:          query.Get("search"),
		Limit:           parseInt(query.Get("limit"), 0),
		Offset:          parseInt(query.Get("offset"), 0),
	})
	if err != nil {
		h.fail(w, "failed to list clients", err)
		return
	}

	clients := page.Clients
	if clients == nil {
		clients = []domain.Client{}
	}
	respondJSON(w, http.StatusOK, listClientsResponse{
		Clients: clients,
		Metadata: pageMetadata{
			Total:  page.Total,
			Limit:  page.Limit,
			Offset: page.Offset,
		},
	})
}

func (h *APIHandlers) listEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.service.ListEntities(r.Context())
	if err != nil {
		h.fail(w, "failed to list entities", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"entities": entities})
}

func (h *APIHandlers) listInvoices(w http.ResponseWriter, r *http.Request) {
	var clientID int64
	if r.PathValue("id") != "" {
		id, ok := clientIDParam(w, r)
		if !ok {
			return
		}
		clientID = id
	}
	query := r.URL.Query()
	invoices, err := h.service.ListInvoices(r.Context(), upstream.InvoiceFilter{
		ClientID:   clientID,
		EntityCode: query.Get("entityCode"),
		Status:     query.Get("status"),
		Limit:      parseInt(query.Get("limit"), 0),
		Offset:     parseInt(query.Get("offset"), 0),
	})
	if err != nil {
		h.fail(w, "failed to list invoices", err)
		return
	}
	if invoices == nil {
		invoices = []domain.Invoice{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *APIHandlers) getCards(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientIDParam(w, r)
	if !ok {
		return
	}
	view, err := h.service.Cards(r.Context(), clientID)
	if err != nil {
		h.fail(w, "failed to load cards", err, "client_id", clientID)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *APIHandlers) beginSetDefault(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientIDParam(w, r)
	if !ok {
		return
	}
	fingerprint := r.PathValue("fingerprint")
	conf, err := h.service.BeginSetDefault(r.Context(), clientID, fingerprint)
	if err != nil {
		h.fail(w, "failed to open set-default confirmation", err, "client_id", clientID)
		return
	}
	respondJSON(w, http.StatusCreated, conf)
}

func (h *APIHandlers) confirmSetDefault(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientIDParam(w, r)
	if !ok {
		return
	}
	var payload tokenRequest
	if !decodeToken(w, r, &payload) {
		return
	}
	view, err := h.service.ConfirmSetDefault(r.Context(), clientID, payload.Token)
	if err != nil {
		h.fail(w, "failed to set default card", err, "client_id", clientID)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *APIHandlers) cancelConfirmation(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientIDParam(w, r)
	if !ok {
		return
	}
	var payload tokenRequest
	if !decodeToken(w, r, &payload) {
		return
	}
	if err := h.service.Cancel(clientID, payload.Token); err != nil {
		h.fail(w, "failed to cancel confirmation", err, "client_id", clientID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandlers) beginDelete(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientIDParam(w, r)
	if !ok {
		return
	}
	var payload deleteRequest
	if err := decodeOptionalJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	conf, err := h.service.BeginDelete(r.Context(), clientID, r.PathValue("ppid"), strings.TrimSpace(payload.EntityCode))
	if err != nil {
		h.fail(w, "failed to open delete confirmation", err, "client_id", clientID)
		return
	}
	respondJSON(w, http.StatusCreated, conf)
}

func (h *APIHandlers) confirmDelete(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientIDParam(w, r)
	if !ok {
		return
	}
	var payload tokenRequest
	if !decodeToken(w, r, &payload) {
		return
	}
	view, err := h.service.ConfirmDelete(r.Context(), clientID, payload.Token)
	if err != nil {
		h.fail(w, "failed to delete payment profile", err, "client_id", clientID)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *APIHandlers) createPaymentProfile(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientIDParam(w, r)
	if !ok {
		return
	}
	var payload domain.NewPaymentProfile
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	payload.ClientID = clientID

	created, err := h.service.CreatePaymentProfile(r.Context(), payload)
	if err != nil {
		h.fail(w, "failed to create payment profile", err, "client_id", clientID)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"clientID":        clientID,
		"paymentProfiles": created,
	})
}

func (h *APIHandlers) addNote(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientIDParam(w, r)
	if !ok {
		return
	}
	var payload noteRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	note, err := h.service.AddNote(r.Context(), domain.NewNote{
		ClientID:  clientID,
		Note:      payload.Note,
		Author:    payload.Author,
		Important: payload.Important,
	})
	if err != nil {
		h.fail(w, "failed to add note", err, "client_id", clientID)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"note": note})
}

func (h *APIHandlers) sharedCards(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientIDParam(w, r)
	if !ok {
		return
	}
	shared, err := h.service.SharedCards(r.Context(), clientID)
	if err != nil {
		h.fail(w, "failed to load shared cards", err, "client_id", clientID)
		return
	}
	resp := sharedCardsResponse{ClientID: clientID, Cards: []sharedCard{}}
	for _, c := range shared {
		resp.Cards = append(resp.Cards, sharedCard{
			FingerprintHash: c.FingerprintHash,
			LastFour:        c.LastFour,
			ClientIDs:       c.ClientIDs,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// fail maps err onto a status code and writes the error body.
func (h *APIHandlers) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	status, body := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, append(attrs, "error", err)...)
	} else {
		h.logger.Info(msg, append(attrs, "status", status, "error", err)...)
	}
	respondJSON(w, status, body)
}

func classifyError(err error) (int, errorResponse) {
	var (
		validationErr *service.ValidationError
		mutationErr   *cards.MutationError
		apiErr        *upstream.APIError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: validationErr.Fields}
	case errors.Is(err, service.ErrConfirmationNotFound),
		errors.Is(err, cards.ErrNotConfirming),
		errors.Is(err, cards.ErrUnknownCard),
		errors.Is(err, cards.ErrUnknownProfile):
		return http.StatusNotFound, errorResponse{Error: err.Error()}
	case errors.Is(err, cards.ErrSubmitInFlight),
		errors.Is(err, cards.ErrAlreadyDefault),
		errors.Is(err, cards.ErrStaleResponse),
		errors.Is(err, cards.ErrPanelClosed):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	case errors.Is(err, cards.ErrEntityNotLinked):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, linkstore.ErrDisabled):
		return http.StatusServiceUnavailable, errorResponse{Error: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorResponse{Error: "upstream timed out"}
	case errors.As(err, &apiErr):
		if apiErr.Status == http.StatusNotFound && !errors.As(err, &mutationErr) {
			return http.StatusNotFound, errorResponse{Error: apiErr.Message}
		}
		return http.StatusBadGateway, errorResponse{Error: apiErr.Message}
	case errors.As(err, &mutationErr), errors.Is(err, upstream.ErrUnavailable):
		return http.StatusBadGateway, errorResponse{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
}

// --- Request & Response DTOs ---

type tokenRequest struct {
	Token string `json:"token"`
}

type deleteRequest struct {
	EntityCode string `json:"entityCode"`
}

type noteRequest struct {
	Note      string `json:"note"`
	Author    string `json:"author"`
	Important bool   `json:"important"`
}

type pageMetadata struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type listClientsResponse struct {
	Clients  []domain.Client `json:"clients"`
	Metadata pageMetadata    `json:"metadata"`
}

type sharedCard struct {
	FingerprintHash string  `json:"fingerprintHash"`
	LastFour        string  `json:"lastFour"`
	ClientIDs       []int64 `json:"clientIDs"`
}

type sharedCardsResponse struct {
	ClientID int64        `json:"clientID"`
	Cards    []sharedCard `json:"cards"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func clientIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid client id %q", raw))
		return 0, false
	}
	return id, true
}

func decodeToken(w http.ResponseWriter, r *http.Request, dst *tokenRequest) bool {
	if err := decodeJSON(r, dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if strings.TrimSpace(dst.Token) == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return false
	}
	return true
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints where the body may be empty.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}
