package upstream

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vanshika/quickpay/backend/internal/cards"
	"github.com/vanshika/quickpay/backend/internal/domain"
)

// Op names a MemoryClient operation for failure injection and call capture.
type Op string

const (
	OpFetch        Op = "fetch"
	OpSetDefault   Op = "set-default"
	OpDelete       Op = "delete"
	OpCreate       Op = "create"
	OpListClients  Op = "list-clients"
	OpListEntities Op = "list-entities"
	OpListInvoices Op = "list-invoices"
	OpAddNote      Op = "add-note"
	OpPing         Op = "ping"
)

// MemoryCall records one MemoryClient invocation.
type MemoryCall struct {
	Op               Op
	ClientID         int64
	PaymentProfileID string
	EntityCode       string
}

// MemoryClient is an in-process upstream backed by client detail fixtures.
// Mutations follow the live API: set-default flags every association of the
// card, delete removes either every association or one entity's.
type MemoryClient struct {
	mu       sync.Mutex
	clients  map[int64]*domain.ClientDetail
	entities []domain.Entity
	failures map[Op]error
	calls    []MemoryCall
	nextID   int64
	nextNote int64
	now      func() time.Time
}

// NewMemoryClient seeds a MemoryClient. When entities is empty the catalogue
// is derived from the clients' entity mappings.
func NewMemoryClient(details []domain.ClientDetail, entities []domain.Entity) *MemoryClient {
	m := &MemoryClient{
		clients:  make(map[int64]*domain.ClientDetail, len(details)),
		failures: make(map[Op]error),
		nextID:   900000,
		nextNote: 1,
		now:      time.Now,
	}
	seen := make(map[string]struct{})
	for _, d := range details {
		cp := cloneDetail(d)
		m.clients[d.Client.ClientID] = &cp
		for _, p := range d.PaymentProfiles {
			if n, err := strconv.ParseInt(p.PaymentProfileID, 10, 64); err == nil && n >= m.nextID {
				m.nextID = n + 1
			}
		}
		if len(entities) == 0 {
			for _, code := range d.EntityCodes() {
				if _, ok := seen[code]; !ok {
					seen[code] = struct{}{}
					m.entities = append(m.entities, domain.Entity{EntityCode: code, EntityName: code, IsActive: true})
				}
			}
		}
	}
	if len(entities) > 0 {
		m.entities = append([]domain.Entity(nil), entities...)
	}
	return m
}

// FailOn makes every subsequent op fail with err. A nil err clears it.
func (m *MemoryClient) FailOn(op Op, err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
	} else {
		m.failures[op] = err
	}
	return m
}

// Calls returns a copy of the recorded invocations.
func (m *MemoryClient) Calls() []MemoryCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MemoryCall(nil), m.calls...)
}

func (m *MemoryClient) record(call MemoryCall) error {
	m.calls = append(m.calls, call)
	return m.failures[call.Op]
}

func (m *MemoryClient) client(clientID int64, op Op) (*domain.ClientDetail, error) {
	detail, ok := m.clients[clientID]
	if !ok {
		return nil, &APIError{Status: http.StatusNotFound, Endpoint: string(op), Message: fmt.Sprintf("client %d not found", clientID)}
	}
	return detail, nil
}

func (m *MemoryClient) FetchClientDetail(ctx context.Context, clientID int64) (domain.ClientDetail, error) {
	if err := ctx.Err(); err != nil {
		return domain.ClientDetail{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(MemoryCall{Op: OpFetch, ClientID: clientID}); err != nil {
		return domain.ClientDetail{}, err
	}
	detail, err := m.client(clientID, OpFetch)
	if err != nil {
		return domain.ClientDetail{}, err
	}
	return cloneDetail(*detail), nil
}

// sameCard returns the indexes of every association of the card that owns
// paymentProfileID. Records without a fingerprint only match themselves.
func sameCard(profiles []domain.PaymentProfile, paymentProfileID string) []int {
	target := -1
	for i, p := range profiles {
		if p.PaymentProfileID == paymentProfileID {
			target = i
			break
		}
	}
	if target < 0 {
		return nil
	}
	fp, err := cards.Fingerprint(profiles[target])
	if err != nil {
		return []int{target}
	}
	var out []int
	for i, p := range profiles {
		if other, err := cards.Fingerprint(p); err == nil && other == fp {
			out = append(out, i)
		}
	}
	return out
}

// flagLike encodes v the way existing holds its value.
func flagLike(existing domain.LooseBool, v bool) domain.LooseBool {
	if _, isString := existing.Raw().(string); isString {
		if v {
			return domain.Flag("True")
		}
		return domain.Flag("False")
	}
	return domain.Flag(v)
}

func (m *MemoryClient) SetDefaultPaymentMethod(ctx context.Context, clientID int64, paymentProfileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(MemoryCall{Op: OpSetDefault, ClientID: clientID, PaymentProfileID: paymentProfileID}); err != nil {
		return err
	}
	detail, err := m.client(clientID, OpSetDefault)
	if err != nil {
		return err
	}
	matched := sameCard(detail.PaymentProfiles, paymentProfileID)
	if len(matched) == 0 {
		return &APIError{Status: http.StatusNotFound, Endpoint: string(OpSetDefault), Message: "payment profile not found"}
	}
	isTarget := make(map[int]bool, len(matched))
	for _, i := range matched {
		isTarget[i] = true
	}
	for i := range detail.PaymentProfiles {
		p := &detail.PaymentProfiles[i]
		p.IsDefault = flagLike(p.IsDefault, isTarget[i])
	}
	return nil
}

func (m *MemoryClient) DeletePaymentMethod(ctx context.Context, clientID int64, paymentProfileID, entityCode string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(MemoryCall{Op: OpDelete, ClientID: clientID, PaymentProfileID: paymentProfileID, EntityCode: entityCode}); err != nil {
		return err
	}
	detail, err := m.client(clientID, OpDelete)
	if err != nil {
		return err
	}
	matched := sameCard(detail.PaymentProfiles, paymentProfileID)
	if len(matched) == 0 {
		return &APIError{Status: http.StatusNotFound, Endpoint: string(OpDelete), Message: "payment profile not found"}
	}

	drop := make(map[int]bool, len(matched))
	for _, i := range matched {
		if entityCode == "" || detail.PaymentProfiles[i].Entity == entityCode {
			drop[i] = true
		}
	}
	if len(drop) == 0 {
		return &APIError{Status: http.StatusNotFound, Endpoint: string(OpDelete), Message: fmt.Sprintf("card is not linked to entity %s", entityCode)}
	}
	kept := detail.PaymentProfiles[:0:0]
	for i, p := range detail.PaymentProfiles {
		if !drop[i] {
			kept = append(kept, p)
		}
	}
	detail.PaymentProfiles = kept
	return nil
}

func cardTypeFor(number string) string {
	if number == "" {
		return "Unknown"
	}
	switch number[0] {
	case '3':
		return "AmericanExpress"
	case '4':
		return "Visa"
	case '5':
		return "MasterCard"
	case '6':
		return "Discover"
	default:
		return "Unknown"
	}
}

func (m *MemoryClient) CreatePaymentProfile(ctx context.Context, in domain.NewPaymentProfile) ([]domain.PaymentProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(MemoryCall{Op: OpCreate, ClientID: in.ClientID, EntityCode: in.Entity}); err != nil {
		return nil, err
	}
	detail, err := m.client(in.ClientID, OpCreate)
	if err != nil {
		return nil, err
	}

	targets := detail.EntityCodes()
	if in.Entity != "" {
		linked := false
		for _, code := range targets {
			if code == in.Entity {
				linked = true
				break
			}
		}
		if !linked {
			return nil, &APIError{Status: http.StatusBadRequest, Endpoint: string(OpCreate), Message: fmt.Sprintf("client is not registered with entity %s", in.Entity)}
		}
		targets = []string{in.Entity}
	}

	number := in.CardDetails.CardNumber
	lastFour := number
	if len(number) > 4 {
		lastFour = number[len(number)-4:]
	}
	billing := in.BillingDetails
	created := make([]domain.PaymentProfile, 0, len(targets))
	for _, entity := range targets {
		p := domain.PaymentProfile{
			PaymentProfileID:  strconv.FormatInt(m.nextID, 10),
			CustomerProfileID: customerProfileFor(detail, entity),
			ClientID:          domain.FlexID(strconv.FormatInt(in.ClientID, 10)),
			Entity:            entity,
			CardType:          cardTypeFor(number),
			LastFour:          lastFour,
			BillingDetails:    &billing,
			IsDefault:         domain.Flag(false),
			Status:            "active",
			ExpirationDate:    in.CardDetails.ExpirationDate,
			Gateway:           "authorize.net",
			Note:              in.Note,
			CreatedAt:         m.now().UTC().Format("2006-01-02 15:04:05"),
		}
		m.nextID++
		detail.PaymentProfiles = append(detail.PaymentProfiles, p)
		created = append(created, cloneProfile(p))
	}
	return created, nil
}

func customerProfileFor(detail *domain.ClientDetail, entity string) string {
	for _, mapping := range detail.EntityMappings {
		if mapping.EntityCode == entity {
			return mapping.CustomerProfileID
		}
	}
	return ""
}

func (m *MemoryClient) ListClients(ctx context.Context, filter ClientFilter) (domain.ClientPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.ClientPage{}, err
	}
	filter = filter.normalized()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(MemoryCall{Op: OpListClients}); err != nil {
		return domain.ClientPage{}, err
	}
	all := make([]domain.Client, 0, len(m.clients))
	for _, d := range m.clients {
		all = append(all, d.Client)
	}
	matched := filterClients(all, filter)
	return domain.ClientPage{
		Clients: append([]domain.Client(nil), page(matched, filter.Limit, filter.Offset)...),
		Total:   len(matched),
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func (m *MemoryClient) ListEntities(ctx context.Context) ([]domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(MemoryCall{Op: OpListEntities}); err != nil {
		return nil, err
	}
	return append([]domain.Entity(nil), m.entities...), nil
}

func (m *MemoryClient) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]domain.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter = filter.normalized()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(MemoryCall{Op: OpListInvoices, ClientID: filter.ClientID, EntityCode: filter.EntityCode}); err != nil {
		return nil, err
	}

	var sources []*domain.ClientDetail
	if filter.ClientID > 0 {
		detail, err := m.client(filter.ClientID, OpListInvoices)
		if err != nil {
			return nil, err
		}
		sources = []*domain.ClientDetail{detail}
	} else {
		ids := make([]int64, 0, len(m.clients))
		for id := range m.clients {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			sources = append(sources, m.clients[id])
		}
	}

	var matched []domain.Invoice
	for _, d := range sources {
		for _, inv := range d.Invoices {
			if filter.matches(inv) {
				matched = append(matched, inv)
			}
		}
	}
	return append([]domain.Invoice{}, page(matched, filter.Limit, filter.Offset)...), nil
}

func (m *MemoryClient) AddNote(ctx context.Context, note domain.NewNote) (domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return domain.Note{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(MemoryCall{Op: OpAddNote, ClientID: note.ClientID}); err != nil {
		return domain.Note{}, err
	}
	detail, err := m.client(note.ClientID, OpAddNote)
	if err != nil {
		return domain.Note{}, err
	}
	if strings.TrimSpace(note.Note) == "" {
		return domain.Note{}, &APIError{Status: http.StatusBadRequest, Endpoint: string(OpAddNote), Message: "note is required"}
	}
	createdAt := m.now().UTC().Format("2006-01-02 15:04:05")
	created := domain.Note{
		NoteID:    domain.FlexID(strconv.FormatInt(m.nextNote, 10)),
		ClientID:  domain.FlexID(strconv.FormatInt(note.ClientID, 10)),
		Note:      note.Note,
		Author:    note.Author,
		Important: domain.Flag(note.Important),
		Archived:  domain.Flag(false),
		CreatedAt: &createdAt,
	}
	m.nextNote++
	detail.Notes = append(detail.Notes, created)
	return created, nil
}

func (m *MemoryClient) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record(MemoryCall{Op: OpPing})
}

func cloneProfile(p domain.PaymentProfile) domain.PaymentProfile {
	if p.BillingDetails != nil {
		b := *p.BillingDetails
		p.BillingDetails = &b
	}
	return p
}

func cloneDetail(d domain.ClientDetail) domain.ClientDetail {
	out := d
	if d.PaymentProfiles != nil {
		out.PaymentProfiles = make([]domain.PaymentProfile, len(d.PaymentProfiles))
		for i, p := range d.PaymentProfiles {
			out.PaymentProfiles[i] = cloneProfile(p)
		}
	}
	out.Transactions = append([]domain.Transaction(nil), d.Transactions...)
	out.Invoices = append([]domain.Invoice(nil), d.Invoices...)
	out.Notes = append([]domain.Note(nil), d.Notes...)
	out.Entities = append([]string(nil), d.Entities...)
	out.EntityMappings = append([]domain.EntityMapping(nil), d.EntityMappings...)
	if d.Quickbooks != nil {
		out.Quickbooks = make(map[string]domain.LooseBool, len(d.Quickbooks))
		for k, v := range d.Quickbooks {
			out.Quickbooks[k] = v
		}
	}
	return out
}

var _ Client = (*MemoryClient)(nil)
