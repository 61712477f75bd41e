package generator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/vanshika/quickpay/backend/internal/domain"
)

// Dataset contains the generated client detail records.
type Dataset struct {
	Clients []domain.ClientDetail `json:"clients"`
}

// Generator produces client detail records shaped like upstream responses.
type Generator struct {
	cfg           Config
	rand          *rand.Rand
	nameFragments nameFragments
	cardPool      []card
	nextProfileID int
	now           time.Time
}

type card struct {
	cardType string
	lastFour string
	expiry   string
	billing  domain.BillingDetails
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.NumClients <= 0 {
		cfg.NumClients = def.NumClients
	}
	if cfg.MaxCardsPerClient <= 0 {
		cfg.MaxCardsPerClient = def.MaxCardsPerClient
	}
	if cfg.Encoding == "" {
		cfg.Encoding = def.Encoding
	}
	if len(cfg.Entities) == 0 {
		cfg.Entities = def.Entities
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}

	return &Generator{
		cfg:           cfg,
		rand:          rand.New(rand.NewSource(cfg.Seed)),
		nameFragments: defaultNameFragments(),
		nextProfileID: 500000,
		now:           cfg.Now.UTC(),
	}
}

// Generate synthesises client details. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	clients := make([]domain.ClientDetail, 0, g.cfg.NumClients)
	for i := 0; i < g.cfg.NumClients; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}
		clients = append(clients, g.client(int64(1001+i)))
	}
	return Dataset{Clients: clients}, nil
}

func (g *Generator) client(clientID int64) domain.ClientDetail {
	encoding := g.cfg.Encoding
	if encoding == EncodingMixed {
		encoding = EncodingV1
		if g.rand.Intn(2) == 0 {
			encoding = EncodingV2
		}
	}
	flag := func(v bool) domain.LooseBool {
		if encoding == EncodingV1 {
			if v {
				return domain.Flag("True")
			}
			return domain.Flag("False")
		}
		return domain.Flag(v)
	}

	first := g.pick(g.nameFragments.first)
	last := g.pick(g.nameFragments.last)
	company := fmt.Sprintf("%s %s", g.pick(g.nameFragments.companyPrefix), g.pick(g.nameFragments.companySuffix))
	status := "active"
	if g.rand.Float64() < 0.15 {
		status = "inactive"
	}

	detail := domain.ClientDetail{
		Client: domain.Client{
			ClientID:       clientID,
			PrimaryContact: first + " " + last,
			CompanyName:    company,
			SalesPerson:    g.pick(g.nameFragments.salespeople),
			Email:          fmt.Sprintf("%s.%s@%s", first, last, g.pick(g.nameFragments.domains)),
			ClientStatus:   status,
		},
		Entities: append([]string(nil), g.cfg.Entities...),
	}
	for _, code := range g.cfg.Entities {
		detail.EntityMappings = append(detail.EntityMappings, domain.EntityMapping{
			EntityCode:        code,
			CustomerProfileID: fmt.Sprintf("%d", 100000000+g.rand.Intn(899999999)),
			Status:            "active",
		})
	}
	for _, m := range detail.EntityMappings {
		switch m.EntityCode {
		case "wc":
			detail.Client.WCCustomerProfileID = m.CustomerProfileID
		case "cg":
			detail.Client.CGCustomerProfileID = m.CustomerProfileID
		case "vbc":
			detail.Client.VBCCustomerProfileID = m.CustomerProfileID
		}
	}

	numCards := 1 + g.rand.Intn(g.cfg.MaxCardsPerClient)
	defaultIdx := g.rand.Intn(numCards)
	conflicting := numCards > 1 && g.rand.Float64() < g.cfg.ConflictingDefaultChance
	for i := 0; i < numCards; i++ {
		c := g.card(first, last)
		isDefault := i == defaultIdx || (conflicting && i == (defaultIdx+1)%numCards)
		for j, entity := range g.entitiesForCard() {
			p := domain.PaymentProfile{
				PaymentProfileID:  g.profileID(),
				CustomerProfileID: mappingFor(detail.EntityMappings, entity),
				ClientID:          domain.FlexID(fmt.Sprint(clientID)),
				Entity:            entity,
				CardType:          c.cardType,
				LastFour:          c.lastFour,
				BillingDetails:    &domain.BillingDetails{FirstName: c.billing.FirstName, LastName: c.billing.LastName, StreetAddress: c.billing.StreetAddress, ZipCode: c.billing.ZipCode},
				// Upstream only marks one association of the default card.
				IsDefault:      flag(isDefault && j == 0),
				Status:         "active",
				ExpirationDate: c.expiry,
				Gateway:        "authorize.net",
				CreatedAt:      g.timestamp(),
				CreatedBy:      detail.Client.SalesPerson,
			}
			if g.rand.Float64() < g.cfg.MalformedChance {
				p.BillingDetails = nil
			}
			detail.PaymentProfiles = append(detail.PaymentProfiles, p)
		}
	}

	numInvoices := g.rand.Intn(4)
	for i := 0; i < numInvoices; i++ {
		entity := g.pick(g.cfg.Entities)
		approvedAt := g.timestamp()
		detail.Invoices = append(detail.Invoices, domain.Invoice{
			InvoiceID:     domain.FlexID(fmt.Sprintf("INV-%d-%d", clientID, i+1)),
			EntityCode:    entity,
			ClientID:      domain.FlexID(fmt.Sprint(clientID)),
			InvoiceStatus: g.pick([]string{"draft", "approved", "paid"}),
			InvoiceTotal:  fmt.Sprintf("%.2f", 50+g.rand.Float64()*950),
			CreatedAt:     g.timestamp(),
			CreatedBy:     detail.Client.SalesPerson,
			ApprovedAt:    &approvedAt,
			Collected:     flag(g.rand.Intn(2) == 0),
		})
	}
	numNotes := g.rand.Intn(3)
	for i := 0; i < numNotes; i++ {
		createdAt := g.timestamp()
		detail.Notes = append(detail.Notes, domain.Note{
			NoteID:    domain.FlexID(fmt.Sprintf("%d", clientID*100+int64(i))),
			ClientID:  domain.FlexID(fmt.Sprint(clientID)),
			Note:      g.pick(g.nameFragments.notes),
			Author:    detail.Client.SalesPerson,
			Important: flag(g.rand.Float64() < 0.2),
			Archived:  flag(false),
			CreatedAt: &createdAt,
		})
	}
	return detail
}

func (g *Generator) card(first, last string) card {
	if len(g.cardPool) > 0 && g.rand.Float64() < g.cfg.SharedCardChance {
		return g.cardPool[g.rand.Intn(len(g.cardPool))]
	}
	c := card{
		cardType: g.pick([]string{"Visa", "MasterCard", "AmericanExpress", "Discover"}),
		lastFour: fmt.Sprintf("%04d", g.rand.Intn(10000)),
		expiry:   fmt.Sprintf("%02d/%02d", 1+g.rand.Intn(12), 26+g.rand.Intn(6)),
		billing: domain.BillingDetails{
			FirstName:     first,
			LastName:      last,
			StreetAddress: fmt.Sprintf("%d %s %s", g.rand.Intn(9999)+1, g.pick(g.nameFragments.streetNames), g.pick(g.nameFragments.streetSuffix)),
			ZipCode:       fmt.Sprintf("%05d", g.rand.Intn(99999)),
		},
	}
	g.cardPool = append(g.cardPool, c)
	return c
}

func (g *Generator) entitiesForCard() []string {
	shuffled := append([]string(nil), g.cfg.Entities...)
	g.rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	if g.rand.Float64() >= g.cfg.MultiEntityChance {
		return shuffled[:1]
	}
	return shuffled[:1+g.rand.Intn(len(shuffled))]
}

func (g *Generator) profileID() string {
	g.nextProfileID++
	return fmt.Sprint(g.nextProfileID)
}

func (g *Generator) timestamp() string {
	return g.now.Add(-time.Duration(g.rand.Intn(365*24)) * time.Hour).Format("2006-01-02 15:04:05")
}

func (g *Generator) pick(options []string) string {
	return options[g.rand.Intn(len(options))]
}

func mappingFor(mappings []domain.EntityMapping, entity string) string {
	for _, m := range mappings {
		if m.EntityCode == entity {
			return m.CustomerProfileID
		}
	}
	return ""
}

type nameFragments struct {
	first         []string
	last          []string
	domains       []string
	streetNames   []string
	streetSuffix  []string
	companyPrefix []string
	companySuffix []string
	salespeople   []string
	notes         []string
}

func defaultNameFragments() nameFragments {
	return nameFragments{
		first:         []string{"Jane", "John", "Alex", "Priya", "Liu", "Maria", "Omar", "Sofia", "Noah", "Emma", "Lucas", "Mia"},
		last:          []string{"Doe", "Smith", "Chen", "Patel", "Garcia", "Khan", "Kim", "Nguyen", "Silva", "Brown", "Lee"},
		domains:       []string{"example.com", "mail.com", "carrier.net", "dialer.io"},
		streetNames:   []string{"Market", "Mission", "Broadway", "Fifth", "Sunset", "Park", "Cedar", "Oak"},
		streetSuffix:  []string{"St", "Ave", "Blvd", "Ln", "Rd", "Way"},
		companyPrefix: []string{"Summit", "Blue Ridge", "Lakeside", "Metro", "Pioneer", "Atlas"},
		companySuffix: []string{"Telecom", "Outreach", "Contracting", "Voice", "Media", "Holdings"},
		salespeople:   []string{"dana", "marcus", "renee", "tobias"},
		notes:         []string{"Prefers invoices on the 1st", "Card declined last cycle", "Requested entity transfer", "VIP account"},
	}
}
