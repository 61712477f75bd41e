package domain

// Client is the account record staff bill against.
type Client struct {
	ClientID             int64  `json:"clientID"`
	PrimaryContact       string `json:"primaryContact"`
	CompanyName          string `json:"companyName"`
	SalesPerson          string `json:"salesPerson"`
	Email                string `json:"email"`
	ClientStatus         string `json:"clientStatus"`
	WCCustomerProfileID  string `json:"wcCustomerProfileID,omitempty"`
	CGCustomerProfileID  string `json:"cgCustomerProfileID,omitempty"`
	VBCCustomerProfileID string `json:"vbcCustomerProfileID,omitempty"`
}

// EntityMapping records how a client is registered with one entity.
type EntityMapping struct {
	EntityCode          string `json:"entityCode"`
	EntityName          string `json:"entityName"`
	CustomerProfileID   string `json:"customerProfileID"`
	QuickBooksID        string `json:"quickBooksID"`
	Status              string `json:"status"`
	QuickbooksConnected bool   `json:"quickbooksConnected"`
}

// ClientDetail is the full client view returned by the upstream API.
type ClientDetail struct {
	Client          Client               `json:"client"`
	PaymentProfiles []PaymentProfile     `json:"paymentProfiles"`
	Transactions    []Transaction        `json:"transactions"`
	Invoices        []Invoice            `json:"invoices"`
	Notes           []Note               `json:"notes"`
	Entities        []string             `json:"entities"`
	EntityMappings  []EntityMapping      `json:"entityMappings,omitempty"`
	Quickbooks      map[string]LooseBool `json:"quickbooks,omitempty"`
}

// EntityCodes returns the entities the client is registered with, preferring
// the mapping list and falling back to the legacy entity code list.
func (d ClientDetail) EntityCodes() []string {
	if len(d.EntityMappings) == 0 {
		return append([]string(nil), d.Entities...)
	}
	codes := make([]string, 0, len(d.EntityMappings))
	seen := make(map[string]struct{}, len(d.EntityMappings))
	for _, m := range d.EntityMappings {
		if _, ok := seen[m.EntityCode]; ok || m.EntityCode == "" {
			continue
		}
		seen[m.EntityCode] = struct{}{}
		codes = append(codes, m.EntityCode)
	}
	return codes
}

// ClientPage is one page of the client listing.
type ClientPage struct {
	Clients []Client
	Total   int
	Limit   int
	Offset  int
}
