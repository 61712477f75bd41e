package domain

// BillingDetails is the cardholder identity attached to a payment profile.
type BillingDetails struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	StreetAddress string `json:"streetAddress"`
	ZipCode       string `json:"zipCode"`
}

// PaymentProfile links one physical card to one entity's gateway account.
// PaymentProfileID is unique per (client, entity) association, not per card.
type PaymentProfile struct {
	PaymentProfileID  string          `json:"paymentProfileID"`
	CustomerProfileID string          `json:"customerProfileID,omitempty"`
	ClientID          FlexID          `json:"clientID,omitempty"`
	Entity            string          `json:"entity"`
	CardType          string          `json:"cardType"`
	LastFour          string          `json:"lastFour"`
	BillingDetails    *BillingDetails `json:"billingDetails"`
	IsDefault         LooseBool       `json:"isDefault"`
	Status            string          `json:"status"`
	ExpirationDate    string          `json:"expirationDate,omitempty"`
	Gateway           string          `json:"gateway"`
	Note              string          `json:"note"`
	CreatedAt         string          `json:"createdAt"`
	CreatedBy         string          `json:"createdBy,omitempty"`
}

// CardDetails carries raw card data for profile creation. It is forwarded to
// the gateway and never stored.
type CardDetails struct {
	CardNumber     string `json:"cardNumber" validate:"required,numeric,min=12,max=19"`
	ExpirationDate string `json:"expirationDate" validate:"required"`
	CardCode       string `json:"cardCode" validate:"required,numeric,min=3,max=4"`
}

// NewPaymentProfile is the payload for creating a card on one or all entities.
type NewPaymentProfile struct {
	ClientID       int64          `json:"clientID" validate:"required,gt=0"`
	CardDetails    CardDetails    `json:"cardDetails"`
	BillingDetails BillingDetails `json:"billingDetails"`
	Entity         string         `json:"entity,omitempty"`
	Note           string         `json:"note,omitempty" validate:"max=500"`
}

// SharedCard describes a card fingerprint held by more than one client.
type SharedCard struct {
	FingerprintHash string
	LastFour        string
	ClientIDs       []int64
}
