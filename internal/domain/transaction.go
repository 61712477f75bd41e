package domain

// Transaction is a gateway charge attempt as reported upstream. The V1 API
// only fills the first four fields.
type Transaction struct {
	TransactionID  string `json:"transactionID,omitempty"`
	Amount         string `json:"amount"`
	Status         string `json:"status,omitempty"`
	CreatedAt      string `json:"createdAt"`
	ClientID       FlexID `json:"clientID,omitempty"`
	Result         string `json:"result,omitempty"`
	ResultText     string `json:"resultText,omitempty"`
	Gateway        string `json:"gateway,omitempty"`
	Entity         string `json:"entity,omitempty"`
	InvoiceID      FlexID `json:"invoiceID,omitempty"`
	AuthCode       string `json:"authCode,omitempty"`
	NetworkTransID string `json:"networkTransID,omitempty"`
	AccountNumber  string `json:"accountNumber,omitempty"`
	AccountType    string `json:"accountType,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Invoice is an entity-issued invoice for a client.
type Invoice struct {
	InvoiceID        FlexID    `json:"invoiceID"`
	EntityCode       string    `json:"entityCode"`
	ClientID         FlexID    `json:"clientID"`
	PaymentProfileID string    `json:"paymentProfileID"`
	InvoiceStatus    string    `json:"invoiceStatus"`
	InvoiceTotal     string    `json:"invoiceTotal"`
	CreatedAt        string    `json:"createdAt"`
	CreatedBy        string    `json:"createdBy"`
	ApprovedBy       string    `json:"approvedBy"`
	ApprovedAt       *string   `json:"approvedAt"`
	Collected        LooseBool `json:"collected"`
	TransactionID    string    `json:"transactionID"`
	SyncToken        string    `json:"syncToken,omitempty"`
}

// Note is a staff note on a client. Important and Archived arrive in either
// boolean or string form.
type Note struct {
	NoteID    FlexID    `json:"noteID"`
	ClientID  FlexID    `json:"clientID"`
	Note      string    `json:"note"`
	Author    string    `json:"author"`
	Important LooseBool `json:"important"`
	Archived  LooseBool `json:"archived"`
	CreatedAt *string   `json:"createdAt"`
}

// NewNote is the payload for adding a note.
type NewNote struct {
	ClientID  int64  `json:"clientID" validate:"required,gt=0"`
	Note      string `json:"note" validate:"required,max=2000"`
	Author    string `json:"author" validate:"required"`
	Important bool   `json:"important"`
}

// Entity is a business unit that invoices and charges through the system.
type Entity struct {
	EntityCode          string `json:"entityCode"`
	EntityName          string `json:"entityName"`
	KeyStatus           string `json:"keyStatus,omitempty"`
	GatewayID           string `json:"gatewayID,omitempty"`
	IsActive            bool   `json:"isActive,omitempty"`
	QuickbooksConnected bool   `json:"quickbooksConnected,omitempty"`
}
