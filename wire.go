package ucp

// Discovery is the document served at DiscoveryPath.
type Discovery struct {
	Name         string            `json:"name"`
	Capabilities []string          `json:"capabilities"`
	Endpoints    map[string]string `json:"endpoints"`
	Receipts     *ReceiptKey       `json:"receipts,omitempty"`
}

// ReceiptKey tells agents how to check the receipts a store hands out.
type ReceiptKey struct {
	Algorithm string `json:"alg"`
	PublicKey string `json:"public_key"`
}

// OrderRequest is the body of both SessionsPath and CompletePath requests.
// OrderTotal is accepted under both its snake and camel case names.
type OrderRequest struct {
	Challenge       string   `json:"challenge,omitempty"`
	OrderTotal      *float64 `json:"order_total,omitempty"`
	OrderTotalCamel *float64 `json:"orderTotal,omitempty"`
}

// Total returns the order total, preferring order_total.
func (o OrderRequest) Total() *float64 {
	if o.OrderTotal != nil {
		return o.OrderTotal
	}
	return o.OrderTotalCamel
}

// PaymentConfirmation is the 201 body of a successful completion.
type PaymentConfirmation struct {
	Message string `json:"message"`
	Receipt string `json:"receipt,omitempty"`
}

// ErrorResponse is the body of every rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// PublicKeyResponse is the body served at PublicKeyPath.
type PublicKeyResponse struct {
	PublicKey string `json:"public_key"`
}
