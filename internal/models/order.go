package models

// OrderRequest covers /select, /apply and draft bodies: a minimal client
// context plus an order message forwarded to the network.
type OrderRequest struct {
	Context MinimalContext `json:"context"`
	Message OrderMessage   `json:"message"`
}

type OrderMessage struct {
	Order Order `json:"order"`
}

type Order struct {
	Provider     *OrderProvider `json:"provider,omitempty"`
	Items        []OrderItem    `json:"items"`
	Fulfillments []Fulfillment  `json:"fulfillments,omitempty"`
}

type OrderProvider struct {
	ID string `json:"id"`
}

type OrderItem struct {
	ID             string   `json:"id"`
	FulfillmentIDs []string `json:"fulfillment_ids,omitempty"`
}

type Fulfillment struct {
	ID       string    `json:"id,omitempty"`
	Customer *Customer `json:"customer,omitempty"`
}

type Customer struct {
	Person Person `json:"person"`
}

type Person struct {
	ID string `json:"id"`
}

// UserID resolves the applicant: the first fulfillment's customer person,
// falling back to the fulfillment id.
func (o Order) UserID() string {
	if len(o.Fulfillments) == 0 {
		return ""
	}
	f := o.Fulfillments[0]
	if f.Customer != nil && f.Customer.Person.ID != "" {
		return f.Customer.Person.ID
	}
	return f.ID
}

// JobID is the first ordered item's id.
func (o Order) JobID() string {
	if len(o.Items) == 0 {
		return ""
	}
	return o.Items[0].ID
}

// StatusRequest is the body of POST /api/v1/status.
type StatusRequest struct {
	Context MinimalContext `json:"context"`
	Message StatusMessage  `json:"message"`
}

type StatusMessage struct {
	Order StatusOrder `json:"order"`
}

type StatusOrder struct {
	ID string `json:"id"`
}
