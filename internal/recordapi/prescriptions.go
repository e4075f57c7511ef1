package recordapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// The upstream service also serves prescription and pharmacy sale
// endpoints. The portal does not model prescription payloads; it relays
// them untouched and only unwraps the {"data": ...} envelope the
// prescription endpoints reply with.

// PharmacyItem is one sellable stock item.
type PharmacyItem struct {
	ID              string `json:"_id"`
	ItemName        string `json:"itemName"`
	QuantityInStock int    `json:"quantityInStock"`
}

// SaleRequest records one pharmacy sale against a stock item.
type SaleRequest struct {
	PharmacyItem string `json:"pharmacyItem"`
	QuantitySold int    `json:"quantitySold"`
}

// doData relays a request and unwraps the data envelope when present.
// Replies without the envelope are returned as-is.
func (c *Client) doData(ctx context.Context, method, path string, in json.RawMessage) (json.RawMessage, error) {
	var body any
	if len(in) > 0 {
		body = in
	}

	var raw json.RawMessage
	if err := c.doJSON(ctx, method, path, body, &raw); err != nil {
		return nil, err
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(raw, &env) == nil && env.Data != nil {
		return env.Data, nil
	}
	return raw, nil
}

func (c *Client) ListPrescriptions(ctx context.Context) (json.RawMessage, error) {
	return c.doData(ctx, http.MethodGet, "/prescriptions", nil)
}

func (c *Client) GetPrescription(ctx context.Context, id string) (json.RawMessage, error) {
	return c.doData(ctx, http.MethodGet, "/prescriptions/"+id, nil)
}

func (c *Client) PatientPrescriptions(ctx context.Context, patientID string) (json.RawMessage, error) {
	return c.doData(ctx, http.MethodGet, "/prescriptions/patient/"+patientID, nil)
}

func (c *Client) CreatePrescription(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.doData(ctx, http.MethodPost, "/prescriptions", body)
}

func (c *Client) UpdatePrescription(ctx context.Context, id string, body json.RawMessage) (json.RawMessage, error) {
	return c.doData(ctx, http.MethodPut, "/prescriptions/"+id, body)
}

func (c *Client) DeletePrescription(ctx context.Context, id string) (json.RawMessage, error) {
	return c.doData(ctx, http.MethodDelete, "/prescriptions/"+id, nil)
}

// ListPharmacyItems fetches the sellable stock for the sale form.
func (c *Client) ListPharmacyItems(ctx context.Context) ([]PharmacyItem, error) {
	raw, err := c.doData(ctx, http.MethodGet, "/pharmacy-items", nil)
	if err != nil {
		return nil, err
	}
	items := []PharmacyItem{}
	if len(raw) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode pharmacy items: %w", err)
	}
	return items, nil
}

// RecordSale posts one sale. The reply carries the updated sale details
// and is relayed untouched.
func (c *Client) RecordSale(ctx context.Context, req SaleRequest) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/sales", req, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
