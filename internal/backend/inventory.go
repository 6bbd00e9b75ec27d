package backend

import (
	"context"
	"net/http"
)

// Inventory lists the shop's items.
func (c *Client) Inventory(ctx context.Context) ([]Item, error) {
	resp, err := doJSON[itemsResponse](ctx, c, "list inventory", http.MethodGet, "cashier/inventory", nil, true)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ItemsDetails fetches current details for exactly the given item IDs.
func (c *Client) ItemsDetails(ctx context.Context, itemIDs []string) ([]Item, error) {
	resp, err := doJSON[itemsResponse](ctx, c, "fetch item details", http.MethodPost, "cashier/get_items_details",
		itemsDetailsRequest{ItemIDs: itemIDs}, true)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// RecordTransaction submits a purchase.
func (c *Client) RecordTransaction(ctx context.Context, tx Transaction) error {
	_, err := doJSON[ack](ctx, c, "submit transaction", http.MethodPost, "cashier/record_transaction", tx, true)
	return err
}
