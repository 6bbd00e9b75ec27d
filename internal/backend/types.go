package backend

import (
	"encoding/json"
	"fmt"
)

// Credentials identify an operator at a shop.
type Credentials struct {
	Shop     string `json:"shop_nickname"`
	Account  string `json:"account_name"`
	Password string `json:"password"` //nolint:gosec // login payload, never logged
}

// Item is an inventory entry. Price is in minor units.
type Item struct {
	ID                     string  `json:"iid"`
	Name                   string  `json:"name"`
	Description            string  `json:"description"`
	Price                  int64   `json:"price"`
	PhotoURL               string  `json:"photo_url,omitempty"`
	PointAllocationPercent float64 `json:"percent_point_allocation"`
}

// Profile is a customer account as known to the backend.
type Profile struct {
	ID        string `json:"uid"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"user_name,omitempty"`
}

// Recognition is the backend's answer to an uploaded face.
// AssumedNew is the backend's own hint; callers classify from the profile fields.
type Recognition struct {
	Profile    Profile
	AssumedNew bool
}

// UnmarshalJSON accepts both shapes the recognition endpoint returns:
// {"assummed_new": true, "uid": ...} for an unknown face, {"user": {...}} otherwise.
func (r *Recognition) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal recognition: %w", err)
	}
	if flag, ok := raw["assummed_new"]; ok {
		_ = json.Unmarshal(flag, &r.AssumedNew)
	}
	if user, ok := raw["user"]; ok && !r.AssumedNew && string(user) != "null" {
		if err := json.Unmarshal(user, &r.Profile); err != nil {
			return fmt.Errorf("unmarshal recognised user: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(data, &r.Profile); err != nil {
		return fmt.Errorf("unmarshal recognised profile: %w", err)
	}
	return nil
}

// LineItem is one (item, quantity) pair of a transaction. It travels as a
// two-element JSON array.
type LineItem struct {
	ItemID   string
	Quantity int
}

func (l LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{l.ItemID, l.Quantity})
}

func (l *LineItem) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("unmarshal line item: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("line item must have 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &l.ItemID); err != nil {
		return fmt.Errorf("unmarshal line item id: %w", err)
	}
	if err := json.Unmarshal(pair[1], &l.Quantity); err != nil {
		return fmt.Errorf("unmarshal line item quantity: %w", err)
	}
	return nil
}

// Transaction is a purchase committed for one customer.
type Transaction struct {
	UserID    string     `json:"user_id"`
	LineItems []LineItem `json:"item_id_quantity"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type itemsResponse struct {
	Items []Item `json:"items"`
}

type itemsDetailsRequest struct {
	ItemIDs []string `json:"item_id_list"`
}

type mergeRequest struct {
	OldID string `json:"old_uid"`
	NewID string `json:"new_uid"`
}

type confusionReport struct {
	RecognisedID string `json:"recognised_uid"`
	FoundID      string `json:"found_uid"`
	Timestamp    int64  `json:"timestamp"`
}

// ack is the body of endpoints whose content is not relied upon.
type ack struct{}
