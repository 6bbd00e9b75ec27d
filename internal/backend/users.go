package backend

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/kozaktomas/cashier/internal/apperr"
)

// UserByUsername looks up a customer profile by username.
func (c *Client) UserByUsername(ctx context.Context, username string) (*Profile, error) {
	const op = "search profile"
	// PathEscape keeps dot segments, which JoinPath would then clean away.
	if username == "." || username == ".." {
		return nil, apperr.Validation(op, "")
	}
	return doJSON[Profile](ctx, c, op, http.MethodGet,
		"cashier/get_user_by_user_name/"+url.PathEscape(username), nil, true)
}

// MergeUsers aliases oldID (assigned by recognition) onto the existing account newID.
func (c *Client) MergeUsers(ctx context.Context, oldID, newID string) error {
	_, err := doJSON[ack](ctx, c, "merge identities", http.MethodPost, "cashier/merge_users",
		mergeRequest{OldID: oldID, NewID: newID}, true)
	return err
}

// ReportConfusedUsers tells the backend recognition matched recognisedID
// when the customer was really foundID.
func (c *Client) ReportConfusedUsers(ctx context.Context, recognisedID, foundID string, at time.Time) error {
	_, err := doJSON[ack](ctx, c, "report confusion", http.MethodPost, "cashier/confused_users",
		confusionReport{RecognisedID: recognisedID, FoundID: foundID, Timestamp: at.UnixMilli()}, true)
	return err
}
