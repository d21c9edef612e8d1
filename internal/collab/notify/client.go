package notify

import (
	"context"
	"strconv"

	"github.com/edcollab/edcollab/internal/collab/restclient"
	"github.com/edcollab/edcollab/internal/domain/notification"
)

// Client talks to the notification endpoints for one recipient.
type Client struct {
	rc          *restclient.Client
	recipientID int64
}

func NewClient(rc *restclient.Client, recipientID int64) *Client {
	return &Client{rc: rc, recipientID: recipientID}
}

func (c *Client) recipientQuery() string {
	return "?recipient_id=" + strconv.FormatInt(c.recipientID, 10)
}

// Unread returns the recipient's unread notifications, newest first.
func (c *Client) Unread(ctx context.Context) ([]notification.Notification, error) {
	var out []notification.Notification
	if err := c.rc.GetJSON(ctx, "/api/notifications/unread"+c.recipientQuery(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the unread totals bucketed by priority.
func (c *Client) Count(ctx context.Context) (notification.UnreadCount, error) {
	var out notification.UnreadCount
	if err := c.rc.GetJSON(ctx, "/api/notifications/count"+c.recipientQuery(), &out); err != nil {
		return notification.UnreadCount{}, err
	}
	return out, nil
}

// Recent returns one page of the recipient's feed, read or not.
func (c *Client) Recent(ctx context.Context, limit, offset int) ([]notification.Notification, int, error) {
	var resp struct {
		Data  []notification.Notification `json:"data"`
		Total int                         `json:"total"`
	}
	path := "/api/notifications/recent" + c.recipientQuery() +
		"&limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
	if err := c.rc.GetJSON(ctx, path, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Data, resp.Total, nil
}

type markRequest struct {
	RecipientID int64 `json:"recipient_id"`
}

// MarkRead marks one notification read on the server. Marking an already-read
// notification succeeds.
func (c *Client) MarkRead(ctx context.Context, id int64) error {
	path := "/api/notifications/" + strconv.FormatInt(id, 10) + "/read"
	return c.rc.PostJSON(ctx, path, markRequest{RecipientID: c.recipientID}, nil)
}

// MarkAllRead marks the recipient's whole feed read on the server.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.rc.PostJSON(ctx, "/api/notifications/read-all", markRequest{RecipientID: c.recipientID}, nil)
}
