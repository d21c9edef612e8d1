// Package messagelog is the client side of the per-case message log: full
// history fetch, message send, and the incremental poll. Cursor ownership
// stays with the sync engine; PollSince is a passive read.
package messagelog

import (
	"context"
	"strconv"
	"strings"

	"github.com/edcollab/edcollab/internal/collab/restclient"
	"github.com/edcollab/edcollab/internal/domain/chat"
)

type Client struct {
	rc *restclient.Client
}

func NewClient(rc *restclient.Client) *Client {
	return &Client{rc: rc}
}

// FetchHistory returns the full ordered log for a case, id ascending.
func (c *Client) FetchHistory(ctx context.Context, caseID int64) ([]chat.Message, error) {
	var msgs []chat.Message
	err := c.rc.GetJSON(ctx, "/api/messages?case_id="+strconv.FormatInt(caseID, 10), &msgs)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

type sendRequest struct {
	CaseID       int64  `json:"case_id"`
	AuthorID     int64  `json:"author_id"`
	AuthorName   string `json:"author_name"`
	AuthorRole   string `json:"author_role"`
	Body         string `json:"body"`
	AttachmentID string `json:"attachment_id,omitempty"`
}

// Send posts a new message. At least one of body (after trimming) or
// attachmentID is required; an empty send is rejected without a network
// round trip.
func (c *Client) Send(ctx context.Context, caseID int64, author chat.Author, body, attachmentID string) (*chat.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" && attachmentID == "" {
		return nil, &restclient.ValidationError{Reason: "message is empty"}
	}

	req := sendRequest{
		CaseID:       caseID,
		AuthorID:     author.ID,
		AuthorName:   author.Name,
		AuthorRole:   author.Role,
		Body:         body,
		AttachmentID: attachmentID,
	}
	var msg chat.Message
	if err := c.rc.PostJSON(ctx, "/api/messages", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

type pollResponse struct {
	Messages []chat.Message `json:"messages"`
}

// PollSince returns messages with id greater than cursor, id ascending. An
// empty batch is normal. The cursor argument is read, never advanced here.
func (c *Client) PollSince(ctx context.Context, caseID, cursor int64) ([]chat.Message, error) {
	var resp pollResponse
	err := c.rc.GetJSON(ctx,
		"/api/poll?case_id="+strconv.FormatInt(caseID, 10)+
			"&since_id="+strconv.FormatInt(cursor, 10), &resp)
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// MarkRead asks the server to record that userID has seen the case history.
func (c *Client) MarkRead(ctx context.Context, caseID, userID int64) error {
	req := map[string]int64{"case_id": caseID, "user_id": userID}
	return c.rc.PostJSON(ctx, "/api/messages/read", req, nil)
}
