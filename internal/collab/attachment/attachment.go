// Package attachment is the client side of the attachment store: a cheap
// pre-flight validation gate plus the multipart upload. The server remains
// authoritative for the stored kind and content type.
package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/edcollab/edcollab/internal/collab/restclient"
	"github.com/edcollab/edcollab/internal/platform/blobstore"
)

// Client uploads files and fetches attachment metadata.
type Client struct {
	rc *restclient.Client
}

func NewClient(rc *restclient.Client) *Client {
	return &Client{rc: rc}
}

// Validate checks size and extension before any network call. The returned
// ValidationError reasons are user-displayable.
func Validate(fileName string, sizeBytes int64) error {
	err := blobstore.ValidateFile(fileName, sizeBytes, blobstore.MaxFileSize)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return &restclient.ValidationError{Reason: "file exceeds 50MB"}
	case errors.Is(err, blobstore.ErrExtensionNotAllowed):
		return &restclient.ValidationError{Reason: "file type not permitted"}
	case errors.Is(err, blobstore.ErrMissingFileName):
		return &restclient.ValidationError{Reason: "file name is required"}
	default:
		return &restclient.ValidationError{Reason: err.Error()}
	}
}

// Upload validates and sends the file in one multipart request. An upload
// failure must block message send, so errors carry the server's response body.
func (c *Client) Upload(ctx context.Context, caseID, uploadedBy int64, fileName string, sizeBytes int64, content io.Reader) (*blobstore.Attachment, error) {
	if err := Validate(fileName, sizeBytes); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("read file content: %w", err)
	}
	w.WriteField("case_id", strconv.FormatInt(caseID, 10))
	w.WriteField("uploaded_by", strconv.FormatInt(uploadedBy, 10))
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart form: %w", err)
	}

	var att blobstore.Attachment
	if err := c.rc.PostMultipart(ctx, "/api/attachments", w.FormDataContentType(), &buf, &att); err != nil {
		return nil, err
	}
	return &att, nil
}

// Metadata fetches the stored metadata for an attachment id.
func (c *Client) Metadata(ctx context.Context, id string) (*blobstore.Attachment, error) {
	var att blobstore.Attachment
	if err := c.rc.GetJSON(ctx, "/api/attachments/"+id+"/metadata", &att); err != nil {
		return nil, err
	}
	return &att, nil
}

// Download streams the attachment content. The caller must close the reader.
func (c *Client) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	return c.rc.Download(ctx, "/api/attachments/"+id+"/download")
}
