// Package blobstore provides attachment storage for the collaboration channel.
// It defines the Store interface, an in-memory implementation suitable for
// testing and development, and Echo HTTP handlers for multipart upload,
// download, metadata retrieval, and per-case listing.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrAttachmentNotFound  = errors.New("attachment not found")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrExtensionNotAllowed = errors.New("file type not permitted")
	ErrMissingFileName     = errors.New("file name is required")
)

// ---------------------------------------------------------------------------
// Validation constants
// ---------------------------------------------------------------------------

// MaxFileSize is the default attachment size ceiling in bytes (50 MiB).
// Stores built with a configured limit override it.
const MaxFileSize = 50 * 1024 * 1024

// AllowedExtensions is the attachment extension allow-list. Anything outside
// it is rejected before storage.
var AllowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true,
	".pdf":  true,
	".doc":  true, ".docx": true,
	".xls":  true, ".xlsx": true,
	".odt":  true, ".ods": true,
}

// Attachment kinds.
const (
	KindImage    = "image"
	KindPDF      = "pdf"
	KindDocument = "document"
	KindOther    = "other"
)

var documentExtensions = map[string]bool{
	".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".odt": true, ".ods": true,
}

// ValidateFile checks the file name extension against the allow-list and the
// declared size against maxBytes. A non-positive maxBytes falls back to
// MaxFileSize. It is the storage-side gate; clients run the same checks
// before uploading.
func ValidateFile(fileName string, sizeBytes, maxBytes int64) error {
	if fileName == "" {
		return ErrMissingFileName
	}
	if maxBytes <= 0 {
		maxBytes = MaxFileSize
	}
	if sizeBytes > maxBytes {
		return ErrFileTooLarge
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !AllowedExtensions[ext] {
		return ErrExtensionNotAllowed
	}
	return nil
}

// DetectKind classifies an attachment from its sniffed content type, falling
// back to the file extension. The client-asserted content type is never used.
func DetectKind(sniffedType, fileName string) string {
	switch {
	case strings.HasPrefix(sniffedType, "image/"):
		return KindImage
	case sniffedType == "application/pdf":
		return KindPDF
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	switch {
	case ext == ".pdf":
		return KindPDF
	case documentExtensions[ext]:
		return KindDocument
	case AllowedExtensions[ext]: // remaining allowed extensions are images
		return KindImage
	}
	return KindOther
}

// ---------------------------------------------------------------------------
// Domain types
// ---------------------------------------------------------------------------

// Attachment describes a stored attachment.
type Attachment struct {
	ID             string    `json:"id"`
	OriginalName   string    `json:"original_name"`
	StorageLocator string    `json:"storage_locator"`
	ContentType    string    `json:"content_type"`
	Kind           string    `json:"kind"`
	SizeBytes      int64     `json:"size_bytes"`
	Hash           string    `json:"hash"`
	CaseID         int64     `json:"case_id"`
	UploadedBy     int64     `json:"uploaded_by"`
	UploadedAt     time.Time `json:"uploaded_at"`
}

// ---------------------------------------------------------------------------
// Store interface
// ---------------------------------------------------------------------------

// Store defines the contract for attachment storage backends.
type Store interface {
	Upload(ctx context.Context, meta Attachment, content io.Reader) (*Attachment, error)
	Download(ctx context.Context, id string) (io.ReadCloser, *Attachment, error)
	GetMetadata(ctx context.Context, id string) (*Attachment, error)
	ListByCase(ctx context.Context, caseID int64, limit, offset int) ([]*Attachment, int, error)
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedAttachment struct {
	metadata Attachment
	content  []byte
}

// InMemoryStore is a thread-safe, in-memory Store for testing/dev.
type InMemoryStore struct {
	maxBytes    int64
	mu          sync.RWMutex
	attachments map[string]*storedAttachment
}

// NewInMemoryStore returns an InMemoryStore with the default size ceiling.
func NewInMemoryStore() *InMemoryStore {
	return NewInMemoryStoreWithLimit(MaxFileSize)
}

// NewInMemoryStoreWithLimit returns an InMemoryStore that enforces the given
// size ceiling in bytes. A non-positive limit falls back to MaxFileSize.
func NewInMemoryStoreWithLimit(maxBytes int64) *InMemoryStore {
	if maxBytes <= 0 {
		maxBytes = MaxFileSize
	}
	return &InMemoryStore{
		maxBytes:    maxBytes,
		attachments: make(map[string]*storedAttachment),
	}
}

// Upload validates inputs, reads the content, derives the attachment kind from
// the stored bytes, computes a SHA-256 hash, and stores the attachment.
func (s *InMemoryStore) Upload(_ context.Context, meta Attachment, content io.Reader) (*Attachment, error) {
	if meta.OriginalName == "" {
		return nil, ErrMissingFileName
	}

	// Read content into memory so we can measure size, sniff the type, and
	// compute the hash.
	data, err := io.ReadAll(io.LimitReader(content, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	if err := ValidateFile(meta.OriginalName, int64(len(data)), s.maxBytes); err != nil {
		return nil, err
	}

	// The kind classification is security-relevant, so it comes from the
	// sniffed bytes, not the client-asserted content type.
	sniffed := http.DetectContentType(data)
	h := sha256.Sum256(data)

	meta.ID = uuid.New().String()
	meta.ContentType = sniffed
	meta.Kind = DetectKind(sniffed, meta.OriginalName)
	meta.SizeBytes = int64(len(data))
	meta.Hash = fmt.Sprintf("%x", h)
	meta.UploadedAt = time.Now().UTC()
	meta.StorageLocator = "/api/attachments/" + meta.ID + "/download"

	s.mu.Lock()
	s.attachments[meta.ID] = &storedAttachment{
		metadata: meta,
		content:  data,
	}
	s.mu.Unlock()

	out := meta // copy
	return &out, nil
}

// Download returns an io.ReadCloser over the attachment content and its metadata.
func (s *InMemoryStore) Download(_ context.Context, id string) (io.ReadCloser, *Attachment, error) {
	s.mu.RLock()
	att, ok := s.attachments[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrAttachmentNotFound
	}

	meta := att.metadata // copy
	return io.NopCloser(bytes.NewReader(att.content)), &meta, nil
}

// GetMetadata returns attachment metadata without content.
func (s *InMemoryStore) GetMetadata(_ context.Context, id string) (*Attachment, error) {
	s.mu.RLock()
	att, ok := s.attachments[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrAttachmentNotFound
	}

	meta := att.metadata // copy
	return &meta, nil
}

// ListByCase returns attachments for a given case in upload order. It returns
// the matching page and the total count.
func (s *InMemoryStore) ListByCase(_ context.Context, caseID int64, limit, offset int) ([]*Attachment, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Attachment
	for _, a := range s.attachments {
		if a.metadata.CaseID != caseID {
			continue
		}
		m := a.metadata // copy
		matched = append(matched, &m)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UploadedAt.Before(matched[j].UploadedAt)
	})

	total := len(matched)
	if limit <= 0 {
		limit = 20
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	return matched[offset:end], total, nil
}

// ---------------------------------------------------------------------------
// HTTP handler
// ---------------------------------------------------------------------------

// listResponse is the JSON envelope returned by the list endpoint.
type listResponse struct {
	Items []*Attachment `json:"items"`
	Total int           `json:"total"`
}

// Handler provides Echo HTTP handlers for attachment operations.
type Handler struct {
	store Store
}

// NewHandler creates a new Handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts attachment routes on the supplied Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/attachments", h.handleUpload)
	g.GET("/attachments/:id/download", h.handleDownload)
	g.GET("/attachments/:id/metadata", h.handleGetMetadata)
	g.GET("/attachments/case/:caseId", h.handleListByCase)
}

func (h *Handler) handleUpload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "file is required"})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to open uploaded file"})
	}
	defer src.Close()

	caseID, _ := strconv.ParseInt(c.FormValue("case_id"), 10, 64)
	uploadedBy, _ := strconv.ParseInt(c.FormValue("uploaded_by"), 10, 64)

	meta := Attachment{
		OriginalName: file.Filename,
		CaseID:       caseID,
		UploadedBy:   uploadedBy,
	}

	result, err := h.store.Upload(c.Request().Context(), meta, src)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrMissingFileName):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrExtensionNotAllowed):
			return c.JSON(http.StatusUnsupportedMediaType, map[string]string{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}

	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) handleDownload(c echo.Context) error {
	id := c.Param("id")

	rc, meta, err := h.store.Download(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrAttachmentNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, meta.OriginalName))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

func (h *Handler) handleGetMetadata(c echo.Context) error {
	id := c.Param("id")

	meta, err := h.store.GetMetadata(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrAttachmentNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, meta)
}

func (h *Handler) handleListByCase(c echo.Context) error {
	caseID, err := strconv.ParseInt(c.Param("caseId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid case id"})
	}
	limit := intParam(c, "limit", 20)
	offset := intParam(c, "offset", 0)

	items, total, err := h.store.ListByCase(c.Request().Context(), caseID, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if items == nil {
		items = []*Attachment{}
	}

	return c.JSON(http.StatusOK, listResponse{Items: items, Total: total})
}

func intParam(c echo.Context, name string, defaultVal int) int {
	v := c.QueryParam(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
