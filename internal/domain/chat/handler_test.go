package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/edcollab/edcollab/internal/platform/blobstore"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	e := echo.New()
	svc := NewService(NewMemRepo(), blobstore.NewInMemoryStore(), nil)
	NewHandler(svc).RegisterRoutes(e.Group("/api"))
	return e
}

func postJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sendTestMessage(t *testing.T, e *echo.Echo, caseID int64, body string) Message {
	t.Helper()
	rec := postJSON(e, "/api/messages",
		`{"case_id": `+jsonInt(caseID)+`, "author_id": 7, "author_name": "Dr. Silva", "author_role": "physician", "body": "`+body+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var m Message
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return m
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestSendMessage_Created(t *testing.T) {
	e := newTestServer(t)
	m := sendTestMessage(t, e, 42, "patient stable")

	if m.ID == 0 {
		t.Error("expected assigned id")
	}
	if m.CaseID != 42 || m.Body != "patient stable" {
		t.Errorf("unexpected message %+v", m)
	}
	if m.Author.Name != "Dr. Silva" {
		t.Errorf("unexpected author %+v", m.Author)
	}
}

func TestSendMessage_RejectsEmptyBody(t *testing.T) {
	e := newTestServer(t)
	rec := postJSON(e, "/api/messages",
		`{"case_id": 42, "author_id": 7, "author_name": "Dr. Silva", "author_role": "physician", "body": "   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected error field in response")
	}
}

func TestSendMessage_RejectsMissingCase(t *testing.T) {
	e := newTestServer(t)
	rec := postJSON(e, "/api/messages",
		`{"author_id": 7, "author_name": "Dr. Silva", "author_role": "physician", "body": "hello"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSendMessage_DanglingAttachmentUnprocessable(t *testing.T) {
	e := newTestServer(t)
	rec := postJSON(e, "/api/messages",
		`{"case_id": 42, "author_id": 7, "author_name": "Dr. Silva", "author_role": "physician", "attachment_id": "missing"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListMessages_ReturnsCaseHistory(t *testing.T) {
	e := newTestServer(t)
	sendTestMessage(t, e, 42, "first")
	sendTestMessage(t, e, 42, "second")
	sendTestMessage(t, e, 99, "other case")

	req := httptest.NewRequest(http.MethodGet, "/api/messages?case_id=42", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var msgs []Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Body != "first" || msgs[1].Body != "second" {
		t.Error("expected messages in send order")
	}
}

func TestListMessages_RequiresCaseParam(t *testing.T) {
	e := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPoll_EnvelopeAlwaysHasMessagesArray(t *testing.T) {
	e := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/poll?case_id=42&since_id=0", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Messages == nil {
		t.Error("expected messages array, not null")
	}
	if !strings.Contains(rec.Body.String(), `"messages":[]`) {
		t.Errorf("expected empty array in envelope, got %s", rec.Body.String())
	}
}

func TestPoll_ReturnsNewerThanCursor(t *testing.T) {
	e := newTestServer(t)
	first := sendTestMessage(t, e, 42, "one")
	sendTestMessage(t, e, 42, "two")
	sendTestMessage(t, e, 42, "three")

	req := httptest.NewRequest(http.MethodGet, "/api/poll?case_id=42&since_id="+jsonInt(first.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("expected 2 newer messages, got %d", len(resp.Messages))
	}
	if resp.Messages[0].Body != "two" || resp.Messages[1].Body != "three" {
		t.Error("expected newer messages in ascending order")
	}
}

func TestMarkRead_ReturnsMarkedCount(t *testing.T) {
	e := newTestServer(t)
	sendTestMessage(t, e, 42, "one")
	sendTestMessage(t, e, 42, "two")

	rec := postJSON(e, "/api/messages/read", `{"case_id": 42, "user_id": 9}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Marked int `json:"marked"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Marked != 2 {
		t.Errorf("expected 2 marked, got %d", resp.Marked)
	}

	rec = postJSON(e, "/api/messages/read", `{"case_id": 42, "user_id": 9}`)
	var again struct {
		Marked int `json:"marked"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &again); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if again.Marked != 0 {
		t.Errorf("expected 0 on repeat, got %d", again.Marked)
	}
}
