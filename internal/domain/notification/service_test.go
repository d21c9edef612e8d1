package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edcollab/edcollab/pkg/pagination"
)

func publishTest(t *testing.T, svc *Service, recipientID int64, kind Kind) *Notification {
	t.Helper()
	n := &Notification{RecipientID: recipientID, CaseID: 42, Kind: kind, Title: "test"}
	if err := svc.Publish(context.Background(), n); err != nil {
		t.Fatalf("publish %s: %v", kind, err)
	}
	return n
}

func TestPublish_AppliesDefaultPriority(t *testing.T) {
	svc := NewService(NewMemRepo())

	tests := []struct {
		kind Kind
		want Priority
	}{
		{KindCriticalVitals, PriorityUrgent},
		{KindDeath, PriorityUrgent},
		{KindICUAdmission, PriorityUrgent},
		{KindMedicationRequest, PriorityHigh},
		{KindChatMessage, PriorityMedium},
		{KindWaitTime, PriorityLow},
		{KindSystem, PriorityLow},
	}
	for _, tt := range tests {
		n := publishTest(t, svc, 1, tt.kind)
		if n.Priority != tt.want {
			t.Errorf("%s: expected priority %s, got %s", tt.kind, tt.want, n.Priority)
		}
	}
}

func TestPublish_KeepsExplicitPriority(t *testing.T) {
	svc := NewService(NewMemRepo())
	n := &Notification{RecipientID: 1, Kind: KindNewVitals, Priority: PriorityUrgent, Title: "BP crashing"}
	if err := svc.Publish(context.Background(), n); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n.Priority != PriorityUrgent {
		t.Errorf("expected explicit priority kept, got %s", n.Priority)
	}
}

func TestPublish_RejectsUnknownKind(t *testing.T) {
	svc := NewService(NewMemRepo())
	err := svc.Publish(context.Background(), &Notification{RecipientID: 1, Kind: "made-up"})
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestPublish_RequiresRecipient(t *testing.T) {
	svc := NewService(NewMemRepo())
	err := svc.Publish(context.Background(), &Notification{Kind: KindSystem})
	if !errors.Is(err, ErrRecipientRequired) {
		t.Fatalf("expected ErrRecipientRequired, got %v", err)
	}
}

func TestCountUnread_BucketsByPriority(t *testing.T) {
	svc := NewService(NewMemRepo())
	ctx := context.Background()

	publishTest(t, svc, 1, KindCriticalVitals) // urgent
	publishTest(t, svc, 1, KindCriticalVitals) // urgent
	publishTest(t, svc, 1, KindNewCase)        // high
	publishTest(t, svc, 1, KindChatMessage)    // medium
	publishTest(t, svc, 1, KindWaitTime)       // low
	publishTest(t, svc, 2, KindDeath)          // other recipient

	count, err := svc.CountUnread(ctx, 1)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	want := UnreadCount{Total: 5, Urgent: 2, High: 1, Medium: 1, Low: 1}
	if count != want {
		t.Errorf("expected %+v, got %+v", want, count)
	}
}

func TestCountUnread_IgnoresRead(t *testing.T) {
	svc := NewService(NewMemRepo())
	ctx := context.Background()

	n := publishTest(t, svc, 1, KindCriticalVitals)
	publishTest(t, svc, 1, KindWaitTime)

	if err := svc.MarkRead(ctx, n.ID, 1); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	count, err := svc.CountUnread(ctx, 1)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if count.Total != 1 || count.Urgent != 0 || count.Low != 1 {
		t.Errorf("expected read urgent excluded, got %+v", count)
	}
}

func TestMarkRead_Idempotent(t *testing.T) {
	svc := NewService(NewMemRepo())
	ctx := context.Background()
	n := publishTest(t, svc, 1, KindSystem)

	if err := svc.MarkRead(ctx, n.ID, 1); err != nil {
		t.Fatalf("first mark read: %v", err)
	}
	if err := svc.MarkRead(ctx, n.ID, 1); err != nil {
		t.Fatalf("repeat mark read should succeed: %v", err)
	}
}

func TestMarkRead_WrongRecipientNotFound(t *testing.T) {
	svc := NewService(NewMemRepo())
	n := publishTest(t, svc, 1, KindSystem)

	err := svc.MarkRead(context.Background(), n.ID, 99)
	if !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
}

func TestMarkAllRead_ReturnsNewlyMarked(t *testing.T) {
	svc := NewService(NewMemRepo())
	ctx := context.Background()

	publishTest(t, svc, 1, KindSystem)
	publishTest(t, svc, 1, KindNewCase)
	publishTest(t, svc, 2, KindSystem)

	marked, err := svc.MarkAllRead(ctx, 1)
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if marked != 2 {
		t.Fatalf("expected 2 marked, got %d", marked)
	}

	marked, err = svc.MarkAllRead(ctx, 1)
	if err != nil {
		t.Fatalf("repeat mark all read: %v", err)
	}
	if marked != 0 {
		t.Fatalf("expected 0 on repeat, got %d", marked)
	}

	// Recipient 2 was untouched.
	count, _ := svc.CountUnread(ctx, 2)
	if count.Total != 1 {
		t.Errorf("expected recipient 2 still unread, got %+v", count)
	}
}

func TestRecent_NewestFirstWithPagination(t *testing.T) {
	repo := NewMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		n := &Notification{
			RecipientID: 1,
			Kind:        KindSystem,
			Title:       "event",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := svc.Publish(ctx, n); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	items, total, err := svc.Recent(ctx, 1, pagination.Params{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(items) != 2 {
		t.Fatalf("expected page of 2, got %d", len(items))
	}
	if !items[0].CreatedAt.After(items[1].CreatedAt) {
		t.Error("expected newest first")
	}

	items, _, err = svc.Recent(ctx, 1, pagination.Params{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("recent offset: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected final partial page of 1, got %d", len(items))
	}
}

func TestUnread_ExcludesRead(t *testing.T) {
	svc := NewService(NewMemRepo())
	ctx := context.Background()

	a := publishTest(t, svc, 1, KindNewCase)
	publishTest(t, svc, 1, KindDiagnosis)

	if err := svc.MarkRead(ctx, a.ID, 1); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	items, err := svc.Unread(ctx, 1)
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if len(items) != 1 || items[0].Kind != KindDiagnosis {
		t.Fatalf("expected only the unread diagnosis entry, got %d items", len(items))
	}
	if items[0].Read {
		t.Error("unread item flagged as read")
	}
}
