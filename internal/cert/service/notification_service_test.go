package service

import (
	"context"
	"testing"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"github.com/bitfantasy/nimo-cert/internal/cert/errs"
	"github.com/bitfantasy/nimo-cert/internal/cert/repository"
	"github.com/bitfantasy/nimo-cert/internal/cert/testutil"
	"github.com/facebookgo/clock"
)

// TestNotificationLifecycle tests notify → list → mark read, including the
// recipient-only read restriction
func TestNotificationLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewNotificationService(repos.Notification, nil, clock.New())
	ctx := context.Background()

	testutil.SeedSupplier(t, db, "sup-nt-001", "nt_supplier")

	n, err := svc.Notify(ctx, "sup-nt-001", entity.RoleSupplier, entity.NotifyProductSubmitted,
		"Product submitted: Blender", "Your product 'Blender' has been submitted for testing and certification.")
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if n.Status != entity.NotificationStatusSent || n.SentAt == nil {
		t.Fatalf("expected sent notification with sent_at, got status=%s sent_at=%v", n.Status, n.SentAt)
	}

	recipient := entity.Actor{ID: "sup-nt-001", Username: "nt_supplier", Role: entity.RoleSupplier}
	items, total, err := svc.List(ctx, recipient, 1, 20)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected 1 notification, got total=%d len=%d", total, len(items))
	}

	// Only the recipient may mark as read
	other := entity.Actor{ID: "sup-nt-002", Username: "nt_other", Role: entity.RoleSupplier}
	if _, err := svc.MarkRead(ctx, n.ID, other); errs.KindOf(err) != errs.KindPermission {
		t.Fatalf("expected PERMISSION_DENIED for foreign recipient, got %v", err)
	}

	read, err := svc.MarkRead(ctx, n.ID, recipient)
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if read.Status != entity.NotificationStatusRead || read.ReadAt == nil {
		t.Fatalf("expected read status with read_at, got status=%s read_at=%v", read.Status, read.ReadAt)
	}
}
