package tracking_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/shopvec/shopvec/domain/task"
	"github.com/shopvec/shopvec/infrastructure/tracking"
)

// failingReporter always errors, to prove one bad subscriber does not
// block the others.
type failingReporter struct{}

func (failingReporter) OnChange(context.Context, task.Status) error {
	return errors.New("reporter down")
}

func TestTracker_NotifiesSubscribers(t *testing.T) {
	fake := &fakeReporter{}
	tracker := tracking.TrackerForOperation(
		task.OperationSyncPlatform, slog.Default(), task.TrackableTypePlatform, "fakestore")
	tracker.Subscribe(fake)

	ctx := context.Background()
	tracker.SetTotal(ctx, 100)
	tracker.SetCurrent(ctx, 40, "batch 2 of 5")
	tracker.Complete(ctx)

	if fake.count() != 3 {
		t.Fatalf("expected 3 notifications, got %d", fake.count())
	}
	last := fake.last()
	if last.State() != task.ReportingStateCompleted {
		t.Fatalf("expected completed, got %s", last.State())
	}
	if last.Current() != 100 {
		t.Fatalf("complete should snap current to total, got %d", last.Current())
	}
	if last.TrackableKey() != "fakestore" {
		t.Fatalf("expected trackable key fakestore, got %q", last.TrackableKey())
	}
}

func TestTracker_ChildInheritsSubscribersAndTrackable(t *testing.T) {
	fake := &fakeReporter{}
	parent := tracking.TrackerForOperation(
		task.OperationSyncPlatform, slog.Default(), task.TrackableTypePlatform, "magento")
	parent.Subscribe(fake)

	child := parent.Child(task.OperationRecreateCollection)
	child.SetCurrent(context.Background(), 1, "recreating")

	if fake.count() != 1 {
		t.Fatalf("expected child update to reach parent subscriber, got %d", fake.count())
	}
	status := fake.last()
	if status.Operation() != task.OperationRecreateCollection {
		t.Fatalf("expected child operation, got %s", status.Operation())
	}
	if status.TrackableKey() != "magento" {
		t.Fatalf("expected inherited trackable key, got %q", status.TrackableKey())
	}
	if status.Parent() == nil || status.Parent().Operation() != task.OperationSyncPlatform {
		t.Fatal("expected parent status to be linked")
	}
}

func TestTracker_FailingSubscriberDoesNotBlockOthers(t *testing.T) {
	fake := &fakeReporter{}
	tracker := tracking.TrackerForOperation(
		task.OperationDeletePlatform, slog.Default(), task.TrackableTypePlatform, "odoo")
	tracker.Subscribe(failingReporter{})
	tracker.Subscribe(fake)

	tracker.Fail(context.Background(), "connector unreachable")

	if fake.count() != 1 {
		t.Fatalf("expected delivery past the failing subscriber, got %d", fake.count())
	}
	if fake.last().Error() != "connector unreachable" {
		t.Fatalf("unexpected error message %q", fake.last().Error())
	}
}
