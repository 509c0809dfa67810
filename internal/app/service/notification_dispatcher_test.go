package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/internal/app/repository"
	"github.com/ikkim/inspection-backend/internal/db"
	"github.com/ikkim/inspection-backend/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyNotificationRepository struct {
	repository.NotificationRepository
	failFor map[uint]bool
}

func (r *flakyNotificationRepository) CreateNotification(notification *model.Notification) error {
	if r.failFor[notification.UserID] {
		return errors.New("notification store unavailable")
	}
	return r.NotificationRepository.CreateNotification(notification)
}

type recordingPusher struct {
	sent map[uint]int
}

func (p *recordingPusher) SendToUser(userID uint, _ interface{}) error {
	p.sent[userID]++
	return nil
}

type recordingPublisher struct {
	events []*events.WorkflowEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event *events.WorkflowEvent) error {
	p.events = append(p.events, event)
	return p.err
}

func setupDispatcherTest(t *testing.T) repository.NotificationRepository {
	stores, err := db.SetupTestStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestStores(stores)
	})
	return repository.NewNotificationRepository(stores.Notification)
}

func TestNotificationDispatcher_FanOutSurvivesRecipientFailure(t *testing.T) {
	repo := setupDispatcherTest(t)
	flaky := &flakyNotificationRepository{NotificationRepository: repo, failFor: map[uint]bool{2: true}}
	pusher := &recordingPusher{sent: map[uint]int{}}
	publisher := &recordingPublisher{}
	dispatcher := NewNotificationDispatcher(flaky, pusher, publisher)

	written := dispatcher.Dispatch(context.Background(), Step{
		ActorID:      9,
		RecipientIDs: []uint{1, 2, 3},
		EntityKind:   model.EntityBusiness,
		EntityID:     42,
		Outcome:      OutcomeResubmitted,
		Details:      map[string]string{"business": "Corner Cafe"},
	})
	assert.Equal(t, 2, written)

	for userID, want := range map[uint]int64{1: 1, 2: 0, 3: 1} {
		count, err := repo.GetUnreadCount(userID)
		require.NoError(t, err)
		assert.Equal(t, want, count, "user %d", userID)
	}

	assert.Equal(t, map[uint]int{1: 1, 3: 1}, pusher.sent)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, "resubmitted", publisher.events[0].Outcome)
	assert.Equal(t, []uint{1, 2, 3}, publisher.events[0].RecipientIDs)
	assert.Equal(t, uint(42), publisher.events[0].EntityID)
}

func TestNotificationDispatcher_RendersTemplate(t *testing.T) {
	repo := setupDispatcherTest(t)
	dispatcher := NewNotificationDispatcher(repo, nil, nil)

	written := dispatcher.Dispatch(context.Background(), Step{
		RecipientIDs: []uint{5},
		EntityKind:   model.EntityBusiness,
		EntityID:     42,
		Outcome:      OutcomeRejected,
		Details:      map[string]string{"business": "Corner Cafe", "reason": "missing permit"},
	})
	require.Equal(t, 1, written)

	list, total, err := repo.GetNotifications(5, nil, nil, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)

	n := list[0]
	assert.Equal(t, model.NotificationTypeApplication, n.Type)
	assert.Equal(t, "rejected", n.Outcome)
	assert.Equal(t, "사업장 신청이 반려됐어요", n.Title)
	assert.Equal(t, "Corner Cafe 사업장 신청이 반려됐어요. 사유: missing permit", n.Message)
	assert.Equal(t, "/businesses/42", n.Link)
	assert.Equal(t, model.EntityBusiness, n.RelatedEntityType)
	assert.Equal(t, uint(42), n.RelatedEntityID)
	assert.False(t, n.IsRead)
}

func TestNotificationDispatcher_Once(t *testing.T) {
	repo := setupDispatcherTest(t)
	dispatcher := NewNotificationDispatcher(repo, nil, nil)

	step := Step{
		RecipientIDs: []uint{5, 6},
		EntityKind:   model.EntityInspection,
		EntityID:     11,
		Outcome:      OutcomeAssigned,
		Details:      map[string]string{"business": "Corner Cafe", "type": "fire_safety", "date": "2026-03-13"},
		Once:         true,
	}
	assert.Equal(t, 2, dispatcher.Dispatch(context.Background(), step))
	assert.Equal(t, 0, dispatcher.Dispatch(context.Background(), step))

	step.RecipientIDs = []uint{5, 7}
	assert.Equal(t, 1, dispatcher.Dispatch(context.Background(), step))
}

func TestNotificationDispatcher_UnknownOutcome(t *testing.T) {
	repo := setupDispatcherTest(t)
	publisher := &recordingPublisher{}
	dispatcher := NewNotificationDispatcher(repo, nil, publisher)

	written := dispatcher.Dispatch(context.Background(), Step{
		RecipientIDs: []uint{5},
		EntityKind:   model.EntityBusiness,
		EntityID:     1,
		Outcome:      Outcome("exploded"),
	})
	assert.Zero(t, written)
	assert.Empty(t, publisher.events)
}

func TestNotificationDispatcher_PublishFailureIsSwallowed(t *testing.T) {
	repo := setupDispatcherTest(t)
	publisher := &recordingPublisher{err: errors.New("nats: no responders")}
	dispatcher := NewNotificationDispatcher(repo, nil, publisher)

	written := dispatcher.Dispatch(context.Background(), Step{
		RecipientIDs: []uint{5},
		EntityKind:   model.EntityViolation,
		EntityID:     3,
		Outcome:      OutcomeViolationUpdated,
		Details:      map[string]string{"business": "Corner Cafe", "status": "resolved"},
	})
	assert.Equal(t, 1, written)
	assert.Len(t, publisher.events, 1)
}

func TestNotificationTemplates_CoverEveryOutcome(t *testing.T) {
	outcomes := []Outcome{
		OutcomeSubmitted, OutcomeResubmitted, OutcomeApproved, OutcomeRejected, OutcomeNeedsRevision,
		OutcomeInspectionRequested, OutcomeAssigned, OutcomeReassigned, OutcomeInspectionCompleted,
		OutcomeInspectionCancelled, OutcomeInspectionOverdue, OutcomeInspectionUnassigned,
		OutcomeViolationReported, OutcomeViolationLinked, OutcomeViolationUpdated,
	}
	for _, outcome := range outcomes {
		tmpl, ok := templates[outcome]
		require.True(t, ok, outcome)
		assert.NotEmpty(t, tmpl.Title, outcome)
		assert.NotEmpty(t, tmpl.Message, outcome)
	}
}

func TestUniqueRecipients(t *testing.T) {
	assert.Equal(t, []uint{3, 1, 2}, uniqueRecipients([]uint{3, 0, 1, 3, 2, 1, 0}))
	assert.Empty(t, uniqueRecipients(nil))
}

func TestEntityLink(t *testing.T) {
	assert.Equal(t, "/businesses/1", entityLink(model.EntityBusiness, 1))
	assert.Equal(t, "/inspections/2", entityLink(model.EntityInspection, 2))
	assert.Equal(t, "/violations/3", entityLink(model.EntityViolation, 3))
	assert.Equal(t, "", entityLink(model.EntityKind("other"), 4))
}
