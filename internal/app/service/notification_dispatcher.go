package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/internal/app/repository"
	"github.com/ikkim/inspection-backend/internal/events"
	"github.com/ikkim/inspection-backend/internal/metrics"
	"github.com/ikkim/inspection-backend/pkg/logger"
)

// Outcome 알림 템플릿 키
type Outcome string

const (
	OutcomeSubmitted            Outcome = "submitted"
	OutcomeResubmitted          Outcome = "resubmitted"
	OutcomeApproved             Outcome = "approved"
	OutcomeRejected             Outcome = "rejected"
	OutcomeNeedsRevision        Outcome = "needs_revision"
	OutcomeInspectionRequested  Outcome = "inspection_requested"
	OutcomeAssigned             Outcome = "assigned"
	OutcomeReassigned           Outcome = "reassigned"
	OutcomeInspectionCompleted  Outcome = "inspection_completed"
	OutcomeInspectionCancelled  Outcome = "inspection_cancelled"
	OutcomeInspectionOverdue    Outcome = "inspection_overdue"
	// 예정일이 지났지만 담당자가 없어 overdue 로 넘기지 못한 점검
	OutcomeInspectionUnassigned Outcome = "inspection_unassigned"
	OutcomeViolationReported    Outcome = "violation_reported"
	OutcomeViolationLinked      Outcome = "violation_linked"
	OutcomeViolationUpdated     Outcome = "violation_updated"
)

// Step describes a completed workflow step to notify about.
type Step struct {
	ActorID      uint
	RecipientIDs []uint
	EntityKind   model.EntityKind
	EntityID     uint
	Outcome      Outcome
	// Details fills template placeholders such as {business} or {reason}.
	Details map[string]string
	// Once skips recipients already notified about this entity and outcome.
	Once bool
}

// NotificationDispatcher renders and stores notifications for a step.
// It never fails the caller; the return value is the number of notifications written.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, step Step) int
}

// Pusher delivers a realtime message to a connected user.
type Pusher interface {
	SendToUser(userID uint, message interface{}) error
}

// EventPublisher emits workflow events to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, event *events.WorkflowEvent) error
}

type messageTemplate struct {
	Type    model.NotificationType
	Title   string
	Message string
}

var templates = map[Outcome]messageTemplate{
	OutcomeSubmitted: {
		Type:    model.NotificationTypeApplication,
		Title:   "새 사업장 등록 신청이 들어왔어요",
		Message: "{business} 사업장이 심사를 요청했어요.",
	},
	OutcomeResubmitted: {
		Type:    model.NotificationTypeApplication,
		Title:   "사업장 신청이 다시 제출됐어요",
		Message: "{business} 사업장이 보완한 신청서를 다시 제출했어요.",
	},
	OutcomeApproved: {
		Type:    model.NotificationTypeApplication,
		Title:   "사업장 신청이 승인됐어요",
		Message: "{business} 사업장 신청이 승인됐어요.",
	},
	OutcomeRejected: {
		Type:    model.NotificationTypeApplication,
		Title:   "사업장 신청이 반려됐어요",
		Message: "{business} 사업장 신청이 반려됐어요. 사유: {reason}",
	},
	OutcomeNeedsRevision: {
		Type:    model.NotificationTypeApplication,
		Title:   "신청서 보완이 필요해요",
		Message: "{business} 사업장 신청서를 보완해 주세요: {reason}",
	},
	OutcomeInspectionRequested: {
		Type:    model.NotificationTypeInspection,
		Title:   "점검 요청이 들어왔어요",
		Message: "{business} 사업장이 {date}에 {type} 점검을 요청했어요.",
	},
	OutcomeAssigned: {
		Type:    model.NotificationTypeInspection,
		Title:   "점검이 배정됐어요",
		Message: "{date} {business} 사업장 {type} 점검이 배정됐어요.",
	},
	OutcomeReassigned: {
		Type:    model.NotificationTypeInspection,
		Title:   "점검 담당자로 지정됐어요",
		Message: "{date} {business} 사업장 {type} 점검 담당이 회원님으로 변경됐어요.",
	},
	OutcomeInspectionCompleted: {
		Type:    model.NotificationTypeInspection,
		Title:   "점검이 완료됐어요",
		Message: "{business} 사업장 {type} 점검이 끝났어요. 준수 점수: {score}점",
	},
	OutcomeInspectionCancelled: {
		Type:    model.NotificationTypeInspection,
		Title:   "점검이 취소됐어요",
		Message: "{date} {business} 사업장 {type} 점검이 취소됐어요.",
	},
	OutcomeInspectionOverdue: {
		Type:    model.NotificationTypeInspection,
		Title:   "점검 기한이 지났어요",
		Message: "{date} 예정이던 {business} 사업장 {type} 점검이 기한을 넘겼어요.",
	},
	OutcomeInspectionUnassigned: {
		Type:    model.NotificationTypeInspection,
		Title:   "담당자 없는 점검의 예정일이 지났어요",
		Message: "{date} 예정이던 {business} 사업장 {type} 점검에 아직 담당 점검관이 없어요.",
	},
	OutcomeViolationReported: {
		Type:    model.NotificationTypeViolation,
		Title:   "위반 사항이 신고됐어요",
		Message: "{business} 사업장에 {severity} 등급 위반이 신고됐어요: {description} (조치 기한 {date})",
	},
	OutcomeViolationLinked: {
		Type:    model.NotificationTypeViolation,
		Title:   "위반 사항 확인 점검이 잡혔어요",
		Message: "{business} 사업장 위반 사항을 {date} 점검에서 확인해요.",
	},
	OutcomeViolationUpdated: {
		Type:    model.NotificationTypeViolation,
		Title:   "위반 사항 상태가 바뀌었어요",
		Message: "{business} 사업장 위반 사항이 {status} 상태로 바뀌었어요.",
	},
}

type notificationDispatcher struct {
	repo      repository.NotificationRepository
	pusher    Pusher
	publisher EventPublisher
}

// NewNotificationDispatcher pusher and publisher may be nil.
func NewNotificationDispatcher(repo repository.NotificationRepository, pusher Pusher, publisher EventPublisher) NotificationDispatcher {
	return &notificationDispatcher{
		repo:      repo,
		pusher:    pusher,
		publisher: publisher,
	}
}

func (d *notificationDispatcher) Dispatch(ctx context.Context, step Step) int {
	tmpl, ok := templates[step.Outcome]
	if !ok {
		logger.Error("Unknown notification outcome", nil, map[string]interface{}{
			"outcome": step.Outcome,
		})
		return 0
	}

	title, message := render(tmpl, step.Details)
	link := entityLink(step.EntityKind, step.EntityID)
	written := 0

	for _, userID := range uniqueRecipients(step.RecipientIDs) {
		if step.Once {
			exists, err := d.repo.ExistsForEntity(userID, step.EntityKind, step.EntityID, string(step.Outcome))
			if err != nil {
				logger.Warn("Failed to check existing notification", map[string]interface{}{
					"user_id": userID,
					"outcome": step.Outcome,
					"error":   err.Error(),
				})
			} else if exists {
				continue
			}
		}

		notification := &model.Notification{
			UserID:            userID,
			Type:              tmpl.Type,
			Outcome:           string(step.Outcome),
			Title:             title,
			Message:           message,
			Link:              link,
			RelatedEntityType: step.EntityKind,
			RelatedEntityID:   step.EntityID,
		}

		if err := d.repo.CreateNotification(notification); err != nil {
			// 한 수신자 실패가 나머지를 막지 않는다
			metrics.NotificationsTotal.WithLabelValues(string(step.Outcome), "error").Inc()
			logger.Error("Failed to create notification", err, map[string]interface{}{
				"user_id":   userID,
				"outcome":   step.Outcome,
				"entity":    step.EntityKind,
				"entity_id": step.EntityID,
			})
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(string(step.Outcome), "ok").Inc()
		written++

		d.push(userID, notification)
	}

	d.publish(ctx, step)
	return written
}

func (d *notificationDispatcher) push(userID uint, notification *model.Notification) {
	if d.pusher == nil {
		return
	}

	unreadCount, err := d.repo.GetUnreadCount(userID)
	if err != nil {
		unreadCount = -1
	}
	wsMessage := map[string]interface{}{
		"type":         "new_notification",
		"unread_count": unreadCount,
		"notification": notification,
	}
	if err := d.pusher.SendToUser(userID, wsMessage); err != nil {
		logger.Warn("Failed to push notification", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}

func (d *notificationDispatcher) publish(ctx context.Context, step Step) {
	if d.publisher == nil {
		return
	}

	event := &events.WorkflowEvent{
		Outcome:      string(step.Outcome),
		EntityType:   string(step.EntityKind),
		EntityID:     step.EntityID,
		ActorID:      step.ActorID,
		RecipientIDs: uniqueRecipients(step.RecipientIDs),
	}
	if err := d.publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish workflow event", map[string]interface{}{
			"outcome": step.Outcome,
			"error":   err.Error(),
		})
	}
}

func render(tmpl messageTemplate, details map[string]string) (string, string) {
	pairs := make([]string, 0, len(details)*2)
	for k, v := range details {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(tmpl.Title), r.Replace(tmpl.Message)
}

func entityLink(kind model.EntityKind, id uint) string {
	switch kind {
	case model.EntityBusiness:
		return fmt.Sprintf("/businesses/%d", id)
	case model.EntityInspection:
		return fmt.Sprintf("/inspections/%d", id)
	case model.EntityViolation:
		return fmt.Sprintf("/violations/%d", id)
	}
	return ""
}

// uniqueRecipients drops zero ids and duplicates, keeping order.
func uniqueRecipients(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
