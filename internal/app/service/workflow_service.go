package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/ikkim/inspection-backend/internal/app/lifecycle"
	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/internal/app/repository"
	apperrors "github.com/ikkim/inspection-backend/internal/errors"
	"github.com/ikkim/inspection-backend/internal/metrics"
	"github.com/ikkim/inspection-backend/pkg/logger"
	"gorm.io/gorm"
)

// Step names reported in PartialFailure.Committed / Failed.
const (
	StepBusiness         = "business"
	StepBusinessStatus   = "business_status"
	StepDocumentFeedback = "document_feedback"
	StepAccountStatus    = "account_status"
	StepDefaultInspector = "default_inspector"
	StepInspectionAssign = "inspection_assignment"
	StepInspection       = "inspection"
	StepViolationLink    = "violation_link"
	StepOverdue          = "overdue_status"
)

// WorkflowService sequences every multi-store business action.
//
// Each operation checks authorization, loads the primary entity, asks the
// lifecycle rules for the next status, writes it with a compare-and-swap,
// performs dependent writes, and finally dispatches notifications.
// Errors are *errors.WorkflowError. A PartialFailure is returned together
// with the result of the committed primary write.
type WorkflowService interface {
	SubmitApplication(ctx context.Context, actor Actor, input SubmitApplicationInput) (*model.Business, error)
	ResubmitApplication(ctx context.Context, actor Actor, businessID uint, input SubmitApplicationInput) (*model.Business, error)
	ReviewApplication(ctx context.Context, actor Actor, businessID uint, input ReviewApplicationInput) (*ReviewResult, error)

	RequestInspection(ctx context.Context, actor Actor, businessID uint, input InspectionInput) (*model.Inspection, error)
	ScheduleInspection(ctx context.Context, actor Actor, businessID uint, input InspectionInput) (*model.Inspection, error)
	AssignInspectorToBusiness(ctx context.Context, actor Actor, businessID, inspectorID uint) (*AssignmentResult, error)
	ReassignInspector(ctx context.Context, actor Actor, inspectionID, inspectorID uint) (*model.Inspection, error)
	StartInspection(ctx context.Context, actor Actor, inspectionID uint) (*model.Inspection, error)
	CompleteInspection(ctx context.Context, actor Actor, inspectionID uint, input CompleteInspectionInput) (*model.Inspection, error)
	CancelInspection(ctx context.Context, actor Actor, inspectionID uint) (*model.Inspection, error)
	MarkOverdueInspections(ctx context.Context, now time.Time) (int, error)

	ReportViolation(ctx context.Context, actor Actor, input ReportViolationInput) (*model.Violation, error)
	LinkViolationToNewInspection(ctx context.Context, actor Actor, violationID uint, input InspectionInput) (*LinkResult, error)
	UpdateViolation(ctx context.Context, actor Actor, violationID uint, input UpdateViolationInput) (*model.Violation, error)

	UpdateUserProfile(ctx context.Context, actor Actor, userID uint, input ProfileInput) (*model.User, error)
}

// Locker serializes workflows on one entity. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// DocumentStore checks that uploaded document blobs exist.
type DocumentStore interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// WorkflowDeps wires the orchestrator. Locker and Documents are optional.
type WorkflowDeps struct {
	Users       repository.UserRepository
	Businesses  repository.BusinessRepository
	Inspections repository.InspectionRepository
	Violations  repository.ViolationRepository
	Gate        AuthorizationGate
	Dispatcher  NotificationDispatcher
	Locker      Locker
	Documents   DocumentStore
	Now         func() time.Time
}

type workflowService struct {
	users       repository.UserRepository
	businesses  repository.BusinessRepository
	inspections repository.InspectionRepository
	violations  repository.ViolationRepository
	gate        AuthorizationGate
	dispatcher  NotificationDispatcher
	locker      Locker
	documents   DocumentStore
	now         func() time.Time
}

func NewWorkflowService(deps WorkflowDeps) WorkflowService {
	s := &workflowService{
		users:       deps.Users,
		businesses:  deps.Businesses,
		inspections: deps.Inspections,
		violations:  deps.Violations,
		gate:        deps.Gate,
		dispatcher:  deps.Dispatcher,
		locker:      deps.Locker,
		documents:   deps.Documents,
		now:         deps.Now,
	}
	if s.locker == nil {
		s.locker = noopLocker{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// track records metrics and the outcome log line for one operation.
func (s *workflowService) track(op string, start time.Time, errp *error) {
	err := *errp
	result := "ok"
	if err != nil {
		result = string(apperrors.KindOf(err))
		if result == "" {
			result = "error"
		}
	}
	metrics.WorkflowTotal.WithLabelValues(op, result).Inc()
	metrics.WorkflowDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	fields := map[string]interface{}{
		"operation":  op,
		"result":     result,
		"latency_ms": time.Since(start).Milliseconds(),
	}
	switch {
	case err == nil:
		logger.Info("Workflow completed", fields)
	case apperrors.KindOf(err) == apperrors.KindPartialFailure:
		fields["error"] = err.Error()
		logger.Warn("Workflow committed with incomplete secondary effects", fields)
	case apperrors.KindOf(err) == apperrors.KindStoreUnavailable:
		logger.Error("Workflow failed", err, fields)
	default:
		fields["error"] = err.Error()
		logger.Info("Workflow rejected", fields)
	}
}

func (s *workflowService) lock(ctx context.Context, op, entity string, id uint) (func(), error) {
	release, err := s.locker.Lock(ctx, entity+":"+uintKey(id))
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(op, err)
	}
	return release, nil
}

func (s *workflowService) authorize(op string, actor Actor, permission Permission) error {
	if !s.gate.Can(actor.Role, permission) {
		return apperrors.NewUnauthorized(op, "role "+string(actor.Role)+" lacks "+string(permission))
	}
	return nil
}

func (s *workflowService) authorizeOwner(op string, actor Actor, permission Permission, businessID uint) error {
	if err := s.authorize(op, actor, permission); err != nil {
		return err
	}
	owns, err := s.gate.Owns(actor.ID, businessID)
	if err != nil {
		return lookupErr(op, "business", businessID, err)
	}
	if !owns {
		return apperrors.NewUnauthorized(op, "actor does not own this business")
	}
	return nil
}

// lookupErr maps a gateway read failure onto NotFound or StoreUnavailable.
func lookupErr(op, entity string, id uint, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NewNotFound(op, entity, id)
	}
	return apperrors.NewStoreUnavailable(op, err)
}

func transitionErr(op string, err error) error {
	if errors.Is(err, lifecycle.ErrInvalidTransition) {
		return apperrors.NewInvalidTransition(op, err)
	}
	return apperrors.NewStoreUnavailable(op, err)
}

// lostRace reports a compare-and-swap that matched no row: another workflow
// moved the entity after it was read.
func lostRace(op, entity string, id uint, expected string) error {
	return apperrors.NewInvalidTransition(op, errors.New(entity+" "+uintKey(id)+" is no longer "+expected))
}

func (s *workflowService) loadBusiness(op string, id uint) (*model.Business, error) {
	business, err := s.businesses.FindByID(id)
	if err != nil {
		return nil, lookupErr(op, "business", id, err)
	}
	return business, nil
}

func (s *workflowService) loadInspection(op string, id uint) (*model.Inspection, error) {
	inspection, err := s.inspections.FindByID(id)
	if err != nil {
		return nil, lookupErr(op, "inspection", id, err)
	}
	return inspection, nil
}

func (s *workflowService) loadViolation(op string, id uint) (*model.Violation, error) {
	violation, err := s.violations.FindByID(id)
	if err != nil {
		return nil, lookupErr(op, "violation", id, err)
	}
	return violation, nil
}

// checkInspector verifies that id names an inspector account.
func (s *workflowService) checkInspector(op string, id uint) error {
	if id == 0 {
		return apperrors.NewValidation(op, map[string]string{"inspector_id": "is required"})
	}
	user, err := s.users.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewValidation(op, map[string]string{"inspector_id": "does not exist"})
		}
		return apperrors.NewStoreUnavailable(op, err)
	}
	if user.Role != model.RoleInspector {
		return apperrors.NewValidation(op, map[string]string{"inspector_id": "is not an inspector"})
	}
	return nil
}

// adminIDs resolves the admin audience. Failures only cost notifications.
func (s *workflowService) adminIDs() []uint {
	admins, err := s.users.FindByRole(model.RoleAdmin, model.RoleSuperAdmin)
	if err != nil {
		logger.Warn("Failed to resolve admin recipients", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	ids := make([]uint, 0, len(admins))
	for _, a := range admins {
		ids = append(ids, a.ID)
	}
	return ids
}

// businessForNotice loads the business behind a notification. A failed read
// only degrades the message.
func (s *workflowService) businessForNotice(id uint) *model.Business {
	business, err := s.businesses.FindByID(id)
	if err != nil {
		logger.Warn("Failed to load business for notification", map[string]interface{}{
			"business_id": id,
			"error":       err.Error(),
		})
		return &model.Business{ID: id, Name: "your business"}
	}
	return business
}

// secondaryFailure counts and logs a dependent step that failed after commit.
func secondaryFailure(op, step string, err error, fields map[string]interface{}) {
	metrics.SecondaryFailures.WithLabelValues(op, step).Inc()
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["operation"] = op
	fields["step"] = step
	logger.Error("Dependent write failed after primary commit", err, fields)
}

func inspectionDetails(inspection *model.Inspection, business *model.Business) map[string]string {
	return map[string]string{
		"business": business.Name,
		"type":     inspection.InspectionType,
		"date":     inspection.ScheduledDate.Format("2006-01-02"),
	}
}

func derefUint(p *uint) uint {
	if p == nil {
		return 0
	}
	return *p
}

func uintKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
