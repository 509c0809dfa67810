package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ikkim/inspection-backend/internal/app/lifecycle"
	"github.com/ikkim/inspection-backend/internal/app/model"
	apperrors "github.com/ikkim/inspection-backend/internal/errors"
	"github.com/ikkim/inspection-backend/internal/metrics"
	"github.com/ikkim/inspection-backend/pkg/logger"
)

// InspectionInput 점검 생성 입력. InspectorID 는 관리자만 지정할 수 있다.
type InspectionInput struct {
	InspectionType string                   `json:"inspection_type" validate:"required,max=100"`
	ScheduledDate  time.Time                `json:"scheduled_date" validate:"required"`
	Priority       model.InspectionPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	InspectorID    uint                     `json:"inspector_id"`
	Notes          string                   `json:"notes" validate:"max=2000"`
}

// CompleteInspectionInput 점검 완료 입력
type CompleteInspectionInput struct {
	ComplianceScore *int   `json:"compliance_score" validate:"required,min=0,max=100"`
	Notes           string `json:"notes" validate:"max=2000"`
}

// AssignmentResult 사업장 단위 점검관 배정 결과.
// 기본 점검관 설정과 미배정 점검 일괄 배정은 서로 독립적으로 성공/실패한다.
type AssignmentResult struct {
	BusinessID          uint   `json:"business_id"`
	InspectorID         uint   `json:"inspector_id"`
	DefaultAssigned     bool   `json:"default_assigned"`
	InspectionsAssigned int    `json:"inspections_assigned"`
	FailedInspectionIDs []uint `json:"failed_inspection_ids,omitempty"`
}

func (s *workflowService) RequestInspection(ctx context.Context, actor Actor, businessID uint, input InspectionInput) (inspection *model.Inspection, err error) {
	const op = "RequestInspection"
	defer s.track(op, time.Now(), &err)

	if err = s.authorizeOwner(op, actor, PermRequestInspection, businessID); err != nil {
		return nil, err
	}
	if err = validateInput(op, input); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, op, "business", businessID)
	if err != nil {
		return nil, err
	}
	defer release()

	business, err := s.loadBusiness(op, businessID)
	if err != nil {
		return nil, err
	}
	if business.Status != model.BusinessVerified {
		return nil, apperrors.NewInvalidTransition(op,
			fmt.Errorf("business %d is %s; inspections require a verified business", businessID, business.Status))
	}

	inspection = newInspection(business.ID, actor.ID, input, model.InspectionRequested)
	// 기본 점검관이 있으면 요청 즉시 배정
	if business.DefaultInspectorID != nil {
		inspectorID := *business.DefaultInspectorID
		next, terr := lifecycle.NextInspectionStatus(inspection.Status, lifecycle.ActionAssign, lifecycle.Context{InspectorID: inspectorID})
		if terr != nil {
			return nil, transitionErr(op, terr)
		}
		inspection.Status = next
		inspection.InspectorID = &inspectorID
	}

	if cerr := s.inspections.Create(inspection); cerr != nil {
		return nil, apperrors.NewStoreUnavailable(op, cerr)
	}

	details := inspectionDetails(inspection, business)
	s.dispatcher.Dispatch(ctx, Step{
		ActorID:      actor.ID,
		RecipientIDs: s.adminIDs(),
		EntityKind:   model.EntityInspection,
		EntityID:     inspection.ID,
		Outcome:      OutcomeInspectionRequested,
		Details:      details,
	})
	if inspection.InspectorID != nil {
		s.notifyAssigned(ctx, actor.ID, inspection, details)
	}
	return inspection, nil
}

func (s *workflowService) ScheduleInspection(ctx context.Context, actor Actor, businessID uint, input InspectionInput) (inspection *model.Inspection, err error) {
	const op = "ScheduleInspection"
	defer s.track(op, time.Now(), &err)

	if err = s.authorize(op, actor, PermScheduleInspection); err != nil {
		return nil, err
	}
	if err = validateInput(op, input); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, op, "business", businessID)
	if err != nil {
		return nil, err
	}
	defer release()

	business, err := s.loadBusiness(op, businessID)
	if err != nil {
		return nil, err
	}

	inspection, err = s.createScheduled(op, actor, business, input)
	if err != nil {
		return nil, err
	}

	if inspection.InspectorID != nil {
		s.notifyAssigned(ctx, actor.ID, inspection, inspectionDetails(inspection, business))
	}
	return inspection, nil
}

// createScheduled inserts an admin-created inspection. The inspector comes
// from the input, falling back to the business default; none is allowed.
func (s *workflowService) createScheduled(op string, actor Actor, business *model.Business, input InspectionInput) (*model.Inspection, error) {
	inspectorID := input.InspectorID
	if inspectorID != 0 {
		if err := s.checkInspector(op, inspectorID); err != nil {
			return nil, err
		}
	} else {
		inspectorID = derefUint(business.DefaultInspectorID)
	}

	inspection := newInspection(business.ID, actor.ID, input, model.InspectionScheduled)
	if inspectorID != 0 {
		inspection.InspectorID = &inspectorID
	}
	if err := s.inspections.Create(inspection); err != nil {
		return nil, apperrors.NewStoreUnavailable(op, err)
	}
	return inspection, nil
}

func (s *workflowService) AssignInspectorToBusiness(ctx context.Context, actor Actor, businessID, inspectorID uint) (result *AssignmentResult, err error) {
	const op = "AssignInspectorToBusiness"
	defer s.track(op, time.Now(), &err)

	if err = s.authorize(op, actor, PermAssignInspector); err != nil {
		return nil, err
	}
	if err = s.checkInspector(op, inspectorID); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, op, "business", businessID)
	if err != nil {
		return nil, err
	}
	defer release()

	business, err := s.loadBusiness(op, businessID)
	if err != nil {
		return nil, err
	}

	result = &AssignmentResult{BusinessID: businessID, InspectorID: inspectorID}
	var committed, failed []string
	var cause error

	if derr := s.businesses.SetDefaultInspector(businessID, inspectorID); derr != nil {
		logger.Error("Failed to set default inspector", derr, map[string]interface{}{
			"business_id":  businessID,
			"inspector_id": inspectorID,
		})
		failed = append(failed, StepDefaultInspector)
		cause = derr
	} else {
		result.DefaultAssigned = true
		committed = append(committed, StepDefaultInspector)
	}

	unassigned, ferr := s.inspections.FindUnassignedByBusiness(businessID)
	if ferr != nil {
		secondaryFailure(op, StepInspectionAssign, ferr, map[string]interface{}{"business_id": businessID})
		failed = append(failed, StepInspectionAssign)
		if cause == nil {
			cause = ferr
		}
	}

	for i := range unassigned {
		inspection := &unassigned[i]
		next, terr := lifecycle.NextInspectionStatus(inspection.Status, lifecycle.ActionAssign, lifecycle.Context{InspectorID: inspectorID})
		if terr != nil {
			// 취소/완료된 점검은 배정 대상이 아니다
			continue
		}

		ok, aerr := s.inspections.AssignInspector(inspection.ID, inspectorID,
			[]model.InspectionStatus{model.InspectionRequested, model.InspectionScheduled}, true)
		if aerr != nil {
			secondaryFailure(op, StepInspectionAssign, aerr, map[string]interface{}{
				"business_id":   businessID,
				"inspection_id": inspection.ID,
			})
			result.FailedInspectionIDs = append(result.FailedInspectionIDs, inspection.ID)
			if cause == nil {
				cause = aerr
			}
			continue
		}
		if !ok {
			// 다른 요청이 먼저 배정함
			continue
		}

		result.InspectionsAssigned++
		inspection.InspectorID = &inspectorID
		inspection.Status = next
		s.notifyAssigned(ctx, actor.ID, inspection, inspectionDetails(inspection, business))
	}

	if ferr == nil {
		if len(result.FailedInspectionIDs) > 0 {
			failed = append(failed, StepInspectionAssign)
		} else {
			committed = append(committed, StepInspectionAssign)
		}
	}

	switch {
	case len(failed) == 0:
		return result, nil
	case !result.DefaultAssigned && result.InspectionsAssigned == 0:
		return result, apperrors.NewStoreUnavailable(op, cause)
	default:
		return result, apperrors.NewPartialFailure(op, committed, failed, cause)
	}
}

func (s *workflowService) ReassignInspector(ctx context.Context, actor Actor, inspectionID, inspectorID uint) (inspection *model.Inspection, err error) {
	const op = "ReassignInspector"
	defer s.track(op, time.Now(), &err)

	if err = s.authorize(op, actor, PermAssignInspector); err != nil {
		return nil, err
	}
	if err = s.checkInspector(op, inspectorID); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, op, "inspection", inspectionID)
	if err != nil {
		return nil, err
	}
	defer release()

	inspection, err = s.loadInspection(op, inspectionID)
	if err != nil {
		return nil, err
	}
	next, terr := lifecycle.NextInspectionStatus(inspection.Status, lifecycle.ActionAssign, lifecycle.Context{InspectorID: inspectorID})
	if terr != nil {
		return nil, transitionErr(op, terr)
	}

	previous := derefUint(inspection.InspectorID)
	ok, werr := s.inspections.AssignInspector(inspectionID, inspectorID, []model.InspectionStatus{inspection.Status}, false)
	if werr != nil {
		return nil, apperrors.NewStoreUnavailable(op, werr)
	}
	if !ok {
		return nil, lostRace(op, "inspection", inspectionID, string(inspection.Status))
	}
	inspection.InspectorID = &inspectorID
	inspection.Status = next

	if previous != inspectorID {
		business := s.businessForNotice(inspection.BusinessID)
		s.dispatcher.Dispatch(ctx, Step{
			ActorID:      actor.ID,
			RecipientIDs: []uint{inspectorID},
			EntityKind:   model.EntityInspection,
			EntityID:     inspection.ID,
			Outcome:      OutcomeReassigned,
			Details:      inspectionDetails(inspection, business),
		})
	}
	return inspection, nil
}

func (s *workflowService) StartInspection(ctx context.Context, actor Actor, inspectionID uint) (inspection *model.Inspection, err error) {
	const op = "StartInspection"
	defer s.track(op, time.Now(), &err)

	if err = s.authorize(op, actor, PermPerformInspection); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, op, "inspection", inspectionID)
	if err != nil {
		return nil, err
	}
	defer release()

	inspection, err = s.loadInspection(op, inspectionID)
	if err != nil {
		return nil, err
	}
	if err = s.authorizePerformer(op, actor, inspection); err != nil {
		return nil, err
	}

	next, terr := lifecycle.NextInspectionStatus(inspection.Status, lifecycle.ActionStart, lifecycle.Context{
		InspectorID: derefUint(inspection.InspectorID),
	})
	if terr != nil {
		return nil, transitionErr(op, terr)
	}
	ok, werr := s.inspections.UpdateStatusIfCurrent(inspectionID, inspection.Status, next, nil)
	if werr != nil {
		return nil, apperrors.NewStoreUnavailable(op, werr)
	}
	if !ok {
		return nil, lostRace(op, "inspection", inspectionID, string(inspection.Status))
	}
	inspection.Status = next
	return inspection, nil
}

func (s *workflowService) CompleteInspection(ctx context.Context, actor Actor, inspectionID uint, input CompleteInspectionInput) (inspection *model.Inspection, err error) {
	const op = "CompleteInspection"
	defer s.track(op, time.Now(), &err)

	if err = s.authorize(op, actor, PermPerformInspection); err != nil {
		return nil, err
	}
	if err = validateInput(op, input); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, op, "inspection", inspectionID)
	if err != nil {
		return nil, err
	}
	defer release()

	inspection, err = s.loadInspection(op, inspectionID)
	if err != nil {
		return nil, err
	}
	if err = s.authorizePerformer(op, actor, inspection); err != nil {
		return nil, err
	}

	next, terr := lifecycle.NextInspectionStatus(inspection.Status, lifecycle.ActionComplete, lifecycle.Context{Score: input.ComplianceScore})
	if terr != nil {
		return nil, transitionErr(op, terr)
	}

	now := s.now()
	fields := map[string]interface{}{
		"compliance_score": *input.ComplianceScore,
		"completed_at":     now,
	}
	if input.Notes != "" {
		fields["notes"] = input.Notes
	}
	ok, werr := s.inspections.UpdateStatusIfCurrent(inspectionID, inspection.Status, next, fields)
	if werr != nil {
		return nil, apperrors.NewStoreUnavailable(op, werr)
	}
	if !ok {
		return nil, lostRace(op, "inspection", inspectionID, string(inspection.Status))
	}

	score := *input.ComplianceScore
	inspection.Status = next
	inspection.ComplianceScore = &score
	inspection.CompletedAt = &now
	if input.Notes != "" {
		inspection.Notes = input.Notes
	}

	business := s.businessForNotice(inspection.BusinessID)
	details := inspectionDetails(inspection, business)
	details["score"] = strconv.Itoa(score)
	s.dispatcher.Dispatch(ctx, Step{
		ActorID:      actor.ID,
		RecipientIDs: []uint{business.OwnerID},
		EntityKind:   model.EntityInspection,
		EntityID:     inspection.ID,
		Outcome:      OutcomeInspectionCompleted,
		Details:      details,
	})
	return inspection, nil
}

func (s *workflowService) CancelInspection(ctx context.Context, actor Actor, inspectionID uint) (inspection *model.Inspection, err error) {
	const op = "CancelInspection"
	defer s.track(op, time.Now(), &err)

	asAdmin := s.gate.Can(actor.Role, PermScheduleInspection)
	if !asAdmin {
		if err = s.authorize(op, actor, PermRequestInspection); err != nil {
			return nil, err
		}
	}

	release, err := s.lock(ctx, op, "inspection", inspectionID)
	if err != nil {
		return nil, err
	}
	defer release()

	inspection, err = s.loadInspection(op, inspectionID)
	if err != nil {
		return nil, err
	}
	if !asAdmin {
		// 사업자는 자기 사업장 점검만 취소할 수 있다
		if err = s.authorizeOwner(op, actor, PermRequestInspection, inspection.BusinessID); err != nil {
			return nil, err
		}
	}

	next, terr := lifecycle.NextInspectionStatus(inspection.Status, lifecycle.ActionCancel, lifecycle.Context{})
	if terr != nil {
		return nil, transitionErr(op, terr)
	}
	ok, werr := s.inspections.UpdateStatusIfCurrent(inspectionID, inspection.Status, next, nil)
	if werr != nil {
		return nil, apperrors.NewStoreUnavailable(op, werr)
	}
	if !ok {
		return nil, lostRace(op, "inspection", inspectionID, string(inspection.Status))
	}
	inspection.Status = next

	business := s.businessForNotice(inspection.BusinessID)
	s.dispatcher.Dispatch(ctx, Step{
		ActorID:      actor.ID,
		RecipientIDs: without([]uint{derefUint(inspection.InspectorID), business.OwnerID}, actor.ID),
		EntityKind:   model.EntityInspection,
		EntityID:     inspection.ID,
		Outcome:      OutcomeInspectionCancelled,
		Details:      inspectionDetails(inspection, business),
	})
	return inspection, nil
}

// MarkOverdueInspections moves every assigned scheduled inspection whose date
// is before now to overdue and returns how many were moved. Unassigned ones
// stay scheduled so they can still be assigned; admins are told about them once.
func (s *workflowService) MarkOverdueInspections(ctx context.Context, now time.Time) (marked int, err error) {
	const op = "MarkOverdueInspections"
	defer s.track(op, time.Now(), &err)

	due, err := s.inspections.FindScheduledBefore(now)
	if err != nil {
		return 0, apperrors.NewStoreUnavailable(op, err)
	}

	var failed []string
	var cause error
	for i := range due {
		inspection := &due[i]
		if inspection.InspectorID == nil {
			s.dispatcher.Dispatch(ctx, Step{
				RecipientIDs: s.adminIDs(),
				EntityKind:   model.EntityInspection,
				EntityID:     inspection.ID,
				Outcome:      OutcomeInspectionUnassigned,
				Details:      inspectionDetails(inspection, s.businessForNotice(inspection.BusinessID)),
				Once:         true,
			})
			continue
		}

		ok, merr := s.markOverdue(ctx, inspection)
		if merr != nil {
			secondaryFailure(op, StepOverdue, merr, map[string]interface{}{"inspection_id": inspection.ID})
			failed = append(failed, StepOverdue+":"+uintKey(inspection.ID))
			if cause == nil {
				cause = merr
			}
			continue
		}
		if !ok {
			continue
		}
		marked++
		metrics.InspectionsMarkedOverdue.Inc()

		s.dispatcher.Dispatch(ctx, Step{
			RecipientIDs: []uint{*inspection.InspectorID},
			EntityKind:   model.EntityInspection,
			EntityID:     inspection.ID,
			Outcome:      OutcomeInspectionOverdue,
			Details:      inspectionDetails(inspection, s.businessForNotice(inspection.BusinessID)),
			Once:         true,
		})
	}

	if len(failed) == 0 {
		return marked, nil
	}
	if marked == 0 {
		return 0, apperrors.NewStoreUnavailable(op, cause)
	}
	return marked, apperrors.NewPartialFailure(op, []string{StepOverdue}, failed, cause)
}

func (s *workflowService) markOverdue(ctx context.Context, inspection *model.Inspection) (bool, error) {
	release, err := s.locker.Lock(ctx, "inspection:"+uintKey(inspection.ID))
	if err != nil {
		return false, err
	}
	defer release()

	next, terr := lifecycle.NextInspectionStatus(inspection.Status, lifecycle.ActionMarkOverdue, lifecycle.Context{
		InspectorID: derefUint(inspection.InspectorID),
	})
	if terr != nil {
		return false, nil
	}
	ok, err := s.inspections.UpdateStatusIfCurrent(inspection.ID, inspection.Status, next, nil)
	if err != nil || !ok {
		return false, err
	}
	inspection.Status = next
	return true, nil
}

// authorizePerformer limits inspectors to the inspections assigned to them.
// Actors who can assign inspectors may act on any inspection.
func (s *workflowService) authorizePerformer(op string, actor Actor, inspection *model.Inspection) error {
	if s.gate.Can(actor.Role, PermAssignInspector) {
		return nil
	}
	if derefUint(inspection.InspectorID) != actor.ID {
		return apperrors.NewUnauthorized(op, "inspection is assigned to another inspector")
	}
	return nil
}

func (s *workflowService) notifyAssigned(ctx context.Context, actorID uint, inspection *model.Inspection, details map[string]string) {
	s.dispatcher.Dispatch(ctx, Step{
		ActorID:      actorID,
		RecipientIDs: []uint{derefUint(inspection.InspectorID)},
		EntityKind:   model.EntityInspection,
		EntityID:     inspection.ID,
		Outcome:      OutcomeAssigned,
		Details:      details,
		Once:         true,
	})
}

func newInspection(businessID, requestedBy uint, input InspectionInput, status model.InspectionStatus) *model.Inspection {
	priority := input.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	return &model.Inspection{
		BusinessID:     businessID,
		InspectionType: input.InspectionType,
		ScheduledDate:  input.ScheduledDate,
		Status:         status,
		Priority:       priority,
		Notes:          input.Notes,
		RequestedBy:    requestedBy,
	}
}

func without(ids []uint, exclude uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}
