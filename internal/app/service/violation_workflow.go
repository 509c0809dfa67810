package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ikkim/inspection-backend/internal/app/lifecycle"
	"github.com/ikkim/inspection-backend/internal/app/model"
	apperrors "github.com/ikkim/inspection-backend/internal/errors"
)

// ReportViolationInput 위반 신고 입력. InspectionID 가 0 이면 미연결 신고.
type ReportViolationInput struct {
	BusinessID   uint                    `json:"business_id" validate:"required"`
	InspectionID uint                    `json:"inspection_id"`
	Description  string                  `json:"description" validate:"required,max=2000"`
	Severity     model.ViolationSeverity `json:"severity" validate:"required,oneof=low medium high critical"`
	DueDate      time.Time               `json:"due_date" validate:"required"`
}

// UpdateViolationInput 위반 수정 입력. Action 없이 필드만 바꿀 수도 있다.
type UpdateViolationInput struct {
	Action       lifecycle.Action         `json:"action" validate:"omitempty,oneof=start_work resolve close reopen"`
	ResolvedDate *time.Time               `json:"resolved_date"`
	Description  *string                  `json:"description" validate:"omitempty,max=2000"`
	Severity     *model.ViolationSeverity `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	DueDate      *time.Time               `json:"due_date"`
}

// LinkResult 위반-점검 연결 결과. Linked 가 false 이면 점검만 생성된 상태.
type LinkResult struct {
	Inspection  *model.Inspection `json:"inspection"`
	ViolationID uint              `json:"violation_id"`
	Linked      bool              `json:"linked"`
}

func (s *workflowService) ReportViolation(ctx context.Context, actor Actor, input ReportViolationInput) (violation *model.Violation, err error) {
	const op = "ReportViolation"
	defer s.track(op, time.Now(), &err)

	if err = s.authorize(op, actor, PermReportViolation); err != nil {
		return nil, err
	}
	input.Description = strings.TrimSpace(input.Description)
	if err = validateInput(op, input); err != nil {
		return nil, err
	}

	business, err := s.loadBusiness(op, input.BusinessID)
	if err != nil {
		return nil, err
	}
	if input.InspectionID != model.UnlinkedInspection {
		inspection, lerr := s.loadInspection(op, input.InspectionID)
		if lerr != nil {
			return nil, lerr
		}
		if inspection.BusinessID != business.ID {
			return nil, apperrors.NewValidation(op, map[string]string{
				"inspection_id": "belongs to another business",
			})
		}
	}

	violation = &model.Violation{
		InspectionID: input.InspectionID,
		BusinessID:   business.ID,
		ReportedBy:   actor.ID,
		Description:  input.Description,
		Severity:     input.Severity,
		Status:       model.ViolationOpen,
		DueDate:      input.DueDate,
	}
	if cerr := s.violations.Create(violation); cerr != nil {
		return nil, apperrors.NewStoreUnavailable(op, cerr)
	}

	s.dispatcher.Dispatch(ctx, Step{
		ActorID:      actor.ID,
		RecipientIDs: []uint{business.OwnerID},
		EntityKind:   model.EntityViolation,
		EntityID:     violation.ID,
		Outcome:      OutcomeViolationReported,
		Details: map[string]string{
			"business":    business.Name,
			"severity":    string(violation.Severity),
			"description": violation.Description,
			"date":        violation.DueDate.Format("2006-01-02"),
		},
	})
	return violation, nil
}

// LinkViolationToNewInspection schedules a follow-up inspection for an
// unlinked violation and ties the two together. A violation is linked once.
func (s *workflowService) LinkViolationToNewInspection(ctx context.Context, actor Actor, violationID uint, input InspectionInput) (result *LinkResult, err error) {
	const op = "LinkViolationToNewInspection"
	defer s.track(op, time.Now(), &err)

	if err = s.authorize(op, actor, PermScheduleInspection); err != nil {
		return nil, err
	}
	if err = validateInput(op, input); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, op, "violation", violationID)
	if err != nil {
		return nil, err
	}
	defer release()

	violation, err := s.loadViolation(op, violationID)
	if err != nil {
		return nil, err
	}
	state := lifecycle.LinkState(violation.InspectionID)
	if !canLink(state) {
		return nil, transitionErr(op, &lifecycle.Rejection{
			Kind:   lifecycle.KindViolationLink,
			From:   state,
			Action: lifecycle.ActionLink,
			Reason: "violation is already linked to an inspection",
		})
	}

	business, err := s.loadBusiness(op, violation.BusinessID)
	if err != nil {
		return nil, err
	}

	inspection, err := s.createScheduled(op, actor, business, input)
	if err != nil {
		return nil, err
	}
	result = &LinkResult{Inspection: inspection, ViolationID: violationID}

	if _, terr := lifecycle.Transition(lifecycle.KindViolationLink, state, lifecycle.ActionLink, lifecycle.Context{InspectionID: inspection.ID}); terr != nil {
		return result, s.linkFailed(op, violationID, inspection.ID, terr)
	}
	ok, lerr := s.violations.LinkInspectionIfUnlinked(violationID, inspection.ID)
	if lerr != nil {
		return result, s.linkFailed(op, violationID, inspection.ID, lerr)
	}
	if !ok {
		return result, s.linkFailed(op, violationID, inspection.ID, errors.New("violation was linked by another request"))
	}
	result.Linked = true

	details := inspectionDetails(inspection, business)
	s.dispatcher.Dispatch(ctx, Step{
		ActorID:      actor.ID,
		RecipientIDs: []uint{business.OwnerID, derefUint(inspection.InspectorID)},
		EntityKind:   model.EntityViolation,
		EntityID:     violationID,
		Outcome:      OutcomeViolationLinked,
		Details:      details,
	})
	if inspection.InspectorID != nil {
		s.notifyAssigned(ctx, actor.ID, inspection, details)
	}
	return result, nil
}

func (s *workflowService) linkFailed(op string, violationID, inspectionID uint, cause error) error {
	secondaryFailure(op, StepViolationLink, cause, map[string]interface{}{
		"violation_id":  violationID,
		"inspection_id": inspectionID,
	})
	return apperrors.NewPartialFailure(op, []string{StepInspection}, []string{StepViolationLink}, cause)
}

func canLink(state string) bool {
	for _, action := range lifecycle.Allowed(lifecycle.KindViolationLink, state) {
		if action == lifecycle.ActionLink {
			return true
		}
	}
	return false
}

func (s *workflowService) UpdateViolation(ctx context.Context, actor Actor, violationID uint, input UpdateViolationInput) (violation *model.Violation, err error) {
	const op = "UpdateViolation"
	defer s.track(op, time.Now(), &err)

	if err = s.authorize(op, actor, PermManageViolation); err != nil {
		return nil, err
	}
	if err = validateInput(op, input); err != nil {
		return nil, err
	}
	fields, err := violationFields(op, input)
	if err != nil {
		return nil, err
	}
	if input.Action == "" && len(fields) == 0 {
		return nil, apperrors.NewValidation(op, map[string]string{"input": "nothing to update"})
	}
	if input.Action == lifecycle.ActionResolve && (input.ResolvedDate == nil || input.ResolvedDate.IsZero()) {
		return nil, apperrors.NewValidation(op, map[string]string{"resolved_date": "is required"})
	}

	release, err := s.lock(ctx, op, "violation", violationID)
	if err != nil {
		return nil, err
	}
	defer release()

	violation, err = s.loadViolation(op, violationID)
	if err != nil {
		return nil, err
	}

	if input.Action != "" {
		next, terr := lifecycle.NextViolationStatus(violation.Status, input.Action, lifecycle.Context{Date: input.ResolvedDate})
		if terr != nil {
			return nil, transitionErr(op, terr)
		}
		switch {
		case input.Action == lifecycle.ActionResolve:
			fields["resolved_date"] = *input.ResolvedDate
		case !next.RequiresResolvedDate():
			fields["resolved_date"] = nil
		case violation.ResolvedDate == nil:
			// resolved/closed 위반은 해결일이 있어야 한다
			return nil, apperrors.NewValidation(op, map[string]string{"resolved_date": "is missing on the violation"})
		}

		ok, werr := s.violations.UpdateStatusIfCurrent(violationID, violation.Status, next, fields)
		if werr != nil {
			return nil, apperrors.NewStoreUnavailable(op, werr)
		}
		if !ok {
			return nil, lostRace(op, "violation", violationID, string(violation.Status))
		}
		violation.Status = next
	} else if uerr := s.violations.Update(violationID, fields); uerr != nil {
		return nil, lookupErr(op, "violation", violationID, uerr)
	}
	applyViolationFields(violation, input)

	business := s.businessForNotice(violation.BusinessID)
	s.dispatcher.Dispatch(ctx, Step{
		ActorID:      actor.ID,
		RecipientIDs: without([]uint{business.OwnerID}, actor.ID),
		EntityKind:   model.EntityViolation,
		EntityID:     violation.ID,
		Outcome:      OutcomeViolationUpdated,
		Details: map[string]string{
			"business": business.Name,
			"status":   string(violation.Status),
		},
	})
	return violation, nil
}

// violationFields collects the plain field edits carried by input.
func violationFields(op string, input UpdateViolationInput) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, apperrors.NewValidation(op, map[string]string{"description": "is required"})
		}
		fields["description"] = description
	}
	if input.Severity != nil {
		fields["severity"] = *input.Severity
	}
	if input.DueDate != nil {
		if input.DueDate.IsZero() {
			return nil, apperrors.NewValidation(op, map[string]string{"due_date": "is required"})
		}
		fields["due_date"] = *input.DueDate
	}
	return fields, nil
}

func applyViolationFields(violation *model.Violation, input UpdateViolationInput) {
	if input.Description != nil {
		violation.Description = strings.TrimSpace(*input.Description)
	}
	if input.Severity != nil {
		violation.Severity = *input.Severity
	}
	if input.DueDate != nil {
		violation.DueDate = *input.DueDate
	}
	switch {
	case input.Action == lifecycle.ActionResolve:
		resolved := *input.ResolvedDate
		violation.ResolvedDate = &resolved
	case !violation.Status.RequiresResolvedDate():
		violation.ResolvedDate = nil
	}
}
