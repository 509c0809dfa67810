package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ikkim/inspection-backend/internal/app/lifecycle"
	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/internal/app/repository"
	apperrors "github.com/ikkim/inspection-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyViolationRepository struct {
	repository.ViolationRepository
	failLink bool
}

func (r *flakyViolationRepository) LinkInspectionIfUnlinked(id, inspectionID uint) (bool, error) {
	if r.failLink {
		return false, errors.New("violation store unavailable")
	}
	return r.ViolationRepository.LinkInspectionIfUnlinked(id, inspectionID)
}

func violationInput(businessID uint) ReportViolationInput {
	return ReportViolationInput{
		BusinessID:  businessID,
		Description: "blocked fire exit",
		Severity:    model.SeverityHigh,
		DueDate:     fixtureNow.Add(14 * 24 * time.Hour),
	}
}

func (f *workflowFixture) reportViolation(t *testing.T, business *model.Business) *model.Violation {
	violation, err := f.svc.ReportViolation(context.Background(), actorOf(f.citizen), violationInput(business.ID))
	require.NoError(t, err)
	return violation
}

func TestWorkflowService_ReportViolation(t *testing.T) {
	f := setupWorkflowTest(t)
	business := f.verifiedBusiness(t)

	violation := f.reportViolation(t, business)
	assert.Equal(t, model.ViolationOpen, violation.Status)
	assert.Equal(t, model.UnlinkedInspection, violation.InspectionID)
	assert.False(t, violation.IsLinked())
	assert.Equal(t, f.citizen.ID, violation.ReportedBy)
	assert.Nil(t, violation.ResolvedDate)

	notifications := f.notificationsFor(t, f.owner.ID)
	require.Equal(t, 1, countOutcome(notifications, OutcomeViolationReported))
	for _, n := range notifications {
		if n.Outcome == string(OutcomeViolationReported) {
			assert.Contains(t, n.Message, "blocked fire exit")
			assert.Contains(t, n.Message, "high")
		}
	}
}

func TestWorkflowService_ReportViolation_Validation(t *testing.T) {
	f := setupWorkflowTest(t)
	business := f.verifiedBusiness(t)

	tests := []struct {
		name      string
		mutate    func(*ReportViolationInput)
		wantField string
	}{
		{
			name:      "blank description",
			mutate:    func(in *ReportViolationInput) { in.Description = "   " },
			wantField: "description",
		},
		{
			name:      "unknown severity",
			mutate:    func(in *ReportViolationInput) { in.Severity = "catastrophic" },
			wantField: "severity",
		},
		{
			name:      "missing due date",
			mutate:    func(in *ReportViolationInput) { in.DueDate = time.Time{} },
			wantField: "due_date",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := violationInput(business.ID)
			tt.mutate(&input)

			_, err := f.svc.ReportViolation(context.Background(), actorOf(f.citizen), input)
			assertKind(t, err, apperrors.KindValidation)

			var we *apperrors.WorkflowError
			require.True(t, errors.As(err, &we))
			assert.Contains(t, we.Fields, tt.wantField)
		})
	}
}

func TestWorkflowService_ReportViolation_WithInspection(t *testing.T) {
	f := setupWorkflowTest(t)
	business := f.verifiedBusiness(t)
	inspection := f.requestInspections(t, business, 1)[0]

	input := violationInput(business.ID)
	input.InspectionID = inspection.ID
	violation, err := f.svc.ReportViolation(context.Background(), actorOf(f.inspector), input)
	require.NoError(t, err)
	assert.Equal(t, inspection.ID, violation.InspectionID)

	// 다른 사업장의 점검에는 연결할 수 없다
	otherOwner := f.createUser(t, "other@example.com", model.RoleBusinessOwner)
	other, err := f.svc.SubmitApplication(context.Background(), actorOf(otherOwner), applicationInput("Other Shop"))
	require.NoError(t, err)

	input = violationInput(other.ID)
	input.InspectionID = inspection.ID
	_, err = f.svc.ReportViolation(context.Background(), actorOf(f.inspector), input)
	assertKind(t, err, apperrors.KindValidation)

	input.InspectionID = 9999
	_, err = f.svc.ReportViolation(context.Background(), actorOf(f.inspector), input)
	assertKind(t, err, apperrors.KindNotFound)
}

func TestWorkflowService_ReportViolation_UnknownBusiness(t *testing.T) {
	f := setupWorkflowTest(t)

	_, err := f.svc.ReportViolation(context.Background(), actorOf(f.citizen), violationInput(9999))
	assertKind(t, err, apperrors.KindNotFound)
}

func TestWorkflowService_LinkViolationToNewInspection(t *testing.T) {
	f := setupWorkflowTest(t)
	business := f.verifiedBusiness(t)
	violation := f.reportViolation(t, business)

	input := inspectionInput()
	input.InspectorID = f.inspector.ID
	result, err := f.svc.LinkViolationToNewInspection(context.Background(), actorOf(f.admin), violation.ID, input)
	require.NoError(t, err)
	assert.True(t, result.Linked)
	assert.Equal(t, violation.ID, result.ViolationID)
	require.NotNil(t, result.Inspection)
	assert.Equal(t, model.InspectionScheduled, result.Inspection.Status)

	storedInspection, err := f.inspections.FindByID(result.Inspection.ID)
	require.NoError(t, err)
	assert.Equal(t, business.ID, storedInspection.BusinessID)
	assert.Equal(t, model.InspectionScheduled, storedInspection.Status)

	storedViolation, err := f.violations.FindByID(violation.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Inspection.ID, storedViolation.InspectionID)

	assert.Equal(t, 1, countOutcome(f.notificationsFor(t, f.owner.ID), OutcomeViolationLinked))
	assert.Equal(t, 1, countOutcome(f.notificationsFor(t, f.inspector.ID), OutcomeViolationLinked))

	// 한 번 연결된 위반은 다시 연결할 수 없다
	_, err = f.svc.LinkViolationToNewInspection(context.Background(), actorOf(f.admin), violation.ID, inspectionInput())
	assertKind(t, err, apperrors.KindInvalidTransition)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	storedViolation, err = f.violations.FindByID(violation.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Inspection.ID, storedViolation.InspectionID)
}

func TestWorkflowService_LinkViolationToNewInspection_AlreadyLinkedAtReport(t *testing.T) {
	f := setupWorkflowTest(t)
	business := f.verifiedBusiness(t)
	inspection := f.requestInspections(t, business, 1)[0]

	input := violationInput(business.ID)
	input.InspectionID = inspection.ID
	violation, err := f.svc.ReportViolation(context.Background(), actorOf(f.admin), input)
	require.NoError(t, err)

	_, err = f.svc.LinkViolationToNewInspection(context.Background(), actorOf(f.admin), violation.ID, inspectionInput())
	assertKind(t, err, apperrors.KindInvalidTransition)
}

func TestWorkflowService_LinkViolationToNewInspection_LinkFails(t *testing.T) {
	var violations *flakyViolationRepository
	f := setupWorkflowTestWith(t, func(deps *WorkflowDeps) {
		violations = &flakyViolationRepository{ViolationRepository: deps.Violations}
		deps.Violations = violations
	})
	business := f.verifiedBusiness(t)
	violation := f.reportViolation(t, business)
	violations.failLink = true

	result, err := f.svc.LinkViolationToNewInspection(context.Background(), actorOf(f.admin), violation.ID, inspectionInput())
	assertKind(t, err, apperrors.KindPartialFailure)
	require.NotNil(t, result)
	assert.False(t, result.Linked)
	require.NotNil(t, result.Inspection)

	var we *apperrors.WorkflowError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, []string{StepInspection}, we.Committed)
	assert.Equal(t, []string{StepViolationLink}, we.Failed)

	// 점검은 생성되었고 위반은 아직 미연결
	_, ferr := f.inspections.FindByID(result.Inspection.ID)
	assert.NoError(t, ferr)
	stored, ferr := f.violations.FindByID(violation.ID)
	require.NoError(t, ferr)
	assert.False(t, stored.IsLinked())
}

func TestWorkflowService_UpdateViolation_Lifecycle(t *testing.T) {
	f := setupWorkflowTest(t)
	business := f.verifiedBusiness(t)
	violation := f.reportViolation(t, business)
	ctx := context.Background()
	inspector := actorOf(f.inspector)

	_, err := f.svc.UpdateViolation(ctx, inspector, violation.ID, UpdateViolationInput{Action: lifecycle.ActionClose})
	assertKind(t, err, apperrors.KindInvalidTransition)

	updated, err := f.svc.UpdateViolation(ctx, inspector, violation.ID, UpdateViolationInput{Action: lifecycle.ActionStartWork})
	require.NoError(t, err)
	assert.Equal(t, model.ViolationInProgress, updated.Status)

	_, err = f.svc.UpdateViolation(ctx, inspector, violation.ID, UpdateViolationInput{Action: lifecycle.ActionResolve})
	assertKind(t, err, apperrors.KindValidation)

	resolvedOn := fixtureNow.Add(24 * time.Hour)
	updated, err = f.svc.UpdateViolation(ctx, inspector, violation.ID, UpdateViolationInput{
		Action:       lifecycle.ActionResolve,
		ResolvedDate: &resolvedOn,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ViolationResolved, updated.Status)
	require.NotNil(t, updated.ResolvedDate)

	updated, err = f.svc.UpdateViolation(ctx, inspector, violation.ID, UpdateViolationInput{Action: lifecycle.ActionClose})
	require.NoError(t, err)
	assert.Equal(t, model.ViolationClosed, updated.Status)

	stored, err := f.violations.FindByID(violation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ViolationClosed, stored.Status)
	require.NotNil(t, stored.ResolvedDate)
	assert.True(t, resolvedOn.Equal(*stored.ResolvedDate))

	updated, err = f.svc.UpdateViolation(ctx, actorOf(f.admin), violation.ID, UpdateViolationInput{Action: lifecycle.ActionReopen})
	require.NoError(t, err)
	assert.Equal(t, model.ViolationOpen, updated.Status)
	assert.Nil(t, updated.ResolvedDate)

	stored, err = f.violations.FindByID(violation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ViolationOpen, stored.Status)
	assert.Nil(t, stored.ResolvedDate)

	assert.Equal(t, 4, countOutcome(f.notificationsFor(t, f.owner.ID), OutcomeViolationUpdated))
}

func TestWorkflowService_UpdateViolation_CloseRequiresResolvedDate(t *testing.T) {
	f := setupWorkflowTest(t)
	business := f.verifiedBusiness(t)
	violation := f.reportViolation(t, business)

	// 해결일 없이 resolved 로 남은 행
	ok, err := f.violations.UpdateStatusIfCurrent(violation.ID, model.ViolationOpen, model.ViolationResolved, nil)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.UpdateViolation(context.Background(), actorOf(f.inspector), violation.ID, UpdateViolationInput{Action: lifecycle.ActionClose})
	assertKind(t, err, apperrors.KindValidation)

	stored, err := f.violations.FindByID(violation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ViolationResolved, stored.Status)

	// reopen 은 해결일 없이도 가능하다
	updated, err := f.svc.UpdateViolation(context.Background(), actorOf(f.admin), violation.ID, UpdateViolationInput{Action: lifecycle.ActionReopen})
	require.NoError(t, err)
	assert.Equal(t, model.ViolationOpen, updated.Status)
	assert.Nil(t, updated.ResolvedDate)
}

func TestWorkflowService_UpdateViolation_Fields(t *testing.T) {
	f := setupWorkflowTest(t)
	business := f.verifiedBusiness(t)
	violation := f.reportViolation(t, business)

	severity := model.SeverityCritical
	description := "blocked fire exit and missing extinguisher"
	updated, err := f.svc.UpdateViolation(context.Background(), actorOf(f.admin), violation.ID, UpdateViolationInput{
		Severity:    &severity,
		Description: &description,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ViolationOpen, updated.Status)
	assert.Equal(t, model.SeverityCritical, updated.Severity)

	stored, err := f.violations.FindByID(violation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeverityCritical, stored.Severity)
	assert.Equal(t, description, stored.Description)
}

func TestWorkflowService_UpdateViolation_Rejects(t *testing.T) {
	f := setupWorkflowTest(t)
	business := f.verifiedBusiness(t)
	violation := f.reportViolation(t, business)
	blank := "  "
	bogus := model.ViolationSeverity("apocalyptic")

	tests := []struct {
		name  string
		actor Actor
		input UpdateViolationInput
		kind  apperrors.Kind
	}{
		{name: "citizen", actor: actorOf(f.citizen), input: UpdateViolationInput{Action: lifecycle.ActionStartWork}, kind: apperrors.KindUnauthorized},
		{name: "owner", actor: actorOf(f.owner), input: UpdateViolationInput{Action: lifecycle.ActionStartWork}, kind: apperrors.KindUnauthorized},
		{name: "empty update", actor: actorOf(f.admin), input: UpdateViolationInput{}, kind: apperrors.KindValidation},
		{name: "blank description", actor: actorOf(f.admin), input: UpdateViolationInput{Description: &blank}, kind: apperrors.KindValidation},
		{name: "bad severity", actor: actorOf(f.admin), input: UpdateViolationInput{Severity: &bogus}, kind: apperrors.KindValidation},
		{name: "link is not an update", actor: actorOf(f.admin), input: UpdateViolationInput{Action: lifecycle.ActionLink}, kind: apperrors.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateViolation(context.Background(), tt.actor, violation.ID, tt.input)
			assertKind(t, err, tt.kind)
		})
	}

	stored, err := f.violations.FindByID(violation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ViolationOpen, stored.Status)
	assert.Equal(t, "blocked fire exit", stored.Description)
}
