package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ikkim/inspection-backend/internal/app/lifecycle"
	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/internal/app/repository"
	"github.com/ikkim/inspection-backend/internal/db"
	apperrors "github.com/ikkim/inspection-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixtureNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type workflowFixture struct {
	svc           WorkflowService
	users         repository.UserRepository
	businesses    repository.BusinessRepository
	inspections   repository.InspectionRepository
	violations    repository.ViolationRepository
	notifications repository.NotificationRepository

	superAdmin *model.User
	admin      *model.User
	inspector  *model.User
	inspector2 *model.User
	owner      *model.User
	citizen    *model.User
}

func setupWorkflowTest(t *testing.T) *workflowFixture {
	return setupWorkflowTestWith(t, nil)
}

// setupWorkflowTestWith lets a test swap dependencies (failing gateways,
// lockers) before the service is built.
func setupWorkflowTestWith(t *testing.T, customize func(*WorkflowDeps)) *workflowFixture {
	stores, err := db.SetupTestStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestStores(stores)
	})

	f := &workflowFixture{
		users:         repository.NewUserRepository(stores.Identity),
		businesses:    repository.NewBusinessRepository(stores.Business),
		inspections:   repository.NewInspectionRepository(stores.Scheduling),
		violations:    repository.NewViolationRepository(stores.Violation),
		notifications: repository.NewNotificationRepository(stores.Notification),
	}

	f.superAdmin = f.createUser(t, "root@city.gov", model.RoleSuperAdmin)
	f.admin = f.createUser(t, "admin@city.gov", model.RoleAdmin)
	f.inspector = f.createUser(t, "inspector@city.gov", model.RoleInspector)
	f.inspector2 = f.createUser(t, "inspector2@city.gov", model.RoleInspector)
	f.owner = f.createUser(t, "owner@example.com", model.RoleBusinessOwner)
	f.citizen = f.createUser(t, "citizen@example.com", model.RoleCommunityUser)

	deps := WorkflowDeps{
		Users:       f.users,
		Businesses:  f.businesses,
		Inspections: f.inspections,
		Violations:  f.violations,
		Gate:        NewPolicyGate(f.businesses),
		Dispatcher:  NewNotificationDispatcher(f.notifications, nil, nil),
		Now:         func() time.Time { return fixtureNow },
	}
	if customize != nil {
		customize(&deps)
	}
	f.svc = NewWorkflowService(deps)
	return f
}

func (f *workflowFixture) createUser(t *testing.T, email string, role model.UserRole) *model.User {
	user := &model.User{
		Email:         email,
		Name:          string(role),
		Role:          role,
		AccountStatus: model.AccountActive,
	}
	require.NoError(t, f.users.Create(user))
	return user
}

func actorOf(user *model.User) Actor {
	return Actor{ID: user.ID, Role: user.Role}
}

func documentInputs(prefix string) []DocumentInput {
	docs := make([]DocumentInput, 0, len(model.RequiredDocumentTypes))
	for _, docType := range model.RequiredDocumentTypes {
		docs = append(docs, DocumentInput{
			DocumentType: docType,
			FileKey:      fmt.Sprintf("%s/%s.pdf", prefix, docType),
		})
	}
	return docs
}

func applicationInput(name string) SubmitApplicationInput {
	return SubmitApplicationInput{
		Name:               name,
		RegistrationNumber: "123-45-67890",
		Address:            "1 Main St",
		ContactEmail:       "contact@example.com",
		BusinessType:       "restaurant",
		Documents:          documentInputs(name),
	}
}

func inspectionInput() InspectionInput {
	return InspectionInput{
		InspectionType: "fire_safety",
		ScheduledDate:  fixtureNow.Add(72 * time.Hour),
	}
}

func (f *workflowFixture) submit(t *testing.T) *model.Business {
	business, err := f.svc.SubmitApplication(context.Background(), actorOf(f.owner), applicationInput("Corner Cafe"))
	require.NoError(t, err)
	return business
}

func (f *workflowFixture) verifiedBusiness(t *testing.T) *model.Business {
	business := f.submit(t)
	_, err := f.svc.ReviewApplication(context.Background(), actorOf(f.admin), business.ID, ReviewApplicationInput{
		Action: lifecycle.ActionApprove,
	})
	require.NoError(t, err)
	business, err = f.businesses.FindByID(business.ID)
	require.NoError(t, err)
	return business
}

// requestInspections creates n owner-requested inspections with no inspector.
func (f *workflowFixture) requestInspections(t *testing.T, business *model.Business, n int) []*model.Inspection {
	out := make([]*model.Inspection, 0, n)
	for i := 0; i < n; i++ {
		inspection, err := f.svc.RequestInspection(context.Background(), actorOf(f.owner), business.ID, inspectionInput())
		require.NoError(t, err)
		out = append(out, inspection)
	}
	return out
}

func (f *workflowFixture) notificationsFor(t *testing.T, userID uint) []model.Notification {
	list, _, err := f.notifications.GetNotifications(userID, nil, nil, 100, 0)
	require.NoError(t, err)
	return list
}

func countOutcome(list []model.Notification, outcome Outcome) int {
	n := 0
	for _, notification := range list {
		if notification.Outcome == string(outcome) {
			n++
		}
	}
	return n
}

func assertKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperrors.KindOf(err), "unexpected error: %v", err)
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, string) (func(), error) {
	return nil, errors.New("redis: connection refused")
}

type recordingLocker struct {
	keys     []string
	released int
}

func (l *recordingLocker) Lock(_ context.Context, key string) (func(), error) {
	l.keys = append(l.keys, key)
	return func() { l.released++ }, nil
}

func TestWorkflowService_LocksPrimaryEntity(t *testing.T) {
	locker := &recordingLocker{}
	f := setupWorkflowTestWith(t, func(deps *WorkflowDeps) {
		deps.Locker = locker
	})
	business := f.submit(t)

	_, err := f.svc.ReviewApplication(context.Background(), actorOf(f.admin), business.ID, ReviewApplicationInput{
		Action: lifecycle.ActionApprove,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{fmt.Sprintf("owner:%d", f.owner.ID), fmt.Sprintf("business:%d", business.ID)}, locker.keys)
	assert.Equal(t, 2, locker.released)
}

func TestWorkflowService_LockFailureIsStoreUnavailable(t *testing.T) {
	f := setupWorkflowTestWith(t, func(deps *WorkflowDeps) {
		deps.Locker = failingLocker{}
	})

	_, err := f.svc.SubmitApplication(context.Background(), actorOf(f.owner), applicationInput("Corner Cafe"))
	assertKind(t, err, apperrors.KindStoreUnavailable)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)

	// nothing was written
	_, ferr := f.businesses.FindByOwnerID(f.owner.ID)
	assert.Error(t, ferr)
}

func TestWorkflowService_UnauthorizedWritesNothing(t *testing.T) {
	f := setupWorkflowTest(t)
	business := f.submit(t)
	other := f.createUser(t, "other@example.com", model.RoleBusinessOwner)

	tests := []struct {
		name string
		run  func() error
	}{
		{
			name: "owner cannot review",
			run: func() error {
				_, err := f.svc.ReviewApplication(context.Background(), actorOf(f.owner), business.ID, ReviewApplicationInput{Action: lifecycle.ActionApprove})
				return err
			},
		},
		{
			name: "inspector cannot assign",
			run: func() error {
				_, err := f.svc.AssignInspectorToBusiness(context.Background(), actorOf(f.inspector), business.ID, f.inspector.ID)
				return err
			},
		},
		{
			name: "citizen cannot submit",
			run: func() error {
				_, err := f.svc.SubmitApplication(context.Background(), actorOf(f.citizen), applicationInput("Other"))
				return err
			},
		},
		{
			name: "another owner cannot resubmit",
			run: func() error {
				_, err := f.svc.ResubmitApplication(context.Background(), actorOf(other), business.ID, applicationInput("Hijack"))
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			assertKind(t, err, apperrors.KindUnauthorized)
		})
	}

	stored, err := f.businesses.FindByID(business.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BusinessPending, stored.Status)
	assert.Equal(t, "Corner Cafe", stored.Name)
	assert.Nil(t, stored.DefaultInspectorID)
}

func TestWorkflowService_NotFound(t *testing.T) {
	f := setupWorkflowTest(t)
	ctx := context.Background()

	_, err := f.svc.ReviewApplication(ctx, actorOf(f.admin), 9999, ReviewApplicationInput{Action: lifecycle.ActionApprove})
	assertKind(t, err, apperrors.KindNotFound)

	_, err = f.svc.StartInspection(ctx, actorOf(f.admin), 9999)
	assertKind(t, err, apperrors.KindNotFound)

	_, err = f.svc.UpdateViolation(ctx, actorOf(f.admin), 9999, UpdateViolationInput{Action: lifecycle.ActionReopen})
	assertKind(t, err, apperrors.KindNotFound)

	// 소유자 확인이 필요한 작업도 없는 사업장은 NotFound
	_, err = f.svc.ResubmitApplication(ctx, actorOf(f.owner), 9999, applicationInput("Ghost Shop"))
	assertKind(t, err, apperrors.KindNotFound)

	_, err = f.svc.RequestInspection(ctx, actorOf(f.owner), 9999, inspectionInput())
	assertKind(t, err, apperrors.KindNotFound)
}
