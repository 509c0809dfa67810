package service

import (
	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/internal/app/repository"
)

// Permission 워크플로 권한
type Permission string

const (
	PermReviewApplication        Permission = "review_application"
	PermSubmitApplication        Permission = "submit_application"
	PermRequestInspection        Permission = "request_inspection"
	PermScheduleInspection       Permission = "schedule_inspection"
	PermAssignInspector          Permission = "assign_inspector"
	PermPerformInspection        Permission = "perform_inspection"
	PermReportViolation          Permission = "report_violation"
	PermManageViolation          Permission = "manage_violation"
	PermEditInspectorCredentials Permission = "edit_inspector_credentials"
)

// Actor 워크플로를 호출한 사용자
type Actor struct {
	ID   uint
	Role model.UserRole
}

// AuthorizationGate answers role and ownership questions for the orchestrator.
type AuthorizationGate interface {
	Can(role model.UserRole, permission Permission) bool
	Owns(actorID, businessID uint) (bool, error)
}

var adminPermissions = []Permission{
	PermReviewApplication,
	PermScheduleInspection,
	PermAssignInspector,
	PermPerformInspection,
	PermReportViolation,
	PermManageViolation,
	PermEditInspectorCredentials,
}

// defaultRolePermissions 역할별 기본 권한표
func defaultRolePermissions() map[model.UserRole][]Permission {
	return map[model.UserRole][]Permission{
		model.RoleSuperAdmin:    append([]Permission{PermSubmitApplication, PermRequestInspection}, adminPermissions...),
		model.RoleAdmin:         adminPermissions,
		model.RoleInspector:     {PermPerformInspection, PermReportViolation, PermManageViolation},
		model.RoleBusinessOwner: {PermSubmitApplication, PermRequestInspection},
		model.RoleCommunityUser: {PermReportViolation},
	}
}

// PolicyGate is the default AuthorizationGate: a static role table plus
// ownership resolved through the Business Store.
type PolicyGate struct {
	permissions map[model.UserRole]map[Permission]bool
	businesses  repository.BusinessRepository
}

func NewPolicyGate(businesses repository.BusinessRepository) *PolicyGate {
	permissions := make(map[model.UserRole]map[Permission]bool)
	for role, perms := range defaultRolePermissions() {
		set := make(map[Permission]bool, len(perms))
		for _, p := range perms {
			set[p] = true
		}
		permissions[role] = set
	}
	return &PolicyGate{permissions: permissions, businesses: businesses}
}

func (g *PolicyGate) Can(role model.UserRole, permission Permission) bool {
	return g.permissions[role][permission]
}

// Owns reports whether actorID is the recorded owner of businessID.
// A missing business returns gorm.ErrRecordNotFound so callers can report NotFound.
func (g *PolicyGate) Owns(actorID, businessID uint) (bool, error) {
	business, err := g.businesses.FindByID(businessID)
	if err != nil {
		return false, err
	}
	return business.OwnerID == actorID, nil
}
