package service

import (
	"context"
	"strings"
	"time"

	"github.com/ikkim/inspection-backend/internal/app/model"
	apperrors "github.com/ikkim/inspection-backend/internal/errors"
)

// ProfileInput 프로필 수정 입력. Department, Certification 은 점검관 자격 관리 권한이 필요하다.
type ProfileInput struct {
	Name          *string `json:"name" validate:"omitempty,max=100"`
	Phone         *string `json:"phone" validate:"omitempty,max=50"`
	Department    *string `json:"department" validate:"omitempty,max=100"`
	Certification *string `json:"certification" validate:"omitempty,max=100"`
}

func (s *workflowService) UpdateUserProfile(ctx context.Context, actor Actor, userID uint, input ProfileInput) (user *model.User, err error) {
	const op = "UpdateUserProfile"
	defer s.track(op, time.Now(), &err)

	canManage := s.gate.Can(actor.Role, PermEditInspectorCredentials)
	if actor.ID != userID && !canManage {
		return nil, apperrors.NewUnauthorized(op, "cannot edit another user's profile")
	}
	credentials := input.Department != nil || input.Certification != nil
	if credentials && !canManage {
		return nil, apperrors.NewUnauthorized(op, "role "+string(actor.Role)+" lacks "+string(PermEditInspectorCredentials))
	}
	if err = validateInput(op, input); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewValidation(op, map[string]string{"name": "is required"})
		}
		fields["name"] = name
	}
	if input.Phone != nil {
		fields["phone"] = *input.Phone
	}
	if input.Department != nil {
		fields["department"] = *input.Department
	}
	if input.Certification != nil {
		fields["certification"] = *input.Certification
	}
	if len(fields) == 0 {
		return nil, apperrors.NewValidation(op, map[string]string{"input": "nothing to update"})
	}

	release, err := s.lock(ctx, op, "user", userID)
	if err != nil {
		return nil, err
	}
	defer release()

	user, err = s.users.FindByID(userID)
	if err != nil {
		return nil, lookupErr(op, "user", userID, err)
	}
	if credentials && user.Role != model.RoleInspector {
		return nil, apperrors.NewValidation(op, map[string]string{"department": "only inspectors carry credentials"})
	}

	if uerr := s.users.UpdateProfile(userID, fields); uerr != nil {
		return nil, lookupErr(op, "user", userID, uerr)
	}

	if v, ok := fields["name"].(string); ok {
		user.Name = v
	}
	if input.Phone != nil {
		user.Phone = *input.Phone
	}
	if input.Department != nil {
		user.Department = *input.Department
	}
	if input.Certification != nil {
		user.Certification = *input.Certification
	}
	return user, nil
}
