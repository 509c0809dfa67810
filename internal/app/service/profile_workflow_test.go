package service

import (
	"context"
	"testing"

	"github.com/ikkim/inspection-backend/internal/app/model"
	apperrors "github.com/ikkim/inspection-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestWorkflowService_UpdateUserProfile_Self(t *testing.T) {
	f := setupWorkflowTest(t)

	user, err := f.svc.UpdateUserProfile(context.Background(), actorOf(f.owner), f.owner.ID, ProfileInput{
		Name:  strPtr("Kim Owner"),
		Phone: strPtr("010-1234-5678"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Kim Owner", user.Name)

	stored, err := f.users.FindByID(f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kim Owner", stored.Name)
	assert.Equal(t, "010-1234-5678", stored.Phone)
}

func TestWorkflowService_UpdateUserProfile_Credentials(t *testing.T) {
	f := setupWorkflowTest(t)

	// 점검관 본인은 자격 정보를 바꿀 수 없다
	_, err := f.svc.UpdateUserProfile(context.Background(), actorOf(f.inspector), f.inspector.ID, ProfileInput{
		Certification: strPtr("Level 3"),
	})
	assertKind(t, err, apperrors.KindUnauthorized)

	user, err := f.svc.UpdateUserProfile(context.Background(), actorOf(f.admin), f.inspector.ID, ProfileInput{
		Department:    strPtr("Fire Safety"),
		Certification: strPtr("Level 3"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Fire Safety", user.Department)

	stored, err := f.users.FindByID(f.inspector.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fire Safety", stored.Department)
	assert.Equal(t, "Level 3", stored.Certification)

	// 점검관이 아닌 사용자에게는 자격 정보가 없다
	_, err = f.svc.UpdateUserProfile(context.Background(), actorOf(f.admin), f.owner.ID, ProfileInput{
		Department: strPtr("Fire Safety"),
	})
	assertKind(t, err, apperrors.KindValidation)
}

func TestWorkflowService_UpdateUserProfile_Rejects(t *testing.T) {
	f := setupWorkflowTest(t)

	tests := []struct {
		name   string
		actor  Actor
		userID uint
		input  ProfileInput
		kind   apperrors.Kind
	}{
		{
			name:   "another user's profile",
			actor:  actorOf(f.owner),
			userID: f.citizen.ID,
			input:  ProfileInput{Name: strPtr("Mallory")},
			kind:   apperrors.KindUnauthorized,
		},
		{
			name:   "nothing to update",
			actor:  actorOf(f.owner),
			userID: f.owner.ID,
			input:  ProfileInput{},
			kind:   apperrors.KindValidation,
		},
		{
			name:   "blank name",
			actor:  actorOf(f.owner),
			userID: f.owner.ID,
			input:  ProfileInput{Name: strPtr(" ")},
			kind:   apperrors.KindValidation,
		},
		{
			name:   "unknown user",
			actor:  actorOf(f.superAdmin),
			userID: 9999,
			input:  ProfileInput{Name: strPtr("Ghost")},
			kind:   apperrors.KindNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateUserProfile(context.Background(), tt.actor, tt.userID, tt.input)
			assertKind(t, err, tt.kind)
		})
	}

	stored, err := f.users.FindByID(f.citizen.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.RoleCommunityUser), stored.Name)
}
