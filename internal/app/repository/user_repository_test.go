package repository

import (
	"testing"

	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupUserTest(t *testing.T) (*db.Stores, UserRepository) {
	stores, err := db.SetupTestStores()
	require.NoError(t, err)

	return stores, NewUserRepository(stores.Identity)
}

func TestUserRepository_Create(t *testing.T) {
	stores, repo := setupUserTest(t)
	defer db.CleanupTestStores(stores)

	tests := []struct {
		name    string
		user    *model.User
		wantErr bool
	}{
		{
			name: "Valid user",
			user: &model.User{
				Email:         "owner@example.com",
				Name:          "Test Owner",
				Phone:         "010-1234-5678",
				Role:          model.RoleBusinessOwner,
				AccountStatus: model.AccountPendingApproval,
			},
			wantErr: false,
		},
		{
			name: "Duplicate email",
			user: &model.User{
				Email: "owner@example.com",
				Name:  "Another Owner",
				Role:  model.RoleBusinessOwner,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(tt.user)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.NotZero(t, tt.user.ID)
			}
		})
	}
}

func TestUserRepository_FindByRole(t *testing.T) {
	stores, repo := setupUserTest(t)
	defer db.CleanupTestStores(stores)

	for i, role := range []model.UserRole{model.RoleAdmin, model.RoleSuperAdmin, model.RoleInspector, model.RoleAdmin} {
		require.NoError(t, repo.Create(&model.User{
			Email: string(role) + string(rune('a'+i)) + "@example.com",
			Name:  "User",
			Role:  role,
		}))
	}

	admins, err := repo.FindByRole(model.RoleAdmin, model.RoleSuperAdmin)
	require.NoError(t, err)
	assert.Len(t, admins, 3)

	inspectors, err := repo.FindByRole(model.RoleInspector)
	require.NoError(t, err)
	assert.Len(t, inspectors, 1)
}

func TestUserRepository_UpdateAccountStatus(t *testing.T) {
	stores, repo := setupUserTest(t)
	defer db.CleanupTestStores(stores)

	user := &model.User{
		Email:         "owner@example.com",
		Name:          "Owner",
		Role:          model.RoleBusinessOwner,
		AccountStatus: model.AccountPendingApproval,
	}
	require.NoError(t, repo.Create(user))

	require.NoError(t, repo.UpdateAccountStatus(user.ID, model.AccountActive))

	found, err := repo.FindByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountActive, found.AccountStatus)

	err = repo.UpdateAccountStatus(9999, model.AccountActive)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_UpdateProfile(t *testing.T) {
	stores, repo := setupUserTest(t)
	defer db.CleanupTestStores(stores)

	user := &model.User{Email: "insp@example.com", Name: "Inspector", Role: model.RoleInspector}
	require.NoError(t, repo.Create(user))

	require.NoError(t, repo.UpdateProfile(user.ID, map[string]interface{}{
		"phone":      "010-0000-1111",
		"department": "Food Safety",
	}))

	found, err := repo.FindByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "010-0000-1111", found.Phone)
	assert.Equal(t, "Food Safety", found.Department)
}
