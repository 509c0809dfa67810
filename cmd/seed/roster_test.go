package main

import (
	"path/filepath"
	"testing"

	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeRoster(t *testing.T, rows [][]interface{}) string {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}

	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadRosterFromXLSX(t *testing.T) {
	path := writeRoster(t, [][]interface{}{
		{"email", "name", "role", "phone", "department", "certification"},
		{"Inspector@City.gov ", "Park Inspector", "inspector", "010-1111-2222", "Fire Safety", "Level 2"},
		{"admin@city.gov", "Lee Admin", "ADMIN", "", "Ignored Dept", "Ignored Cert"},
		{"inspector@city.gov", "Duplicate", "inspector"},
		{"nobody@city.gov", "Nobody", "mayor"},
		{"", "No Email", "admin"},
	})

	users, skipped, err := readRosterFromXLSX(path)
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.Equal(t, "inspector@city.gov", users[0].Email)
	assert.Equal(t, model.RoleInspector, users[0].Role)
	assert.Equal(t, "Fire Safety", users[0].Department)
	assert.Equal(t, "Level 2", users[0].Certification)
	assert.Equal(t, model.AccountActive, users[0].AccountStatus)

	assert.Equal(t, model.RoleAdmin, users[1].Role)
	assert.Empty(t, users[1].Department)
	assert.Empty(t, users[1].Certification)

	require.Len(t, skipped, 3)
	assert.Equal(t, 4, skipped[0].Row)
	assert.Contains(t, skipped[0].Reason, "duplicate")
	assert.Equal(t, 5, skipped[1].Row)
	assert.Contains(t, skipped[1].Reason, "unknown role")
	assert.Equal(t, 6, skipped[2].Row)
}

func TestReadRosterFromXLSX_HeaderOnly(t *testing.T) {
	path := writeRoster(t, [][]interface{}{
		{"email", "name", "role"},
	})

	_, _, err := readRosterFromXLSX(path)
	assert.Error(t, err)
}

func TestReadRosterFromXLSX_MissingFile(t *testing.T) {
	_, _, err := readRosterFromXLSX(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}
