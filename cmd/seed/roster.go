package main

import (
	"fmt"
	"strings"

	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/xuri/excelize/v2"
)

// 명단 시트 컬럼 순서: 이메일, 이름, 역할, 연락처, 부서, 자격
const (
	colEmail = iota
	colName
	colRole
	colPhone
	colDepartment
	colCertification
	rosterColumns
)

// rosterSkip 가져오지 않은 행과 사유
type rosterSkip struct {
	Row    int
	Reason string
}

// readRosterFromXLSX 첫 번째 시트에서 직원 명단을 읽는다. 첫 행은 헤더.
func readRosterFromXLSX(filePath string) ([]model.User, []rosterSkip, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, nil, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("no data found in XLSX file")
	}

	return parseRoster(rows[1:])
}

func parseRoster(rows [][]string) ([]model.User, []rosterSkip, error) {
	var users []model.User
	var skipped []rosterSkip
	seen := make(map[string]bool)

	for i, row := range rows {
		rowNum := i + 2 // 헤더 다음 행부터, 1-based
		cell := func(col int) string {
			if col < len(row) {
				return strings.TrimSpace(row[col])
			}
			return ""
		}

		email := strings.ToLower(cell(colEmail))
		name := cell(colName)
		role := model.UserRole(strings.ToLower(cell(colRole)))

		switch {
		case email == "" || name == "":
			skipped = append(skipped, rosterSkip{Row: rowNum, Reason: "email and name are required"})
			continue
		case !role.IsValid():
			skipped = append(skipped, rosterSkip{Row: rowNum, Reason: fmt.Sprintf("unknown role %q", role)})
			continue
		case seen[email]:
			skipped = append(skipped, rosterSkip{Row: rowNum, Reason: "duplicate email " + email})
			continue
		}
		seen[email] = true

		user := model.User{
			Email:         email,
			Name:          name,
			Phone:         cell(colPhone),
			Role:          role,
			AccountStatus: model.AccountActive,
		}
		// 부서/자격은 점검관만 가진다
		if role == model.RoleInspector {
			user.Department = cell(colDepartment)
			user.Certification = cell(colCertification)
		}
		users = append(users, user)
	}

	return users, skipped, nil
}
