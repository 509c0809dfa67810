package errors

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo 에러 정보 구조
type ErrorInfo struct {
	Status  int    // HTTP 상태 코드
	Code    string // 에러 코드 (codes.go 참조)
	Message string // 사용자에게 보여줄 메시지
}

// ParseError 에러를 파싱하여 상태 코드, 에러 코드, 메시지로 변환
// 저장소 내부 정보는 숨기고 호출자가 조치할 수 있는 정보만 제공
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Status:  http.StatusInternalServerError,
			Code:    InternalServerError,
			Message: "An unexpected error occurred",
		}
	}

	// 1. 워크플로 에러
	var we *WorkflowError
	if errors.As(err, &we) {
		return parseWorkflowError(we, context)
	}

	// 2. GORM 기본 에러
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{
			Status:  http.StatusNotFound,
			Code:    notFoundCode(context),
			Message: notFoundMessage(context),
		}
	}

	errStrLower := strings.ToLower(err.Error())

	// 3. Unique constraint violation
	if strings.Contains(errStrLower, "duplicate key") || strings.Contains(errStrLower, "unique constraint") {
		return ErrorInfo{
			Status:  http.StatusConflict,
			Code:    ResourceAlreadyExists,
			Message: "The record already exists",
		}
	}

	// 4. 네트워크/연결 에러
	if strings.Contains(errStrLower, "connection refused") ||
		strings.Contains(errStrLower, "no such host") ||
		strings.Contains(errStrLower, "timeout") {
		return ErrorInfo{
			Status:  http.StatusServiceUnavailable,
			Code:    InternalStoreError,
			Message: "A backing store is unavailable, please try again",
		}
	}

	return ErrorInfo{
		Status:  http.StatusInternalServerError,
		Code:    InternalServerError,
		Message: "An unexpected error occurred",
	}
}

func parseWorkflowError(we *WorkflowError, context string) ErrorInfo {
	switch we.Kind {
	case KindUnauthorized:
		return ErrorInfo{Status: http.StatusForbidden, Code: AuthzForbidden, Message: messageOr(we, "You are not allowed to perform this action")}
	case KindNotFound:
		return ErrorInfo{Status: http.StatusNotFound, Code: notFoundCode(context + " " + we.Message), Message: we.Message}
	case KindInvalidTransition:
		return ErrorInfo{Status: http.StatusConflict, Code: WorkflowInvalidTransition, Message: invalidTransitionMessage(we)}
	case KindValidation:
		return ErrorInfo{Status: http.StatusBadRequest, Code: ValidationInvalidInput, Message: messageOr(we, "Invalid input")}
	case KindPartialFailure:
		return ErrorInfo{Status: http.StatusMultiStatus, Code: WorkflowPartialFailure, Message: we.Message}
	case KindStoreUnavailable:
		return ErrorInfo{Status: http.StatusServiceUnavailable, Code: InternalStoreError, Message: "A backing store is unavailable, please try again"}
	}
	return ErrorInfo{Status: http.StatusInternalServerError, Code: InternalServerError, Message: "An unexpected error occurred"}
}

func invalidTransitionMessage(we *WorkflowError) string {
	if we.Err != nil {
		return we.Err.Error()
	}
	return messageOr(we, "Action not allowed in current status")
}

func messageOr(we *WorkflowError, fallback string) string {
	if we.Message != "" {
		return we.Message
	}
	return fallback
}

// notFoundCode context에 따른 Not Found 코드
func notFoundCode(context string) string {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "business"):
		return BusinessNotFound
	case strings.Contains(contextLower, "inspection"):
		return InspectionNotFound
	case strings.Contains(contextLower, "violation"):
		return ViolationNotFound
	case strings.Contains(contextLower, "notification"):
		return NotificationNotFound
	case strings.Contains(contextLower, "user"):
		return UserNotFound
	}
	return ResourceNotFound
}

func notFoundMessage(context string) string {
	switch notFoundCode(context) {
	case BusinessNotFound:
		return "Business not found"
	case InspectionNotFound:
		return "Inspection not found"
	case ViolationNotFound:
		return "Violation not found"
	case NotificationNotFound:
		return "Notification not found"
	case UserNotFound:
		return "User not found"
	}
	return "The requested record was not found"
}
