package errors

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse 표준 에러 응답 구조
type ErrorResponse struct {
	Error     string            `json:"error"`   // 에러 코드 (프론트엔드에서 매핑용)
	Message   string            `json:"message"` // 사용자 메시지
	Fields    map[string]string `json:"fields,omitempty"`
	Committed []string          `json:"committed,omitempty"` // partial failure: 완료된 단계
	Failed    []string          `json:"failed,omitempty"`    // partial failure: 재시도할 단계
}

// RespondWithError 에러 응답 헬퍼
func RespondWithError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// RespondWorkflowError 워크플로 에러를 종류에 맞는 상태 코드로 응답
func RespondWorkflowError(c *gin.Context, err error, context string) {
	info := ParseError(err, context)
	resp := ErrorResponse{
		Error:   info.Code,
		Message: info.Message,
	}

	var we *WorkflowError
	if errors.As(err, &we) {
		resp.Fields = we.Fields
		resp.Committed = we.Committed
		resp.Failed = we.Failed
	}

	c.JSON(info.Status, resp)
}

// 자주 사용하는 에러 응답 단축 함수들

func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	RespondWithError(c, http.StatusUnauthorized, AuthUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "You are not allowed to access this resource"
	}
	RespondWithError(c, http.StatusForbidden, AuthzForbidden, message)
}

func BadRequest(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusBadRequest, errorCode, message)
}

func NotFound(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusNotFound, errorCode, message)
}

func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "An unexpected error occurred"
	}
	RespondWithError(c, http.StatusInternalServerError, InternalServerError, message)
}
