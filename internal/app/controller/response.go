package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/inspection-backend/internal/app/service"
	apperrors "github.com/ikkim/inspection-backend/internal/errors"
	"github.com/ikkim/inspection-backend/internal/middleware"
)

// requireActor 인증 정보가 없으면 401 을 쓰고 false
func requireActor(c *gin.Context) (service.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return service.Actor{}, false
	}
	return actor, true
}

// parseIDParam 경로의 숫자 ID 를 읽는다
func parseIDParam(c *gin.Context, name, entity string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		middleware.GetLoggerFromContext(c).Warn("Invalid "+entity+" ID", map[string]interface{}{
			name: raw,
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid "+entity+" ID")
		return 0, false
	}
	return uint(id), true
}

// bindJSON 요청 본문을 읽는다. 필드 검증은 워크플로가 한다.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.GetLoggerFromContext(c).Warn("Invalid request body", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request body")
		return false
	}
	return true
}

// respondWorkflow 워크플로 결과를 응답한다.
// PartialFailure 는 커밋된 결과와 실패한 단계를 함께 207 로 돌려준다.
func respondWorkflow(c *gin.Context, status int, key string, result interface{}, err error, context string) {
	if err == nil {
		c.JSON(status, gin.H{key: result})
		return
	}

	log := middleware.GetLoggerFromContext(c)
	var we *apperrors.WorkflowError
	if errors.As(err, &we) && we.Kind == apperrors.KindPartialFailure && result != nil {
		log.Warn("Workflow partially failed", map[string]interface{}{
			"op":        we.Op,
			"committed": we.Committed,
			"failed":    we.Failed,
		})
		c.JSON(http.StatusMultiStatus, gin.H{
			key:         result,
			"error":     apperrors.WorkflowPartialFailure,
			"message":   we.Message,
			"committed": we.Committed,
			"failed":    we.Failed,
		})
		return
	}

	switch apperrors.KindOf(err) {
	case apperrors.KindStoreUnavailable, "":
		log.Error("Workflow failed", err, map[string]interface{}{"context": context})
	default:
		log.Info("Workflow rejected", map[string]interface{}{
			"context": context,
			"error":   err.Error(),
		})
	}
	apperrors.RespondWorkflowError(c, err, context)
}
