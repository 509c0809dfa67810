package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/inspection-backend/internal/app/service"
	apperrors "github.com/ikkim/inspection-backend/internal/errors"
	"github.com/ikkim/inspection-backend/internal/middleware"
	"github.com/ikkim/inspection-backend/internal/storage"
)

// DocumentSigner 서류 업로드/열람용 presigned URL 발급
type DocumentSigner interface {
	GenerateDocumentUploadURL(ctx context.Context, ownerID uint, filename, contentType string) (*storage.PresignedURLResponse, error)
	GenerateReviewURL(ctx context.Context, key string) (string, error)
}

// ApplicationController 영업 신고 접수/심사
type ApplicationController struct {
	workflow service.WorkflowService
	signer   DocumentSigner
}

// NewApplicationController signer 가 nil 이면 presigned URL 엔드포인트는 503 을 돌려준다
func NewApplicationController(workflow service.WorkflowService, signer DocumentSigner) *ApplicationController {
	return &ApplicationController{workflow: workflow, signer: signer}
}

type DocumentUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

type DocumentReviewURLRequest struct {
	FileKey string `json:"file_key" binding:"required"`
}

// SubmitApplication POST /api/v1/applications
func (ctrl *ApplicationController) SubmitApplication(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req service.SubmitApplicationInput
	if !bindJSON(c, &req) {
		return
	}

	business, err := ctrl.workflow.SubmitApplication(c.Request.Context(), actor, req)
	respondWorkflow(c, http.StatusCreated, "business", business, err, "business")
}

// ResubmitApplication PUT /api/v1/applications/:id
func (ctrl *ApplicationController) ResubmitApplication(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	businessID, ok := parseIDParam(c, "id", "business")
	if !ok {
		return
	}

	var req service.SubmitApplicationInput
	if !bindJSON(c, &req) {
		return
	}

	business, err := ctrl.workflow.ResubmitApplication(c.Request.Context(), actor, businessID, req)
	respondWorkflow(c, http.StatusOK, "business", business, err, "business")
}

// ReviewApplication POST /api/v1/applications/:id/review
func (ctrl *ApplicationController) ReviewApplication(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	businessID, ok := parseIDParam(c, "id", "business")
	if !ok {
		return
	}

	var req service.ReviewApplicationInput
	if !bindJSON(c, &req) {
		return
	}

	result, err := ctrl.workflow.ReviewApplication(c.Request.Context(), actor, businessID, req)
	respondWorkflow(c, http.StatusOK, "review", result, err, "business")
}

// DocumentUploadURL POST /api/v1/documents/upload-url
func (ctrl *ApplicationController) DocumentUploadURL(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if ctrl.signer == nil {
		apperrors.RespondWithError(c, http.StatusServiceUnavailable, apperrors.InternalStoreError, "Document storage is not configured")
		return
	}

	var req DocumentUploadRequest
	if !bindJSON(c, &req) {
		return
	}

	log := middleware.GetLoggerFromContext(c)
	resp, err := ctrl.signer.GenerateDocumentUploadURL(c.Request.Context(), actor.ID, req.Filename, req.ContentType)
	if err != nil {
		log.Warn("Failed to generate document upload URL", map[string]interface{}{
			"user_id":      actor.ID,
			"content_type": req.ContentType,
			"error":        err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Document type is not allowed")
		return
	}

	log.Info("Document upload URL generated", map[string]interface{}{
		"user_id": actor.ID,
		"key":     resp.Key,
	})
	c.JSON(http.StatusOK, resp)
}

// DocumentReviewURL POST /api/v1/documents/review-url (심사자 전용)
func (ctrl *ApplicationController) DocumentReviewURL(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	if ctrl.signer == nil {
		apperrors.RespondWithError(c, http.StatusServiceUnavailable, apperrors.InternalStoreError, "Document storage is not configured")
		return
	}

	var req DocumentReviewURLRequest
	if !bindJSON(c, &req) {
		return
	}

	url, err := ctrl.signer.GenerateReviewURL(c.Request.Context(), req.FileKey)
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to generate document review URL", err, map[string]interface{}{
			"key": req.FileKey,
		})
		apperrors.InternalError(c, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
