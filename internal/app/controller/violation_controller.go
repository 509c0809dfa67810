package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/inspection-backend/internal/app/service"
)

// ViolationController 위반 신고/처리
type ViolationController struct {
	workflow service.WorkflowService
}

func NewViolationController(workflow service.WorkflowService) *ViolationController {
	return &ViolationController{workflow: workflow}
}

// ReportViolation POST /api/v1/violations
func (ctrl *ViolationController) ReportViolation(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req service.ReportViolationInput
	if !bindJSON(c, &req) {
		return
	}

	violation, err := ctrl.workflow.ReportViolation(c.Request.Context(), actor, req)
	respondWorkflow(c, http.StatusCreated, "violation", violation, err, "violation")
}

// LinkViolationToNewInspection POST /api/v1/violations/:id/inspection
func (ctrl *ViolationController) LinkViolationToNewInspection(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	violationID, ok := parseIDParam(c, "id", "violation")
	if !ok {
		return
	}

	var req service.InspectionInput
	if !bindJSON(c, &req) {
		return
	}

	result, err := ctrl.workflow.LinkViolationToNewInspection(c.Request.Context(), actor, violationID, req)
	respondWorkflow(c, http.StatusCreated, "link", result, err, "violation")
}

// UpdateViolation PATCH /api/v1/violations/:id
func (ctrl *ViolationController) UpdateViolation(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	violationID, ok := parseIDParam(c, "id", "violation")
	if !ok {
		return
	}

	var req service.UpdateViolationInput
	if !bindJSON(c, &req) {
		return
	}

	violation, err := ctrl.workflow.UpdateViolation(c.Request.Context(), actor, violationID, req)
	respondWorkflow(c, http.StatusOK, "violation", violation, err, "violation")
}
