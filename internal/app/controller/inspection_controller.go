package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/internal/app/service"
)

// InspectionController 점검 요청/배정/수행
type InspectionController struct {
	workflow service.WorkflowService
}

func NewInspectionController(workflow service.WorkflowService) *InspectionController {
	return &InspectionController{workflow: workflow}
}

type AssignInspectorRequest struct {
	InspectorID uint `json:"inspector_id" binding:"required"`
}

type createInspectionFunc func(ctx context.Context, actor service.Actor, businessID uint, input service.InspectionInput) (*model.Inspection, error)

type inspectionActionFunc func(ctx context.Context, actor service.Actor, inspectionID uint) (*model.Inspection, error)

// RequestInspection POST /api/v1/businesses/:id/inspections
func (ctrl *InspectionController) RequestInspection(c *gin.Context) {
	ctrl.create(c, ctrl.workflow.RequestInspection)
}

// ScheduleInspection POST /api/v1/businesses/:id/inspections/schedule
func (ctrl *InspectionController) ScheduleInspection(c *gin.Context) {
	ctrl.create(c, ctrl.workflow.ScheduleInspection)
}

func (ctrl *InspectionController) create(c *gin.Context, op createInspectionFunc) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	businessID, ok := parseIDParam(c, "id", "business")
	if !ok {
		return
	}

	var req service.InspectionInput
	if !bindJSON(c, &req) {
		return
	}

	inspection, err := op(c.Request.Context(), actor, businessID, req)
	respondWorkflow(c, http.StatusCreated, "inspection", inspection, err, "inspection")
}

// AssignInspectorToBusiness PUT /api/v1/businesses/:id/inspector
func (ctrl *InspectionController) AssignInspectorToBusiness(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	businessID, ok := parseIDParam(c, "id", "business")
	if !ok {
		return
	}

	var req AssignInspectorRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := ctrl.workflow.AssignInspectorToBusiness(c.Request.Context(), actor, businessID, req.InspectorID)
	respondWorkflow(c, http.StatusOK, "assignment", result, err, "business")
}

// ReassignInspector PUT /api/v1/inspections/:id/inspector
func (ctrl *InspectionController) ReassignInspector(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	inspectionID, ok := parseIDParam(c, "id", "inspection")
	if !ok {
		return
	}

	var req AssignInspectorRequest
	if !bindJSON(c, &req) {
		return
	}

	inspection, err := ctrl.workflow.ReassignInspector(c.Request.Context(), actor, inspectionID, req.InspectorID)
	respondWorkflow(c, http.StatusOK, "inspection", inspection, err, "inspection")
}

// StartInspection POST /api/v1/inspections/:id/start
func (ctrl *InspectionController) StartInspection(c *gin.Context) {
	ctrl.act(c, ctrl.workflow.StartInspection)
}

// CancelInspection POST /api/v1/inspections/:id/cancel
func (ctrl *InspectionController) CancelInspection(c *gin.Context) {
	ctrl.act(c, ctrl.workflow.CancelInspection)
}

func (ctrl *InspectionController) act(c *gin.Context, op inspectionActionFunc) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	inspectionID, ok := parseIDParam(c, "id", "inspection")
	if !ok {
		return
	}

	inspection, err := op(c.Request.Context(), actor, inspectionID)
	respondWorkflow(c, http.StatusOK, "inspection", inspection, err, "inspection")
}

// CompleteInspection POST /api/v1/inspections/:id/complete
func (ctrl *InspectionController) CompleteInspection(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	inspectionID, ok := parseIDParam(c, "id", "inspection")
	if !ok {
		return
	}

	var req service.CompleteInspectionInput
	if !bindJSON(c, &req) {
		return
	}

	inspection, err := ctrl.workflow.CompleteInspection(c.Request.Context(), actor, inspectionID, req)
	respondWorkflow(c, http.StatusOK, "inspection", inspection, err, "inspection")
}

// SweepOverdue POST /api/v1/admin/inspections/overdue-sweep
// 스케줄러와 같은 작업을 관리자가 즉시 실행한다
func (ctrl *InspectionController) SweepOverdue(c *gin.Context) {
	marked, err := ctrl.workflow.MarkOverdueInspections(c.Request.Context(), time.Now())
	respondWorkflow(c, http.StatusOK, "marked", marked, err, "inspection")
}
