package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/inspection-backend/internal/app/service"
)

// UserController 사용자 프로필
type UserController struct {
	workflow service.WorkflowService
}

func NewUserController(workflow service.WorkflowService) *UserController {
	return &UserController{workflow: workflow}
}

// UpdateMyProfile PATCH /api/v1/profile
func (ctrl *UserController) UpdateMyProfile(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	ctrl.update(c, actor, actor.ID)
}

// UpdateUserProfile PATCH /api/v1/users/:id (점검관 자격 정보 수정 포함)
func (ctrl *UserController) UpdateUserProfile(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	userID, ok := parseIDParam(c, "id", "user")
	if !ok {
		return
	}
	ctrl.update(c, actor, userID)
}

func (ctrl *UserController) update(c *gin.Context, actor service.Actor, userID uint) {
	var req service.ProfileInput
	if !bindJSON(c, &req) {
		return
	}

	user, err := ctrl.workflow.UpdateUserProfile(c.Request.Context(), actor, userID, req)
	respondWorkflow(c, http.StatusOK, "user", user, err, "user")
}
