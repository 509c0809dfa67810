package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/inspection-backend/config"
	"github.com/ikkim/inspection-backend/internal/app/controller"
	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/internal/app/repository"
	"github.com/ikkim/inspection-backend/internal/app/service"
	"github.com/ikkim/inspection-backend/internal/db"
	"github.com/ikkim/inspection-backend/internal/middleware"
	"github.com/ikkim/inspection-backend/internal/router"
	"github.com/ikkim/inspection-backend/internal/websocket"
	"github.com/ikkim/inspection-backend/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret"

type TestServer struct {
	Router        *gin.Engine
	Users         repository.UserRepository
	Notifications repository.NotificationRepository
	tokens        map[uint]string
}

func setupIntegrationTest(t *testing.T) *TestServer {
	gin.SetMode(gin.TestMode)

	stores, err := db.SetupTestStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestStores(stores)
	})

	userRepo := repository.NewUserRepository(stores.Identity)
	businessRepo := repository.NewBusinessRepository(stores.Business)
	notificationRepo := repository.NewNotificationRepository(stores.Notification)

	hub := websocket.NewHub()
	workflow := service.NewWorkflowService(service.WorkflowDeps{
		Users:       userRepo,
		Businesses:  businessRepo,
		Inspections: repository.NewInspectionRepository(stores.Scheduling),
		Violations:  repository.NewViolationRepository(stores.Violation),
		Gate:        service.NewPolicyGate(businessRepo),
		Dispatcher:  service.NewNotificationDispatcher(notificationRepo, hub, nil),
	})

	cfg := &config.Config{
		Server: config.ServerConfig{GinMode: gin.TestMode},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
	r := router.NewRouter(
		controller.NewApplicationController(workflow, nil),
		controller.NewInspectionController(workflow),
		controller.NewViolationController(workflow),
		controller.NewUserController(workflow),
		controller.NewNotificationController(service.NewNotificationService(notificationRepo)),
		controller.NewNotificationSocketController(hub, cfg.CORS.AllowedOrigins),
		middleware.NewAuthMiddleware(testJWTSecret),
		cfg,
	)

	return &TestServer{
		Router:        r.Setup(),
		Users:         userRepo,
		Notifications: notificationRepo,
		tokens:        make(map[uint]string),
	}
}

func (ts *TestServer) createUser(t *testing.T, role model.UserRole, name string) *model.User {
	user := &model.User{
		Email:         fmt.Sprintf("%s@city.gov", name),
		Name:          name,
		Role:          role,
		AccountStatus: model.AccountActive,
	}
	require.NoError(t, ts.Users.Create(user))

	tokens, err := util.GenerateTokenPair(user.ID, user.Email, string(role), testJWTSecret, 15*time.Minute, time.Hour)
	require.NoError(t, err)
	ts.tokens[user.ID] = tokens.AccessToken
	return user
}

// do 요청을 보내고 응답 본문을 map 으로 돌려준다
func (ts *TestServer) do(t *testing.T, method, path string, user *model.User, body interface{}) (int, map[string]interface{}) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+ts.tokens[user.ID])
	}
	w := httptest.NewRecorder()
	ts.Router.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func object(t *testing.T, resp map[string]interface{}, key string) map[string]interface{} {
	obj, ok := resp[key].(map[string]interface{})
	require.True(t, ok, "response has no %q object: %v", key, resp)
	return obj
}

func idOf(obj map[string]interface{}) uint {
	return uint(obj["id"].(float64))
}

func applicationBody(name string) map[string]interface{} {
	docs := make([]map[string]string, 0, len(model.RequiredDocumentTypes))
	for _, docType := range model.RequiredDocumentTypes {
		docs = append(docs, map[string]string{
			"document_type": string(docType),
			"file_key":      fmt.Sprintf("documents/%s/%s.pdf", name, docType),
		})
	}
	return map[string]interface{}{
		"name":                name,
		"registration_number": "123-45-67890",
		"address":             "1 Main St",
		"business_type":       "restaurant",
		"documents":           docs,
	}
}

func inspectionBody() map[string]interface{} {
	return map[string]interface{}{
		"inspection_type": "fire_safety",
		"scheduled_date":  time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
	}
}

func TestCompleteInspectionJourney(t *testing.T) {
	ts := setupIntegrationTest(t)
	admin := ts.createUser(t, model.RoleAdmin, "admin")
	inspector := ts.createUser(t, model.RoleInspector, "inspector")
	owner := ts.createUser(t, model.RoleBusinessOwner, "owner")
	citizen := ts.createUser(t, model.RoleCommunityUser, "citizen")

	t.Log("Step 1: Owner submits an application")
	status, resp := ts.do(t, http.MethodPost, "/api/v1/applications", owner, applicationBody("Corner Cafe"))
	require.Equal(t, http.StatusCreated, status, resp)
	business := object(t, resp, "business")
	assert.Equal(t, "pending", business["status"])
	businessID := idOf(business)

	stored, err := ts.Users.FindByID(owner.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountPendingApproval, stored.AccountStatus)

	t.Log("Step 2: Admin approves")
	status, resp = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/applications/%d/review", businessID), admin, map[string]interface{}{
		"action": "approve",
	})
	require.Equal(t, http.StatusOK, status, resp)
	review := object(t, resp, "review")
	assert.Equal(t, "verified", review["status"])
	assert.Equal(t, "active", review["account_status"])

	t.Log("Step 3: Owner requests an inspection")
	status, resp = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/businesses/%d/inspections", businessID), owner, inspectionBody())
	require.Equal(t, http.StatusCreated, status, resp)
	inspectionID := idOf(object(t, resp, "inspection"))
	assert.Equal(t, "requested", object(t, resp, "inspection")["status"])

	t.Log("Step 4: Admin assigns a default inspector")
	status, resp = ts.do(t, http.MethodPut, fmt.Sprintf("/api/v1/businesses/%d/inspector", businessID), admin, map[string]interface{}{
		"inspector_id": inspector.ID,
	})
	require.Equal(t, http.StatusOK, status, resp)
	assignment := object(t, resp, "assignment")
	assert.Equal(t, float64(1), assignment["inspections_assigned"])

	t.Log("Step 5: Inspector performs the inspection")
	status, resp = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/inspections/%d/start", inspectionID), inspector, nil)
	require.Equal(t, http.StatusOK, status, resp)
	assert.Equal(t, "in_progress", object(t, resp, "inspection")["status"])

	status, resp = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/inspections/%d/complete", inspectionID), inspector, map[string]interface{}{
		"compliance_score": 87,
	})
	require.Equal(t, http.StatusOK, status, resp)
	assert.Equal(t, "completed", object(t, resp, "inspection")["status"])
	assert.Equal(t, float64(87), object(t, resp, "inspection")["compliance_score"])

	t.Log("Step 6: Citizen reports a violation and admin links a follow-up")
	status, resp = ts.do(t, http.MethodPost, "/api/v1/violations", citizen, map[string]interface{}{
		"business_id": businessID,
		"description": "Blocked fire exit",
		"severity":    "high",
		"due_date":    time.Now().Add(14 * 24 * time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, status, resp)
	violationID := idOf(object(t, resp, "violation"))

	linkPath := fmt.Sprintf("/api/v1/violations/%d/inspection", violationID)
	status, resp = ts.do(t, http.MethodPost, linkPath, admin, inspectionBody())
	require.Equal(t, http.StatusCreated, status, resp)
	link := object(t, resp, "link")
	assert.Equal(t, true, link["linked"])

	status, resp = ts.do(t, http.MethodPost, linkPath, admin, inspectionBody())
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "WORKFLOW_INVALID_TRANSITION", resp["error"])

	t.Log("Step 7: Owner reads notifications")
	status, resp = ts.do(t, http.MethodGet, "/api/v1/notifications", owner, nil)
	require.Equal(t, http.StatusOK, status, resp)
	assert.NotEmpty(t, resp["data"])
	assert.Greater(t, resp["unread_count"].(float64), float64(0))

	status, _ = ts.do(t, http.MethodPatch, "/api/v1/notifications/read-all", owner, nil)
	require.Equal(t, http.StatusOK, status)

	status, resp = ts.do(t, http.MethodGet, "/api/v1/notifications/unread-count", owner, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), resp["unread_count"])
}

func TestWorkflowErrorMapping(t *testing.T) {
	ts := setupIntegrationTest(t)
	admin := ts.createUser(t, model.RoleAdmin, "admin")
	owner := ts.createUser(t, model.RoleBusinessOwner, "owner")
	citizen := ts.createUser(t, model.RoleCommunityUser, "citizen")

	status, resp := ts.do(t, http.MethodPost, "/api/v1/applications", owner, applicationBody("Corner Cafe"))
	require.Equal(t, http.StatusCreated, status, resp)
	businessID := idOf(object(t, resp, "business"))
	reviewPath := fmt.Sprintf("/api/v1/applications/%d/review", businessID)

	tests := []struct {
		name       string
		method     string
		path       string
		user       *model.User
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing token",
			method:     http.MethodPost,
			path:       reviewPath,
			body:       map[string]string{"action": "approve"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "AUTH_UNAUTHORIZED",
		},
		{
			name:       "citizen cannot review",
			method:     http.MethodPost,
			path:       reviewPath,
			user:       citizen,
			body:       map[string]string{"action": "approve"},
			wantStatus: http.StatusForbidden,
			wantCode:   "AUTHZ_FORBIDDEN",
		},
		{
			name:       "unknown business",
			method:     http.MethodPost,
			path:       "/api/v1/applications/9999/review",
			user:       admin,
			body:       map[string]string{"action": "approve"},
			wantStatus: http.StatusNotFound,
			wantCode:   "BUSINESS_NOT_FOUND",
		},
		{
			name:       "invalid id",
			method:     http.MethodPost,
			path:       "/api/v1/applications/abc/review",
			user:       admin,
			body:       map[string]string{"action": "approve"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_INVALID_ID",
		},
		{
			name:       "unknown action",
			method:     http.MethodPost,
			path:       reviewPath,
			user:       admin,
			body:       map[string]string{"action": "escalate"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_INVALID_INPUT",
		},
		{
			name:       "inspection before verification",
			method:     http.MethodPost,
			path:       fmt.Sprintf("/api/v1/businesses/%d/inspections", businessID),
			user:       owner,
			body:       inspectionBody(),
			wantStatus: http.StatusConflict,
			wantCode:   "WORKFLOW_INVALID_TRANSITION",
		},
		{
			name:       "sweep is admin only",
			method:     http.MethodPost,
			path:       "/api/v1/admin/inspections/overdue-sweep",
			user:       owner,
			wantStatus: http.StatusForbidden,
			wantCode:   "AUTHZ_FORBIDDEN",
		},
		{
			name:       "document signing disabled",
			method:     http.MethodPost,
			path:       "/api/v1/documents/upload-url",
			user:       owner,
			body:       map[string]string{"filename": "permit.pdf", "content_type": "application/pdf"},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "INTERNAL_STORE_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := ts.do(t, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.wantStatus, status, resp)
			assert.Equal(t, tt.wantCode, resp["error"])
		})
	}

	// 거부된 요청은 아무것도 바꾸지 않는다
	status, resp = ts.do(t, http.MethodPost, reviewPath, admin, map[string]string{"action": "approve"})
	require.Equal(t, http.StatusOK, status, resp)
}

func TestOverdueSweepEndpoint(t *testing.T) {
	ts := setupIntegrationTest(t)
	admin := ts.createUser(t, model.RoleAdmin, "admin")

	status, resp := ts.do(t, http.MethodPost, "/api/v1/admin/inspections/overdue-sweep", admin, nil)
	require.Equal(t, http.StatusOK, status, resp)
	assert.Equal(t, float64(0), resp["marked"])
}

func TestHealthAndMetrics(t *testing.T) {
	ts := setupIntegrationTest(t)

	status, resp := ts.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", resp["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	ts.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProfileEndpoints(t *testing.T) {
	ts := setupIntegrationTest(t)
	admin := ts.createUser(t, model.RoleAdmin, "admin")
	inspector := ts.createUser(t, model.RoleInspector, "inspector")

	status, resp := ts.do(t, http.MethodPatch, "/api/v1/profile", inspector, map[string]string{"phone": "010-2222-3333"})
	require.Equal(t, http.StatusOK, status, resp)
	assert.Equal(t, "010-2222-3333", object(t, resp, "user")["phone"])

	status, resp = ts.do(t, http.MethodPatch, "/api/v1/profile", inspector, map[string]string{"certification": "Level 3"})
	assert.Equal(t, http.StatusForbidden, status, resp)

	status, resp = ts.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/users/%d", inspector.ID), admin, map[string]string{"certification": "Level 3"})
	require.Equal(t, http.StatusOK, status, resp)
	assert.Equal(t, "Level 3", object(t, resp, "user")["certification"])
}
