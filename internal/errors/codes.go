package errors

// 에러 코드 상수 정의
// 형식: CATEGORY_SPECIFIC_DETAIL
// 프론트엔드에서 이 코드를 기반으로 메시지를 매핑함

const (
	// ==================== 인증 (AUTH_) ====================
	AuthUnauthorized = "AUTH_UNAUTHORIZED"  // 로그인 필요
	AuthTokenExpired = "AUTH_TOKEN_EXPIRED" // 토큰 만료
	AuthTokenInvalid = "AUTH_TOKEN_INVALID" // 잘못된 토큰

	// ==================== 인가/권한 (AUTHZ_) ====================
	AuthzForbidden    = "AUTHZ_FORBIDDEN"      // 접근 권한 없음
	AuthzRoleNotFound = "AUTHZ_ROLE_NOT_FOUND" // 권한 정보 없음
	AuthzOwnerOnly    = "AUTHZ_OWNER_ONLY"     // 소유자만 가능

	// ==================== 검증 (VALIDATION_) ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT" // 잘못된 입력
	ValidationInvalidID    = "VALIDATION_INVALID_ID"    // 잘못된 ID
	ValidationRequired     = "VALIDATION_REQUIRED"      // 필수 항목

	// ==================== 리소스 (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"      // 리소스 없음
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS" // 이미 존재

	// ==================== 워크플로 (WORKFLOW_) ====================
	WorkflowInvalidTransition = "WORKFLOW_INVALID_TRANSITION" // 현재 상태에서 불가능한 작업
	WorkflowPartialFailure    = "WORKFLOW_PARTIAL_FAILURE"    // 주 작업은 완료, 후속 작업 일부 실패

	// ==================== 엔티티별 (*_NOT_FOUND) ====================
	BusinessNotFound     = "BUSINESS_NOT_FOUND"     // 사업장 없음
	InspectionNotFound   = "INSPECTION_NOT_FOUND"   // 점검 없음
	ViolationNotFound    = "VIOLATION_NOT_FOUND"    // 위반 없음
	NotificationNotFound = "NOTIFICATION_NOT_FOUND" // 알림 없음
	UserNotFound         = "USER_NOT_FOUND"         // 사용자 없음

	// ==================== 내부 오류 (INTERNAL_) ====================
	InternalServerError = "INTERNAL_SERVER_ERROR" // 서버 오류
	InternalStoreError  = "INTERNAL_STORE_ERROR"  // 저장소 오류 (재시도 가능)
	InternalExternalAPI = "INTERNAL_EXTERNAL_API" // 외부 API 오류
)
