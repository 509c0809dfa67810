package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ikkim/inspection-backend/internal/app/lifecycle"
	"github.com/ikkim/inspection-backend/internal/app/model"
	apperrors "github.com/ikkim/inspection-backend/internal/errors"
	"gorm.io/gorm"
)

// DocumentInput 제출 서류 한 건
type DocumentInput struct {
	DocumentType model.DocumentType `json:"document_type" validate:"required"`
	FileKey      string             `json:"file_key" validate:"required"`
}

// SubmitApplicationInput 사업장 신청/재신청 입력
type SubmitApplicationInput struct {
	Name               string          `json:"name" validate:"required,max=200"`
	RegistrationNumber string          `json:"registration_number" validate:"required,max=50"`
	Address            string          `json:"address" validate:"required"`
	ContactEmail       string          `json:"contact_email" validate:"omitempty,email"`
	ContactPhone       string          `json:"contact_phone" validate:"omitempty,max=50"`
	BusinessType       string          `json:"business_type" validate:"required,max=100"`
	Documents          []DocumentInput `json:"documents" validate:"required,dive"`
}

// ReviewApplicationInput 심사 입력. reject 사유가 비어 있으면 기본 문구로 대체된다.
type ReviewApplicationInput struct {
	Action   lifecycle.Action              `json:"action" validate:"required,oneof=approve reject request_revision"`
	Reason   string                        `json:"reason" validate:"max=1000"`
	Feedback map[model.DocumentType]string `json:"feedback"`
}

// ReviewResult 심사 결과. 계정 상태는 사업장 상태에서 파생된다.
type ReviewResult struct {
	BusinessID      uint                 `json:"business_id"`
	Status          model.BusinessStatus `json:"status"`
	RejectionReason *string              `json:"rejection_reason,omitempty"`
	OwnerID         uint                 `json:"owner_id"`
	AccountStatus   model.AccountStatus  `json:"account_status"`
	AccountSynced   bool                 `json:"account_synced"`
}

var reviewOutcomes = map[model.BusinessStatus]Outcome{
	model.BusinessVerified:      OutcomeApproved,
	model.BusinessRejected:      OutcomeRejected,
	model.BusinessNeedsRevision: OutcomeNeedsRevision,
}

func (s *workflowService) SubmitApplication(ctx context.Context, actor Actor, input SubmitApplicationInput) (business *model.Business, err error) {
	const op = "SubmitApplication"
	defer s.track(op, time.Now(), &err)

	if err = s.authorize(op, actor, PermSubmitApplication); err != nil {
		return nil, err
	}
	if err = s.validateApplication(ctx, op, input); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, op, "owner", actor.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	// 소유자당 사업장은 하나. 반려/보완 요청된 신청은 재제출로 처리한다
	existing, ferr := s.businesses.FindByOwnerID(actor.ID)
	switch {
	case ferr == nil:
		return nil, apperrors.NewInvalidTransition(op,
			fmt.Errorf("owner already has business %d in status %s, resubmit it instead", existing.ID, existing.Status))
	case !errors.Is(ferr, gorm.ErrRecordNotFound):
		return nil, apperrors.NewStoreUnavailable(op, ferr)
	}

	business = &model.Business{
		OwnerID:            actor.ID,
		Name:               input.Name,
		RegistrationNumber: input.RegistrationNumber,
		Address:            input.Address,
		ContactEmail:       input.ContactEmail,
		ContactPhone:       input.ContactPhone,
		BusinessType:       input.BusinessType,
		Status:             model.BusinessPending,
	}
	if cerr := s.businesses.Create(business, toDocuments(input.Documents)); cerr != nil {
		return nil, apperrors.NewStoreUnavailable(op, cerr)
	}

	// pending 사업장의 소유자는 승인 대기 상태
	if uerr := s.users.UpdateAccountStatus(actor.ID, model.AccountPendingApproval); uerr != nil {
		secondaryFailure(op, StepAccountStatus, uerr, map[string]interface{}{"business_id": business.ID, "user_id": actor.ID})
		err = apperrors.NewPartialFailure(op, []string{StepBusiness}, []string{StepAccountStatus}, uerr)
	}

	s.dispatcher.Dispatch(ctx, Step{
		ActorID:      actor.ID,
		RecipientIDs: s.adminIDs(),
		EntityKind:   model.EntityBusiness,
		EntityID:     business.ID,
		Outcome:      OutcomeSubmitted,
		Details:      map[string]string{"business": business.Name},
	})
	return business, err
}

func (s *workflowService) ResubmitApplication(ctx context.Context, actor Actor, businessID uint, input SubmitApplicationInput) (business *model.Business, err error) {
	const op = "ResubmitApplication"
	defer s.track(op, time.Now(), &err)

	if err = s.authorizeOwner(op, actor, PermSubmitApplication, businessID); err != nil {
		return nil, err
	}
	if err = s.validateApplication(ctx, op, input); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, op, "business", businessID)
	if err != nil {
		return nil, err
	}
	defer release()

	business, err = s.loadBusiness(op, businessID)
	if err != nil {
		return nil, err
	}
	next, terr := lifecycle.NextBusinessStatus(business.Status, lifecycle.ActionResubmit, lifecycle.Context{})
	if terr != nil {
		return nil, transitionErr(op, terr)
	}

	fields := map[string]interface{}{
		"name":                input.Name,
		"registration_number": input.RegistrationNumber,
		"address":             input.Address,
		"contact_email":       input.ContactEmail,
		"contact_phone":       input.ContactPhone,
		"business_type":       input.BusinessType,
	}
	ok, werr := s.businesses.ResubmitIfCurrent(businessID, business.Status, fields, toDocuments(input.Documents))
	if werr != nil {
		return nil, apperrors.NewStoreUnavailable(op, werr)
	}
	if !ok {
		return nil, lostRace(op, "business", businessID, string(business.Status))
	}

	business.Name = input.Name
	business.RegistrationNumber = input.RegistrationNumber
	business.Address = input.Address
	business.ContactEmail = input.ContactEmail
	business.ContactPhone = input.ContactPhone
	business.BusinessType = input.BusinessType
	business.Status = next
	business.RejectionReason = nil

	if uerr := s.users.UpdateAccountStatus(business.OwnerID, model.AccountPendingApproval); uerr != nil {
		secondaryFailure(op, StepAccountStatus, uerr, map[string]interface{}{"business_id": businessID, "user_id": business.OwnerID})
		err = apperrors.NewPartialFailure(op, []string{StepBusinessStatus}, []string{StepAccountStatus}, uerr)
	}

	s.dispatcher.Dispatch(ctx, Step{
		ActorID:      actor.ID,
		RecipientIDs: s.adminIDs(),
		EntityKind:   model.EntityBusiness,
		EntityID:     business.ID,
		Outcome:      OutcomeResubmitted,
		Details:      map[string]string{"business": business.Name},
	})
	return business, err
}

func (s *workflowService) ReviewApplication(ctx context.Context, actor Actor, businessID uint, input ReviewApplicationInput) (result *ReviewResult, err error) {
	const op = "ReviewApplication"
	defer s.track(op, time.Now(), &err)

	if err = s.authorize(op, actor, PermReviewApplication); err != nil {
		return nil, err
	}
	if err = validateInput(op, input); err != nil {
		return nil, err
	}
	if input.Action == lifecycle.ActionRequestRevision {
		if err = validateFeedback(op, input.Feedback); err != nil {
			return nil, err
		}
	}

	release, err := s.lock(ctx, op, "business", businessID)
	if err != nil {
		return nil, err
	}
	defer release()

	business, err := s.loadBusiness(op, businessID)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(input.Reason)
	next, terr := lifecycle.NextBusinessStatus(business.Status, input.Action, lifecycle.Context{
		Reason:   reason,
		Feedback: input.Feedback,
	})
	if terr != nil {
		return nil, transitionErr(op, terr)
	}

	var rejectionReason *string
	switch next {
	case model.BusinessRejected:
		if reason == "" {
			reason = model.DefaultRejectionReason
		}
		rejectionReason = &reason
	case model.BusinessNeedsRevision:
		if reason == "" {
			reason = summarizeFeedback(input.Feedback)
		}
		rejectionReason = &reason
	}

	now := s.now()
	ok, werr := s.businesses.UpdateStatusIfCurrent(businessID, business.Status, next, map[string]interface{}{
		"rejection_reason": rejectionReason,
		"reviewed_by":      actor.ID,
		"reviewed_at":      now,
	})
	if werr != nil {
		return nil, apperrors.NewStoreUnavailable(op, werr)
	}
	if !ok {
		return nil, lostRace(op, "business", businessID, string(business.Status))
	}

	result = &ReviewResult{
		BusinessID:      businessID,
		Status:          next,
		RejectionReason: rejectionReason,
		OwnerID:         business.OwnerID,
	}
	var failed []string
	var cause error

	if next == model.BusinessNeedsRevision {
		if derr := s.businesses.UpdateDocumentReview(businessID, input.Feedback); derr != nil {
			secondaryFailure(op, StepDocumentFeedback, derr, map[string]interface{}{"business_id": businessID})
			failed = append(failed, StepDocumentFeedback)
			cause = derr
		}
	}

	// 심사가 끝난 사업장의 소유자 계정은 활성
	if uerr := s.users.UpdateAccountStatus(business.OwnerID, model.AccountActive); uerr != nil {
		secondaryFailure(op, StepAccountStatus, uerr, map[string]interface{}{"business_id": businessID, "user_id": business.OwnerID})
		failed = append(failed, StepAccountStatus)
		if cause == nil {
			cause = uerr
		}
		result.AccountStatus = model.AccountPendingApproval
	} else {
		result.AccountStatus = model.AccountActive
		result.AccountSynced = true
	}

	details := map[string]string{"business": business.Name}
	if rejectionReason != nil {
		details["reason"] = *rejectionReason
	}
	s.dispatcher.Dispatch(ctx, Step{
		ActorID:      actor.ID,
		RecipientIDs: []uint{business.OwnerID},
		EntityKind:   model.EntityBusiness,
		EntityID:     businessID,
		Outcome:      reviewOutcomes[next],
		Details:      details,
	})

	if len(failed) > 0 {
		err = apperrors.NewPartialFailure(op, []string{StepBusinessStatus}, failed, cause)
	}
	return result, err
}

// validateApplication checks the input fields, the document set and, when a
// blob store is configured, that every referenced file exists.
func (s *workflowService) validateApplication(ctx context.Context, op string, input SubmitApplicationInput) error {
	if err := validateInput(op, input); err != nil {
		return err
	}
	if err := validateDocumentSet(op, input.Documents); err != nil {
		return err
	}
	if s.documents == nil {
		return nil
	}

	missing := map[string]string{}
	for _, doc := range input.Documents {
		exists, err := s.documents.Exists(ctx, doc.FileKey)
		if err != nil {
			return apperrors.NewStoreUnavailable(op, err)
		}
		if !exists {
			missing["documents."+string(doc.DocumentType)] = "file not found"
		}
	}
	if len(missing) > 0 {
		return apperrors.NewValidation(op, missing)
	}
	return nil
}

// validateDocumentSet requires exactly one document per required type.
func validateDocumentSet(op string, docs []DocumentInput) error {
	fields := map[string]string{}
	seen := make(map[model.DocumentType]bool, len(docs))

	for _, doc := range docs {
		switch {
		case !doc.DocumentType.IsValid():
			fields["documents."+string(doc.DocumentType)] = "unknown document type"
		case seen[doc.DocumentType]:
			fields["documents."+string(doc.DocumentType)] = "submitted more than once"
		}
		seen[doc.DocumentType] = true
	}
	for _, required := range model.RequiredDocumentTypes {
		if !seen[required] {
			fields["documents."+string(required)] = "is required"
		}
	}

	if len(fields) > 0 {
		return apperrors.NewValidation(op, fields)
	}
	return nil
}

func validateFeedback(op string, feedback map[model.DocumentType]string) error {
	if len(feedback) == 0 {
		return apperrors.NewValidation(op, map[string]string{"feedback": "at least one document needs feedback"})
	}
	fields := map[string]string{}
	for docType, text := range feedback {
		if !docType.IsValid() {
			fields["feedback."+string(docType)] = "unknown document type"
		} else if strings.TrimSpace(text) == "" {
			fields["feedback."+string(docType)] = "is required"
		}
	}
	if len(fields) > 0 {
		return apperrors.NewValidation(op, fields)
	}
	return nil
}

// summarizeFeedback builds a stable one-line reason from per-document feedback.
func summarizeFeedback(feedback map[model.DocumentType]string) string {
	keys := make([]string, 0, len(feedback))
	for docType := range feedback {
		keys = append(keys, string(docType))
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, feedback[model.DocumentType(k)]))
	}
	return strings.Join(parts, "; ")
}

func toDocuments(inputs []DocumentInput) []model.BusinessDocument {
	docs := make([]model.BusinessDocument, 0, len(inputs))
	for _, in := range inputs {
		docs = append(docs, model.BusinessDocument{
			DocumentType: in.DocumentType,
			FileKey:      in.FileKey,
			Status:       model.DocumentPending,
		})
	}
	return docs
}
