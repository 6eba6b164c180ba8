package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errForbidden() *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func errPaperLocked(status, list string) *DomainError {
	return domainError(http.StatusConflict, "PAPER_LOCKED", "The "+list+" list cannot be edited while the paper is "+status, map[string]any{
		"status": status,
		"list":   list,
	})
}

func errMinMembers(list string, min int) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "MIN_MEMBERS", fmt.Sprintf("The %s list needs at least %d member(s)", list, min), map[string]any{
		"list": list,
		"min":  min,
	})
}

func errReviewSubmitted(userIDs []int64) *DomainError {
	return domainError(http.StatusConflict, "REVIEW_SUBMITTED", "Reviewers who submitted a review cannot be removed", map[string]any{
		"userIds": userIDs,
	})
}

func errValidation(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

func errPaperChanged(status string) *DomainError {
	return domainError(http.StatusConflict, "PAPER_CHANGED", "The paper moved to "+status+" while the change was being saved", map[string]any{
		"status": status,
	})
}

func errDecisionNotAllowed(status string) *DomainError {
	return domainError(http.StatusConflict, "DECISION_NOT_ALLOWED", "Decisions can only be recorded while a paper is under review", map[string]any{
		"status": status,
	})
}

func errConflictOfInterest(code, message string, userID int64) *DomainError {
	return domainError(http.StatusUnprocessableEntity, code, message, map[string]any{"userId": userID})
}

func errUnknownUser(userID int64) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "UNKNOWN_USER", fmt.Sprintf("User %d does not exist", userID), map[string]any{"userId": userID})
}
