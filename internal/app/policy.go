package app

import (
	"strings"

	"folio/api/internal/store"
)

var authorEditableStatuses = map[string]struct{}{
	store.StatusPendingSubmission: {},
	store.StatusRevisionRequested: {},
}

var reviewerEditableStatuses = map[string]struct{}{
	store.StatusSubmitted:         {},
	store.StatusUnderReview:       {},
	store.StatusRevisionRequested: {},
}

var decisionStatuses = map[string]struct{}{
	store.StatusUnderReview:       {},
	store.StatusRevisionRequested: {},
}

// listEditable reports whether kind may be mutated on a paper in status.
func listEditable(kind store.ListKind, status string) bool {
	switch kind {
	case store.ListAuthors:
		_, ok := authorEditableStatuses[status]
		return ok
	case store.ListReviewers:
		_, ok := reviewerEditableStatuses[status]
		return ok
	default:
		return false
	}
}

// minMembers is the smallest size kind may shrink to, given how many members
// are currently persisted. Papers always keep an author; reviewers are
// optional until the first one is assigned.
func minMembers(kind store.ListKind, persisted int) int {
	if kind == store.ListAuthors {
		return 1
	}
	if persisted > 0 {
		return 1
	}
	return 0
}

func decisionAllowed(status string) bool {
	_, ok := decisionStatuses[status]
	return ok
}

// decisionStatus maps a decision outcome to the paper status it produces.
func decisionStatus(outcome string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(outcome)) {
	case "ACCEPT":
		return store.StatusAccepted, true
	case "REJECT":
		return store.StatusRejected, true
	case "MINOR_REVISION", "MAJOR_REVISION":
		return store.StatusRevisionRequested, true
	default:
		return "", false
	}
}

// submittedRemovals lists members with a submitted review that keep is missing.
func submittedRemovals(current []store.Member, keep []int64) []int64 {
	kept := make(map[int64]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}
	var blocked []int64
	for _, member := range current {
		if member.ReviewStatus != store.ReviewSubmitted {
			continue
		}
		if _, ok := kept[member.UserID]; !ok {
			blocked = append(blocked, member.UserID)
		}
	}
	return blocked
}
