package rbac

type Role string
type Action string

const (
	RoleAuthor   Role = "author"
	RoleReviewer Role = "reviewer"
	RoleEditor   Role = "editor"
	RoleChair    Role = "chair"
	RoleAdmin    Role = "admin"
)

const (
	ActionRead            Action = "read"
	ActionEditAuthors     Action = "edit_authors"
	ActionAssignReviewers Action = "assign_reviewers"
	ActionDecide          Action = "decide"
	ActionAdmin           Action = "admin"
)

// Can reports whether role may perform action on any paper. Authors may
// additionally edit the author list of papers they are listed on; that
// ownership check lives with the caller.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleChair, RoleEditor:
		return action == ActionRead || action == ActionEditAuthors || action == ActionAssignReviewers || action == ActionDecide
	case RoleReviewer, RoleAuthor:
		return action == ActionRead
	default:
		return false
	}
}

// Elevated reports whether role acts on papers it does not own.
func Elevated(role Role) bool {
	return role == RoleEditor || role == RoleChair || role == RoleAdmin
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleAuthor, RoleReviewer, RoleEditor, RoleChair, RoleAdmin:
		return Role(role)
	default:
		return RoleAuthor
	}
}
