package review

import (
	"memberflow/account"
	"memberflow/authority"
	"memberflow/bizerror"
	"memberflow/domain"
	"memberflow/domain/state"
	"memberflow/session"
)

// RoleApplicant marks transitions requested through applicant self-service
// in the audit trail.
const RoleApplicant = "applicant"

// Authorize checks the actor against the transition's permission set and
// the separation-of-duties rule, before the engine touches any state.
// It returns the role name under which the transition is performed.
func Authorize(record *domain.MembershipRecord, transition state.Transition, sec *session.Session) (string, error) {
	perms := normalizePerms(sec.Perms)

	actorRole := RoleApplicant
	if len(transition.Permissions) > 0 {
		actorRole = ""
		for _, permId := range transition.Permissions {
			if perms.HasRole(permId) {
				actorRole = permId
				break
			}
		}
		// administrators may request any transition, but stay subject to
		// separation of duties below
		if actorRole == "" && perms.HasSystemRole() {
			actorRole = account.SystemAdminPermission.ID
		}
		if actorRole == "" {
			return "", bizerror.ErrForbidden
		}
	}

	// no single actor performs both review tiers on the same record
	if record.FinancialReviewerID != 0 && sec.Identity.ID == record.FinancialReviewerID &&
		(transition.To.Name == StageFinalReview.Name || transition.From.Name == StageFinalReview.Name) {
		return "", bizerror.ErrSeparationOfDuties
	}

	return actorRole, nil
}

// normalizePerms maps external alias role names onto the closed permission
// enumeration before matching. Unknown role strings stay as-is and so never
// match a guarded transition.
func normalizePerms(perms authority.Permissions) authority.Permissions {
	normalized := make(authority.Permissions, 0, len(perms))
	for _, p := range perms {
		normalized = append(normalized, account.NormalizePermissionID(p))
	}
	return normalized
}
