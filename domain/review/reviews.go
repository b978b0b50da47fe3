package review

import (
	"context"
	"errors"
	"fmt"
	"memberflow/account"
	"memberflow/audit"
	"memberflow/bizerror"
	"memberflow/domain"
	"memberflow/domain/state"
	"memberflow/event"
	"memberflow/idgen"
	"memberflow/persistence"
	"memberflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	reviewIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	RequestTransitionFunc = RequestTransition
	GetAuditTrailFunc     = GetAuditTrail

	LoadRecordFunc = loadRecord
)

func LoadRecordFuncReset() {
	LoadRecordFunc = loadRecord
}

func loadRecord(id types.ID, tx *gorm.DB) (*domain.MembershipRecord, error) {
	record := domain.MembershipRecord{ID: id}
	if err := tx.Where(&domain.MembershipRecord{ID: id}).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// RequestTransition moves a membership record to the requested stage. The
// whole of validation, the revision-checked entity update and the audit
// append run in one transaction; event handlers fire only after commit.
func RequestTransition(c *domain.ReviewTransitionBrief, sec *session.Session) (*domain.ReviewTransition, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)

	var result *domain.ReviewTransition
	var ev *event.EventRecord

	err1 := db.Transaction(func(tx *gorm.DB) error {
		record, err := LoadRecordFunc(c.MemberID, tx)
		if err != nil {
			return err
		}

		currentStage, found := ReviewMachine.FindState(record.StageName)
		if !found {
			return fmt.Errorf("record %d holds unknown stage %s", record.ID, record.StageName)
		}

		// double-submit guard: re-requesting the held stage returns the
		// snapshot unchanged, with no audit entry
		if record.StageName == c.ToStage {
			result = &domain.ReviewTransition{MemberID: record.ID, Creator: sec.Identity.ID,
				FromStage: record.StageName, ToStage: record.StageName, Record: *record}
			return nil
		}

		if currentStage.IsTerminal() {
			return bizerror.ErrTerminalState
		}

		transition, found := ReviewMachine.FindTransition(record.StageName, c.ToStage)
		if !found {
			return &bizerror.ErrInvalidTransition{FromStage: record.StageName, ToStage: c.ToStage}
		}

		actorRole, err := Authorize(record, transition, sec)
		if err != nil {
			return err
		}

		if err := CheckPrecondition(record, transition, c.Notes); err != nil {
			return err
		}

		now := types.CurrentTimestamp()
		q := tx.Model(&domain.MembershipRecord{}).
			Where("id = ? AND revision = ?", record.ID, record.Revision).
			Update(nextSnapshot(record, transition, sec.Identity.ID, now))
		if err := q.Error; err != nil {
			return err
		}
		if q.RowsAffected != 1 {
			return bizerror.ErrConcurrentModification
		}

		entry := audit.Entry{ID: idgen.NextID(reviewIdWorker), MemberID: record.ID,
			Action: transition.Name, ActorID: sec.Identity.ID, ActorRole: actorRole,
			FromStage: transition.From.Name, ToStage: transition.To.Name,
			OccurredAt: now, Notes: c.Notes}
		if err := audit.AppendFunc(&entry, tx); err != nil {
			// rolls the entity write back with it
			return fmt.Errorf("%w: %v", bizerror.ErrAuditWriteFailed, err)
		}

		updated := domain.MembershipRecord{ID: record.ID}
		if err := tx.Where(&domain.MembershipRecord{ID: record.ID}).First(&updated).Error; err != nil {
			return err
		}

		category := event.EventCategory(event.EventCategoryReviewTransited)
		if transition.To.IsTerminal() {
			category = event.EventCategoryReviewFinalized
		}
		ev, err = event.CreateEvent(event.SourceTypeMembership, record.ID, updated.ApplicantName, category,
			[]event.UpdatedProperty{{PropertyName: "StageName", OldValue: transition.From.Name, NewValue: transition.To.Name}},
			&sec.Identity, tx)
		if err != nil {
			return err
		}

		result = &domain.ReviewTransition{ID: entry.ID, CreateTime: now, Creator: sec.Identity.ID,
			MemberID: record.ID, FromStage: transition.From.Name, ToStage: transition.To.Name,
			Notes: c.Notes, Record: updated}
		return nil
	})
	if err1 != nil {
		if errors.Is(err1, context.DeadlineExceeded) {
			return nil, bizerror.ErrStoreTimeout
		}
		return nil, err1
	}

	if ev != nil && event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}

	return result, nil
}

// CheckPrecondition validates the transition's data precondition against
// the current snapshot. Failures are not audited.
func CheckPrecondition(record *domain.MembershipRecord, transition state.Transition, notes string) error {
	switch transition.Precondition {
	case "":
		return nil
	case PreconditionRequiredFields:
		if record.ApplicantName == "" || record.Contact == "" || record.PaymentReference == "" {
			return fmt.Errorf("%w: applicant name, contact and payment info are required", bizerror.ErrValidationFailed)
		}
	case PreconditionPaymentVerified:
		if record.PaymentAmount <= 0 || record.PaymentReference == "" {
			return fmt.Errorf("%w: payment amount and reference must be verified", bizerror.ErrValidationFailed)
		}
	case PreconditionRejectionReason:
		if notes == "" {
			return fmt.Errorf("%w: a rejection reason is required", bizerror.ErrValidationFailed)
		}
	case PreconditionFinancialApproved:
		if record.FinancialStatus != domain.StatusApproved {
			return fmt.Errorf("%w: financial review has not approved the record", bizerror.ErrValidationFailed)
		}
	default:
		return fmt.Errorf("unknown precondition %s of transition %s", transition.Precondition, transition.Name)
	}
	return nil
}

// nextSnapshot computes the field set a transition applies. Pure function
// of the snapshot and the transition; the revision guard in the UPDATE is
// what makes it safe to apply.
func nextSnapshot(record *domain.MembershipRecord, transition state.Transition, actorId types.ID,
	now types.Timestamp) map[string]interface{} {

	updates := map[string]interface{}{
		"stage_name":       transition.To.Name,
		"stage_begin_time": now,
		"revision":         record.Revision + 1,
	}
	switch transition.Name {
	case ActionBeginFinancialReview:
		updates["financial_reviewer_id"] = actorId
		updates["financial_status"] = domain.StatusUnderReview
	case ActionApprovePayment:
		updates["financial_status"] = domain.StatusApproved
	case ActionRejectPayment:
		updates["financial_status"] = domain.StatusRejected
	case ActionBeginFinalReview:
		updates["final_approver_id"] = actorId
		updates["final_status"] = domain.StatusUnderReview
	case ActionApproveMembership:
		updates["final_status"] = domain.StatusApproved
	case ActionRejectMembership:
		updates["final_status"] = domain.StatusRejected
	}
	return updates
}

// GetAuditTrail returns the full transition history of one record in
// occurrence order, with actor display names resolved for trail views.
func GetAuditTrail(memberId types.ID, sec *session.Session) ([]audit.Entry, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	record := domain.MembershipRecord{ID: memberId}
	if err := db.Where(&domain.MembershipRecord{ID: memberId}).First(&record).Error; err != nil {
		return nil, err
	}
	entries, err := audit.LoadTrail(memberId, db)
	if err != nil {
		return nil, err
	}

	actorIds := make([]types.ID, 0, len(entries))
	seen := map[types.ID]bool{}
	for _, entry := range entries {
		if !seen[entry.ActorID] {
			seen[entry.ActorID] = true
			actorIds = append(actorIds, entry.ActorID)
		}
	}
	names, err := account.QueryAccountNames(actorIds)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].ActorName = names[entries[i].ActorID]
	}
	return entries, nil
}
