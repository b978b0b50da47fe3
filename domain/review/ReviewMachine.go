package review

import (
	"memberflow/account"
	"memberflow/domain/state"
)

var (
	StageDraft           = state.State{Name: "DRAFT", Category: state.InIntake}
	StageSubmitted       = state.State{Name: "SUBMITTED", Category: state.InIntake}
	StageFinancialReview = state.State{Name: "FINANCIAL_REVIEW", Category: state.InReview}
	StagePaymentApproved = state.State{Name: "PAYMENT_APPROVED", Category: state.InReview}
	StageFinalReview     = state.State{Name: "FINAL_REVIEW", Category: state.InReview}
	StageApproved        = state.State{Name: "APPROVED", Category: state.Done}
	StageRejected        = state.State{Name: "REJECTED", Category: state.Rejected}
)

const (
	PreconditionRequiredFields    = "required-fields"
	PreconditionPaymentVerified   = "payment-verified"
	PreconditionRejectionReason   = "rejection-reason"
	PreconditionFinancialApproved = "financial-approved"
)

const (
	ActionSubmit               = "submit"
	ActionBeginFinancialReview = "begin-financial-review"
	ActionApprovePayment       = "approve-payment"
	ActionRejectPayment        = "reject-payment"
	ActionBeginFinalReview     = "begin-final-review"
	ActionApproveMembership    = "approve-membership"
	ActionRejectMembership     = "reject-membership"
)

// ReviewMachine is the static two-tier approval machine. Financial review
// must complete before final review; APPROVED and REJECTED are terminal.
var ReviewMachine state.StateMachineTraits = state.NewStateMachine(
	[]state.State{
		StageDraft, StageSubmitted, StageFinancialReview,
		StagePaymentApproved, StageFinalReview, StageApproved, StageRejected,
	},
	[]state.Transition{
		{Name: ActionSubmit, From: StageDraft, To: StageSubmitted,
			Precondition: PreconditionRequiredFields},
		{Name: ActionBeginFinancialReview, From: StageSubmitted, To: StageFinancialReview,
			Permissions: []string{account.FinancialReviewerPermission.ID}},
		{Name: ActionApprovePayment, From: StageFinancialReview, To: StagePaymentApproved,
			Permissions:  []string{account.FinancialReviewerPermission.ID},
			Precondition: PreconditionPaymentVerified},
		{Name: ActionRejectPayment, From: StageFinancialReview, To: StageRejected,
			Permissions:  []string{account.FinancialReviewerPermission.ID},
			Precondition: PreconditionRejectionReason},
		{Name: ActionBeginFinalReview, From: StagePaymentApproved, To: StageFinalReview,
			Permissions: []string{account.MembershipApproverPermission.ID}},
		{Name: ActionApproveMembership, From: StageFinalReview, To: StageApproved,
			Permissions:  []string{account.MembershipApproverPermission.ID},
			Precondition: PreconditionFinancialApproved},
		{Name: ActionRejectMembership, From: StageFinalReview, To: StageRejected,
			Permissions:  []string{account.MembershipApproverPermission.ID},
			Precondition: PreconditionRejectionReason},
	})
