package domain

import (
	"github.com/fundwit/go-commons/types"
)

const (
	KindApplication = "APPLICATION"
	KindRenewal     = "RENEWAL"
)

type ReviewStatus string

const (
	StatusPending     ReviewStatus = "PENDING"
	StatusUnderReview ReviewStatus = "UNDER_REVIEW"
	StatusApproved    ReviewStatus = "APPROVED"
	StatusRejected    ReviewStatus = "REJECTED"
)

// MembershipRecord is the reviewed entity: a membership application or a
// renewal. Stage and review statuses are mutated only by the review engine,
// never through raw updates.
type MembershipRecord struct {
	ID   types.ID `json:"id"`
	Kind string   `json:"kind"`

	ApplicantName string `json:"applicantName"`
	Contact       string `json:"contact"`

	PaymentAmount    float64 `json:"paymentAmount"`
	PaymentReference string  `json:"paymentReference"`

	StageName       string       `json:"stageName"`
	FinancialStatus ReviewStatus `json:"financialStatus"`
	FinalStatus     ReviewStatus `json:"finalStatus"`

	// reviewer identities are write-once
	FinancialReviewerID types.ID `json:"financialReviewerId"`
	FinalApproverID     types.ID `json:"finalApproverId"`

	// optimistic concurrency: bumped on every applied transition
	Revision uint64 `json:"revision"`

	CreateTime     types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
	StageBeginTime types.Timestamp `json:"stageBeginTime" sql:"type:DATETIME(6)"`
}

func (r *MembershipRecord) TableName() string {
	return "membership_records"
}

type MembershipCreation struct {
	Kind string `json:"kind" binding:"required,oneof=APPLICATION RENEWAL"`

	ApplicantName string `json:"applicantName" binding:"omitempty,lte=128"`
	Contact       string `json:"contact" binding:"omitempty,lte=128"`

	PaymentAmount    float64 `json:"paymentAmount"`
	PaymentReference string  `json:"paymentReference" binding:"omitempty,lte=64"`

	// Draft creates the record without submission; required fields are then
	// validated on the submit transition instead.
	Draft bool `json:"draft"`
}

type MembershipQuery struct {
	Kind      string `json:"kind" form:"kind"`
	StageName string `json:"stageName" form:"stageName"`
}

// ReviewTransitionBrief is a request to move a record to a target stage.
// The from-stage is derived from the current snapshot, not supplied by the
// caller.
type ReviewTransitionBrief struct {
	MemberID types.ID `json:"memberId" validate:"required" binding:"required"`
	ToStage  string   `json:"toStage" validate:"required" binding:"required"`
	Notes    string   `json:"notes" binding:"omitempty,lte=512"`
}

// ReviewTransition is the applied-transition view returned to callers.
type ReviewTransition struct {
	ID         types.ID        `json:"id"`
	CreateTime types.Timestamp `json:"createTime"`
	Creator    types.ID        `json:"creator"`

	MemberID  types.ID `json:"memberId"`
	FromStage string   `json:"fromStage"`
	ToStage   string   `json:"toStage"`
	Notes     string   `json:"notes"`

	Record MembershipRecord `json:"record"`
}

type StageStats struct {
	StageName string `json:"stageName"`
	Count     int    `json:"count"`
}

type ReviewStats struct {
	Stages []StageStats `json:"stages"`

	FinancialPending int `json:"financialPending"`
	FinalPending     int `json:"finalPending"`
	Approved         int `json:"approved"`
	Rejected         int `json:"rejected"`
}
