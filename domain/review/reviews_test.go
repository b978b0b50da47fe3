package review_test

import (
	"context"
	"errors"
	"memberflow/account"
	"memberflow/audit"
	"memberflow/bizerror"
	"memberflow/domain"
	"memberflow/domain/review"
	"memberflow/event"
	"memberflow/persistence"
	"memberflow/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("reviews", func() {
	var (
		testDatabase *testinfra.TestDatabase
	)

	BeforeEach(func() {
		testDatabase = testinfra.StartMysqlTestDatabase("memberflow")
		persistence.ActiveDataSourceManager = testDatabase.DS
		Expect(testDatabase.DS.GormDB(context.TODO()).AutoMigrate(
			&domain.MembershipRecord{}, &audit.Entry{}, &event.EventRecord{}, &account.User{}).Error).To(BeNil())
		event.EventHandlers = nil
	})
	AfterEach(func() {
		audit.AppendFuncReset()
		review.LoadRecordFuncReset()
		event.EventHandlers = nil
		testinfra.StopMysqlTestDatabase(testDatabase)
	})

	buildRecord := func(id types.ID, stage string, mutate func(r *domain.MembershipRecord)) *domain.MembershipRecord {
		now := types.CurrentTimestamp()
		record := &domain.MembershipRecord{
			ID: id, Kind: domain.KindApplication,
			ApplicantName: "Alice", Contact: "alice@example.com",
			PaymentAmount: 200, PaymentReference: "PAY-0001",
			StageName:       stage,
			FinancialStatus: domain.StatusPending, FinalStatus: domain.StatusPending,
			Revision: 1, CreateTime: now, StageBeginTime: now,
		}
		if mutate != nil {
			mutate(record)
		}
		Expect(testDatabase.DS.GormDB(context.TODO()).Create(record).Error).To(BeNil())
		return record
	}

	reloadRecord := func(id types.ID) *domain.MembershipRecord {
		record := domain.MembershipRecord{ID: id}
		Expect(testDatabase.DS.GormDB(context.TODO()).
			Where(&domain.MembershipRecord{ID: id}).First(&record).Error).To(BeNil())
		return &record
	}

	Describe("RequestTransition", func() {
		It("should drive a record through both review tiers to approval", func() {
			buildRecord(500, review.StageSubmitted.Name, nil)
			db := testDatabase.DS.GormDB(context.TODO())
			Expect(db.Save(&account.User{ID: 100, Name: "frank", Secret: "x"}).Error).To(BeNil())
			Expect(db.Save(&account.User{ID: 200, Name: "mona", Nickname: "Mona", Secret: "x"}).Error).To(BeNil())
			reviewer := testinfra.BuildSecCtx(100, account.FinancialReviewerPermission.ID)
			approver := testinfra.BuildSecCtx(200, account.MembershipApproverPermission.ID)

			var finalized []event.EventRecord
			event.EventHandlers = append(event.EventHandlers, func(e *event.EventRecord) *event.EventHandleResult {
				if e.EventCategory == event.EventCategoryReviewFinalized {
					finalized = append(finalized, *e)
				}
				return &event.EventHandleResult{Success: true, HandlerIdentifier: "test-collector"}
			})

			r, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 500, ToStage: review.StageFinancialReview.Name}, reviewer)
			Expect(err).To(BeNil())
			Expect(r.FromStage).To(Equal(review.StageSubmitted.Name))
			Expect(r.ToStage).To(Equal(review.StageFinancialReview.Name))
			Expect(r.Creator).To(Equal(types.ID(100)))
			Expect(r.Record.FinancialReviewerID).To(Equal(types.ID(100)))
			Expect(r.Record.FinancialStatus).To(Equal(domain.StatusUnderReview))
			Expect(r.Record.Revision).To(Equal(uint64(2)))

			r, err = review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 500, ToStage: review.StagePaymentApproved.Name}, reviewer)
			Expect(err).To(BeNil())
			Expect(r.Record.FinancialStatus).To(Equal(domain.StatusApproved))
			Expect(r.Record.Revision).To(Equal(uint64(3)))

			r, err = review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 500, ToStage: review.StageFinalReview.Name}, approver)
			Expect(err).To(BeNil())
			Expect(r.Record.FinalApproverID).To(Equal(types.ID(200)))
			Expect(r.Record.FinalStatus).To(Equal(domain.StatusUnderReview))
			Expect(r.Record.Revision).To(Equal(uint64(4)))

			r, err = review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 500, ToStage: review.StageApproved.Name, Notes: "welcome"}, approver)
			Expect(err).To(BeNil())
			Expect(r.Record.StageName).To(Equal(review.StageApproved.Name))
			Expect(r.Record.FinalStatus).To(Equal(domain.StatusApproved))
			Expect(r.Record.Revision).To(Equal(uint64(5)))

			record := reloadRecord(500)
			Expect(record.StageName).To(Equal(review.StageApproved.Name))
			Expect(record.FinancialReviewerID).To(Equal(types.ID(100)))
			Expect(record.FinalApproverID).To(Equal(types.ID(200)))

			trail, err := review.GetAuditTrail(500, approver)
			Expect(err).To(BeNil())
			Expect(len(trail)).To(Equal(4))
			Expect(trail[0].Action).To(Equal(review.ActionBeginFinancialReview))
			Expect(trail[0].ActorID).To(Equal(types.ID(100)))
			Expect(trail[0].ActorRole).To(Equal(account.FinancialReviewerPermission.ID))
			Expect(trail[0].ActorName).To(Equal("frank"))
			Expect(trail[1].Action).To(Equal(review.ActionApprovePayment))
			Expect(trail[2].Action).To(Equal(review.ActionBeginFinalReview))
			Expect(trail[2].ActorRole).To(Equal(account.MembershipApproverPermission.ID))
			Expect(trail[2].ActorName).To(Equal("Mona"))
			Expect(trail[3].Action).To(Equal(review.ActionApproveMembership))
			Expect(trail[3].FromStage).To(Equal(review.StageFinalReview.Name))
			Expect(trail[3].ToStage).To(Equal(review.StageApproved.Name))
			Expect(trail[3].Notes).To(Equal("welcome"))

			// only the terminal transition is a finalized event
			Expect(len(finalized)).To(Equal(1))
			Expect(finalized[0].SourceId).To(Equal(types.ID(500)))
		})

		It("should let the applicant submit a complete draft", func() {
			buildRecord(501, review.StageDraft.Name, nil)
			applicant := testinfra.BuildSecCtx(300)

			r, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 501, ToStage: review.StageSubmitted.Name}, applicant)
			Expect(err).To(BeNil())
			Expect(r.Record.StageName).To(Equal(review.StageSubmitted.Name))

			trail, err := review.GetAuditTrail(501, applicant)
			Expect(err).To(BeNil())
			Expect(len(trail)).To(Equal(1))
			Expect(trail[0].ActorRole).To(Equal(review.RoleApplicant))
			// actors without an account resolve to an empty display name
			Expect(trail[0].ActorName).To(Equal(""))
		})

		It("should refuse to submit a draft with missing required fields", func() {
			buildRecord(502, review.StageDraft.Name, func(r *domain.MembershipRecord) {
				r.Contact = ""
			})

			r, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 502, ToStage: review.StageSubmitted.Name},
				testinfra.BuildSecCtx(300))
			Expect(r).To(BeNil())
			Expect(errors.Is(err, bizerror.ErrValidationFailed)).To(BeTrue())

			Expect(reloadRecord(502).StageName).To(Equal(review.StageDraft.Name))
		})

		It("should return the unchanged snapshot when the record already holds the requested stage", func() {
			buildRecord(510, review.StageFinancialReview.Name, func(r *domain.MembershipRecord) {
				r.FinancialReviewerID = 100
				r.FinancialStatus = domain.StatusUnderReview
				r.Revision = 2
			})
			reviewer := testinfra.BuildSecCtx(100, account.FinancialReviewerPermission.ID)

			r, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 510, ToStage: review.StageFinancialReview.Name}, reviewer)
			Expect(err).To(BeNil())
			Expect(r.FromStage).To(Equal(review.StageFinancialReview.Name))
			Expect(r.ToStage).To(Equal(review.StageFinancialReview.Name))
			Expect(r.Record.Revision).To(Equal(uint64(2)))

			trail, err := review.GetAuditTrail(510, reviewer)
			Expect(err).To(BeNil())
			Expect(len(trail)).To(Equal(0))
		})

		It("should treat re-requesting a terminal stage as idempotent, not as mutation", func() {
			buildRecord(511, review.StageApproved.Name, func(r *domain.MembershipRecord) {
				r.Revision = 5
			})
			approver := testinfra.BuildSecCtx(200, account.MembershipApproverPermission.ID)

			r, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 511, ToStage: review.StageApproved.Name}, approver)
			Expect(err).To(BeNil())
			Expect(r.Record.Revision).To(Equal(uint64(5)))
		})

		It("should refuse any move out of a terminal stage", func() {
			buildRecord(512, review.StageRejected.Name, nil)

			r, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 512, ToStage: review.StageSubmitted.Name},
				testinfra.BuildSecCtx(1, account.SystemAdminPermission.ID))
			Expect(r).To(BeNil())
			Expect(err).To(Equal(bizerror.ErrTerminalState))
		})

		It("should refuse transitions absent from the transition table", func() {
			buildRecord(513, review.StageSubmitted.Name, nil)

			r, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 513, ToStage: review.StageApproved.Name},
				testinfra.BuildSecCtx(1, account.SystemAdminPermission.ID))
			Expect(r).To(BeNil())
			Expect(err).To(Equal(&bizerror.ErrInvalidTransition{
				FromStage: review.StageSubmitted.Name, ToStage: review.StageApproved.Name}))

			Expect(reloadRecord(513).Revision).To(Equal(uint64(1)))
		})

		It("should refuse actors without a matching role", func() {
			buildRecord(514, review.StageSubmitted.Name, nil)

			_, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 514, ToStage: review.StageFinancialReview.Name},
				testinfra.BuildSecCtx(300))
			Expect(err).To(Equal(bizerror.ErrForbidden))

			// unknown role names carry no rights
			_, err = review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 514, ToStage: review.StageFinancialReview.Name},
				testinfra.BuildSecCtx(300, "treasurer"))
			Expect(err).To(Equal(bizerror.ErrForbidden))
		})

		It("should accept alias role names from external auth subsystems", func() {
			buildRecord(515, review.StageSubmitted.Name, nil)

			r, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 515, ToStage: review.StageFinancialReview.Name},
				testinfra.BuildSecCtx(100, "financial.approver"))
			Expect(err).To(BeNil())
			Expect(r.Record.FinancialReviewerID).To(Equal(types.ID(100)))

			trail, err := review.GetAuditTrail(515, testinfra.BuildSecCtx(100))
			Expect(err).To(BeNil())
			Expect(trail[0].ActorRole).To(Equal(account.FinancialReviewerPermission.ID))
		})

		It("should keep the financial reviewer out of the final tier", func() {
			buildRecord(520, review.StagePaymentApproved.Name, func(r *domain.MembershipRecord) {
				r.FinancialReviewerID = 100
				r.FinancialStatus = domain.StatusApproved
				r.Revision = 3
			})

			_, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 520, ToStage: review.StageFinalReview.Name},
				testinfra.BuildSecCtx(100, account.FinancialReviewerPermission.ID, account.MembershipApproverPermission.ID))
			Expect(err).To(Equal(bizerror.ErrSeparationOfDuties))

			// administrators are subject to the same rule
			_, err = review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 520, ToStage: review.StageFinalReview.Name},
				testinfra.BuildSecCtx(100, "super_admin"))
			Expect(err).To(Equal(bizerror.ErrSeparationOfDuties))

			// a different actor proceeds
			r, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 520, ToStage: review.StageFinalReview.Name},
				testinfra.BuildSecCtx(200, account.MembershipApproverPermission.ID))
			Expect(err).To(BeNil())
			Expect(r.Record.FinalApproverID).To(Equal(types.ID(200)))
		})

		It("should keep the financial reviewer from finalizing the record", func() {
			buildRecord(521, review.StageFinalReview.Name, func(r *domain.MembershipRecord) {
				r.FinancialReviewerID = 100
				r.FinancialStatus = domain.StatusApproved
				r.FinalApproverID = 200
				r.FinalStatus = domain.StatusUnderReview
				r.Revision = 4
			})

			_, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 521, ToStage: review.StageApproved.Name},
				testinfra.BuildSecCtx(100, account.MembershipApproverPermission.ID))
			Expect(err).To(Equal(bizerror.ErrSeparationOfDuties))
		})

		It("should refuse payment approval before payment data is verified", func() {
			buildRecord(530, review.StageFinancialReview.Name, func(r *domain.MembershipRecord) {
				r.PaymentAmount = 0
				r.FinancialReviewerID = 100
				r.FinancialStatus = domain.StatusUnderReview
				r.Revision = 2
			})

			_, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 530, ToStage: review.StagePaymentApproved.Name},
				testinfra.BuildSecCtx(100, account.FinancialReviewerPermission.ID))
			Expect(errors.Is(err, bizerror.ErrValidationFailed)).To(BeTrue())
		})

		It("should require a reason for rejections", func() {
			buildRecord(531, review.StageFinancialReview.Name, func(r *domain.MembershipRecord) {
				r.FinancialReviewerID = 100
				r.FinancialStatus = domain.StatusUnderReview
				r.Revision = 2
			})
			reviewer := testinfra.BuildSecCtx(100, account.FinancialReviewerPermission.ID)

			_, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 531, ToStage: review.StageRejected.Name}, reviewer)
			Expect(errors.Is(err, bizerror.ErrValidationFailed)).To(BeTrue())

			r, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 531, ToStage: review.StageRejected.Name,
					Notes: "payment reference does not match"}, reviewer)
			Expect(err).To(BeNil())
			Expect(r.Record.StageName).To(Equal(review.StageRejected.Name))
			Expect(r.Record.FinancialStatus).To(Equal(domain.StatusRejected))
		})

		It("should refuse final approval unless the financial tier approved", func() {
			buildRecord(532, review.StageFinalReview.Name, func(r *domain.MembershipRecord) {
				r.FinancialReviewerID = 100
				r.FinancialStatus = domain.StatusUnderReview
				r.FinalApproverID = 200
				r.FinalStatus = domain.StatusUnderReview
				r.Revision = 4
			})

			_, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 532, ToStage: review.StageApproved.Name},
				testinfra.BuildSecCtx(200, account.MembershipApproverPermission.ID))
			Expect(errors.Is(err, bizerror.ErrValidationFailed)).To(BeTrue())
		})

		It("should roll the stage change back when the audit write fails", func() {
			buildRecord(540, review.StageSubmitted.Name, nil)
			audit.AppendFunc = func(entry *audit.Entry, db *gorm.DB) error {
				return errors.New("disk full")
			}

			r, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 540, ToStage: review.StageFinancialReview.Name},
				testinfra.BuildSecCtx(100, account.FinancialReviewerPermission.ID))
			Expect(r).To(BeNil())
			Expect(errors.Is(err, bizerror.ErrAuditWriteFailed)).To(BeTrue())

			record := reloadRecord(540)
			Expect(record.StageName).To(Equal(review.StageSubmitted.Name))
			Expect(record.Revision).To(Equal(uint64(1)))
			Expect(record.FinancialReviewerID).To(Equal(types.ID(0)))

			events := []event.EventRecord{}
			Expect(testDatabase.DS.GormDB(context.TODO()).Model(&event.EventRecord{}).
				Find(&events).Error).To(BeNil())
			Expect(len(events)).To(Equal(0))
		})

		It("should detect a stale snapshot as concurrent modification", func() {
			record := buildRecord(541, review.StageSubmitted.Name, nil)
			review.LoadRecordFunc = func(id types.ID, tx *gorm.DB) (*domain.MembershipRecord, error) {
				stale := *record
				stale.Revision = 99
				return &stale, nil
			}

			r, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 541, ToStage: review.StageFinancialReview.Name},
				testinfra.BuildSecCtx(100, account.FinancialReviewerPermission.ID))
			Expect(r).To(BeNil())
			Expect(err).To(Equal(bizerror.ErrConcurrentModification))

			Expect(reloadRecord(541).StageName).To(Equal(review.StageSubmitted.Name))
		})

		It("should report unknown records", func() {
			_, err := review.RequestTransition(
				&domain.ReviewTransitionBrief{MemberID: 404, ToStage: review.StageFinancialReview.Name},
				testinfra.BuildSecCtx(100, account.FinancialReviewerPermission.ID))
			Expect(err).To(Equal(gorm.ErrRecordNotFound))
		})
	})

	Describe("GetAuditTrail", func() {
		It("should report unknown records", func() {
			_, err := review.GetAuditTrail(404, testinfra.BuildSecCtx(100))
			Expect(err).To(Equal(gorm.ErrRecordNotFound))
		})
	})
})
