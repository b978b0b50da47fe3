package member

import (
	"fmt"
	"memberflow/bizerror"
	"memberflow/domain"
	"memberflow/domain/review"
	"memberflow/event"
	"memberflow/idgen"
	"memberflow/persistence"
	"memberflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	memberIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateMembershipFunc = CreateMembership
	DetailMembershipFunc = DetailMembership
	QueryMembershipsFunc = QueryMemberships
	LoadMembershipsFunc  = LoadMemberships
)

// CreateMembership creates a record at SUBMITTED, or at DRAFT when the
// applicant has not finalized it yet. Draft records skip the required-field
// validation until the submit transition.
func CreateMembership(c *domain.MembershipCreation, sec *session.Session) (*domain.MembershipRecord, error) {
	initialStage := review.StageSubmitted
	if c.Draft {
		initialStage = review.StageDraft
	} else if c.ApplicantName == "" || c.Contact == "" || c.PaymentReference == "" {
		return nil, fmt.Errorf("%w: applicant name, contact and payment info are required", bizerror.ErrValidationFailed)
	}

	now := types.CurrentTimestamp()
	record := &domain.MembershipRecord{
		ID:   idgen.NextID(memberIdWorker),
		Kind: c.Kind,

		ApplicantName:    c.ApplicantName,
		Contact:          c.Contact,
		PaymentAmount:    c.PaymentAmount,
		PaymentReference: c.PaymentReference,

		StageName:       initialStage.Name,
		FinancialStatus: domain.StatusPending,
		FinalStatus:     domain.StatusPending,

		Revision:       1,
		CreateTime:     now,
		StageBeginTime: now,
	}

	var ev *event.EventRecord
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err1 := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		var err error
		ev, err = event.CreateEvent(event.SourceTypeMembership, record.ID, record.ApplicantName,
			event.EventCategoryCreated, nil, &sec.Identity, tx)
		return err
	})
	if err1 != nil {
		return nil, err1
	}

	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}

	return record, nil
}

func DetailMembership(id types.ID, sec *session.Session) (*domain.MembershipRecord, error) {
	record := domain.MembershipRecord{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where(&domain.MembershipRecord{ID: id}).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func QueryMemberships(query *domain.MembershipQuery, sec *session.Session) (*[]domain.MembershipRecord, error) {
	var records []domain.MembershipRecord
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)

	q := db.Model(&domain.MembershipRecord{})
	if query.Kind != "" {
		q = q.Where(&domain.MembershipRecord{Kind: query.Kind})
	}
	if query.StageName != "" {
		q = q.Where(&domain.MembershipRecord{StageName: query.StageName})
	}
	if err := q.Order("create_time ASC, id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return &records, nil
}

// LoadMemberships pages through all records, used by the index full sync.
func LoadMemberships(page, size int) ([]domain.MembershipRecord, error) {
	records := []domain.MembershipRecord{}
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	offset := (page - 1) * size
	if offset < 0 {
		offset = 0
	}
	if err := db.Order("id ASC").Offset(offset).Limit(size).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
