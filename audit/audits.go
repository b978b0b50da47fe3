package audit

import (
	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var (
	AppendFunc = appendEntry
)

func AppendFuncReset() {
	AppendFunc = appendEntry
}

// appendEntry writes within the caller's transaction so the audit row and
// the entity write commit or roll back as one unit.
func appendEntry(entry *Entry, db *gorm.DB) error {
	return db.Create(entry).Error
}

// LoadTrail returns the audit entries of one record in occurrence order.
func LoadTrail(memberId types.ID, db *gorm.DB) ([]Entry, error) {
	entries := []Entry{}
	if err := db.Where(&Entry{MemberID: memberId}).
		Order("occurred_at ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
