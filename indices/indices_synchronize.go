package indices

import (
	"fmt"
	"memberflow/account"
	"memberflow/authority"
	"memberflow/bizerror"
	"memberflow/client/es"
	"memberflow/domain"
	"memberflow/domain/member"
	"memberflow/event"
	"memberflow/session"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	MemberIndexEventHandlerName = "memberIndexer"
	indexRobot                  = &session.Session{
		Identity: session.Identity{ID: 10, Name: "index-robot"},
		Perms:    authority.Permissions{account.SystemAdminPermission.ID},
	}

	lock    sync.Mutex
	running bool

	IndicesFullSyncFunc    = IndicesFullSync
	ScheduleNewSyncRunFunc = ScheduleNewSyncRun
)

func ScheduleNewSyncRun(sec *session.Session) (bool, error) {
	if !sec.Perms.HasRole(account.SystemAdminPermission.ID) {
		return false, bizerror.ErrForbidden
	}

	lock.Lock()
	if running {
		lock.Unlock()
		return false, nil
	}
	running = true
	lock.Unlock()

	waitRunning := sync.WaitGroup{}
	waitRunning.Add(1)
	go func() {
		waitRunning.Done()
		defer func() {
			lock.Lock()
			running = false
			lock.Unlock()
		}()
		IndicesFullSyncFunc()
	}()
	waitRunning.Wait()
	return true, nil
}

var (
	SyncBatchSize = 500
)

func IndicesFullSync() (err error) {
	defer func() {
		if ret := recover(); ret != nil {
			e, ok := ret.(error)
			if ok {
				err = e
			} else {
				err = fmt.Errorf("error on indices full sync: %v", ret)
			}
		}
	}()

	// rebuild from scratch so documents of records indexed under an older
	// mapping do not linger
	if err := es.DropIndexFunc(MemberIndexName); err != nil {
		logrus.Warnf("indices full sync: error on drop index %s: %v", MemberIndexName, err)
	}

	page := 1
	for {
		records, err := member.LoadMembershipsFunc(page, SyncBatchSize)
		if err != nil {
			logrus.Warnf("indices full sync: error on retrieve memberships(page = %d, pageSize = %d): %v", page, SyncBatchSize, err)
			page++
			continue
		}

		if len(records) == 0 {
			logrus.Infof("indices full sync: there are no more memberships to index")
			return nil // loop exit
		}

		if err := IndexMemberships(records); err != nil {
			logrus.Warnf("indices full sync: error on index memberships(page = %d, pageSize = %d): %v", page, SyncBatchSize, err)
		}
		page++
	}
}

// MemberIndexEventHandle keeps the dashboard index following committed
// membership changes. Records are never deleted by the workflow, so there
// is no delete branch.
func MemberIndexEventHandle(e *event.EventRecord) *event.EventHandleResult {
	if e.SourceType != event.SourceTypeMembership {
		return nil
	}

	record, err := member.DetailMembershipFunc(e.Event.SourceId, indexRobot)
	if err != nil {
		return &event.EventHandleResult{
			Message:           fmt.Sprintf("detail membership when index membership %d, %v", e.Event.SourceId, err),
			HandlerIdentifier: MemberIndexEventHandlerName,
		}
	}
	if err := IndexMemberships([]domain.MembershipRecord{*record}); err != nil {
		return &event.EventHandleResult{
			Message:           fmt.Sprintf("index membership %d, %v", e.Event.SourceId, err),
			HandlerIdentifier: MemberIndexEventHandlerName,
		}
	}
	return &event.EventHandleResult{Success: true, HandlerIdentifier: MemberIndexEventHandlerName}
}
