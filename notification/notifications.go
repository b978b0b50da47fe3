package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"memberflow/event"
	"memberflow/idgen"
	"memberflow/misc"
	"memberflow/persistence"
	"net/http"
	"os"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

var (
	notifyIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	ReviewFinalizedHandlerName = "reviewFinalizedNotifier"

	// NOTIFICATION_GATEWAY_URL: downstream SMS/email gateway; when unset
	// outcomes are only recorded locally
	GatewayURLFunc = gatewayURLFromEnv

	DeliverFunc = deliver
)

func gatewayURLFromEnv() string {
	return os.Getenv("NOTIFICATION_GATEWAY_URL")
}

// Notification is the outbound record shown on the admin "Review & History"
// surface; delivery itself is downstream and best-effort.
type Notification struct {
	ID types.ID `json:"id"`

	MemberID types.ID        `json:"memberId"`
	Outcome  string          `json:"outcome"`
	Detail   string          `json:"detail"`
	SendTime types.Timestamp `json:"sendTime" sql:"type:DATETIME(6)"`

	Delivered bool `json:"delivered"`
}

func (n *Notification) TableName() string {
	return "notifications"
}

type outcomePayload struct {
	MemberID types.ID `json:"memberId"`
	Outcome  string   `json:"outcome"`
	Detail   string   `json:"detail"`
}

// ReviewFinalizedEventHandle dispatches terminal review outcomes. It never
// reports failure upward: a lost notification must not disturb a committed
// transition.
func ReviewFinalizedEventHandle(e *event.EventRecord) *event.EventHandleResult {
	if e.SourceType != event.SourceTypeMembership || e.EventCategory != event.EventCategoryReviewFinalized {
		return nil
	}

	outcome := ""
	for _, p := range e.UpdatedProperties {
		if p.PropertyName == "StageName" {
			outcome = p.NewValue
		}
	}

	record := Notification{
		ID:       idgen.NextID(notifyIdWorker),
		MemberID: e.SourceId,
		Outcome:  outcome,
		Detail:   e.SourceDesc,
		SendTime: types.CurrentTimestamp(),
	}

	delivered, err := DeliverFunc(&record)
	record.Delivered = delivered
	if err != nil {
		logrus.Warnf("notification delivery for member %d failed: %v", e.SourceId, err)
	}

	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	if err := db.Create(&record).Error; err != nil {
		return &event.EventHandleResult{
			Message:           fmt.Sprintf("record notification for member %d: %v", e.SourceId, err),
			HandlerIdentifier: ReviewFinalizedHandlerName,
		}
	}

	return &event.EventHandleResult{Success: true, HandlerIdentifier: ReviewFinalizedHandlerName}
}

func deliver(n *Notification) (bool, error) {
	gatewayURL := GatewayURLFunc()
	if gatewayURL == "" {
		return false, nil
	}

	payload, err := json.Marshal(outcomePayload{MemberID: n.MemberID, Outcome: n.Outcome, Detail: n.Detail})
	if err != nil {
		return false, err
	}
	if _, err := misc.HttpInvokeJson(http.MethodPost, gatewayURL, nil, string(payload)); err != nil {
		return false, err
	}
	return true, nil
}
