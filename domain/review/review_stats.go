package review

import (
	"memberflow/domain"
	"memberflow/persistence"
	"memberflow/session"
)

var QueryReviewStatsFunc = QueryReviewStats

// QueryReviewStats aggregates workflow state for dashboard cards. Pure
// read over committed state; it takes no part in the per-record
// transition transaction and tolerates eventually-consistent views.
func QueryReviewStats(sec *session.Session) (*domain.ReviewStats, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)

	stats := domain.ReviewStats{Stages: []domain.StageStats{}}
	if err := db.Model(&domain.MembershipRecord{}).
		Select("stage_name, count(*) as count").
		Group("stage_name").Scan(&stats.Stages).Error; err != nil {
		return nil, err
	}

	for _, row := range stats.Stages {
		switch row.StageName {
		case StageSubmitted.Name, StageFinancialReview.Name:
			stats.FinancialPending += row.Count
		case StagePaymentApproved.Name, StageFinalReview.Name:
			stats.FinalPending += row.Count
		case StageApproved.Name:
			stats.Approved += row.Count
		case StageRejected.Name:
			stats.Rejected += row.Count
		}
	}
	return &stats, nil
}
