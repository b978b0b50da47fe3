package indices

import (
	"encoding/json"
	"fmt"
	"memberflow/client/es"
	"memberflow/domain"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	MemberIndexName = "memberships"

	SearchMemberDocumentsFunc = SearchMemberDocuments
)

type MemberDocument struct {
	domain.MembershipRecord
}

type BatchActionError map[types.ID]error

func (e BatchActionError) Error() string {
	return fmt.Sprintf("%v", map[types.ID]error(e))
}

func IndexMemberships(records []domain.MembershipRecord) error {
	docs := make([]MemberDocument, 0, len(records))
	for _, record := range records {
		docs = append(docs, MemberDocument{MembershipRecord: record})
	}

	if err := saveMemberDocuments(docs); err != nil {
		return err
	}
	return nil
}

func saveMemberDocuments(docs []MemberDocument) BatchActionError {
	errs := BatchActionError{}

	for _, doc := range docs {
		if err := es.IndexFunc(MemberIndexName, doc.ID, doc); err != nil {
			errs[doc.ID] = err
			logrus.Warnf("index membership %d %s", doc.ID, err)
		} else {
			logrus.Infof("index membership %d successfully", doc.ID)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

type MemberDocumentQuery struct {
	Kind      string `json:"kind" form:"kind" binding:"omitempty,oneof=APPLICATION RENEWAL"`
	StageName string `json:"stage" form:"stage"`
}

// SearchMemberDocuments serves compliance reporting and dashboards from the
// index, keeping those reads off the workflow store.
func SearchMemberDocuments(q MemberDocumentQuery) ([]MemberDocument, error) {
	filters := []es.H{}
	if q.Kind != "" {
		filters = append(filters, es.H{"term": es.H{"kind": q.Kind}})
	}
	if q.StageName != "" {
		filters = append(filters, es.H{"term": es.H{"stageName": q.StageName}})
	}

	sources, err := es.SearchFunc(MemberIndexName, es.H{"query": es.H{"bool": es.H{"filter": filters}}})
	if err != nil {
		return nil, err
	}

	docs := make([]MemberDocument, 0, len(sources))
	for _, source := range sources {
		doc := MemberDocument{}
		if err := json.Unmarshal(source, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
