package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/fundwit/go-commons/types"
)

var (
	ActiveESClient *elasticsearch.Client

	IndexFunc     = Index
	SearchFunc    = Search
	DropIndexFunc = DropIndex
)

type H map[string]interface{}

// StartESClient connects using ELASTICSEARCH_URL (the client's default
// env lookup applies when unset).
func StartESClient() error {
	cfg := elasticsearch.Config{
		Transport: &TracingTransport{Transport: http.DefaultTransport},
	}
	if url := os.Getenv("ELASTICSEARCH_URL"); url != "" {
		cfg.Addresses = []string{url}
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ActiveESClient = client
	return nil
}

func Index(index string, id types.ID, doc interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id.String(),
		Body:       bytes.NewReader(buf.Bytes()),
		Refresh:    "true",
	}
	res, err := req.Do(context.Background(), ActiveESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index document %s/%s: %s", index, id, res.Status())
	}
	return nil
}

func DropIndex(index string) error {
	ignoreUnavailable := true
	req := esapi.IndicesDeleteRequest{Index: []string{index}, IgnoreUnavailable: &ignoreUnavailable}
	res, err := req.Do(context.Background(), ActiveESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("drop index %s: %s", index, res.Status())
	}
	return nil
}

type searchResult struct {
	Hits struct {
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func Search(index string, query H) ([]json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := ActiveESClient.Search(
		ActiveESClient.Search.WithContext(context.Background()),
		ActiveESClient.Search.WithIndex(index),
		ActiveESClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search index %s: %s", index, res.Status())
	}

	result := searchResult{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, err
	}
	docs := make([]json.RawMessage, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}
