package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/revoshop/internal/registry"
)

// Searcher finds registry products by free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, from, size int) (int64, []registry.Record, error)
}

func NewClient(url, user, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), body)
	}
	return client, nil
}

// Index mirrors registry records into an Elasticsearch index and queries it.
type Index struct {
	ES    *elasticsearch.Client
	Index string
}

func NewIndex(es *elasticsearch.Client, index string) *Index {
	return &Index{ES: es, Index: index}
}

func (i *Index) Name() string { return "search_index" }

func (i *Index) Created(ctx context.Context, rec registry.Record) error {
	return i.Upsert(ctx, rec)
}

func (i *Index) Updated(ctx context.Context, rec registry.Record) error {
	return i.Upsert(ctx, rec)
}

func (i *Index) Deleted(ctx context.Context, id string) error {
	res, err := i.ES.Delete(i.Index, id, i.ES.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete %s: %s", id, res.Status())
	}
	return nil
}

func (i *Index) Upsert(ctx context.Context, rec registry.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	res, err := i.ES.Index(
		i.Index,
		bytes.NewReader(body),
		i.ES.Index.WithDocumentID(rec.ID()),
		i.ES.Index.WithContext(ctx),
		i.ES.Index.WithRefresh("wait_for"),
	)
	if err != nil {
		return fmt.Errorf("index %s: %w", rec.ID(), err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index %s: %s", rec.ID(), res.Status())
	}
	return nil
}

func buildQuery(query string, from, size int) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"title^2", "name^2", "description"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}
}

func (i *Index) Search(ctx context.Context, query string, from, size int) (int64, []registry.Record, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildQuery(query, from, size)); err != nil {
		return 0, nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := i.ES.Search(
		i.ES.Search.WithContext(ctx),
		i.ES.Search.WithIndex(i.Index),
		i.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source registry.Record `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]registry.Record, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		out[i] = hit.Source
	}
	return r.Hits.Total.Value, out, nil
}

// Fallback searches the registry in process when no index is configured.
type Fallback struct {
	Registry *registry.Registry
}

func (f Fallback) Search(ctx context.Context, query string, from, size int) (int64, []registry.Record, error) {
	total, hits := f.Registry.Search(ctx, query, from, size)
	return total, hits, nil
}
