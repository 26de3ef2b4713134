package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/JulioPeixoto/veritas/internal/vector"
)

// DefaultAlpha weights vector similarity over BM25 in hybrid queries.
const DefaultAlpha float32 = 0.75

// Store is a vector.Backend over a Weaviate class.
type Store struct {
	client *weaviate.Client
	class  string
	alpha  float32
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client, class: vector.ChunkClass, alpha: DefaultAlpha}
}

func (s *Store) Name() string { return "weaviate" }

// Open ensures the chunk class exists.
func (s *Store) Open(ctx context.Context) error {
	return vector.EnsureSchema(ctx, s, s.class, vector.ChunkProperties())
}

func (s *Store) Close() error { return nil }

func (s *Store) ClassExists(ctx context.Context, className string) (bool, error) {
	return s.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (s *Store) CreateClass(ctx context.Context, class *models.Class) error {
	return s.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (s *Store) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return s.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (s *Store) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return s.client.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}

// Add sends every record of a call in one batch request.
func (s *Store) Add(ctx context.Context, records []vector.Record, vectors [][]float32) error {
	if len(records) != len(vectors) {
		return fmt.Errorf("got %d vectors for %d records", len(vectors), len(records))
	}
	if len(records) == 0 {
		return nil
	}

	objects := make([]*models.Object, len(records))
	for i, r := range records {
		props := map[string]interface{}{"content": r.Text}
		for _, key := range []string{"filename", "documentName", "docType", "chunk"} {
			if v, ok := r.Metadata[key]; ok {
				props[key] = v
			}
		}
		objects[i] = &models.Object{
			Class:      s.class,
			Properties: props,
			Vector:     vectors[i],
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("store batch of %d chunks: %w", len(objects), err)
	}
	for i, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("store chunk %d: %s", i, r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, query string, vec []float32, k int) ([]vector.Document, error) {
	hybrid := s.client.GraphQL().HybridArgumentBuilder().
		WithQuery(query).
		WithVector(vec).
		WithAlpha(s.alpha)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "filename"},
		{Name: "documentName"},
		{Name: "docType"},
		{Name: "chunk"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithHybrid(hybrid).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	docs := []vector.Document{}
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return docs, nil
	}
	rows, ok := data[s.class].([]interface{})
	if !ok {
		return docs, nil
	}

	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		doc := vector.Document{Metadata: make(map[string]interface{})}
		if content, ok := props["content"].(string); ok {
			doc.Content = content
		}
		for _, key := range []string{"filename", "documentName", "docType", "chunk"} {
			if v, ok := props[key].(string); ok && v != "" {
				doc.Metadata[key] = v
			}
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			// score comes back as a string on some server versions
			switch score := additional["score"].(type) {
			case string:
				var f float64
				if _, err := fmt.Sscanf(score, "%f", &f); err == nil {
					doc.Score = float32(f)
				}
			case float64:
				doc.Score = float32(score)
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(s.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	if agg, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if rows, ok := agg[s.class].([]interface{}); ok && len(rows) > 0 {
			if row, ok := rows[0].(map[string]interface{}); ok {
				if meta, ok := row["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}
