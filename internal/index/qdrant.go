package index

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/mlewan/docquery/internal/document"
)

// collectionPrefix namespaces the per-session qdrant collections.
const collectionPrefix = "docquery_"

// upsertBatchSize bounds points per upsert request.
const upsertBatchSize = 100

// QdrantStore is a Store backed by a qdrant server. Each session id owns
// one collection, so collections stay fully isolated and are deleted as a
// unit.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore connects to qdrant and verifies health with exponential
// backoff, failing fast if the server is unreachable.
func NewQdrantStore(host string, port int) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	store := &QdrantStore{client: client}
	if err := store.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant unreachable: %w", err)
	}
	return store, nil
}

func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		result, err := s.client.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if result == nil || result.Title == "" {
			return fmt.Errorf("health check returned invalid response")
		}
		return nil
	}, backoff.WithContext(b, ctx))
}

// Close closes the underlying client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func collectionName(sessionID string) string {
	return collectionPrefix + sessionID
}

// Persist replaces the session's collection with the given index. The
// rebuild is wholesale: any previous collection is dropped first.
func (s *QdrantStore) Persist(ctx context.Context, sessionID string, idx *Index) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	name := collectionName(sessionID)

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("drop stale collection: %w", err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(idx.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	for i := 0; i < len(idx.Entries); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(idx.Entries))
		points := make([]*qdrant.PointStruct, 0, end-i)
		for _, entry := range idx.Entries[i:end] {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(entry.ID),
				Vectors: qdrant.NewVectors(entry.Vector...),
				Payload: qdrant.NewValueMap(chunkPayload(entry.Chunk)),
			})
		}
		if err := s.upsertWithRetry(ctx, name, points); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

func (s *QdrantStore) upsertWithRetry(ctx context.Context, name string, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Points:         points,
		})
		return err
	}, backoff.WithContext(b, ctx))
}

// Search runs a nearest-neighbor query against the session's collection.
func (s *QdrantStore) Search(ctx context.Context, sessionID string, vector []float32, k int) ([]Result, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", document.ErrInvalidInput, k)
	}
	name := collectionName(sessionID)

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: session %s", ErrIndexNotFound, sessionID)
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	results := make([]Result, 0, len(points))
	for _, point := range points {
		results = append(results, Result{
			Chunk: chunkFromPayload(point.Payload),
			Score: float64(point.Score),
		})
	}
	return results, nil
}

// Load reconstructs the full index from the session's collection.
func (s *QdrantStore) Load(ctx context.Context, sessionID string) (*Index, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	name := collectionName(sessionID)

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: session %s", ErrIndexNotFound, sessionID)
	}

	idx := &Index{}
	var offset *qdrant.PointId
	batch := uint32(upsertBatchSize)
	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: name,
			Limit:          qdrant.PtrOf(batch),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, fmt.Errorf("scroll collection: %w", err)
		}
		for _, point := range points {
			vector := point.Vectors.GetVector().GetData()
			if idx.Dimension == 0 {
				idx.Dimension = len(vector)
			}
			if len(vector) != idx.Dimension {
				return nil, fmt.Errorf("%w: session %s: mixed vector dimensions", ErrIndexCorrupt, sessionID)
			}
			idx.Entries = append(idx.Entries, Entry{
				ID:     point.Id.GetUuid(),
				Chunk:  chunkFromPayload(point.Payload),
				Vector: vector,
			})
		}
		if uint32(len(points)) < batch {
			break
		}
		offset = points[len(points)-1].Id
	}

	if idx.Dimension == 0 {
		return nil, fmt.Errorf("%w: session %s: empty collection", ErrIndexCorrupt, sessionID)
	}
	return idx, nil
}

// Delete drops the session's collection; missing collections are fine.
func (s *QdrantStore) Delete(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	name := collectionName(sessionID)

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

// Exists reports whether the session's collection exists.
func (s *QdrantStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	if err := validateSessionID(sessionID); err != nil {
		return false, err
	}
	return s.client.CollectionExists(ctx, collectionName(sessionID))
}

// chunkPayload flattens a chunk for qdrant storage. Positional blocks ride
// along as a JSON string, mirroring the on-disk artifact schema.
func chunkPayload(chunk document.Chunk) map[string]any {
	blocks, err := json.Marshal(chunk.Blocks)
	if err != nil {
		blocks = []byte("[]")
	}
	return map[string]any{
		"text":        chunk.Text,
		"source":      chunk.Source,
		"page":        chunk.Page,
		"total_pages": chunk.TotalPages,
		"file_path":   chunk.FilePath,
		"text_blocks": string(blocks),
	}
}

func chunkFromPayload(payload map[string]*qdrant.Value) document.Chunk {
	chunk := document.Chunk{
		Text:       payload["text"].GetStringValue(),
		Source:     payload["source"].GetStringValue(),
		Page:       int(payload["page"].GetIntegerValue()),
		TotalPages: int(payload["total_pages"].GetIntegerValue()),
		FilePath:   payload["file_path"].GetStringValue(),
	}
	// Unparseable blocks degrade to none; highlighting is optional.
	if raw := payload["text_blocks"].GetStringValue(); raw != "" {
		_ = json.Unmarshal([]byte(raw), &chunk.Blocks)
	}
	return chunk
}
