package knowledge

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
	"github.com/ironsheep/pid-symbol-tools/internal/logging"
)

// QdrantConfig configures a QdrantStore.
type QdrantConfig struct {
	Address    string // host:port of the gRPC endpoint
	Collection string
	Dimension  int
}

// QdrantStore keeps reference symbols in a Qdrant collection using
// Euclidean distance, so scores are directly comparable to SQLiteStore.
type QdrantStore struct {
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	conn        *grpc.ClientConn
	collection  string
	dimension   int
	logger      *logging.Logger
}

// OpenQdrant connects to Qdrant and creates the collection if missing.
func OpenQdrant(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Address == "" {
		return nil, perrors.NewInvalidConfigurationError("kb.qdrant_address", "qdrant address is required")
	}
	if cfg.Collection == "" {
		return nil, perrors.NewInvalidConfigurationError("kb.collection", "collection name is required")
	}
	if cfg.Dimension <= 0 {
		return nil, perrors.NewInvalidConfigurationError("embedding.dimension", "vector dimension must be positive, got %d", cfg.Dimension)
	}

	conn, err := grpc.Dial(cfg.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, perrors.NewPersistenceError(cfg.Address, fmt.Errorf("failed to connect to qdrant: %w", err))
	}

	q := &QdrantStore{
		points:      qdrant.NewPointsClient(conn),
		collections: qdrant.NewCollectionsClient(conn),
		conn:        conn,
		collection:  cfg.Collection,
		dimension:   cfg.Dimension,
		logger:      logging.NewLogger("knowledge.qdrant"),
	}
	if err := q.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, perrors.NewPersistenceError(cfg.Collection, err)
	}
	return q, nil
}

func (q *QdrantStore) ensureCollection(ctx context.Context) error {
	list, err := q.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, c := range list.Collections {
		if c.Name == q.collection {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(q.dimension),
					Distance: qdrant.Distance_Euclid,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	q.logger.Info("created collection", "collection", q.collection, "dimension", q.dimension)
	return nil
}

// Upsert implements Store.
func (q *QdrantStore) Upsert(ctx context.Context, e Entry) error {
	if len(e.Embedding) != q.dimension {
		return fmt.Errorf("invalid vector dimensions: expected %d, got %d", q.dimension, len(e.Embedding))
	}

	wait := true
	_, err := q.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id: &qdrant.PointId{
				PointIdOptions: &qdrant.PointId_Uuid{Uuid: pointID(e.ID)},
			},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{Data: e.Embedding},
				},
			},
			Payload: entryPayload(e),
		}},
	})
	if err != nil {
		return perrors.NewPersistenceError(q.collection, fmt.Errorf("failed to upsert %s: %w", e.ID, err))
	}
	return nil
}

// Nearest implements Store. Qdrant's Euclid score is the distance itself.
func (q *QdrantStore) Nearest(ctx context.Context, vec []float32, k int) ([]Match, error) {
	if len(vec) != q.dimension {
		return nil, fmt.Errorf("invalid query vector dimensions: expected %d, got %d", q.dimension, len(vec))
	}
	if k <= 0 {
		k = 1
	}

	resp, err := q.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         vec,
		Limit:          uint64(k),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	matches := make([]Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, Match{
			Entry:    entryFromPayload(r.Payload),
			Distance: float64(r.Score),
		})
	}
	return matches, nil
}

// Count implements Store.
func (q *QdrantStore) Count(ctx context.Context) (int, error) {
	info, err := q.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: q.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get collection info: %w", err)
	}
	return int(info.Result.GetPointsCount()), nil
}

// Close implements Store.
func (q *QdrantStore) Close() error {
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// pointID maps a symbol id onto a stable UUID so upserts overwrite.
func pointID(symbolID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(symbolID)).String()
}

func entryPayload(e Entry) map[string]*qdrant.Value {
	str := func(s string) *qdrant.Value {
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
	}
	payload := map[string]*qdrant.Value{
		"symbol_id": str(e.ID),
		"label":     str(e.Label),
		"category":  str(string(e.Category)),
		"standard":  str(e.Standard),
	}
	if e.SourceImagePath != "" {
		payload["source_image"] = str(e.SourceImagePath)
	}
	return payload
}

func entryFromPayload(p map[string]*qdrant.Value) Entry {
	get := func(k string) string {
		if v, ok := p[k]; ok && v != nil {
			return v.GetStringValue()
		}
		return ""
	}
	return Entry{
		ID:              get("symbol_id"),
		Label:           get("label"),
		Category:        Category(get("category")),
		Standard:        get("standard"),
		SourceImagePath: get("source_image"),
	}
}
