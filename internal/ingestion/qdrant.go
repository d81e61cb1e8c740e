package ingestion

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/vetrag-go/internal/rag"
)

// QdrantSink writes documents into a Qdrant collection in the layout
// rag.QdrantIndex reads: one unnamed vector per point, numeric point ids
// equal to document offsets, and the passage text and source as payload.
type QdrantSink struct {
	// client is the Qdrant gRPC client. The sink does not close it.
	client *qdrant.Client

	// collection is the destination collection.
	collection string

	// recreate drops an existing collection before writing.
	recreate bool
}

// NewQdrantSink constructs a QdrantSink for collection.
func NewQdrantSink(client *qdrant.Client, collection string, recreate bool) *QdrantSink {
	return &QdrantSink{client: client, collection: collection, recreate: recreate}
}

// Prepare creates the collection if needed. An existing collection is kept
// unless recreate is set, in which case its vector size must match dim.
func (s *QdrantSink) Prepare(ctx context.Context, dim int, metric rag.Metric) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}

	if exists && s.recreate {
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("qdrant: failed to drop collection %q: %w", s.collection, err)
		}
		exists = false
	}

	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("qdrant: collection %q info: %w", s.collection, err)
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if int(size) != dim {
			return fmt.Errorf("qdrant: collection %q has vector size %d, want %d (use --recreate)", s.collection, size, dim)
		}
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: distanceFor(metric),
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.collection, err)
	}
	return nil
}

// Upsert writes one batch of points and waits for it to be applied.
func (s *QdrantSink) Upsert(ctx context.Context, ids []int64, vectors [][]float32, docs []rag.Document) error {
	points := make([]*qdrant.PointStruct, 0, len(ids))
	for i, id := range ids {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(id)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payloadFor(docs[i])),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// distanceFor maps an index metric to the Qdrant distance with the same
// ranking. Inner product over bge-m3's unit vectors is cosine.
func distanceFor(m rag.Metric) qdrant.Distance {
	if m == rag.MetricL2 {
		return qdrant.Distance_Euclid
	}
	return qdrant.Distance_Cosine
}

// payloadFor builds the point payload for doc. Metadata keys never shadow
// the text and source fields.
func payloadFor(doc rag.Document) map[string]any {
	payload := make(map[string]any, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		payload[k] = v
	}
	payload["text"] = doc.Text
	if doc.Source != "" {
		payload["source"] = doc.Source
	}
	return payload
}
