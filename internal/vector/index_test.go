package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/jamisonl/Reverie/internal/metrics"
)

func TestSimilarityFromDistance(t *testing.T) {
	tests := []struct {
		name string
		d    float64
		want float64
	}{
		{"identical", 0, 1},
		{"orthogonal", 1, 0.5},
		{"opposite", 2, 0},
		{"halfway", 0.5, 0.75},
		{"clamped below", 2.5, 0},
		{"clamped above", -0.1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := similarityFromDistance(tt.d)
			if got != tt.want {
				t.Errorf("similarityFromDistance(%v) = %v, want %v", tt.d, got, tt.want)
			}
		})
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("model server down")
}

func TestEmbedCallsAreMetered(t *testing.T) {
	coll := metrics.NewCollector()
	ix := NewIndex(nil, "chat_messages", failingEmbedder{}, coll, nil)
	ctx := context.Background()

	if ix.Upsert(ctx, Turn{ID: "m1", Content: "hello", ThreadID: "T1"}) {
		t.Fatal("Upsert must report failure when embedding fails")
	}
	if got := ix.Query(ctx, "hello", "T1", 5); got != nil {
		t.Fatalf("Query must return nil when embedding fails, got %v", got)
	}

	snap := coll.Snapshot()
	emb, ok := snap.Operations[metrics.OpEmbedding]
	if !ok {
		t.Fatal("embedding operations were not recorded")
	}
	if emb.Count != 2 || emb.Failures != 2 {
		t.Errorf("embedding stats = %d/%d, want 2/2", emb.Count, emb.Failures)
	}
}
