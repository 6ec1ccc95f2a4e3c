//go:build integration

// Integration tests against a real SurrealDB container.
package vector

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jamisonl/Reverie/internal/metrics"
)

const testDimension = 8

var testClient *Client

// hashEmbedder produces deterministic unit vectors so KNN ordering is
// stable without a model server.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float32, testDimension)
	var norm float64
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(int64(seed>>33)%1000) / 1000
		norm += float64(v[i]) * float64(v[i])
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v, nil
}

func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testClient, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testClient.InitSchema(ctx, "chat_messages", testDimension); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testClient.Close(ctx)
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	return NewIndex(testClient, "chat_messages", hashEmbedder{}, nil, nil)
}

func turnFor(id, content, thread string) Turn {
	return Turn{
		ID:         id,
		Content:    content,
		Timestamp:  time.Now().UnixMilli(),
		ThreadID:   thread,
		AuthorID:   "u1",
		AuthorName: "alice",
	}
}

func TestUpsertAndQueryScopedByThread(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	require.True(t, ix.Upsert(ctx, turnFor("m1", "the coffee machine is broken again", "T1")))
	require.True(t, ix.Upsert(ctx, turnFor("m2", "who broke the coffee machine", "T1")))
	require.True(t, ix.Upsert(ctx, turnFor("m3", "deploy finished on staging", "T2")))

	results := ix.Query(ctx, "the coffee machine is broken again", "T1", 10)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "T1", r.Meta.ThreadID)
		assert.GreaterOrEqual(t, r.Similarity, 0.0)
		assert.LessOrEqual(t, r.Similarity, 1.0)
	}
	// Exact content match ranks first with similarity 1
	assert.Equal(t, "the coffee machine is broken again", results[0].Content)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)

	// Never returned for a query scoped to another thread
	other := ix.Query(ctx, "the coffee machine is broken again", "T2", 10)
	for _, r := range other {
		assert.NotEqual(t, "m1", r.Content)
		assert.Equal(t, "T2", r.Meta.ThreadID)
	}
}

func TestUpsertOverwritesSameID(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	require.True(t, ix.Upsert(ctx, turnFor("dup-1", "first version", "T3")))
	require.True(t, ix.Upsert(ctx, turnFor("dup-1", "second version", "T3")))

	count, err := ix.Count(ctx, "T3")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results := ix.Query(ctx, "second version", "T3", 10)
	require.NotEmpty(t, results)
	assert.Equal(t, "second version", results[0].Content)
}

func TestOperationsAreMetered(t *testing.T) {
	ctx := context.Background()
	coll := metrics.NewCollector()
	ix := NewIndex(testClient, "chat_messages", hashEmbedder{}, coll, nil)

	require.True(t, ix.Upsert(ctx, turnFor("met-1", "metered message", "T5")))
	_ = ix.Query(ctx, "metered message", "T5", 5)

	snap := coll.Snapshot()
	assert.EqualValues(t, 2, snap.Operations[metrics.OpEmbedding].Count, "one embed per upsert and query")
	assert.EqualValues(t, 1, snap.Operations[metrics.OpIndexUpsert].Count)
	assert.EqualValues(t, 1, snap.Operations[metrics.OpIndexQuery].Count)
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	require.True(t, ix.Upsert(ctx, turnFor("c1", "hello there", "T4")))
	require.True(t, ix.Upsert(ctx, turnFor("c2", "general kenobi", "T4")))

	assert.True(t, ix.Clear(ctx, "T4"))
	assert.True(t, ix.Clear(ctx, "T4"), "second clear must not error")

	count, err := ix.Count(ctx, "T4")
	require.NoError(t, err)
	assert.Zero(t, count)
}
