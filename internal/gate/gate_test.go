package gate

import (
	"context"
	"testing"

	"github.com/jamisonl/Reverie/internal/vector"
	"github.com/stretchr/testify/assert"
)

// stubIndex returns canned results regardless of query text.
type stubIndex struct {
	results []vector.Result
	queried bool
}

func (s *stubIndex) Query(_ context.Context, _, _ string, _ int) []vector.Result {
	s.queried = true
	return s.results
}

var (
	testBot = Identity{ID: "99887766", Name: "reverie"}
	testCfg = Config{SimilarityThreshold: 0.75, ContextWindow: 10}
)

func result(content string, similarity float64, ts int64) vector.Result {
	return vector.Result{
		Content:    content,
		Author:     "alice",
		Meta:       vector.Meta{Timestamp: ts, ThreadID: "T1", AuthorName: "alice"},
		Similarity: similarity,
	}
}

func TestDecideDirectNameMention(t *testing.T) {
	g := New(&stubIndex{}, nil)

	tests := []struct {
		name    string
		content string
	}{
		{"bare name", "hey reverie what do you think"},
		{"at name", "@reverie ping"},
		{"mention token", "<@99887766> hello"},
		{"mixed case", "REVERIE, settle this"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Decide(context.Background(), Message{Content: tt.content, ThreadID: "T1"}, testBot, testCfg)
			assert.True(t, d.ShouldRespond, "mention must trigger regardless of similarity")
		})
	}
}

func TestDecideNameAsSubstringDoesNotTrigger(t *testing.T) {
	g := New(&stubIndex{}, nil)
	d := g.Decide(context.Background(), Message{Content: "daydreaming about reveries again", ThreadID: "T1"}, testBot, testCfg)
	assert.False(t, d.ShouldRespond)
}

func TestDecideQuestionWithEmptyIndex(t *testing.T) {
	g := New(&stubIndex{}, nil)
	d := g.Decide(context.Background(), Message{Content: "so what happened yesterday?", ThreadID: "T1"}, testBot, testCfg)

	assert.True(t, d.ShouldRespond)
	assert.Empty(t, d.Relevant)
	assert.Zero(t, d.AvgSimilarity)
}

func TestDecideAnyoneHeuristic(t *testing.T) {
	g := New(&stubIndex{}, nil)
	d := g.Decide(context.Background(), Message{Content: "is anyone there?", ThreadID: "T1"}, testBot, testCfg)

	assert.True(t, d.ShouldRespond)
	assert.Empty(t, d.Relevant)
	assert.Zero(t, d.AvgSimilarity)
}

func TestDecideStatementBelowThreshold(t *testing.T) {
	idx := &stubIndex{results: []vector.Result{
		result("old chat", 0.4, 100),
		result("older chat", 0.4, 50),
	}}
	g := New(idx, nil)

	d := g.Decide(context.Background(), Message{Content: "the weather turned cold today", ThreadID: "T1"}, testBot, testCfg)

	assert.False(t, d.ShouldRespond)
	assert.InDelta(t, 0.4, d.AvgSimilarity, 1e-9)
	assert.True(t, idx.queried)
}

func TestDecideSimilarityTrigger(t *testing.T) {
	idx := &stubIndex{results: []vector.Result{
		result("we discussed this", 0.9, 100),
		result("related topic", 0.7, 200),
	}}
	g := New(idx, nil)

	d := g.Decide(context.Background(), Message{Content: "continuing that topic from before", ThreadID: "T1"}, testBot, testCfg)

	// Unfiltered mean (0.9+0.7)/2 = 0.8 >= 0.75; the 0.7 entry still
	// counts toward the average even though it is below the threshold.
	assert.True(t, d.ShouldRespond)
	assert.InDelta(t, 0.8, d.AvgSimilarity, 1e-9)
}

func TestDecideReplyToBotTriggers(t *testing.T) {
	g := New(&stubIndex{}, nil)
	msg := Message{
		Content:  "fair enough",
		ThreadID: "T1",
		ReplyTo:  &ReplyRef{Author: "reverie", Content: "previous reply", IsBot: true},
	}
	d := g.Decide(context.Background(), msg, testBot, testCfg)

	assert.True(t, d.ShouldRespond)
	assert.Equal(t, msg.ReplyTo, d.ReplyTo)
}

func TestDecideMentionListTriggers(t *testing.T) {
	g := New(&stubIndex{}, nil)
	msg := Message{Content: "thoughts", ThreadID: "T1", Mentions: []string{"bob", "reverie"}}
	d := g.Decide(context.Background(), msg, testBot, testCfg)
	assert.True(t, d.ShouldRespond)
}

func TestDecideResortsChronologically(t *testing.T) {
	// Index returns similarity order; decision must present newest first.
	idx := &stubIndex{results: []vector.Result{
		result("most similar, oldest", 0.99, 10),
		result("middle", 0.9, 30),
		result("least similar, newest", 0.8, 50),
	}}
	g := New(idx, nil)

	d := g.Decide(context.Background(), Message{Content: "anything related?", ThreadID: "T1"}, testBot, testCfg)

	assert.Equal(t, []int64{50, 30, 10}, []int64{
		d.Relevant[0].Meta.Timestamp,
		d.Relevant[1].Meta.Timestamp,
		d.Relevant[2].Meta.Timestamp,
	})
}

func TestIsQuestion(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"is anyone there?", true},
		{"what time is it", true},
		{"Could this work", true},
		{"does it matter", true},
		{"anybody home", true},
		{"just a statement", false},
		{"nice weather today", false},
		{"canyone is not a word but matches anyone? no", true},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			assert.Equal(t, tt.want, isQuestion(tt.content))
		})
	}
}
