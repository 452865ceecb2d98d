package services

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/models"
)

func scoredChunk(id primitive.ObjectID, score float64) ScoredChunk {
	return ScoredChunk{Chunk: models.Chunk{ID: id}, Score: score}
}

func TestScoreConfidenceEmptyResultsIsLow(t *testing.T) {
	c := ScoreConfidence(&SearchDetails{Query: "anything"})
	if c.Level != ConfidenceLow {
		t.Errorf("level = %q, want LOW", c.Level)
	}
	if c.Score != 0 {
		t.Errorf("score = %v, want 0", c.Score)
	}
}

func TestScoreConfidenceHighOnStrongAgreement(t *testing.T) {
	ids := make([]primitive.ObjectID, 5)
	for i := range ids {
		ids[i] = primitive.NewObjectID()
	}

	var vector, keyword, final []ScoredChunk
	for i, id := range ids {
		vector = append(vector, scoredChunk(id, 0.9))
		keyword = append(keyword, scoredChunk(id, 5.0))
		final = append(final, scoredChunk(id, 0.95-float64(i)*0.15))
	}

	c := ScoreConfidence(&SearchDetails{
		Query:       "what is the capital of france",
		VectorHits:  vector,
		KeywordHits: keyword,
		Final:       final,
	})
	if c.Level != ConfidenceHigh {
		t.Errorf("level = %q (score %v, %s), want HIGH", c.Level, c.Score, c.Reason)
	}
}

func TestScoreConfidenceLowOnWeakDisagreeingResults(t *testing.T) {
	vector := []ScoredChunk{scoredChunk(primitive.NewObjectID(), 0.2)}
	keyword := []ScoredChunk{scoredChunk(primitive.NewObjectID(), 0.4)}
	final := []ScoredChunk{scoredChunk(primitive.NewObjectID(), 0.1)}

	c := ScoreConfidence(&SearchDetails{
		Query:       "x",
		VectorHits:  vector,
		KeywordHits: keyword,
		Final:       final,
	})
	if c.Level != ConfidenceLow {
		t.Errorf("level = %q (score %v), want LOW", c.Level, c.Score)
	}
}

func TestRankerAgreementJaccard(t *testing.T) {
	shared := primitive.NewObjectID()
	vector := []ScoredChunk{scoredChunk(shared, 1), scoredChunk(primitive.NewObjectID(), 0.5)}
	keyword := []ScoredChunk{scoredChunk(shared, 3), scoredChunk(primitive.NewObjectID(), 2)}

	// 1 shared of 3 distinct ids.
	got := rankerAgreement(vector, keyword)
	want := 1.0 / 3.0
	if got < want-1e-9 || got > want+1e-9 {
		t.Errorf("agreement = %v, want %v", got, want)
	}
}

// With a single final hit and an empty query, only the top-score signal
// contributes: score = 0.45 * topScore.
func TestConfidenceBuckets(t *testing.T) {
	cases := []struct {
		top   float64
		level string
	}{
		{0.1, ConfidenceLow},    // 0.045
		{0.9, ConfidenceMedium}, // 0.405
	}
	for _, tc := range cases {
		final := []ScoredChunk{scoredChunk(primitive.NewObjectID(), tc.top)}
		c := ScoreConfidence(&SearchDetails{Query: "", Final: final})
		if c.Level != tc.level {
			t.Errorf("top=%v: level = %q (score %v), want %q", tc.top, c.Level, c.Score, tc.level)
		}
	}
}
