package services

import (
	"fmt"
	"math"
)

// Confidence levels.
const (
	ConfidenceLow    = "LOW"
	ConfidenceMedium = "MEDIUM"
	ConfidenceHigh   = "HIGH"
)

// Signal weights and bucket thresholds.
const (
	weightTopScore    = 0.45
	weightAgreement   = 0.25
	weightDispersion  = 0.20
	weightQueryLength = 0.10

	lowCeiling    = 0.3
	mediumCeiling = 0.7

	agreementTopK = 5
)

// Confidence is the scored retrieval-quality estimate for one search.
type Confidence struct {
	Score  float64
	Level  string
	Reason string
}

// ScoreConfidence combines four signals into [0,1]: the top rerank score,
// agreement between the vector and keyword rankers, rerank score
// dispersion (a flat distribution means the reranker could not
// discriminate), and a query-length proxy.
func ScoreConfidence(details *SearchDetails) Confidence {
	if len(details.Final) == 0 {
		return Confidence{Score: 0, Level: ConfidenceLow, Reason: "no results retrieved"}
	}

	topScore := clamp01(details.Final[0].Score)
	agreement := rankerAgreement(details.VectorHits, details.KeywordHits)
	dispersion := scoreDispersion(details.Final)
	queryLen := queryLengthSignal(details.Query)

	score := weightTopScore*topScore +
		weightAgreement*agreement +
		weightDispersion*dispersion +
		weightQueryLength*queryLen

	level := ConfidenceHigh
	switch {
	case score < lowCeiling:
		level = ConfidenceLow
	case score < mediumCeiling:
		level = ConfidenceMedium
	}

	reason := fmt.Sprintf("top=%.2f agreement=%.2f dispersion=%.2f query=%.2f", topScore, agreement, dispersion, queryLen)
	return Confidence{Score: score, Level: level, Reason: reason}
}

// rankerAgreement is the Jaccard overlap of the two rankers' top-5 ids.
func rankerAgreement(vector, keyword []ScoredChunk) float64 {
	vs := topIDs(vector, agreementTopK)
	ks := topIDs(keyword, agreementTopK)
	if len(vs) == 0 || len(ks) == 0 {
		return 0
	}

	inter := 0
	for id := range vs {
		if ks[id] {
			inter++
		}
	}
	union := len(vs) + len(ks) - inter
	return float64(inter) / float64(union)
}

func topIDs(hits []ScoredChunk, k int) map[string]bool {
	ids := make(map[string]bool)
	for i, hit := range hits {
		if i == k {
			break
		}
		ids[hit.Chunk.ID.Hex()] = true
	}
	return ids
}

// scoreDispersion maps the standard deviation of the final scores to
// [0,1]; a std of 0.25 or more saturates the signal.
func scoreDispersion(hits []ScoredChunk) float64 {
	if len(hits) < 2 {
		return 0
	}
	mean := 0.0
	for _, h := range hits {
		mean += h.Score
	}
	mean /= float64(len(hits))

	variance := 0.0
	for _, h := range hits {
		variance += (h.Score - mean) * (h.Score - mean)
	}
	std := math.Sqrt(variance / float64(len(hits)))
	return clamp01(std / 0.25)
}

// queryLengthSignal treats 4-12 word queries as well-formed; very short
// queries are ambiguous.
func queryLengthSignal(query string) float64 {
	words := len(Tokenize(query))
	switch {
	case words >= 4 && words <= 12:
		return 1
	case words > 12:
		return 0.7
	default:
		return float64(words) / 4
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
