package services

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// BM25 parameters, standard Robertson values.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Tokenize lowercases and splits on non-alphanumeric runes.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// BM25Index is a small in-process lexical index. It backs keyword search
// when no external search engine is configured, and memory retrieval.
type BM25Index struct {
	docTokens [][]string
	docFreq   map[string]int
	avgLen    float64
}

func NewBM25Index(documents []string) *BM25Index {
	idx := &BM25Index{docFreq: make(map[string]int)}
	totalLen := 0
	for _, doc := range documents {
		tokens := Tokenize(doc)
		idx.docTokens = append(idx.docTokens, tokens)
		totalLen += len(tokens)

		seen := make(map[string]bool)
		for _, t := range tokens {
			if !seen[t] {
				seen[t] = true
				idx.docFreq[t]++
			}
		}
	}
	if len(documents) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(documents))
	}
	return idx
}

// Score computes the BM25 score of the query against document i.
func (idx *BM25Index) Score(query string, i int) float64 {
	tokens := idx.docTokens[i]
	if len(tokens) == 0 {
		return 0
	}

	termFreq := make(map[string]int)
	for _, t := range tokens {
		termFreq[t]++
	}

	n := float64(len(idx.docTokens))
	score := 0.0
	for _, term := range Tokenize(query) {
		tf := float64(termFreq[term])
		if tf == 0 {
			continue
		}
		df := float64(idx.docFreq[term])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(len(tokens))/idx.avgLen))
		score += idf * norm
	}
	return score
}

// Rank returns document indices with positive scores, best first, capped
// at limit.
func (idx *BM25Index) Rank(query string, limit int) []RankedItem {
	var items []RankedItem
	for i := range idx.docTokens {
		if s := idx.Score(query, i); s > 0 {
			items = append(items, RankedItem{Index: i, Score: s})
		}
	}
	sort.SliceStable(items, func(a, b int) bool { return items[a].Score > items[b].Score })
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// RankedItem pairs a candidate's position in its source list with a score.
type RankedItem struct {
	Index int
	Score float64
}

// CosineSimilarity returns 0 for empty or mismatched vectors, so chunks
// with failed embeddings degrade to lexical-only scoring.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ScoredKey is one fused candidate: the key identifies the candidate
// across the input lists.
type ScoredKey struct {
	Key   string
	Score float64
}

// FuseRRF merges ranked lists by reciprocal rank fusion. The fused score
// of a key is the sum of 1/(k+rank) over the lists it appears in, rank
// starting at 1. Ties keep first-appearance order.
func FuseRRF(k int, lists ...[]string) []ScoredKey {
	scores := make(map[string]float64)
	order := make(map[string]int)
	next := 0
	for _, list := range lists {
		for rank, key := range list {
			scores[key] += 1.0 / float64(k+rank+1)
			if _, seen := order[key]; !seen {
				order[key] = next
				next++
			}
		}
	}

	fused := make([]ScoredKey, 0, len(scores))
	for key, score := range scores {
		fused = append(fused, ScoredKey{Key: key, Score: score})
	}
	sort.SliceStable(fused, func(a, b int) bool {
		if fused[a].Score != fused[b].Score {
			return fused[a].Score > fused[b].Score
		}
		return order[fused[a].Key] < order[fused[b].Key]
	})
	return fused
}
