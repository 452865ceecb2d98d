package services

import (
	"math"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("The quick-brown Fox, v2!")
	want := []string{"the", "quick", "brown", "fox", "v2"}
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBM25RanksRelevantDocumentFirst(t *testing.T) {
	idx := NewBM25Index([]string{
		"the capital of france is paris",
		"bananas are yellow fruit",
		"paris is a large city in france with many museums",
	})

	items := idx.Rank("capital of france", 10)
	if len(items) == 0 {
		t.Fatal("no results")
	}
	if items[0].Index != 0 {
		t.Errorf("top result = doc %d, want doc 0", items[0].Index)
	}
	for _, item := range items {
		if item.Index == 1 {
			t.Errorf("irrelevant doc 1 scored %v", item.Score)
		}
	}
}

func TestBM25EmptyQueryScoresZero(t *testing.T) {
	idx := NewBM25Index([]string{"some content here"})
	if items := idx.Rank("", 5); len(items) != 0 {
		t.Fatalf("empty query returned %d results", len(items))
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	if got := CosineSimilarity(a, b); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors = %v, want 1", got)
	}

	c := []float32{0, 1, 0}
	if got := CosineSimilarity(a, c); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors = %v, want 0", got)
	}

	if got := CosineSimilarity(nil, b); got != 0 {
		t.Errorf("nil vector = %v, want 0", got)
	}
	if got := CosineSimilarity([]float32{1, 2}, b); got != 0 {
		t.Errorf("mismatched lengths = %v, want 0", got)
	}
}

func TestFuseRRFPrefersAgreement(t *testing.T) {
	// "b" appears in both lists; "a" and "c" lead one list each.
	fused := FuseRRF(60, []string{"a", "b"}, []string{"c", "b"})
	if len(fused) != 3 {
		t.Fatalf("fused %d keys, want 3", len(fused))
	}
	if fused[0].Key != "b" {
		t.Errorf("top key = %q, want b", fused[0].Key)
	}

	wantB := 1.0/62 + 1.0/62
	if math.Abs(fused[0].Score-wantB) > 1e-12 {
		t.Errorf("score(b) = %v, want %v", fused[0].Score, wantB)
	}
}

func TestFuseRRFTieKeepsFirstAppearance(t *testing.T) {
	fused := FuseRRF(60, []string{"x"}, []string{"y"})
	if fused[0].Key != "x" {
		t.Errorf("tie broken to %q, want x (first seen)", fused[0].Key)
	}
}
