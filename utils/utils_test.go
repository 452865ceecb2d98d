package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("empty = %d", got)
	}
	if got := EstimateTokens(strings.Repeat("a", 400)); got != 100 {
		t.Errorf("400 chars = %d tokens, want 100", got)
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	short := "short text"
	if got := TruncateToTokenLimit(short, 100); got != short {
		t.Errorf("short text modified: %q", got)
	}

	long := strings.Repeat("x", 100)
	got := TruncateToTokenLimit(long, 10)
	if len(got) != 40 {
		t.Errorf("truncated length = %d, want 40", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("no ellipsis: %q", got)
	}
}

func TestTruncateChars(t *testing.T) {
	if got := TruncateChars("abcdef", 4); got != "abcd" {
		t.Errorf("got %q", got)
	}
	if got := TruncateChars("abc", 10); got != "abc" {
		t.Errorf("short input modified: %q", got)
	}
	if got := TruncateChars("abc", 0); got != "abc" {
		t.Errorf("zero limit modified input: %q", got)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("compressible content "), 200)

	compressed, ok, err := CompressData(payload)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if !ok {
		t.Fatal("large payload not compressed")
	}
	if len(compressed) >= len(payload) {
		t.Errorf("compressed %d >= original %d", len(compressed), len(payload))
	}

	restored, err := DecompressData(compressed, true)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(restored, payload) {
		t.Error("round trip mismatch")
	}
}

func TestCompressSkipsSmallPayloads(t *testing.T) {
	small := []byte("tiny")
	out, ok, err := CompressData(small)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if ok {
		t.Error("payload below floor was compressed")
	}
	if !bytes.Equal(out, small) {
		t.Error("small payload altered")
	}

	restored, err := DecompressData(out, false)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(restored, small) {
		t.Error("uncompressed passthrough altered data")
	}
}

func TestHashBytesStable(t *testing.T) {
	a := HashBytes([]byte("document body"))
	b := HashBytes([]byte("document body"))
	if a != b {
		t.Error("hash not deterministic")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
	if a == HashBytes([]byte("different body")) {
		t.Error("distinct inputs collided")
	}
}
