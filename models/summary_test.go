package models

import "testing"

func TestCompressionRatio(t *testing.T) {
	s := &Summary{TokenCount: 200, OriginalTokenCount: 1000}
	if got := s.CompressionRatio(); got != 0.8 {
		t.Errorf("ratio = %v, want 0.8", got)
	}

	// A summary longer than the run it replaces reports zero compression,
	// never a negative ratio.
	verbose := &Summary{TokenCount: 1500, OriginalTokenCount: 1000}
	if got := verbose.CompressionRatio(); got != 0 {
		t.Errorf("verbose summary ratio = %v, want 0", got)
	}

	empty := &Summary{TokenCount: 10, OriginalTokenCount: 0}
	if got := empty.CompressionRatio(); got != 0 {
		t.Errorf("zero original ratio = %v, want 0", got)
	}
}
