package services

import (
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/models"
)

func TestFindDuplicateMatchesNormalized(t *testing.T) {
	existing := []models.Memory{
		{ID: primitive.NewObjectID(), Content: "The user prefers concise answers."},
		{ID: primitive.NewObjectID(), Content: "Project deadline is March 3rd."},
	}

	if dup := findDuplicate(existing, "  the USER prefers concise answers. "); dup == nil {
		t.Error("case/whitespace variant not detected as duplicate")
	} else if dup.ID != existing[0].ID {
		t.Errorf("matched wrong memory: %v", dup.ID)
	}

	// Containment in either direction counts.
	if dup := findDuplicate(existing, "deadline is march 3rd"); dup == nil {
		t.Error("substring candidate not detected as duplicate")
	}
	if dup := findDuplicate(existing, "the project deadline is march 3rd, per the kickoff notes"); dup == nil {
		t.Error("superstring candidate not detected as duplicate")
	}

	if dup := findDuplicate(existing, "the user enjoys long walks"); dup != nil {
		t.Errorf("unrelated content matched %q", dup.Content)
	}
}

func TestBuildMemoryContextFormat(t *testing.T) {
	memories := []models.Memory{
		{Type: models.MemoryFact, Content: "The report covers Q3 2025.", Importance: 0.8},
		{Type: models.MemoryPreference, Content: "Prefers bullet points.", Importance: 0.5},
	}

	got := BuildMemoryContext(memories)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), got)
	}
	if lines[0] != "Relevant memories from this session:" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "- [FACT] The report covers Q3 2025. (importance: 0.8)" {
		t.Errorf("line = %q", lines[1])
	}
	if lines[2] != "- [PREFERENCE] Prefers bullet points. (importance: 0.5)" {
		t.Errorf("line = %q", lines[2])
	}
}

func TestBuildMemoryContextEmpty(t *testing.T) {
	if got := BuildMemoryContext(nil); got != "" {
		t.Errorf("empty memories rendered %q", got)
	}
}
