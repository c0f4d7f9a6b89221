package domain

import (
	"reflect"
	"testing"
)

func TestMessageFlagLifecycle(t *testing.T) {
	m := &Message{}

	if m.IsSeen() || m.IsDeleted() {
		t.Fatal("new message should have no flags set")
	}

	m.SetFlag(`\Seen`)
	if !m.IsSeen() {
		t.Error("expected IsSeen() = true after SetFlag")
	}

	// Setting an already-present flag must not duplicate it.
	m.SetFlag(`\Seen`)
	if len(m.Flags) != 1 {
		t.Fatalf("Flags = %v, want exactly one entry", m.Flags)
	}

	m.SetFlag(`\Deleted`)
	if !m.IsDeleted() {
		t.Error("expected IsDeleted() = true after SetFlag")
	}

	m.ClearFlag(`\Seen`)
	if m.IsSeen() {
		t.Error("expected IsSeen() = false after ClearFlag")
	}
	if !m.IsDeleted() {
		t.Error("ClearFlag should not affect unrelated flags")
	}
}

func TestDedupeFlagsPreservesFirstSeenOrder(t *testing.T) {
	got := DedupeFlags([]string{`\Seen`, `\Answered`, `\Seen`, `\Flagged`, `\Answered`})
	want := []string{`\Seen`, `\Answered`, `\Flagged`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DedupeFlags() = %v, want %v", got, want)
	}
}

func TestDedupeFlagsEmpty(t *testing.T) {
	got := DedupeFlags(nil)
	if len(got) != 0 {
		t.Errorf("DedupeFlags(nil) = %v, want empty", got)
	}
}
