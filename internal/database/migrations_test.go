package database

import "testing"

func TestMigrationsAreOrderedByAscendingUniqueVersion(t *testing.T) {
	seen := make(map[int]bool)
	prev := 0
	for _, m := range migrations {
		if seen[m.Version] {
			t.Fatalf("duplicate migration version %d", m.Version)
		}
		seen[m.Version] = true
		if m.Version <= prev {
			t.Fatalf("migration version %d is not greater than the previous %d", m.Version, prev)
		}
		prev = m.Version
		if m.SQL == "" {
			t.Fatalf("migration version %d has empty SQL", m.Version)
		}
	}
}
