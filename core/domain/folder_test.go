package domain

import "testing"

func TestFolderIsSelectable(t *testing.T) {
	selectable := &Folder{Attrs: []string{`\HasChildren`}}
	if !selectable.IsSelectable() {
		t.Error("folder without \\Noselect should be selectable")
	}

	noselect := &Folder{Attrs: []string{`\Noselect`, `\HasChildren`}}
	if noselect.IsSelectable() {
		t.Error("folder with \\Noselect should not be selectable")
	}
}

func TestFolderHasAttr(t *testing.T) {
	f := &Folder{Attrs: []string{`\Sent`, `\HasNoChildren`}}
	if !f.HasAttr(`\Sent`) {
		t.Error("expected HasAttr(\\Sent) = true")
	}
	if f.HasAttr(`\Trash`) {
		t.Error("expected HasAttr(\\Trash) = false")
	}
}

func TestFolderUIDValidityChanged(t *testing.T) {
	tests := []struct {
		name     string
		cached   uint32
		observed uint32
		want     bool
	}{
		{"never synced before", 0, 100, false},
		{"unchanged", 100, 100, false},
		{"server recycled uids", 100, 200, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &Folder{UIDValidity: tt.cached}
			if got := f.UIDValidityChanged(tt.observed); got != tt.want {
				t.Errorf("UIDValidityChanged(%d) with cached=%d = %v, want %v", tt.observed, tt.cached, got, tt.want)
			}
		})
	}
}
