package mail

import (
	"testing"

	"github.com/aerioncore/mailcore/core/domain"
	in "github.com/aerioncore/mailcore/core/port/in"
)

func TestBuildFolderTreeNestsByDelimiter(t *testing.T) {
	flat := []*domain.Folder{
		{Name: "INBOX", Delimiter: "/"},
		{Name: "INBOX/Work", Delimiter: "/"},
		{Name: "INBOX/Work/Urgent", Delimiter: "/"},
		{Name: "Sent", Delimiter: "/"},
	}

	roots := buildFolderTree(flat)

	if len(roots) != 2 {
		t.Fatalf("expected 2 root folders (INBOX, Sent), got %d", len(roots))
	}

	var inboxRoot *in.FolderNode
	for _, r := range roots {
		if r.Folder.Name == "INBOX" {
			inboxRoot = r
		}
	}
	if inboxRoot == nil {
		t.Fatal("expected to find INBOX as a root")
	}
	if len(inboxRoot.Children) != 1 || inboxRoot.Children[0].Folder.Name != "INBOX/Work" {
		t.Fatalf("expected INBOX to have one child INBOX/Work, got %+v", inboxRoot.Children)
	}
	work := inboxRoot.Children[0]
	if len(work.Children) != 1 || work.Children[0].Folder.Name != "INBOX/Work/Urgent" {
		t.Fatalf("expected INBOX/Work to have one child INBOX/Work/Urgent, got %+v", work.Children)
	}
}

func TestBuildFolderTreeHandlesMixedDelimitersAsSeparateRoots(t *testing.T) {
	// A folder whose parent path never appears in the listing (e.g. a
	// namespace boundary with a different delimiter) surfaces as its own
	// root rather than being dropped.
	flat := []*domain.Folder{
		{Name: "INBOX", Delimiter: "/"},
		{Name: "Shared.Team", Delimiter: "."},
	}

	roots := buildFolderTree(flat)
	if len(roots) != 2 {
		t.Fatalf("expected 2 independent roots, got %d", len(roots))
	}
}

func TestParentPath(t *testing.T) {
	tests := []struct {
		name      string
		folder    string
		delimiter string
		wantPath  string
		wantOK    bool
	}{
		{"nested path", "INBOX/Work/Urgent", "/", "INBOX/Work", true},
		{"top level", "INBOX", "/", "", false},
		{"no delimiter configured", "INBOX/Work", "", "", false},
		{"dot delimiter", "Shared.Team.Reports", ".", "Shared.Team", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ok := parentPath(tt.folder, tt.delimiter)
			if ok != tt.wantOK || path != tt.wantPath {
				t.Errorf("parentPath(%q, %q) = (%q, %v), want (%q, %v)", tt.folder, tt.delimiter, path, ok, tt.wantPath, tt.wantOK)
			}
		})
	}
}
