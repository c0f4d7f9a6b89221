package persistence

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

func TestFolderRowToEntityMapsAttrsAndNullableLastSync(t *testing.T) {
	row := &folderRow{
		ID:             7,
		AccountID:      uuid.New(),
		Name:           "INBOX",
		Attrs:          pq.StringArray{"\\HasNoChildren"},
		UIDValidity:    1000,
		UIDNext:        42,
		TotalMessages:  10,
		UnseenMessages: 3,
	}

	f := row.toEntity()
	if len(f.Attrs) != 1 || f.Attrs[0] != "\\HasNoChildren" {
		t.Errorf("Attrs = %v, want the single attribute carried through", f.Attrs)
	}
	if f.UIDValidity != 1000 || f.UIDNext != 42 {
		t.Errorf("got UIDValidity=%d UIDNext=%d, want 1000/42", f.UIDValidity, f.UIDNext)
	}
	if !f.LastSync.IsZero() {
		t.Error("LastSync should be the zero value when the column is NULL")
	}

	now := time.Now()
	row.LastSync = sql.NullTime{Time: now, Valid: true}
	f = row.toEntity()
	if !f.LastSync.Equal(now) {
		t.Errorf("LastSync = %v, want %v", f.LastSync, now)
	}
}

func TestMessageRowToEntityMapsListsAndNullableDates(t *testing.T) {
	row := &messageRow{
		ID:       1,
		FolderID: 2,
		UID:      99,
		To:       pq.StringArray{"a@example.com", "b@example.com"},
		Flags:    pq.StringArray{"\\Seen"},
	}

	m := row.toEntity()
	if m.UID != 99 {
		t.Errorf("UID = %d, want 99", m.UID)
	}
	if len(m.To) != 2 {
		t.Errorf("To = %v, want two recipients", m.To)
	}
	if !m.Date.IsZero() {
		t.Error("Date should be zero value when the column is NULL")
	}

	when := time.Now()
	row.Date = sql.NullTime{Time: when, Valid: true}
	m = row.toEntity()
	if !m.Date.Equal(when) {
		t.Errorf("Date = %v, want %v", m.Date, when)
	}
}

func TestJobRowToEntityMapsCompletedAt(t *testing.T) {
	row := &jobRow{ID: "job-1", Status: "running"}

	j := row.toEntity()
	if j.CompletedAt != nil {
		t.Error("CompletedAt should be nil until the job finishes")
	}

	now := time.Now()
	row.CompletedAt = sql.NullTime{Time: now, Valid: true}
	j = row.toEntity()
	if j.CompletedAt == nil || !j.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v, want %v", j.CompletedAt, now)
	}
}

func TestAttachmentRowToEntityMapsDownloadedAt(t *testing.T) {
	row := &attachmentRow{ID: 5, Filename: "report.pdf"}

	a := row.toEntity()
	if a.DownloadedAt != nil {
		t.Error("DownloadedAt should be nil until marked downloaded")
	}

	now := time.Now()
	row.DownloadedAt = sql.NullTime{Time: now, Valid: true}
	a = row.toEntity()
	if a.DownloadedAt == nil || !a.DownloadedAt.Equal(now) {
		t.Errorf("DownloadedAt = %v, want %v", a.DownloadedAt, now)
	}
}
