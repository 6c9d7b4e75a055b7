package drafts

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/freddiequinson/kountryeye-console/internal/reftoken"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drafts.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := testStore(t)

	draft := Draft{
		ConversationID: 7,
		Body:           "checking stock for",
		Attachments: []reftoken.Ref{
			{Type: reftoken.Product, ID: 42, Name: "Blue Frame"},
		},
	}
	if err := s.Save(draft); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(7)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("draft not found after save")
	}
	if got.Body != draft.Body || !reflect.DeepEqual(got.Attachments, draft.Attachments) {
		t.Errorf("loaded draft = %+v, want %+v", got, draft)
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := testStore(t)

	if err := s.Save(Draft{ConversationID: 7, Body: "first"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(Draft{ConversationID: 7, Body: "second"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(7)
	if err != nil {
		t.Fatal(err)
	}
	if got.Body != "second" {
		t.Errorf("body = %q, want %q", got.Body, "second")
	}
}

func TestEmptyDraftDeletes(t *testing.T) {
	s := testStore(t)

	if err := s.Save(Draft{ConversationID: 7, Body: "note"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(Draft{ConversationID: 7}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(7)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("draft = %+v, want nil after empty save", got)
	}
}

func TestLoadMissing(t *testing.T) {
	s := testStore(t)

	got, err := s.Load(999)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("draft = %+v, want nil", got)
	}
}

func TestCorruptAttachmentsDegradeToEmpty(t *testing.T) {
	s := testStore(t)

	if err := s.Save(Draft{ConversationID: 7, Body: "note"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.Exec(`UPDATE drafts SET attachments = 'not-json' WHERE conversation_id = 7`); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(7)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Body != "note" {
		t.Fatalf("draft = %+v, want body preserved", got)
	}
	if len(got.Attachments) != 0 {
		t.Errorf("attachments = %+v, want empty on corrupt column", got.Attachments)
	}
}

func TestReopenMigratesIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(Draft{ConversationID: 1, Body: "persisted"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	got, err := s.Load(1)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Body != "persisted" {
		t.Errorf("draft = %+v, want body to survive reopen", got)
	}
}
