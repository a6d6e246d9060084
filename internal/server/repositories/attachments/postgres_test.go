package attachments

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/securenotes/internal/common"
	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
)

const (
	noteID  = "0b7c2b5e-4f7e-4c5c-9d35-3c2f0d7b0001"
	attID   = "0b7c2b5e-4f7e-4c5c-9d35-3c2f0d7b0a01"
	adminID = "0b7c2b5e-4f7e-4c5c-9d35-3c2f0d7b00aa"
	userID  = "0b7c2b5e-4f7e-4c5c-9d35-3c2f0d7b00bb"
)

var cols = []string{"id", "note_id", "name", "path", "mime_type", "created_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestListByNote_OrderedOldestFirst(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	t0 := time.Now().Add(-time.Hour)
	rows := sqlmock.NewRows(cols).
		AddRow("a1", noteID, "a.pdf", "notes/n/1-a.pdf", "application/pdf", t0).
		AddRow("a2", noteID, "b.png", "notes/n/2-b.png", "image/png", t0.Add(time.Minute))

	mock.ExpectQuery(`(?s)^SELECT .+ FROM attachments\s+WHERE note_id = \$1 AND EXISTS \(SELECT 1 FROM profiles viewer .+\)\s+ORDER BY created_at ASC, id ASC$`).
		WithArgs(noteID, userID).
		WillReturnRows(rows)

	got, err := repo.ListByNote(context.Background(), &auth.Session{UserID: userID}, noteID)
	if err != nil {
		t.Fatalf("ListByNote error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a.pdf" || got[1].Name != "b.png" {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestListByNote_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM attachments`).WillReturnRows(sqlmock.NewRows(cols))

	got, err := repo.ListByNote(context.Background(), nil, noteID)
	if err != nil {
		t.Fatalf("ListByNote error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty, non-nil slice: %#v", got)
	}
}

func TestListByNote_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM attachments`).WillReturnError(errors.New("conn reset"))

	if _, err := repo.ListByNote(context.Background(), nil, noteID); err == nil {
		t.Fatalf("expected error")
	}
}

func TestGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)FROM attachments\s+WHERE note_id = \$1 AND id = \$2 AND EXISTS`).
		WithArgs(noteID, attID, userID).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(attID, noteID, "a.pdf", "notes/x", "application/pdf", time.Now()))

	got, err := repo.Get(context.Background(), &auth.Session{UserID: userID}, noteID, attID)
	if err != nil || got.ID != attID {
		t.Fatalf("Get: %+v, %v", got, err)
	}

	mock.ExpectQuery(`FROM attachments`).WillReturnError(sql.ErrNoRows)
	if _, err := repo.Get(context.Background(), nil, noteID, attID); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT INTO attachments \(note_id, name, path, mime_type\)\s+SELECT n.id, \$2, \$3, \$4\s+FROM notes n\s+WHERE n.id = \$1 AND EXISTS`).
		WithArgs(noteID, "a.pdf", "notes/n/1-a.pdf", "application/pdf", adminID).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(attID, noteID, "a.pdf", "notes/n/1-a.pdf", "application/pdf", time.Now()))

	got, err := repo.Create(context.Background(), &auth.Session{UserID: adminID}, &models.Attachment{
		NoteID: noteID, Name: "a.pdf", Path: "notes/n/1-a.pdf", MimeType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != attID {
		t.Fatalf("unexpected attachment: %+v", got)
	}
}

func TestCreate_NoRowDistinguishesAdmin(t *testing.T) {
	tests := []struct {
		name    string
		isAdmin bool
		want    error
	}{
		{"non-admin is forbidden", false, common.ErrorForbidden},
		{"admin on missing note", true, common.ErrorNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectQuery(`INSERT INTO attachments`).WillReturnError(sql.ErrNoRows)
			mock.ExpectQuery(`(?s)^SELECT EXISTS \(SELECT 1 FROM profiles admin`).
				WithArgs(adminID).
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.isAdmin))

			_, err := repo.Create(context.Background(), &auth.Session{UserID: adminID}, &models.Attachment{NoteID: noteID})
			if !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCreate_DuplicatePath(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO attachments`).WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &auth.Session{UserID: adminID}, &models.Attachment{NoteID: noteID})
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("expected ErrorAlreadyExists, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE FROM attachments\s+WHERE note_id = \$1 AND id = \$2 AND EXISTS .+RETURNING`

	mock.ExpectQuery(q).WithArgs(noteID, attID, adminID).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(attID, noteID, "a.pdf", "notes/x", "application/pdf", time.Now()))
	a, err := repo.Delete(context.Background(), &auth.Session{UserID: adminID}, noteID, attID)
	if err != nil || a.Path != "notes/x" {
		t.Fatalf("Delete: %+v, %v", a, err)
	}

	mock.ExpectQuery(q).WillReturnError(sql.ErrNoRows)
	if _, err := repo.Delete(context.Background(), &auth.Session{UserID: userID}, noteID, attID); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestPathsByNote(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT path\s+FROM attachments`).
		WithArgs(noteID, adminID).
		WillReturnRows(sqlmock.NewRows([]string{"path"}).AddRow("notes/a").AddRow("notes/b"))

	got, err := repo.PathsByNote(context.Background(), &auth.Session{UserID: adminID}, noteID)
	if err != nil {
		t.Fatalf("PathsByNote error: %v", err)
	}
	if len(got) != 2 || got[0] != "notes/a" {
		t.Fatalf("unexpected paths: %v", got)
	}
}
