package profiles

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
	adminID = "0b7c2b5e-4f7e-4c5c-9d35-3c2f0d7b00aa"
	userID  = "0b7c2b5e-4f7e-4c5c-9d35-3c2f0d7b00bb"
)

var cols = []string{"id", "email", "phone", "name", "avatar_url", "password_hash", "role", "status", "created_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func row(id, email, role, status string) *sqlmock.Rows {
	return sqlmock.NewRows(cols).AddRow(id, email, "", email, "", "hash", role, status, time.Now())
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT INTO profiles \(email, phone, name, avatar_url, password_hash, role, status\)\s+VALUES \(NULLIF\(\$1, ''\)`

	mock.ExpectQuery(q).
		WithArgs("alice@example.com", "", "Alice", "", "hash", "student", "pending").
		WillReturnRows(row(userID, "alice@example.com", "student", "pending"))

	got, err := repo.Create(context.Background(), &models.Profile{
		Email: " Alice@Example.com ", Name: "Alice", PasswordHash: "hash", Role: "student", Status: "pending",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != userID || got.Status != "pending" {
		t.Fatalf("unexpected profile: %+v", got)
	}

	mock.ExpectQuery(q).WillReturnError(&pgconn.PgError{Code: "23505"})
	if _, err := repo.Create(context.Background(), &models.Profile{Email: "alice@example.com"}); !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("expected ErrorAlreadyExists, got %v", err)
	}
}

func TestGetByEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)FROM profiles WHERE email = \$1$`).
		WithArgs("alice@example.com").
		WillReturnRows(row(userID, "alice@example.com", "student", "active"))

	got, err := repo.GetByEmail(context.Background(), "ALICE@example.com")
	if err != nil || got.ID != userID {
		t.Fatalf("GetByEmail: %+v, %v", got, err)
	}

	mock.ExpectQuery(`FROM profiles WHERE email`).WillReturnError(sql.ErrNoRows)
	if _, err := repo.GetByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestGetByID_And_Phone(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM profiles WHERE id = \$1`).WithArgs(userID).
		WillReturnRows(row(userID, "a@b.c", "student", "active"))
	if _, err := repo.GetByID(context.Background(), userID); err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if _, err := repo.GetByID(context.Background(), "bogus"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound for malformed id, got %v", err)
	}

	mock.ExpectQuery(`FROM profiles WHERE phone = \$1`).WithArgs("+15550100").
		WillReturnError(errors.New("db down"))
	if _, err := repo.GetByPhone(context.Background(), " +15550100 "); err == nil || errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected db error, got %v", err)
	}
}

func TestUpsertByEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)ON CONFLICT \(email\) DO UPDATE`).
		WithArgs("bob@example.com", "Bob", "https://img/bob.png", "student", "pending").
		WillReturnRows(row(userID, "bob@example.com", "admin", "active"))

	got, err := repo.UpsertByEmail(context.Background(), &models.Profile{
		Email: "bob@example.com", Name: "Bob", AvatarURL: "https://img/bob.png", Role: "student", Status: "pending",
	})
	if err != nil {
		t.Fatalf("UpsertByEmail: %v", err)
	}
	if got.Role != "admin" {
		t.Fatalf("existing role must be kept: %+v", got)
	}
}

func TestUpdatePassword(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE profiles SET password_hash = \$2\s+WHERE id = \$1$`
	mock.ExpectExec(q).WithArgs(userID, "newhash").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.UpdatePassword(context.Background(), userID, "newhash"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}

	mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.UpdatePassword(context.Background(), userID, "newhash"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	isAdmin := `(?s)^SELECT EXISTS \(SELECT 1 FROM profiles admin WHERE admin.id = \$1`

	mock.ExpectQuery(isAdmin).WithArgs(adminID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`(?s)FROM profiles\s+WHERE EXISTS .+ORDER BY created_at ASC, id ASC$`).
		WithArgs(adminID).
		WillReturnRows(row(adminID, "root@example.com", "admin", "active"))

	got, err := repo.List(context.Background(), &auth.Session{UserID: adminID})
	if err != nil || len(got) != 1 {
		t.Fatalf("List: %v, %v", got, err)
	}

	mock.ExpectQuery(isAdmin).WithArgs(nil).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	if _, err := repo.List(context.Background(), nil); !errors.Is(err, common.ErrorForbidden) {
		t.Fatalf("expected ErrorForbidden, got %v", err)
	}
}

func TestSetRoleStatus(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	active := "active"
	q := `(?s)^UPDATE profiles SET\s+role = COALESCE\(\$2, role\),\s+status = COALESCE\(\$3, status\)\s+WHERE id = \$1 AND EXISTS`

	mock.ExpectQuery(q).WithArgs(userID, nil, "active", adminID).
		WillReturnRows(row(userID, "a@b.c", "student", "active"))
	got, err := repo.SetRoleStatus(context.Background(), &auth.Session{UserID: adminID}, userID, nil, &active)
	if err != nil || got.Status != "active" {
		t.Fatalf("SetRoleStatus: %+v, %v", got, err)
	}

	mock.ExpectQuery(q).WillReturnError(sql.ErrNoRows)
	if _, err := repo.SetRoleStatus(context.Background(), &auth.Session{UserID: userID}, userID, nil, &active); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestPromote(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE profiles SET role = 'admin', status = 'active'`).
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Promote(context.Background(), userID); err != nil {
		t.Fatalf("Promote: %v", err)
	}
}
