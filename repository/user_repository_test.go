package repository

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestUserRepository_GetUserByEmail(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db)
	now := time.Now()

	t.Run("live user found", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{
			"id", "name", "email", "password", "address", "phone_number", "role", "created_at", "updated_at",
		}).AddRow(1, "Reader", "a@x.com", "$2a$hash", "", "", "member", now, now)

		// Soft-deleted rows are filtered in the query itself.
		dbMock.ExpectQuery(regexp.QuoteMeta("WHERE email = $1 AND deleted_at IS NULL")).
			WithArgs("a@x.com").
			WillReturnRows(rows)

		user, err := repo.GetUserByEmail("a@x.com")
		assert.NoError(t, err)
		assert.Equal(t, 1, user.ID)
		assert.Equal(t, "member", user.Role)
	})

	t.Run("missing user surfaces sql.ErrNoRows", func(t *testing.T) {
		dbMock.ExpectQuery(regexp.QuoteMeta("WHERE email = $1 AND deleted_at IS NULL")).
			WithArgs("nobody@x.com").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetUserByEmail("nobody@x.com")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestUserRepository_SoftDeleteUser(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db)

	t.Run("marks a live row", func(t *testing.T) {
		dbMock.ExpectExec(regexp.QuoteMeta("UPDATE users SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL")).
			WithArgs(1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		deleted, err := repo.SoftDeleteUser(1)
		assert.NoError(t, err)
		assert.True(t, deleted)
	})

	t.Run("no-op on an already deleted row", func(t *testing.T) {
		dbMock.ExpectExec(regexp.QuoteMeta("UPDATE users SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL")).
			WithArgs(1).
			WillReturnResult(sqlmock.NewResult(0, 0))

		deleted, err := repo.SoftDeleteUser(1)
		assert.NoError(t, err)
		assert.False(t, deleted)
	})

	assert.NoError(t, dbMock.ExpectationsWereMet())
}
