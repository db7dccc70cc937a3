package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storepkg "calcweb/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStoreWithDB(db), mock
}

func TestEnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("create table if not exists client_state").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select value from client_state where key = \\$1").
		WithArgs("token").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("abc"))

	got, err := store.Get(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select value from client_state").
		WithArgs("token").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "token")
	assert.ErrorIs(t, err, storepkg.ErrNotFound)
}

func TestPut_Upserts(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("insert into client_state\\(key, value, updated_at\\)").
		WithArgs("token", "abc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Put(context.Background(), "token", "abc"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("delete from client_state where key = \\$1").
		WithArgs("token").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), "token"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPut_WrapsPostgresError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("insert into client_state").
		WillReturnError(&pq.Error{Code: "42P01", Message: "relation \"client_state\" does not exist"})

	err := store.Put(context.Background(), "token", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined_table")

	var pqErr *pq.Error
	assert.ErrorAs(t, err, &pqErr)
}
