package cursors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreWithMock(t *testing.T) (*SQLStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewSQLStore(db), mock, db
}

func TestSQLStore_Get(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := `^SELECT\s+value\s+FROM\s+sync_state\s+WHERE\s+id\s*=\s*\$1$`
	mock.ExpectQuery(q).WithArgs("download").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"batchTag":"t"}`))

	v, err := s.Get(context.Background(), "download")
	require.NoError(t, err)
	assert.Equal(t, `{"batchTag":"t"}`, string(v))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_GetMissing(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+value`).WithArgs("upload").WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "upload")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLStore_GetDBError(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+value`).WillReturnError(errors.New("db err"))

	_, err := s.Get(context.Background(), "upload")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestSQLStore_PutUpserts(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()
	s.now = func() time.Time { return time.UnixMilli(1594863960000) }

	q := `(?s)^INSERT\s+INTO\s+sync_state\s+\(id,\s*value,\s*updated_at\)\s+VALUES\s+\(\$1,\s*\$2,\s*\$3\)\s+ON\s+CONFLICT\s+\(id\)\s+DO\s+UPDATE`
	mock.ExpectExec(q).WithArgs("upload", `{"t":1}`, int64(1594863960000)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Put(context.Background(), "upload", []byte(`{"t":1}`)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_PutError(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT`).WillReturnError(errors.New("read only"))

	err := s.Put(context.Background(), "upload", []byte(`{}`))
	assert.ErrorContains(t, err, "db error: read only")
}

func TestObjectStore_RoundTrip(t *testing.T) {
	fs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	s := NewObjectStore(fs, "state", "federation/")

	_, err = s.Get(context.Background(), "download")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, s.Put(context.Background(), "download", []byte(`{"batchTag":"b1"}`)))

	v, err := s.Get(context.Background(), "download")
	require.NoError(t, err)
	assert.Equal(t, `{"batchTag":"b1"}`, string(v))
}

func TestObjectStore_KeyLayout(t *testing.T) {
	fs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, prefix := range []string{"sync-state", "sync-state/"} {
		s := NewObjectStore(fs, "state", prefix)
		require.NoError(t, s.Put(ctx, "federation-download", []byte(`{}`)))
	}

	objects, err := fs.List(ctx, "state", "")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "sync-state/federation-download", objects[0].Key)
}
