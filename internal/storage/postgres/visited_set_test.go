package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestNewVisitedSetWithPoolValidation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewVisitedSetWithPool(nil, "", "crawl-1")
	require.ErrorContains(t, err, "pool is required")

	_, err = NewVisitedSetWithPool(mock, "visited; DROP TABLE x", "crawl-1")
	require.ErrorContains(t, err, "invalid table name")

	_, err = NewVisitedSetWithPool(mock, "", "")
	require.ErrorContains(t, err, "crawl id is required")

	set, err := NewVisitedSetWithPool(mock, "", "crawl-1")
	require.NoError(t, err)
	require.Equal(t, "visited_urls", set.table)
}

func TestNewVisitedSetRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewVisitedSet(context.Background(), Config{}, "crawl-1")
	require.ErrorContains(t, err, "visited.postgres_dsn is required")
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	set, err := NewVisitedSetWithPool(mock, "visited", "crawl-1")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS visited").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, set.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimReportsInsertedRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	set, err := NewVisitedSetWithPool(mock, "visited", "crawl-1")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO visited").
		WithArgs("crawl-1", "https://example.com/").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO visited").
		WithArgs("crawl-1", "https://example.com/").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	ok, err := set.Claim(context.Background(), "https://example.com/")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = set.Claim(context.Background(), "https://example.com/")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimWrapsExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	set, err := NewVisitedSetWithPool(mock, "visited", "crawl-1")
	require.NoError(t, err)

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO visited").
		WithArgs("crawl-1", "https://example.com/").
		WillReturnError(boom)

	ok, err := set.Claim(context.Background(), "https://example.com/")
	require.False(t, ok)
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "insert visited url")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLenAndMembers(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	set, err := NewVisitedSetWithPool(mock, "visited", "crawl-1")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT count").
		WithArgs("crawl-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery("SELECT url FROM visited").
		WithArgs("crawl-1").
		WillReturnRows(pgxmock.NewRows([]string{"url"}).
			AddRow("https://example.com/b").
			AddRow("https://example.com/a"))

	n, err := set.Len(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	members, err := set.Members(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, members)
	require.NoError(t, mock.ExpectationsWereMet())
}
