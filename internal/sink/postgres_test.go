package sink

import (
	"context"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/shopharvest/shopharvest/internal/catalog"
)

func TestPostgresWriteProduct(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	s, err := newPostgresWithConn(mock, "products")
	require.NoError(t, err)

	product := sampleProduct()
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO products (record_type, url, handle, document) VALUES ($1, $2, $3, $4)",
	)).
		WithArgs("product", product.URL, product.Handle, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.WriteProduct(context.Background(), product))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWriteFailureAndSummary(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	s, err := newPostgresWithConn(mock, "crawl_records")
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crawl_records")).
		WithArgs("failure", "https://shop.example/x", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crawl_records")).
		WithArgs("summary", "", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := context.Background()
	require.NoError(t, s.WriteFailure(ctx, catalog.FailureRecord{URL: "https://shop.example/x", Error: "boom"}))
	require.NoError(t, s.WriteSummary(ctx, catalog.RunSummary{RunID: "run-1"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRejectsBadTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	_, err = newPostgresWithConn(mock, "products; DROP TABLE users")
	require.Error(t, err)
}

func TestPostgresInsertError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	s, err := newPostgresWithConn(mock, "products")
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WithArgs("product", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(context.DeadlineExceeded)

	err = s.WriteProduct(context.Background(), sampleProduct())
	require.Error(t, err)
	require.Contains(t, err.Error(), "insert product row")
}
