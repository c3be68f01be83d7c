package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// txLog counts transaction outcomes on a fake driver, enough to observe
// SafeTx semantics without a live database.
type txLog struct {
	commits   int
	rollbacks int
}

type fakeTx struct{ log *txLog }

func (t *fakeTx) Commit() error {
	t.log.commits++
	return nil
}

func (t *fakeTx) Rollback() error {
	t.log.rollbacks++
	return nil
}

type fakeConn struct{ log *txLog }

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("not implemented")
}
func (c *fakeConn) Close() error              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return &fakeTx{log: c.log}, nil }

type fakeConnector struct{ log *txLog }

func (c *fakeConnector) Connect(context.Context) (driver.Conn, error) {
	return &fakeConn{log: c.log}, nil
}
func (c *fakeConnector) Driver() driver.Driver { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("not implemented")
}

func newFakeDB(t *testing.T) (*bun.DB, *txLog) {
	t.Helper()
	log := &txLog{}
	sqldb := sql.OpenDB(&fakeConnector{log: log})
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { db.Close() })
	return db, log
}

func TestSafeTxRollbackAfterCommitIsNoop(t *testing.T) {
	db, log := newFakeDB(t)

	tx, err := BeginSafeTx(context.Background(), db)
	require.NoError(t, err)

	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback())

	assert.Equal(t, 1, log.commits)
	assert.Equal(t, 0, log.rollbacks)
}

func TestSafeTxCommitIsIdempotent(t *testing.T) {
	db, log := newFakeDB(t)

	tx, err := BeginSafeTx(context.Background(), db)
	require.NoError(t, err)

	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Commit())

	assert.Equal(t, 1, log.commits)
}

func TestSafeTxRollbackBeforeCommit(t *testing.T) {
	db, log := newFakeDB(t)

	tx, err := BeginSafeTx(context.Background(), db)
	require.NoError(t, err)

	require.NoError(t, tx.Rollback())

	assert.Equal(t, 0, log.commits)
	assert.Equal(t, 1, log.rollbacks)
}
