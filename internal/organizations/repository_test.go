package organizations

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkforge/backend/internal/models"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

// fakeTx embeds pgx.Tx for interface coverage; only the methods the
// repository actually calls are implemented.
type fakeTx struct {
	pgx.Tx
	queryRow   func(sql string, args ...any) pgx.Row
	exec       func(sql string, args ...any) (pgconn.CommandTag, error)
	committed  bool
	rolledBack bool
}

func (t *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return t.queryRow(sql, args...)
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.exec(sql, args...)
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	tx       *fakeTx
	queryRow func(sql string, args ...any) pgx.Row
	exec     func(sql string, args ...any) (pgconn.CommandTag, error)
}

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) { return d.tx, nil }

func (d *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return d.exec(sql, args...)
}

func (d *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("unexpected Query")
}

func (d *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return d.queryRow(sql, args...)
}

func orgInsertRow() pgx.Row {
	return fakeRow{scan: func(dest ...any) error {
		*dest[0].(*uuid.UUID) = uuid.New()
		*dest[1].(*models.LifecycleState) = models.StateActive
		*dest[2].(*time.Time) = time.Now()
		*dest[3].(*time.Time) = time.Now()
		return nil
	}}
}

func TestCreateWithOwnerCommitsAllThreeInserts(t *testing.T) {
	var ownerPerms models.Permissions
	tx := &fakeTx{
		queryRow: func(sql string, args ...any) pgx.Row {
			switch {
			case strings.Contains(sql, "INSERT INTO organizations"):
				return orgInsertRow()
			case strings.Contains(sql, "INSERT INTO roles"):
				ownerPerms = args[1].(models.Permissions)
				return fakeRow{scan: func(dest ...any) error {
					*dest[0].(*uuid.UUID) = uuid.New()
					return nil
				}}
			}
			panic("unexpected query: " + sql)
		},
		exec: func(sql string, args ...any) (pgconn.CommandTag, error) {
			require.Contains(t, sql, "INSERT INTO memberships")
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}
	repo := NewRepository(&fakeDB{tx: tx})

	org := &models.Organization{Name: "Acme", Slug: "acme"}
	err := repo.CreateWithOwner(context.Background(), org, uuid.New())
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
	assert.NotEqual(t, uuid.Nil, org.ID)

	// The bootstrap role carries the full grant set.
	assert.True(t, ownerPerms.Allows(models.CapManageOrganization))
	assert.True(t, ownerPerms.Allows(models.CapManageUsers))
	assert.True(t, ownerPerms.Allows(models.CapManageRoles))
}

func TestCreateWithOwnerRollsBackWhenRoleInsertFails(t *testing.T) {
	tx := &fakeTx{
		queryRow: func(sql string, args ...any) pgx.Row {
			if strings.Contains(sql, "INSERT INTO organizations") {
				return orgInsertRow()
			}
			return fakeRow{scan: func(...any) error { return errors.New("role insert failed") }}
		},
	}
	repo := NewRepository(&fakeDB{tx: tx})

	err := repo.CreateWithOwner(context.Background(), &models.Organization{Name: "Acme", Slug: "acme"}, uuid.New())
	require.Error(t, err)
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

func TestCreateWithOwnerRollsBackWhenMembershipInsertFails(t *testing.T) {
	tx := &fakeTx{
		queryRow: func(sql string, args ...any) pgx.Row {
			if strings.Contains(sql, "INSERT INTO organizations") {
				return orgInsertRow()
			}
			return fakeRow{scan: func(dest ...any) error {
				*dest[0].(*uuid.UUID) = uuid.New()
				return nil
			}}
		},
		exec: func(string, ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, errors.New("membership insert failed")
		},
	}
	repo := NewRepository(&fakeDB{tx: tx})

	err := repo.CreateWithOwner(context.Background(), &models.Organization{Name: "Acme", Slug: "acme"}, uuid.New())
	require.Error(t, err)
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

func TestCreateWithOwnerMapsSlugCollision(t *testing.T) {
	tx := &fakeTx{
		queryRow: func(string, ...any) pgx.Row {
			return fakeRow{scan: func(...any) error {
				return &pgconn.PgError{Code: "23505"}
			}}
		},
	}
	repo := NewRepository(&fakeDB{tx: tx})

	err := repo.CreateWithOwner(context.Background(), &models.Organization{Name: "Acme", Slug: "acme"}, uuid.New())
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.True(t, tx.rolledBack)
}

func TestGetMembershipAbsentIsNilNil(t *testing.T) {
	repo := NewRepository(&fakeDB{
		queryRow: func(string, ...any) pgx.Row {
			return fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}
		},
	})

	m, err := repo.GetMembership(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestAddMemberMapsDuplicate(t *testing.T) {
	repo := NewRepository(&fakeDB{
		exec: func(string, ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"}
		},
	})

	err := repo.AddMember(context.Background(), uuid.New(), uuid.New(), nil)
	assert.ErrorIs(t, err, models.ErrConflict)
}
