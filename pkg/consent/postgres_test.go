package consent

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Grant_Upserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	grantedAt := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO consent_records")).
		WithArgs("p1", "sms", grantedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.Grant(context.Background(), "p1", "sms", grantedAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Revoke_UpdatesRevokedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	revokedAt := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE consent_records SET revoked_at")).
		WithArgs("p1", "sms", revokedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.Revoke(context.Background(), "p1", "sms", revokedAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFoundReturnsFalse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT patient_id, channel, granted_at, revoked_at FROM consent_records")).
		WithArgs("p1", "sms").
		WillReturnRows(sqlmock.NewRows([]string{"patient_id", "channel", "granted_at", "revoked_at"}))

	_, ok, err := store.Get(context.Background(), "p1", "sms")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresStore_Get_ActiveGrantNoRevocation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	grantedAt := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"patient_id", "channel", "granted_at", "revoked_at"}).
		AddRow("p1", "sms", grantedAt, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT patient_id, channel, granted_at, revoked_at FROM consent_records")).
		WithArgs("p1", "sms").
		WillReturnRows(rows)

	record, ok, err := store.Get(context.Background(), "p1", "sms")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, record.RevokedAt)
	assert.True(t, record.IsActive())
}

func TestPostgresStore_IsActive_FalseAfterRevocation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	grantedAt := time.Now().UTC().Add(-time.Hour)
	revokedAt := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"patient_id", "channel", "granted_at", "revoked_at"}).
		AddRow("p1", "sms", grantedAt, revokedAt)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT patient_id, channel, granted_at, revoked_at FROM consent_records")).
		WithArgs("p1", "sms").
		WillReturnRows(rows)

	active, err := store.IsActive(context.Background(), "p1", "sms")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestPostgresStore_Init_CreatesSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	mock.ExpectExec(regexp.QuoteMeta(schema)).WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.Init(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
