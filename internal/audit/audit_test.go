package audit

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"responder/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Insert(context.Context, *models.AuditEvent) error {
	return errors.New("disk full")
}

func (failingStore) List(context.Context, string, int) ([]models.AuditEvent, error) {
	return nil, errors.New("disk full")
}

func TestService_RecordAndList(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(), zerolog.Nop())

	svc.Record(ctx, "user-1", EventUpload, "", map[string]interface{}{"count": 3})
	svc.Record(ctx, "user-1", EventEdit, "c1", nil)
	svc.Record(ctx, "user-2", EventSend, "c9", nil)

	events, err := svc.List(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, EventEdit, events[0].EventType)
	require.NotNil(t, events[0].EmailID)
	assert.Equal(t, "c1", *events[0].EmailID)
	assert.False(t, events[0].Metadata.Valid)

	assert.Equal(t, EventUpload, events[1].EventType)
	assert.JSONEq(t, `{"count":3}`, string(events[1].Metadata.JSONText))

	limited, err := svc.List(ctx, "user-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestService_RecordSwallowsErrors(t *testing.T) {
	svc := NewService(failingStore{}, zerolog.Nop())
	assert.NotPanics(t, func() {
		svc.Record(context.Background(), "user-1", EventSend, "c1", nil)
	})

	var nilSvc *Service
	assert.NotPanics(t, func() {
		nilSvc.Record(context.Background(), "user-1", EventSend, "c1", nil)
	})
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "ja***com", MaskEmail("jane@example.com"))
	assert.Equal(t, "***", MaskEmail("ab"))
}

func TestPostgresStore(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	store := NewPostgresStore(sqlx.NewDb(mockDB, "postgres"))
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO audit_events")).
		WithArgs("user-1", EventTag, sqlmock.AnyArg(), `{"tag":"HOLD"}`, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	emailID := "c1"
	event := &models.AuditEvent{UserID: "user-1", EventType: EventTag, EmailID: &emailID, CreatedAt: time.Now()}
	event.Metadata.JSONText = []byte(`{"tag":"HOLD"}`)
	event.Metadata.Valid = true
	require.NoError(t, store.Insert(ctx, event))
	assert.Equal(t, int64(7), event.ID)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_events")).
		WithArgs("user-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "event_type", "email_id", "metadata", "created_at"}).
			AddRow(7, "user-1", EventTag, "c1", []byte(`{"tag":"HOLD"}`), time.Now()))
	mock.ExpectRollback()

	events, err := store.List(ctx, "user-1", 50)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Metadata.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}
