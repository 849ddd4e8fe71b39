package pg

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestGetSettings(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"key", "value"}).
		AddRow("node_expiry_days", "90").
		AddRow("session_banner", "restricted")
	mock.ExpectQuery("select key, value from settings").
		WillReturnRows(rows)

	settings, err := store.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if len(settings) != 2 || settings["node_expiry_days"] != "90" {
		t.Fatalf("unexpected settings: %v", settings)
	}
}

func TestPutSettingsIsTransactional(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into settings").
		WithArgs("node_expiry_days", "30", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.PutSettings(context.Background(), map[string]string{"node_expiry_days": "30"})
	if err != nil {
		t.Fatalf("PutSettings: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPutSettingsRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("upsert failed")

	mock.ExpectBegin()
	mock.ExpectExec("insert into settings").
		WithArgs("node_expiry_days", "30", sqlmock.AnyArg()).
		WillReturnError(boom)
	mock.ExpectRollback()

	err := store.PutSettings(context.Background(), map[string]string{"node_expiry_days": "30"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected upsert error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
