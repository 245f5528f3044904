package app

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tndd/datadoggo-v3-rss/internal/storage/postgres"
)

func TestNewRejectsMissingConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "/nonexistent/config.yaml")
	require.Error(t, err)
	require.Contains(t, err.Error(), "load config")
}

func TestCloseReleasesStore(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	mock.ExpectClose()

	store, err := postgres.NewQueueStoreWithDB(mock)
	require.NoError(t, err)

	a := &App{Logger: zap.NewNop(), Store: store}
	a.Close()

	require.NoError(t, mock.ExpectationsWereMet())
}
