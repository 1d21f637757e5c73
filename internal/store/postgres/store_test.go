package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/riftwatch/rift-harvester/internal/model"
	"github.com/riftwatch/rift-harvester/internal/store"
)

func sampleMatch() *model.Match {
	return &model.Match{
		MatchID:      "EUW1_100",
		PlatformID:   "EUW1",
		QueueID:      420,
		GameCreation: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
		GameDuration: 1800,
		GameVersion:  "16.3.123.456",
		Team100:      model.Team{TeamID: 100, Win: true},
		Team200:      model.Team{TeamID: 200},
		Participants: []model.Participant{{PUUID: "p1", TeamID: 100}},
	}
}

func TestUpsertInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO matches").
		WithArgs(
			"EUW1_100", "EUW1", 420, "16.3", "16.3.123.456",
			pgxmock.AnyArg(), int64(1800), 100, pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	res, err := s.Upsert(context.Background(), sampleMatch())
	require.NoError(t, err)
	require.Equal(t, store.Inserted, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertReportsConflictAsAlreadyExists(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO matches").
		WithArgs(
			"EUW1_100", "EUW1", 420, "16.3", "16.3.123.456",
			pgxmock.AnyArg(), int64(1800), 100, pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	res, err := s.Upsert(context.Background(), sampleMatch())
	require.NoError(t, err)
	require.Equal(t, store.AlreadyExists, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExists(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("EUW1_100").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.Exists(context.Background(), "EUW1_100")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(42), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
