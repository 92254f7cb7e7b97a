package db_test

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ark-network/raffle/internal/core/domain"
	"github.com/ark-network/raffle/internal/core/ports"
	"github.com/ark-network/raffle/internal/infrastructure/db"
	pgdb "github.com/ark-network/raffle/internal/infrastructure/db/postgres"
	"github.com/stretchr/testify/require"
)

const (
	alice = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	bob   = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
)

func TestService(t *testing.T) {
	dbDir := t.TempDir()
	tests := []struct {
		name   string
		config db.ServiceConfig
	}{
		{
			name: "repo_manager_with_badger_stores",
			config: db.ServiceConfig{
				EventStoreType:   "badger",
				DataStoreType:    "badger",
				EventStoreConfig: []interface{}{"", nil},
				DataStoreConfig:  []interface{}{"", nil},
			},
		},
		{
			name: "repo_manager_with_sqlite_stores",
			config: db.ServiceConfig{
				EventStoreType:   "badger",
				DataStoreType:    "sqlite",
				EventStoreConfig: []interface{}{"", nil},
				DataStoreConfig:  []interface{}{dbDir},
			},
		},
	}

	if pgUrl := os.Getenv("POSTGRES_URL"); len(pgUrl) > 0 {
		resetPostgres(t, pgUrl)
		tests = append(tests, struct {
			name   string
			config db.ServiceConfig
		}{
			name: "repo_manager_with_postgres_stores",
			config: db.ServiceConfig{
				EventStoreType:   "badger",
				DataStoreType:    "postgres",
				EventStoreConfig: []interface{}{"", nil},
				DataStoreConfig:  []interface{}{pgUrl},
			},
		})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := db.NewService(tt.config)
			require.NoError(t, err)
			defer svc.Close()

			testEventRepository(t, svc)
			testSettlementRepository(t, svc)
		})
	}

	t.Run("invalid", func(t *testing.T) {
		_, err := db.NewService(db.ServiceConfig{
			EventStoreType:   "mongo",
			DataStoreType:    "badger",
			EventStoreConfig: []interface{}{"", nil},
			DataStoreConfig:  []interface{}{"", nil},
		})
		require.Error(t, err)

		_, err = db.NewService(db.ServiceConfig{
			EventStoreType:   "badger",
			DataStoreType:    "mysql",
			EventStoreConfig: []interface{}{"", nil},
			DataStoreConfig:  []interface{}{"", nil},
		})
		require.Error(t, err)

		_, err = db.NewService(db.ServiceConfig{
			EventStoreType:   "badger",
			DataStoreType:    "postgres",
			EventStoreConfig: []interface{}{"", nil},
			DataStoreConfig:  []interface{}{""},
		})
		require.Error(t, err)
	})
}

func resetPostgres(t *testing.T, url string) {
	conn, err := pgdb.OpenDb(url)
	require.NoError(t, err)
	//nolint:errcheck
	defer conn.Close()

	_, err = conn.Exec("DROP TABLE IF EXISTS settlement, schema_migrations")
	require.NoError(t, err)
}

func testEventRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_event_repository", func(t *testing.T) {
		ctx := context.Background()
		repo := svc.Events()

		events, err := repo.LoadCurrent(ctx)
		require.NoError(t, err)
		require.Empty(t, events)

		chEvents := make(chan domain.EventType, 16)
		repo.RegisterEventsHandler(domain.RaffleTopic, func(events []domain.Event) {
			for _, event := range events {
				chEvents <- event.GetType()
			}
		})
		defer repo.ClearRegisteredHandlers(domain.RaffleTopic)

		firstRound := []domain.Event{
			domain.RoundOpened{
				RaffleEvent: domain.RaffleEvent{Round: 1, Type: domain.EventTypeRoundOpened},
				Timestamp:   1701190270,
			},
			domain.Entered{
				RaffleEvent:  domain.RaffleEvent{Round: 1, Type: domain.EventTypeEntered},
				Participant:  alice,
				Amount:       100,
				Participants: 1,
			},
			domain.Entered{
				RaffleEvent:  domain.RaffleEvent{Round: 1, Type: domain.EventTypeEntered},
				Participant:  bob,
				Amount:       100,
				Participants: 2,
			},
			domain.SettlementStarted{
				RaffleEvent:   domain.RaffleEvent{Round: 1, Type: domain.EventTypeSettlementStarted},
				RequestId:     "1",
				Participants:  2,
				PooledBalance: 200,
				Timestamp:     1701193870,
			},
		}
		for _, event := range firstRound {
			require.NoError(t, repo.Save(ctx, event))
		}

		events, err = repo.LoadCurrent(ctx)
		require.NoError(t, err)
		require.Len(t, events, len(firstRound))
		require.Equal(t, firstRound, events)

		require.NoError(t, repo.Save(
			ctx,
			domain.WinnerPicked{
				RaffleEvent: domain.RaffleEvent{Round: 1, Type: domain.EventTypeWinnerPicked},
				RequestId:   "1",
				Winner:      bob,
				WinnerIndex: 1,
				Prize:       200,
				RandomValue: big.NewInt(7),
				Timestamp:   1701193900,
			},
			domain.RoundOpened{
				RaffleEvent:   domain.RaffleEvent{Round: 2, Type: domain.EventTypeRoundOpened},
				Timestamp:     1701193900,
				LastWinner:    bob,
				LastSettledAt: 1701193900,
			},
		))

		events, err = repo.LoadCurrent(ctx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		opened, ok := events[0].(domain.RoundOpened)
		require.True(t, ok)
		require.Equal(t, uint64(2), opened.Round)
		require.Equal(t, bob, opened.LastWinner)

		events, err = repo.LoadRound(ctx, 1)
		require.NoError(t, err)
		require.Len(t, events, 5)
		picked, ok := events[4].(domain.WinnerPicked)
		require.True(t, ok)
		require.Equal(t, "7", picked.RandomValue.String())

		settlement, ok := domain.NewSettlementFromEvents(events)
		require.True(t, ok)
		require.Equal(t, 2, settlement.Participants)
		require.Equal(t, int64(1701193870), settlement.StartedAt)

		events, err = repo.LoadRound(ctx, 3)
		require.NoError(t, err)
		require.Empty(t, events)

		expectedTypes := []domain.EventType{
			domain.EventTypeRoundOpened,
			domain.EventTypeEntered,
			domain.EventTypeEntered,
			domain.EventTypeSettlementStarted,
			domain.EventTypeWinnerPicked,
			domain.EventTypeRoundOpened,
		}
		for _, expected := range expectedTypes {
			select {
			case eventType := <-chEvents:
				require.Equal(t, expected, eventType)
			case <-time.After(5 * time.Second):
				t.Fatalf("timed out waiting for event %s", expected)
			}
		}
	})
}

func testSettlementRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_settlement_repository", func(t *testing.T) {
		ctx := context.Background()
		repo := svc.Settlements()

		settlement, err := repo.GetSettlement(ctx, 1)
		require.ErrorIs(t, err, domain.ErrSettlementNotFound)
		require.Nil(t, settlement)

		settlements, err := repo.ListSettlements(ctx, 0)
		require.NoError(t, err)
		require.Empty(t, settlements)

		fixtures := []domain.Settlement{
			{
				Round:        1,
				RequestId:    "1",
				Winner:       alice,
				WinnerIndex:  0,
				Prize:        300,
				RandomValue:  "3",
				Participants: 3,
				StartedAt:    1701193870,
				SettledAt:    1701193900,
			},
			{
				Round:        2,
				RequestId:    "2",
				Winner:       bob,
				WinnerIndex:  1,
				Prize:        200,
				RandomValue:  "115792089237316195423570985008687907853269984665640564039457584007913129639935",
				Participants: 2,
				StartedAt:    1701197500,
				SettledAt:    1701197530,
			},
			{
				Round:        3,
				RequestId:    "3",
				Winner:       alice,
				WinnerIndex:  0,
				Prize:        100,
				RandomValue:  "0",
				Participants: 1,
				StartedAt:    1701201130,
				SettledAt:    1701201160,
			},
		}
		for _, f := range fixtures {
			require.NoError(t, repo.AddSettlement(ctx, f))
		}
		// Adding the same settlement twice is a no-op.
		require.NoError(t, repo.AddSettlement(ctx, fixtures[0]))

		settlement, err = repo.GetSettlement(ctx, 2)
		require.NoError(t, err)
		require.NotNil(t, settlement)
		require.Equal(t, fixtures[1], *settlement)

		settlements, err = repo.ListSettlements(ctx, 0)
		require.NoError(t, err)
		require.Len(t, settlements, 3)
		require.Equal(t, uint64(3), settlements[0].Round)
		require.Equal(t, uint64(1), settlements[2].Round)

		settlements, err = repo.ListSettlements(ctx, 2)
		require.NoError(t, err)
		require.Len(t, settlements, 2)
		require.Equal(t, []domain.Settlement{fixtures[2], fixtures[1]}, settlements)
	})
}
