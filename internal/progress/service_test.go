package progress

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevengranter/wilderquest-sub002/internal/shared/apperr"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func expectMappingInQuest(mock pgxmock.PgxPoolIface, mappingID, questID string, exists bool) {
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(mappingID, questID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(exists))
}

func expectOwner(mock pgxmock.PgxPoolIface, questID, ownerID string) {
	mock.ExpectQuery(`SELECT user_id FROM quests`).
		WithArgs(questID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(ownerID))
}

func TestRecordObservedFind(t *testing.T) {
	mock := newMock(t)

	expectMappingInQuest(mock, "m-1", "q-1", true)
	mock.ExpectExec(`INSERT INTO progress_entries`).
		WithArgs(pgxmock.AnyArg(), "m-1", "alice").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService(mock)
	require.NoError(t, svc.RecordObserved(context.Background(), "q-1", "m-1", "alice", true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordObservedFindIdempotent(t *testing.T) {
	mock := newMock(t)

	// Second find hits ON CONFLICT DO NOTHING: zero rows, no error.
	expectMappingInQuest(mock, "m-1", "q-1", true)
	mock.ExpectExec(`INSERT INTO progress_entries`).
		WithArgs(pgxmock.AnyArg(), "m-1", "alice").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	svc := NewService(mock)
	require.NoError(t, svc.RecordObserved(context.Background(), "q-1", "m-1", "alice", true))
}

func TestRecordObservedUnfind(t *testing.T) {
	mock := newMock(t)

	expectMappingInQuest(mock, "m-1", "q-1", true)
	mock.ExpectExec(`DELETE FROM progress_entries`).
		WithArgs("m-1", "alice").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	svc := NewService(mock)
	require.NoError(t, svc.RecordObserved(context.Background(), "q-1", "m-1", "alice", false))
}

func TestRecordObservedUnfindMissingIsNoop(t *testing.T) {
	mock := newMock(t)

	expectMappingInQuest(mock, "m-1", "q-1", true)
	mock.ExpectExec(`DELETE FROM progress_entries`).
		WithArgs("m-1", "alice").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	svc := NewService(mock)
	require.NoError(t, svc.RecordObserved(context.Background(), "q-1", "m-1", "alice", false))
}

func TestRecordObservedForeignMapping(t *testing.T) {
	mock := newMock(t)

	// Mapping ids guessed from another quest resolve to nothing here.
	expectMappingInQuest(mock, "m-other", "q-1", false)

	svc := NewService(mock)
	err := svc.RecordObserved(context.Background(), "q-1", "m-other", "alice", true)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)
}

func TestRecordObservedEmptyName(t *testing.T) {
	svc := NewService(newMock(t))
	err := svc.RecordObserved(context.Background(), "q-1", "m-1", "", true)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
}

func TestClearMapping(t *testing.T) {
	mock := newMock(t)

	expectOwner(mock, "q-1", "owner-1")
	expectMappingInQuest(mock, "m-1", "q-1", true)
	mock.ExpectExec(`DELETE FROM progress_entries`).
		WithArgs("m-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	svc := NewService(mock)
	require.NoError(t, svc.ClearMapping(context.Background(), "q-1", "m-1", "owner-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearMappingNotOwner(t *testing.T) {
	mock := newMock(t)
	expectOwner(mock, "q-1", "owner-1")

	svc := NewService(mock)
	err := svc.ClearMapping(context.Background(), "q-1", "m-1", "guest")
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindForbidden, appErr.Kind)
}

func TestDeleteEntry(t *testing.T) {
	mock := newMock(t)

	expectOwner(mock, "q-1", "owner-1")
	mock.ExpectExec(`DELETE FROM progress_entries pe`).
		WithArgs("p-1", "q-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	svc := NewService(mock)
	require.NoError(t, svc.DeleteEntry(context.Background(), "q-1", "p-1", "owner-1"))
}

func TestDeleteEntryMissing(t *testing.T) {
	mock := newMock(t)

	expectOwner(mock, "q-1", "owner-1")
	mock.ExpectExec(`DELETE FROM progress_entries pe`).
		WithArgs("p-404", "q-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	svc := NewService(mock)
	err := svc.DeleteEntry(context.Background(), "q-1", "p-404", "owner-1")
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)
}

func TestAggregatedAndDetailedConsistency(t *testing.T) {
	mock := newMock(t)
	t1 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	t3 := t1.Add(2 * time.Minute)

	mock.ExpectQuery(`SELECT pe.mapping_id, COUNT\(DISTINCT pe.display_name\)`).
		WithArgs("q-1").
		WillReturnRows(pgxmock.NewRows([]string{"mapping_id", "count"}).
			AddRow("m-1", 2).
			AddRow("m-2", 1))

	mock.ExpectQuery(`SELECT pe.id, pe.mapping_id, pe.display_name, pe.observed_at`).
		WithArgs("q-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "mapping_id", "display_name", "observed_at", "is_registered_user"}).
			AddRow("p-1", "m-1", "alice", t1, true).
			AddRow("p-2", "m-1", "bob", t2, false).
			AddRow("p-3", "m-2", "bob", t3, false))

	svc := NewService(mock)
	agg, err := svc.Aggregated(context.Background(), "q-1")
	require.NoError(t, err)
	detailed, err := svc.Detailed(context.Background(), "q-1")
	require.NoError(t, err)

	total := 0
	for _, a := range agg {
		total += a.Count
	}
	pairs := map[[2]string]struct{}{}
	for _, d := range detailed {
		pairs[[2]string{d.MappingID, d.DisplayName}] = struct{}{}
	}
	assert.Equal(t, len(pairs), total, "aggregate counts must equal unique (mapping, name) pairs")

	assert.True(t, detailed[0].IsRegisteredUser)
	assert.False(t, detailed[1].IsRegisteredUser)
}

func TestAggregatedEmpty(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT pe.mapping_id, COUNT\(DISTINCT pe.display_name\)`).
		WithArgs("q-1").
		WillReturnRows(pgxmock.NewRows([]string{"mapping_id", "count"}))

	svc := NewService(mock)
	agg, err := svc.Aggregated(context.Background(), "q-1")
	require.NoError(t, err)
	assert.NotNil(t, agg)
	assert.Empty(t, agg)
}

func TestLeaderboardOrdering(t *testing.T) {
	mock := newMock(t)
	t1 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	mock.ExpectQuery(`SELECT pe.display_name, COUNT\(DISTINCT pe.mapping_id\), MIN\(pe.observed_at\)`).
		WithArgs("q-1").
		WillReturnRows(pgxmock.NewRows([]string{"display_name", "count", "first_found"}).
			AddRow("bob", 1, t2).
			AddRow("alice", 1, t1).
			AddRow("carol", 3, t2))

	svc := NewService(mock)
	board, err := svc.Leaderboard(context.Background(), "q-1")
	require.NoError(t, err)
	require.Len(t, board, 3)

	assert.Equal(t, "carol", board[0].DisplayName)
	// alice and bob tie on count; alice found her first species earlier.
	assert.Equal(t, "alice", board[1].DisplayName)
	assert.Equal(t, "bob", board[2].DisplayName)
}

func TestRankDeterministic(t *testing.T) {
	t1 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	entries := func() []LeaderboardEntry {
		return []LeaderboardEntry{
			{DisplayName: "bob", Count: 2, FirstFound: t1},
			{DisplayName: "alice", Count: 2, FirstFound: t1},
			{DisplayName: "carol", Count: 1, FirstFound: t1},
		}
	}

	first := Rank(entries())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Rank(entries()))
	}
	// Full tie falls back to name order.
	assert.Equal(t, "alice", first[0].DisplayName)
	assert.Equal(t, "bob", first[1].DisplayName)
}

func TestClaimantsForMapping(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT display_name FROM progress_entries`).
		WithArgs("m-1").
		WillReturnRows(pgxmock.NewRows([]string{"display_name"}).AddRow("alice").AddRow("bob"))

	svc := NewService(mock)
	names, err := svc.ClaimantsForMapping(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)
}
