package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadge(t *testing.T) {
	tests := []struct {
		total int
		want  string
	}{
		{-5, BadgeContributor},
		{0, BadgeContributor},
		{1, BadgeBronze},
		{500, BadgeBronze},
		{501, BadgeSilver},
		{1000, BadgeSilver},
		{1001, BadgeGold},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Badge(tt.total), "total %d", tt.total)
	}
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "JD", Initials("John Doe"))
	assert.Equal(t, "MV", Initials("mary van der berg"))
	assert.Equal(t, "Ö", Initials("  Özil "))
	assert.Equal(t, "", Initials(""))
}

func TestReputation_SumsLedger(t *testing.T) {
	st := newTestStore(t)
	rep, err := NewLedger(st).Reputation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 40, rep.TotalPoints)
	assert.Equal(t, BadgeBronze, rep.Badge)
	require.Len(t, rep.Transactions, 2)
	assert.Equal(t, "tx-req4", rep.Transactions[0].ID)

	empty, err := NewLedger(st).Reputation(context.Background(), "u3")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalPoints)
	assert.Equal(t, BadgeContributor, empty.Badge)
	assert.Empty(t, empty.Transactions)
}

func TestTopContributors(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := NewModeration(st, nil, 100)
	_, err := m.BulkApprove(ctx, []string{"req5", "req7"}, admin)
	require.NoError(t, err)

	top, err := NewLedger(st).TopContributors(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Jane Smith", top[0].Name)
	assert.Equal(t, 200, top[0].Points)
	assert.Equal(t, "JS", top[0].Avatar)
	assert.Equal(t, "John Doe", top[1].Name)
	assert.Equal(t, BadgeBronze, top[1].Badge)

	one, err := NewLedger(st).TopContributors(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}
