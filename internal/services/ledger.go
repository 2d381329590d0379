package services

import (
	"context"
	"strings"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/store"
)

const (
	BadgeGold        = "Gold"
	BadgeSilver      = "Silver"
	BadgeBronze      = "Bronze"
	BadgeContributor = "Contributor"
)

// Badge maps a point total to its tier.
func Badge(total int) string {
	switch {
	case total > 1000:
		return BadgeGold
	case total > 500:
		return BadgeSilver
	case total > 0:
		return BadgeBronze
	default:
		return BadgeContributor
	}
}

type Reputation struct {
	UserID       string
	TotalPoints  int
	Badge        string
	Transactions []models.PointsTransaction
}

type ContributorSummary struct {
	models.Contributor
	Avatar string
	Badge  string
}

type Ledger struct {
	store store.Store
}

func NewLedger(st store.Store) *Ledger {
	return &Ledger{store: st}
}

func (l *Ledger) Reputation(ctx context.Context, userID string) (Reputation, error) {
	txs, err := l.store.ListTransactions(ctx, userID)
	if err != nil {
		return Reputation{}, WrapError(err, "list points transactions")
	}
	total := 0
	for _, tx := range txs {
		total += tx.Amount
	}
	return Reputation{UserID: userID, TotalPoints: total, Badge: Badge(total), Transactions: txs}, nil
}

func (l *Ledger) TopContributors(ctx context.Context, limit int) ([]ContributorSummary, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	items, err := l.store.TopContributors(ctx, limit)
	if err != nil {
		return nil, WrapError(err, "top contributors")
	}
	out := make([]ContributorSummary, 0, len(items))
	for _, item := range items {
		out = append(out, ContributorSummary{Contributor: item, Avatar: Initials(item.Name), Badge: Badge(item.Points)})
	}
	return out, nil
}

// Initials returns up to two upper-case initials of name.
func Initials(name string) string {
	var b strings.Builder
	for i, part := range strings.Fields(name) {
		if i == 2 {
			break
		}
		b.WriteString(strings.ToUpper(string([]rune(part)[0])))
	}
	return b.String()
}
