package services

import (
	"context"
	"log/slog"

	"github.com/barterhub/barterhub/barterhub/database/models"
	"github.com/barterhub/barterhub/barterhub/matching"
)

// LogNotifier announces proposals through the structured log, one event per
// participant. Each event names the counterpart, what the participant gives
// and receives, and the score breakdown of the incoming pairing. Delivery
// transports (bot, push, email) wrap or replace it.
type LogNotifier struct{}

var _ matching.Notifier = (*LogNotifier)(nil)

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) MatchProposed(_ context.Context, match *models.Match, pair matching.MatchPair) {
	sides := []struct {
		gives    matching.CandidateEdge
		receives matching.CandidateEdge
	}{
		{gives: pair.AB, receives: pair.BA},
		{gives: pair.BA, receives: pair.AB},
	}
	for _, side := range sides {
		slog.Info("Match proposed",
			slog.String("type", "match"),
			slog.String("match_id", match.MatchID),
			slog.String("owner_id", side.gives.Offer.OwnerID),
			slog.String("counterpart_id", side.receives.Offer.OwnerID),
			slog.String("gives", side.gives.Offer.Description),
			slog.String("receives", side.receives.Offer.Description),
			slog.String("category", match.Category),
			slog.Float64("score", match.Score),
			breakdownGroup(side.receives.Breakdown),
			slog.Time("expires_at", match.ExpiresAt))
	}
}

func (n *LogNotifier) ChainProposed(_ context.Context, chain *models.ExchangeChain, proposal matching.Chain) {
	size := len(proposal.Owners)
	for i, owner := range proposal.Owners {
		incoming := proposal.Edges[(i-1+size)%size]
		outgoing := proposal.Edges[i]
		slog.Info("Exchange chain proposed",
			slog.String("type", "match"),
			slog.String("chain_id", chain.ChainID),
			slog.String("owner_id", owner),
			slog.String("counterpart_id", incoming.Offer.OwnerID),
			slog.String("gives", outgoing.Offer.Description),
			slog.String("receives", incoming.Offer.Description),
			slog.Int("participants", size),
			slog.Float64("score", chain.Score),
			breakdownGroup(incoming.Breakdown),
			slog.Time("expires_at", chain.ExpiresAt))
	}
}

func breakdownGroup(b matching.ScoreBreakdown) slog.Attr {
	return slog.Group("breakdown",
		slog.Float64("base", b.Base),
		slog.Float64("category_weight", b.CategoryWeight),
		slog.Float64("bonus", b.ContextualBonus),
		slog.Bool("valid", b.Valid),
		slog.Float64("total", b.Total))
}
