package auction

import "github.com/alejandrodnm/auctionroom/internal/domain"

// BidInput is everything the validator looks at. Team is nil for an unknown
// team; State is nil when the auction is not live.
type BidInput struct {
	Status  domain.Status
	State   *domain.BiddingState
	Team    *domain.Team
	Config  domain.Config
	Opening int64 // opening bid of the item under the hammer
	Amount  int64
}

// ValidateBid decides a bid against the current state. It never mutates.
// A nil result means the bid is accepted.
func ValidateBid(in BidInput) *domain.BidRejection {
	rej := func(r domain.RejectReason) *domain.BidRejection {
		return &domain.BidRejection{Reason: r, Amount: in.Amount}
	}

	if in.Status != domain.StatusLive {
		return rej(domain.RejectAuctionNotRunning)
	}
	if in.Team == nil {
		return rej(domain.RejectUnknownTeam)
	}
	if in.State == nil || !in.State.Phase.AcceptsBids() {
		return rej(domain.RejectBiddingClosed)
	}
	if in.State.CurrentBidTeamID == in.Team.ID {
		return rej(domain.RejectAlreadyHighest)
	}
	if in.Team.PurseRemaining < in.Config.BasePrice {
		return rej(domain.RejectPurseBelowBase)
	}
	if in.Team.RosterSize() >= in.Config.MaxSquad {
		return rej(domain.RejectSquadFull)
	}

	required := domain.RequiredBid(in.State, in.Opening, in.Config)
	if in.Amount != required {
		r := rej(domain.RejectIncorrectAmount)
		r.Required = required
		return r
	}
	if limit := in.Team.MaxBid(in.Config); in.Amount > limit {
		r := rej(domain.RejectExceedsMaxBid)
		r.Required = required
		r.MaxBid = limit
		return r
	}
	return nil
}
