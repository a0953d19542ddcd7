package domain

// MaxBid derives the largest legal bid from the purse and roster size.
// It keeps BasePrice in reserve for every mandatory slot still open after
// the one being bid on. Once the minimum squad is met the whole purse is
// available. A team whose purse is below the base price cannot bid at all
// and gets 0.
func MaxBid(purse int64, roster int, cfg Config) int64 {
	if roster >= cfg.MinSquad {
		return purse
	}
	if purse < cfg.BasePrice {
		return 0
	}
	reserve := int64(cfg.MinSquad-roster-1) * cfg.BasePrice
	return max(cfg.BasePrice, purse-reserve)
}

// RequiredBid is the only amount a bid may carry given the current state:
// the opening price for the first bid, otherwise current plus the tier step.
func RequiredBid(state *BiddingState, opening int64, cfg Config) int64 {
	if state == nil || len(state.BidHistory) == 0 {
		return opening
	}
	return state.CurrentBid + cfg.TierIncrement(state.CurrentBid)
}
