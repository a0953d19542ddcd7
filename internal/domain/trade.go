package domain

import (
	"fmt"
	"time"
)

// TradeStatus is the negotiation state of a trade.
type TradeStatus string

const (
	TradePendingCounterparty TradeStatus = "pending_counterparty"
	TradeBothAgreed          TradeStatus = "both_agreed"
	TradeExecuted            TradeStatus = "executed"
	TradeRejected            TradeStatus = "rejected"
	TradeWithdrawn           TradeStatus = "withdrawn"
	TradeCancelled           TradeStatus = "cancelled"
	TradeExpired             TradeStatus = "expired"
)

// Terminal reports whether the trade can no longer change.
func (s TradeStatus) Terminal() bool {
	return s != TradePendingCounterparty && s != TradeBothAgreed
}

// SettlementDirection says which side pays the settlement.
type SettlementDirection string

const (
	SettlementNone             SettlementDirection = "none"
	SettlementInitiatorPays    SettlementDirection = "initiator_pays"
	SettlementCounterpartyPays SettlementDirection = "counterparty_pays"
)

// TradeItem is one item in a trade with its original acquisition price.
type TradeItem struct {
	ItemID string `json:"itemId"`
	Price  int64  `json:"price"`
}

// Trade is a bilateral post-auction negotiation.
type Trade struct {
	ID                  string
	InitiatorTeamID     string
	CounterpartyTeamID  string
	InitiatorItems      []TradeItem
	CounterpartyItems   []TradeItem
	SettlementAmount    int64
	SettlementDirection SettlementDirection
	Status              TradeStatus
	Reason              string
	SettlementWaived    bool // executed without applying the settlement
	Reversed            bool // execution undone
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Involves reports whether the team is a party to the trade.
func (t Trade) Involves(teamID string) bool {
	return t.InitiatorTeamID == teamID || t.CounterpartyTeamID == teamID
}

// Offers reports whether the initiator offers the item.
func (t Trade) Offers(itemID string) bool {
	return containsItem(t.InitiatorItems, itemID)
}

// Requests reports whether the item is requested from the counterparty.
func (t Trade) Requests(itemID string) bool {
	return containsItem(t.CounterpartyItems, itemID)
}

func (t Trade) Clone() Trade {
	c := t
	c.InitiatorItems = append([]TradeItem(nil), t.InitiatorItems...)
	c.CounterpartyItems = append([]TradeItem(nil), t.CounterpartyItems...)
	return c
}

func containsItem(items []TradeItem, itemID string) bool {
	for _, it := range items {
		if it.ItemID == itemID {
			return true
		}
	}
	return false
}

// Settlement is the purse transfer balancing unequal trade values.
type Settlement struct {
	Amount      int64
	Direction   SettlementDirection
	PayerTeamID string
	PayeeTeamID string
}

// ComputeSettlement balances acquisition values. The side receiving the
// higher-valued items owes the difference.
func ComputeSettlement(initiatorID, counterpartyID string, initiatorItems, counterpartyItems []TradeItem) Settlement {
	var iv, cv int64
	for _, it := range initiatorItems {
		iv += it.Price
	}
	for _, it := range counterpartyItems {
		cv += it.Price
	}

	switch {
	case cv > iv:
		// initiator receives the counterparty's items
		return Settlement{Amount: cv - iv, Direction: SettlementInitiatorPays, PayerTeamID: initiatorID, PayeeTeamID: counterpartyID}
	case iv > cv:
		return Settlement{Amount: iv - cv, Direction: SettlementCounterpartyPays, PayerTeamID: counterpartyID, PayeeTeamID: initiatorID}
	default:
		return Settlement{Direction: SettlementNone}
	}
}

// SettlementWarning is returned when the paying side cannot cover the
// settlement. It is advisory: the administrator may execute anyway.
type SettlementWarning struct {
	TradeID     string `json:"tradeId"`
	PayerTeamID string `json:"payerTeamId"`
	Required    int64  `json:"required"`
	Available   int64  `json:"available"`
}

func (w SettlementWarning) String() string {
	return fmt.Sprintf("team %s cannot cover settlement of %d (purse %d); executing will waive the settlement",
		w.PayerTeamID, w.Required, w.Available)
}
