package domain

// CommandType names an inbound command.
type CommandType string

const (
	CmdConfigure         CommandType = "configure"
	CmdGoLive            CommandType = "go_live"
	CmdPickNext          CommandType = "pick_next"
	CmdSubmitBid         CommandType = "submit_bid"
	CmdPause             CommandType = "pause"
	CmdResume            CommandType = "resume"
	CmdSkipCurrent       CommandType = "skip_current"
	CmdUndo              CommandType = "undo"
	CmdDisqualify        CommandType = "disqualify"
	CmdAnnounce          CommandType = "announce"
	CmdComplete          CommandType = "complete"
	CmdOpenTradeWindow   CommandType = "open_trade_window"
	CmdFinalize          CommandType = "finalize"
	CmdProposeTrade      CommandType = "propose_trade"
	CmdAcceptTrade       CommandType = "accept_trade"
	CmdRejectTrade       CommandType = "reject_trade"
	CmdWithdrawTrade     CommandType = "withdraw_trade"
	CmdAdminApproveTrade CommandType = "admin_approve_trade"
	CmdAdminRejectTrade  CommandType = "admin_reject_trade"
)

// AdminOnly reports whether only administrators may issue the command.
func (c CommandType) AdminOnly() bool {
	switch c {
	case CmdSubmitBid, CmdProposeTrade, CmdAcceptTrade, CmdRejectTrade, CmdWithdrawTrade:
		return false
	}
	return true
}

// Actor is the already-authenticated issuer of a command.
type Actor struct {
	Role   Role
	TeamID string
	Name   string
}

// Label is how the actor appears in the action log.
func (a Actor) Label() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.Role == RoleTeam:
		return "team:" + a.TeamID
	case a.Role == "":
		return "system"
	}
	return string(a.Role)
}

// SystemActor performs timer-driven transitions.
var SystemActor = Actor{Name: "system"}

// Command is the transport-neutral form of an inbound command.
type Command struct {
	Type               CommandType `json:"type"`
	Ref                string      `json:"ref,omitempty"`
	TeamID             string      `json:"teamId,omitempty"`
	Amount             int64       `json:"amount,omitempty"`
	ItemID             string      `json:"itemId,omitempty"`
	TradeID            string      `json:"tradeId,omitempty"`
	Reason             string      `json:"reason,omitempty"`
	Message            string      `json:"message,omitempty"`
	Force              bool        `json:"force,omitempty"`
	Acknowledge        bool        `json:"acknowledge,omitempty"`
	CounterpartyTeamID string      `json:"counterpartyTeamId,omitempty"`
	OfferItemIDs       []string    `json:"offerItemIds,omitempty"`
	RequestItemIDs     []string    `json:"requestItemIds,omitempty"`
}

// CommandResult is the reply to a command.
type CommandResult struct {
	Ref         string             `json:"ref,omitempty"`
	Command     CommandType        `json:"command"`
	OK          bool               `json:"ok"`
	Code        string             `json:"code,omitempty"`
	Error       string             `json:"error,omitempty"`
	TradeID     string             `json:"tradeId,omitempty"`
	Description string             `json:"description,omitempty"`
	Warning     *SettlementWarning `json:"warning,omitempty"`
}
