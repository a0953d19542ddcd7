package auction

import (
	"fmt"

	"github.com/alejandrodnm/auctionroom/internal/domain"
)

// Dispatch applies one transport-level command on behalf of an actor and
// reports the outcome. Team actors act for their own team only;
// administrators may also place bids for a team.
func (m *Machine) Dispatch(actor domain.Actor, cmd domain.Command) domain.CommandResult {
	res := domain.CommandResult{Ref: cmd.Ref, Command: cmd.Type}
	err := m.dispatch(actor, cmd, &res)
	if err != nil {
		res.Code = domain.Code(err)
		res.Error = err.Error()
		return res
	}
	if res.Code != "" {
		// advisory outcome: nothing was applied
		return res
	}
	res.OK = true
	return res
}

func (m *Machine) dispatch(actor domain.Actor, cmd domain.Command, res *domain.CommandResult) error {
	if cmd.Type.AdminOnly() && actor.Role != domain.RoleAdmin && actor != domain.SystemActor {
		return fmt.Errorf("%w: %s requires an administrator", domain.ErrForbidden, cmd.Type)
	}

	switch cmd.Type {
	case domain.CmdConfigure:
		return m.Configure(actor, nil)
	case domain.CmdGoLive:
		return m.GoLive(actor)
	case domain.CmdPickNext:
		return m.PickNext(actor)
	case domain.CmdPause:
		return m.Pause(actor, cmd.Reason)
	case domain.CmdResume:
		return m.Resume(actor)
	case domain.CmdSkipCurrent:
		return m.SkipCurrent(actor)
	case domain.CmdUndo:
		desc, err := m.Undo(actor)
		res.Description = desc
		return err
	case domain.CmdDisqualify:
		if cmd.ItemID == "" {
			return fmt.Errorf("%w: itemId is required", domain.ErrValidation)
		}
		return m.Disqualify(actor, cmd.ItemID, cmd.Reason)
	case domain.CmdAnnounce:
		return m.Announce(actor, cmd.Message)
	case domain.CmdComplete:
		return m.Complete(actor, cmd.Force)
	case domain.CmdOpenTradeWindow:
		return m.OpenTradeWindow(actor)
	case domain.CmdFinalize:
		return m.Finalize(actor)
	case domain.CmdAdminApproveTrade:
		w, err := m.ApproveTrade(actor, cmd.TradeID, cmd.Acknowledge)
		res.TradeID = cmd.TradeID
		if w != nil {
			res.Warning = w
			res.Description = w.String()
			if t, ok := m.trades[cmd.TradeID]; ok && t.Status != domain.TradeExecuted {
				res.Code = "settlement_warning"
			}
		}
		return err
	case domain.CmdAdminRejectTrade:
		res.TradeID = cmd.TradeID
		return m.AdminRejectTrade(actor, cmd.TradeID, cmd.Reason)
	}

	switch cmd.Type {
	case domain.CmdSubmitBid, domain.CmdProposeTrade, domain.CmdAcceptTrade, domain.CmdRejectTrade, domain.CmdWithdrawTrade:
	default:
		return fmt.Errorf("%w: unknown command %q", domain.ErrValidation, cmd.Type)
	}
	teamID, err := actingTeam(actor, cmd)
	if err != nil {
		return err
	}
	switch cmd.Type {
	case domain.CmdSubmitBid:
		return m.SubmitBid(teamID, cmd.Amount)
	case domain.CmdProposeTrade:
		id, err := m.ProposeTrade(Proposal{
			InitiatorTeamID:    teamID,
			CounterpartyTeamID: cmd.CounterpartyTeamID,
			Offer:              cmd.OfferItemIDs,
			Request:            cmd.RequestItemIDs,
		})
		res.TradeID = id
		return err
	case domain.CmdAcceptTrade:
		res.TradeID = cmd.TradeID
		return m.AcceptTrade(teamID, cmd.TradeID)
	case domain.CmdRejectTrade:
		res.TradeID = cmd.TradeID
		return m.RejectTrade(teamID, cmd.TradeID, cmd.Reason)
	case domain.CmdWithdrawTrade:
		res.TradeID = cmd.TradeID
		return m.WithdrawTrade(teamID, cmd.TradeID)
	}
	return fmt.Errorf("%w: unknown command %q", domain.ErrValidation, cmd.Type)
}

// actingTeam resolves which team a team-scoped command acts for.
func actingTeam(actor domain.Actor, cmd domain.Command) (string, error) {
	switch actor.Role {
	case domain.RoleTeam:
		if actor.TeamID == "" {
			return "", fmt.Errorf("%w: team identity missing", domain.ErrForbidden)
		}
		if cmd.TeamID != "" && cmd.TeamID != actor.TeamID {
			return "", fmt.Errorf("%w: team %s cannot act for %s", domain.ErrForbidden, actor.TeamID, cmd.TeamID)
		}
		return actor.TeamID, nil
	case domain.RoleAdmin:
		if cmd.Type != domain.CmdSubmitBid {
			return "", fmt.Errorf("%w: %s is for teams", domain.ErrForbidden, cmd.Type)
		}
		if cmd.TeamID == "" {
			return "", fmt.Errorf("%w: teamId is required for a proxy bid", domain.ErrValidation)
		}
		return cmd.TeamID, nil
	}
	return "", fmt.Errorf("%w: %s may not issue %s", domain.ErrForbidden, actor.Label(), cmd.Type)
}
