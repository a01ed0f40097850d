package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/brigade/pkg/alerts"
	"github.com/cuemby/brigade/pkg/types"
)

var (
	floorAudience        = []types.Role{types.RoleWaiter, types.RoleCaptain, types.RoleAdmin}
	cancellationAudience = []types.Role{types.RoleWaiter, types.RoleCaptain, types.RoleKitchen}
)

func (m *Machine) execute(ctx context.Context, order *types.Order, effect *types.Effect) error {
	switch effect.Kind {
	case types.EffectPreparingAlert:
		return m.dispatch(ctx, alerts.Request{
			Type:        types.AlertOperational,
			Message:     fmt.Sprintf("Order %s is being prepared%s", label(order), estimate(order)),
			OrderID:     order.ID,
			TableID:     order.TableID,
			Priority:    types.PriorityMedium,
			FromUserID:  effect.ActorID,
			FromRole:    effect.ActorRole,
			TargetRoles: floorAudience,
			State:       "preparing",
			Metadata:    map[string]interface{}{"estimated_minutes": order.EstimatedMinutes},
		})

	case types.EffectReadyAlert:
		return m.dispatch(ctx, alerts.Request{
			Type:        types.AlertOperational,
			Message:     fmt.Sprintf("Order %s is ready to serve", label(order)),
			OrderID:     order.ID,
			TableID:     order.TableID,
			Priority:    types.PriorityHigh,
			FromUserID:  effect.ActorID,
			FromRole:    effect.ActorRole,
			TargetRoles: floorAudience,
			State:       "ready",
		})

	case types.EffectCancellationAlert:
		req := CancellationAlert(order, effect.ActorRole, effect.Reason)
		req.FromUserID = effect.ActorID
		return m.dispatch(ctx, req)

	case types.EffectDeductInventory:
		if m.deductor == nil {
			return fmt.Errorf("no deduction engine configured")
		}
		_, err := m.deductor.Deduct(ctx, order.ID, effect.ActorID)
		return err

	default:
		return fmt.Errorf("unknown effect kind %q", effect.Kind)
	}
}

func (m *Machine) dispatch(ctx context.Context, req alerts.Request) error {
	if m.alerts == nil {
		return nil
	}
	_, err := m.alerts.Dispatch(ctx, req)
	return err
}

// CancellationAlert phrases a cancellation for the floor. A cancellation
// coming from the kitchen tells the floor staff to inform the guests.
func CancellationAlert(order *types.Order, by types.Role, reason string) alerts.Request {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "no reason given"
	}

	req := alerts.Request{
		Type:        types.AlertCancellation,
		OrderID:     order.ID,
		TableID:     order.TableID,
		FromRole:    by,
		TargetRoles: cancellationAudience,
		State:       "cancelled",
		Metadata:    map[string]interface{}{"reason": reason, "cancelled_by_role": string(by)},
	}
	if by == types.RoleKitchen {
		req.Priority = types.PriorityHigh
		req.Message = fmt.Sprintf("The kitchen cannot complete order %s and cancelled it (%s). Please let the guests know.", label(order), reason)
	} else {
		req.Priority = types.PriorityMedium
		req.Message = fmt.Sprintf("Order %s was cancelled by %s: %s. Stop preparing it.", label(order), roleName(by), reason)
	}
	return req
}

func label(order *types.Order) string {
	short := order.ID
	if len(short) > 8 {
		short = short[len(short)-8:]
	}
	switch {
	case order.TableID != "":
		return fmt.Sprintf("#%s (table %s)", short, order.TableID)
	case order.CustomerName != "":
		return fmt.Sprintf("#%s (%s)", short, order.CustomerName)
	default:
		return "#" + short
	}
}

func estimate(order *types.Order) string {
	if order.EstimatedMinutes <= 0 {
		return ""
	}
	return fmt.Sprintf(", estimated time %d min", order.EstimatedMinutes)
}

func roleName(r types.Role) string {
	if r == "" {
		return "staff"
	}
	return string(r)
}
