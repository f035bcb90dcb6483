package services

import (
	"context"

	"github.com/qmuntal/stateless"
)

// TurnState is the stage a visitor message has reached.
type TurnState string

const (
	TurnReceived    TurnState = "received"
	TurnValidated   TurnState = "validated"
	TurnRejected    TurnState = "rejected"
	TurnRateLimited TurnState = "rate_limited"
	TurnRedirected  TurnState = "redirected"
	TurnCompleting  TurnState = "completing"
	TurnResponded   TurnState = "responded"
	TurnFailed      TurnState = "failed"
)

type turnTrigger string

const (
	triggerAccept   turnTrigger = "accept"
	triggerReject   turnTrigger = "reject"
	triggerThrottle turnTrigger = "throttle"
	triggerRedirect turnTrigger = "redirect"
	triggerComplete turnTrigger = "complete"
	triggerSucceed  turnTrigger = "succeed"
	triggerFail     turnTrigger = "fail"
)

// turn tracks one message through the pipeline. Transitions outside the
// configured graph are errors.
type turn struct {
	fsm *stateless.StateMachine
}

func newTurn() *turn {
	fsm := stateless.NewStateMachine(TurnReceived)

	fsm.Configure(TurnReceived).
		Permit(triggerAccept, TurnValidated).
		Permit(triggerReject, TurnRejected)

	fsm.Configure(TurnValidated).
		Permit(triggerThrottle, TurnRateLimited).
		Permit(triggerRedirect, TurnRedirected).
		Permit(triggerComplete, TurnCompleting)

	fsm.Configure(TurnCompleting).
		Permit(triggerSucceed, TurnResponded).
		Permit(triggerFail, TurnFailed)

	return &turn{fsm: fsm}
}

func (t *turn) fire(ctx context.Context, trigger turnTrigger) error {
	return t.fsm.FireCtx(ctx, trigger)
}

func (t *turn) state() TurnState {
	return t.fsm.MustState().(TurnState)
}
