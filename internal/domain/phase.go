package domain

import "fmt"

// Phase is the trading state machine phase of an agent.
// The numeric codes are part of the persisted state format.
type Phase int

const (
	PhaseNew                             Phase = 1
	PhaseInit                            Phase = 2
	PhaseRunIn                           Phase = 3
	PhaseReady                           Phase = 4
	PhaseWaitingForBuyOpportunity        Phase = 5
	PhaseWaitingForSellOpportunity       Phase = 6
	PhaseWaitingForStopLoss              Phase = 7
	PhaseWaitingForBuyOrderConfirmation  Phase = 8
	PhaseWaitingForSellOrderConfirmation Phase = 9
	PhasePassiveCapture                  Phase = 80
	PhasePendingBuy                      Phase = 90
	PhasePendingSell                     Phase = 100
)

var phaseNames = map[Phase]string{
	PhaseNew:                             "NEW",
	PhaseInit:                            "INIT",
	PhaseRunIn:                           "RUN_IN",
	PhaseReady:                           "READY",
	PhaseWaitingForBuyOpportunity:        "WAITING_FOR_BUY_OPP",
	PhaseWaitingForSellOpportunity:       "WAITING_FOR_SELL_OPP",
	PhaseWaitingForStopLoss:              "WAITING_FOR_STOP_LOSS",
	PhaseWaitingForBuyOrderConfirmation:  "WAITING_FOR_BUY_ORDER_CONF",
	PhaseWaitingForSellOrderConfirmation: "WAITING_FOR_SELL_ORDER_CONF",
	PhasePassiveCapture:                  "PASSIVE_CAPTURE",
	PhasePendingBuy:                      "PENDING_BUY",
	PhasePendingSell:                     "PENDING_SELL",
}

// String returns the phase name.
func (p Phase) String() string {
	if n, ok := phaseNames[p]; ok {
		return n
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Valid reports whether p is a known phase code.
func (p Phase) Valid() bool {
	_, ok := phaseNames[p]
	return ok
}

// AwaitingConfirmation reports whether an order is outstanding.
func (p Phase) AwaitingConfirmation() bool {
	return p == PhaseWaitingForBuyOrderConfirmation || p == PhaseWaitingForSellOrderConfirmation
}

// Bootstrapping reports whether the agent has not yet reached Ready.
func (p Phase) Bootstrapping() bool {
	return p == PhaseNew || p == PhaseInit || p == PhaseRunIn
}
