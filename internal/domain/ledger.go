package domain

// LedgerEntry is a trade as archived outside the agent state file.
// Seq is the zero-based position of the trade in the agent ledger.
type LedgerEntry struct {
	AgentKey string
	Seq      int
	Trade    Trade
}
