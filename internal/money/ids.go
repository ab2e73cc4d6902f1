package money

// AgentID is a stable string identifier for a bank agent, unique within a
// simulation.
type AgentID string

// TxID is a unique string identifier for a transaction.
type TxID string
