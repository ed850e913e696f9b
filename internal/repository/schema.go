package repository

// Schema definitions for the RiskShield database.
// Compatible with both SQLite and PostgreSQL.

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    email TEXT PRIMARY KEY,
    full_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
`

// Decisions are append-only. transaction_id carries no uniqueness constraint
// on purpose: rescoring the same transaction produces a new row.
const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    email TEXT NOT NULL,
    amount REAL NOT NULL,
    channel INTEGER NOT NULL,
    model_score REAL NOT NULL,
    rule_score REAL NOT NULL,
    combined_score REAL NOT NULL,
    is_fraud INTEGER NOT NULL,
    features TEXT NOT NULL,
    rule_flags TEXT NOT NULL,
    explanation TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_email ON decisions(email);
CREATE INDEX IF NOT EXISTS idx_decisions_customer ON decisions(customer_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(timestamp);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    label TEXT NOT NULL,
    expression TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 0.0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaUsers,
		schemaDecisions,
		schemaRuleConfigs,
	}
}
