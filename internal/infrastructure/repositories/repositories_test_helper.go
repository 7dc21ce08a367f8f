package repositories

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createQuoteTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE quotes (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		side TEXT NOT NULL,
		amount_kind TEXT NOT NULL,
		input_asset TEXT NOT NULL,
		output_asset TEXT NOT NULL,
		input_amount REAL NOT NULL,
		output_amount REAL NOT NULL,
		exchange_rate REAL,
		fee_amount REAL,
		fee_asset TEXT,
		fee_bps INTEGER,
		fee_side TEXT,
		net_amount REAL,
		net_usd_amount REAL,
		minimum_received REAL,
		slippage_bps INTEGER,
		indicative BOOLEAN,
		input_unit_price_usd REAL,
		output_unit_price_usd REAL,
		price_source TEXT,
		price_observed_at DATETIME,
		created_at DATETIME,
		expires_at DATETIME NOT NULL
	);`)
}

func createIntentTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE transaction_intents (
		id TEXT PRIMARY KEY,
		quote_id TEXT NOT NULL,
		idempotency_key TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		input_asset TEXT NOT NULL,
		output_asset TEXT NOT NULL,
		input_amount REAL,
		expected_output_amount REAL,
		status TEXT NOT NULL,
		active_quote_key TEXT UNIQUE,
		validated_at DATETIME,
		funds_pulled_at DATETIME,
		swap_executed_at DATETIME,
		completed_at DATETIME,
		failed_at DATETIME,
		error_detail TEXT,
		validation_details TEXT,
		pull_tx_hash TEXT,
		swap_tx_hash TEXT,
		disbursement_tx_hash TEXT,
		refund_tx_hash TEXT,
		route_provider TEXT,
		trade_hash TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createTransactionTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		quote_id TEXT NOT NULL,
		intent_id TEXT,
		input_asset TEXT NOT NULL,
		output_asset TEXT NOT NULL,
		input_amount REAL,
		output_amount REAL,
		tx_hash TEXT,
		trade_hash TEXT,
		status TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE fee_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		quote_id TEXT NOT NULL,
		transaction_id TEXT,
		tx_hash TEXT,
		fee_asset TEXT NOT NULL,
		fee_amount REAL,
		fee_bps INTEGER,
		fee_side TEXT,
		created_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE failed_transaction_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		quote_id TEXT NOT NULL,
		intent_id TEXT,
		tx_hash TEXT,
		trade_hash TEXT,
		payload TEXT NOT NULL,
		last_error TEXT,
		status TEXT NOT NULL,
		retry_count INTEGER DEFAULT 0,
		max_retries INTEGER,
		next_retry_at DATETIME,
		recovered_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createWalletTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE encrypted_wallet_keys (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		address TEXT NOT NULL,
		ciphertext TEXT NOT NULL,
		iv TEXT NOT NULL,
		salt TEXT NOT NULL,
		method TEXT NOT NULL,
		created_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE secure_wallet_metadata (
		user_id TEXT PRIMARY KEY,
		salt TEXT NOT NULL,
		created_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE onchain_addresses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		address TEXT NOT NULL,
		chain TEXT NOT NULL,
		asset_scope TEXT,
		setup_method TEXT NOT NULL,
		is_primary BOOLEAN,
		status TEXT NOT NULL,
		created_at DATETIME,
		archived_at DATETIME
	);`)
}

func createSecurityEventTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE security_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		operation TEXT NOT NULL,
		outcome TEXT NOT NULL,
		severity TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME
	);`)
}

func createDeploymentTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE contract_deployments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		address TEXT NOT NULL,
		tx_hash TEXT,
		runtime_code_hash TEXT,
		status TEXT NOT NULL,
		deployed_at DATETIME,
		verified_at DATETIME
	);`)
}
