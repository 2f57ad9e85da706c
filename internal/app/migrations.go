package app

import "fazenda.ton/farm-bot/internal/db/postgres"

// Миграции встроены в бинарник; применённые версии пропускаются.
var migrations = []postgres.Migration{
	{Version: 1, Name: "accounts", SQL: migration001Accounts},
	{Version: 2, Name: "production_units", SQL: migration002Farm},
	{Version: 3, Name: "ledger_entries", SQL: migration003Ledger},
	{Version: 4, Name: "withdrawals", SQL: migration004Withdrawals},
	{Version: 5, Name: "callback_tokens", SQL: migration005Tokens},
	{Version: 6, Name: "deposits", SQL: migration006Deposits},
	{Version: 7, Name: "admin", SQL: migration007Admin},
	{Version: 8, Name: "accounts_buckets", SQL: migration008Buckets},
	{Version: 9, Name: "production_units_nullable_anchor", SQL: migration009NullableAnchor},
}

var migration001Accounts = `
CREATE TABLE IF NOT EXISTS accounts (
    user_id BIGINT PRIMARY KEY,
    available_cash DOUBLE PRECISION NOT NULL DEFAULT 0,
    wallet_address VARCHAR(128),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS referrals (
    referred_id BIGINT PRIMARY KEY REFERENCES accounts(user_id),
    referrer_id BIGINT NOT NULL REFERENCES accounts(user_id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (referred_id <> referrer_id)
);
CREATE INDEX IF NOT EXISTS idx_referrals_referrer ON referrals(referrer_id);
`

var migration002Farm = `
CREATE TABLE IF NOT EXISTS production_units (
    user_id BIGINT NOT NULL REFERENCES accounts(user_id),
    unit_type VARCHAR(32) NOT NULL,
    quantity BIGINT NOT NULL DEFAULT 0 CHECK (quantity >= 0),
    last_collected_at TIMESTAMPTZ,
    PRIMARY KEY (user_id, unit_type)
);
`

var migration003Ledger = `
CREATE TABLE IF NOT EXISTS ledger_entries (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES accounts(user_id),
    kind VARCHAR(32) NOT NULL,
    d_available_cash DOUBLE PRECISION NOT NULL DEFAULT 0,
    d_payment_cash DOUBLE PRECISION NOT NULL DEFAULT 0,
    d_materials DOUBLE PRECISION NOT NULL DEFAULT 0,
    d_crypto DOUBLE PRECISION NOT NULL DEFAULT 0,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_user ON ledger_entries(user_id, created_at DESC);
`

var migration004Withdrawals = `
CREATE TABLE IF NOT EXISTS withdrawals (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES accounts(user_id),
    requested_amount DOUBLE PRECISION NOT NULL CHECK (requested_amount > 0),
    destination_wallet VARCHAR(128) NOT NULL,
    status VARCHAR(16) NOT NULL CHECK (status IN ('pending', 'processing', 'done', 'failed')),
    idempotency_key VARCHAR(64) NOT NULL UNIQUE,
    provider_ref VARCHAR(64),
    voucher_url TEXT,
    failure_reason TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_withdrawals_user ON withdrawals(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_withdrawals_status ON withdrawals(status, updated_at);
`

var migration005Tokens = `
CREATE TABLE IF NOT EXISTS callback_tokens (
    id VARCHAR(64) PRIMARY KEY,
    user_id BIGINT NOT NULL,
    action VARCHAR(16) NOT NULL,
    payload VARCHAR(64) NOT NULL DEFAULT '',
    expires_at TIMESTAMPTZ NOT NULL,
    used BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_callback_tokens_expires ON callback_tokens(expires_at);
`

var migration006Deposits = `
CREATE TABLE IF NOT EXISTS deposits (
    invoice_id VARCHAR(64) PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES accounts(user_id),
    fiat_amount NUMERIC(18, 2) NOT NULL,
    cash_credited BIGINT NOT NULL,
    referrer_id BIGINT,
    referral_bonus BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_deposits_user ON deposits(user_id);
`

var migration007Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    session_token VARCHAR(255) UNIQUE,
    authenticated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user_id ON admin_sessions(user_id);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_admin_login_attempts_user ON admin_login_attempts(user_id, attempt_time);
`

// Старые базы знали только available_cash; колонки добавляются без потери данных.
var migration008Buckets = `
ALTER TABLE accounts ADD COLUMN IF NOT EXISTS payment_cash DOUBLE PRECISION NOT NULL DEFAULT 0;
ALTER TABLE accounts ADD COLUMN IF NOT EXISTS materials DOUBLE PRECISION NOT NULL DEFAULT 0;
ALTER TABLE accounts ADD COLUMN IF NOT EXISTS crypto_balance DOUBLE PRECISION NOT NULL DEFAULT 0;
`

// Строки без якоря ничего не приносят до первого сбора или покупки.
var migration009NullableAnchor = `
ALTER TABLE production_units ALTER COLUMN last_collected_at DROP DEFAULT;
ALTER TABLE production_units ALTER COLUMN last_collected_at DROP NOT NULL;
`
