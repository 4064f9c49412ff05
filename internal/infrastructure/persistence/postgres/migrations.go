package postgres

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_study_records", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_user_progressions", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_economy", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: STUDY RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Append-only ledger. Period totals are always SUM()ed from here.
CREATE TABLE IF NOT EXISTS study_records (
    id UUID PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    source VARCHAR(16) NOT NULL,
    start_time TIMESTAMP WITH TIME ZONE NOT NULL,
    end_time TIMESTAMP WITH TIME ZONE NOT NULL,
    minutes INTEGER NOT NULL,
    day_key CHAR(10) NOT NULL,
    week_key CHAR(8) NOT NULL,
    month_key CHAR(7) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_minutes CHECK (minutes >= 1),
    CONSTRAINT valid_source CHECK (source IN ('manual', 'presence', 'focus')),
    CONSTRAINT valid_span CHECK (end_time >= start_time)
);

CREATE INDEX IF NOT EXISTS idx_study_records_user ON study_records(user_id, end_time DESC);
CREATE INDEX IF NOT EXISTS idx_study_records_day ON study_records(day_key, user_id);
CREATE INDEX IF NOT EXISTS idx_study_records_week ON study_records(week_key, user_id);
CREATE INDEX IF NOT EXISTS idx_study_records_month ON study_records(month_key, user_id);
`

const migration001Down = `
DROP TABLE IF EXISTS study_records;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: USER PROGRESSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS user_progressions (
    user_id VARCHAR(64) PRIMARY KEY,
    cumulative_minutes INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    total_sessions INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_cumulative CHECK (cumulative_minutes >= 0),
    CONSTRAINT valid_level CHECK (level BETWEEN 1 AND 250)
);

CREATE INDEX IF NOT EXISTS idx_user_progressions_level
    ON user_progressions(level DESC, cumulative_minutes DESC, user_id);
`

const migration002Down = `
DROP TABLE IF EXISTS user_progressions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: WALLETS AND INVENTORY
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS wallets (
    user_id VARCHAR(64) PRIMARY KEY,
    balance INTEGER NOT NULL DEFAULT 0,
    total_earned INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT non_negative_balance CHECK (balance >= 0),
    CONSTRAINT non_negative_earned CHECK (total_earned >= 0)
);

CREATE TABLE IF NOT EXISTS inventory_items (
    user_id VARCHAR(64) NOT NULL,
    item_id VARCHAR(32) NOT NULL,
    name TEXT NOT NULL,
    category VARCHAR(16) NOT NULL,
    value TEXT NOT NULL,
    purchased_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    is_active BOOLEAN NOT NULL DEFAULT FALSE,

    PRIMARY KEY (user_id, item_id),
    CONSTRAINT valid_category CHECK (category IN ('color', 'title'))
);

-- At most one active item per (user, category).
CREATE UNIQUE INDEX IF NOT EXISTS idx_inventory_one_active
    ON inventory_items(user_id, category) WHERE is_active;
`

const migration003Down = `
DROP TABLE IF EXISTS inventory_items;
DROP TABLE IF EXISTS wallets;
`
