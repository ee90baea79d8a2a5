package database

// migrationsSQL contains all database migrations.
// Migrations are applied in order by version number.
// Each migration should be idempotent (safe to run multiple times).
var migrationsSQL = map[int]string{
	1: migrationV1Ledger,
	2: migrationV2ProjectionsAndSettings,
}

// migrationV1Ledger creates the durable truth of the calendar: month
// anchors and the per-year leap decisions.
//
// start_date is UNIQUE on its own because two different months can never
// begin on the same day; the primary key makes (year, month) an upsert key.
const migrationV1Ledger = `
-- Migration 001: ledger

CREATE TABLE IF NOT EXISTS month_anchors (
    year_number INTEGER NOT NULL,
    month_number INTEGER NOT NULL CHECK (month_number BETWEEN 1 AND 13),

    -- Civil date as YYYY-MM-DD
    start_date TEXT NOT NULL UNIQUE,
    confirmed INTEGER NOT NULL DEFAULT 1,

    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now')),

    PRIMARY KEY (year_number, month_number)
);

CREATE INDEX IF NOT EXISTS idx_month_anchors_start
    ON month_anchors(start_date);

CREATE TABLE IF NOT EXISTS year_leap_decisions (
    year_number INTEGER PRIMARY KEY,

    -- NULL until decided. 0 commits the year to a 13th month.
    is_aviv INTEGER CHECK (is_aviv IN (0, 1)),
    decided_on TEXT,

    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// migrationV2ProjectionsAndSettings adds the projection cache and the two
// singleton tables. The singletons pin id to 1.
const migrationV2ProjectionsAndSettings = `
-- Migration 002: projection cache, cached location, preferences

CREATE TABLE IF NOT EXISTS projected_lengths (
    year_number INTEGER NOT NULL,
    month_number INTEGER NOT NULL CHECK (month_number BETWEEN 1 AND 13),
    length_days INTEGER NOT NULL CHECK (length_days IN (29, 30)),
    updated_at TEXT NOT NULL DEFAULT (datetime('now')),

    PRIMARY KEY (year_number, month_number)
);

CREATE TABLE IF NOT EXISTS cached_location (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    latitude REAL NOT NULL CHECK (latitude BETWEEN -90 AND 90),
    longitude REAL NOT NULL CHECK (longitude BETWEEN -180 AND 180),
    cached_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_preferences (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    month_naming_mode TEXT NOT NULL DEFAULT 'numeric',
    firstfruits_rule TEXT NOT NULL DEFAULT 'after_saturday',
    include_hanukkah INTEGER NOT NULL DEFAULT 0,
    include_purim INTEGER NOT NULL DEFAULT 0,
    project_extra_month INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`
