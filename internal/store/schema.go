package store

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS provider_credentials (
		provider TEXT PRIMARY KEY,
		nonce BLOB NOT NULL,
		ciphertext BLOB NOT NULL,
		base_url TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS provider_usage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL,
		workload TEXT,
		success INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		error_message TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS provider_models (
		provider TEXT NOT NULL,
		workload TEXT NOT NULL,
		model TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		priority INTEGER NOT NULL DEFAULT 100,
		rationale TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(provider, workload, model)
	)`,
	`CREATE TABLE IF NOT EXISTS provider_model_suggestions (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		workload TEXT NOT NULL,
		model TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		priority INTEGER NOT NULL DEFAULT 100,
		rationale TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(provider, workload, model)
	)`,
	`CREATE TABLE IF NOT EXISTS provider_health (
		provider TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'available',
		last_error TEXT,
		last_error_message TEXT,
		retry_after TEXT,
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		last_success_at TEXT,
		updated_at TEXT NOT NULL
	)`,
}

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_provider_models_active
		ON provider_models(provider, workload, status, priority)`,
	`CREATE INDEX IF NOT EXISTS idx_provider_model_suggestions
		ON provider_model_suggestions(provider, workload, status)`,
	`CREATE INDEX IF NOT EXISTS idx_provider_usage_provider_model_time
		ON provider_usage(provider, model, created_at)`,
}
