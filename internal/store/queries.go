package store

// Product catalog queries
const (
	queryListProducts = `
		SELECT name, display_name, repo_url, default_branch, supported_boards, required_config_files
		FROM products ORDER BY name`

	queryGetProduct = `
		SELECT name, display_name, repo_url, default_branch, supported_boards, required_config_files
		FROM products WHERE name = ?`
)

// Device signature queries
const (
	queryLookupSignature = `
		SELECT vendor_id, product_id, board, fqbn
		FROM device_signatures WHERE vendor_id = ? AND product_id = ?`

	queryListSignatures = `
		SELECT vendor_id, product_id, board, fqbn
		FROM device_signatures ORDER BY vendor_id, product_id`
)

// Session queries. The agent keeps exactly one session row.
const (
	queryGetSession = `
		SELECT id, stage, state, updated_at
		FROM sessions WHERE slot = 1`

	queryUpsertSession = `
		INSERT INTO sessions (slot, id, stage, state, updated_at)
		VALUES (1, ?, ?, ?, now())
		ON CONFLICT (slot) DO UPDATE SET
			id = EXCLUDED.id,
			stage = EXCLUDED.stage,
			state = EXCLUDED.state,
			updated_at = now()`

	queryDeleteSession = `DELETE FROM sessions WHERE slot = 1`
)

// User preference queries
const (
	queryListPreferences = `SELECT name, value FROM user_preferences ORDER BY name`

	queryUpsertPreference = `
		INSERT INTO user_preferences (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`
)
