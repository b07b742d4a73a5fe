package database

// Notification ledger queries
const (
	InsertFiredEventQuery = `
		INSERT OR IGNORE INTO notification_ledger (event_key, fired_at)
		VALUES (?, ?)
	`

	SelectFiredEventQuery = `
		SELECT 1 FROM notification_ledger WHERE event_key = ?
	`

	DeleteFiredEventsBeforeQuery = `
		DELETE FROM notification_ledger WHERE fired_at < ?
	`

	CountFiredEventsQuery = `
		SELECT COUNT(*) FROM notification_ledger
	`
)

// Relay mapping queries
const (
	InsertRelayMappingQuery = `
		INSERT OR IGNORE INTO relay_mappings (
			source_chat_id, source_msg_id, dest_channel_id, dest_msg_id, relayed_at
		) VALUES (?, ?, ?, ?, ?)
	`

	SelectRelayMappingQuery = `
		SELECT dest_channel_id, dest_msg_id
		FROM relay_mappings
		WHERE source_chat_id = ? AND source_msg_id = ?
	`

	DeleteRelayMappingsBeforeQuery = `
		DELETE FROM relay_mappings WHERE relayed_at < ?
	`

	CountRelayMappingsQuery = `
		SELECT COUNT(*) FROM relay_mappings
	`
)
