package db

type migration struct {
	name string
	sql  string
}

// Timestamps are stored as unix milliseconds.
var migrations = []migration{
	{
		name: "create users table",
		sql: `
			CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				created_at INTEGER NOT NULL DEFAULT 0
			)
		`,
	},
	{
		name: "create conversations table",
		sql: `
			CREATE TABLE IF NOT EXISTS conversations (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT UNIQUE NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL,
				autodestruct_at INTEGER
			)
		`,
	},
	{
		name: "create conversation members table",
		sql: `
			CREATE TABLE IF NOT EXISTS conversation_members (
				conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
				PRIMARY KEY (conversation_id, user_id)
			);
			CREATE INDEX IF NOT EXISTS idx_conversation_members_user ON conversation_members(user_id);
		`,
	},
	{
		name: "create messages table",
		sql: `
			CREATE TABLE IF NOT EXISTS messages (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT UNIQUE NOT NULL,
				conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				sender_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
				body TEXT NOT NULL,
				created_at INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
		`,
	},
}
