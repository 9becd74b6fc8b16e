// Package boardstore persists research boards, image boards, and custom
// styles in SQLite for the narrativ daemon.
//
// Each collection keeps at most MaxBoardsPerType entries; saving a new board
// prunes the oldest rows by insertion order. Boards are stored as JSON bodies
// so payload shapes can evolve without migrations, while topic and timestamps
// are kept in columns for listing.
//
// Research boards are also mirrored as markdown files under
// paths.research_dir. The mirror is best effort: a failed write is logged and
// the database row stays authoritative. ParseResearchMarkdown reads those files
// back for import.
//
// The database is treated as rebuildable local state. Schema changes bump the
// version in schema.go; users delete boards.db to adopt the new schema.
package boardstore
