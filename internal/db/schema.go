// Package db provides the SurrealDB schema definition.
package db

import "fmt"

// DefaultDimension is used when the embedder does not report one.
const DefaultDimension = 384

// dataTables lists every table holding records, dependents first.
var dataTables = []string{
	"chat_message", "chat_session", "relation_evidence", "char_relation",
	"character", "chunk", "dialogue_line", "episode", "title",
}

// SchemaSQL returns the idempotent schema with the chunk embedding index
// sized to dimension.
func SchemaSQL(dimension int) string {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return fmt.Sprintf(schemaTemplate, dimension)
}

const schemaTemplate = `
    -- ==========================================================================
    -- CATALOG
    -- ==========================================================================

    DEFINE TABLE IF NOT EXISTS title SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON title TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON title TYPE string DEFAULT "";

    DEFINE TABLE IF NOT EXISTS episode SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS title_id ON episode TYPE string;
    DEFINE FIELD IF NOT EXISTS season ON episode TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS number ON episode TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS name ON episode TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS duration_ms ON episode TYPE int DEFAULT 0;

    DEFINE INDEX IF NOT EXISTS episode_title ON episode FIELDS title_id;

    -- ==========================================================================
    -- DIALOGUE
    -- ==========================================================================

    DEFINE TABLE IF NOT EXISTS dialogue_line SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS episode_id ON dialogue_line TYPE string;
    DEFINE FIELD IF NOT EXISTS start_ms ON dialogue_line TYPE int;
    DEFINE FIELD IF NOT EXISTS end_ms ON dialogue_line TYPE int;
    DEFINE FIELD IF NOT EXISTS speaker_text ON dialogue_line TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS text ON dialogue_line TYPE string;
    DEFINE FIELD IF NOT EXISTS speaker_character_id ON dialogue_line TYPE option<string>;

    DEFINE INDEX IF NOT EXISTS line_episode_start ON dialogue_line FIELDS episode_id, start_ms;

    -- Chunks are derived from lines and rebuilt per episode.
    DEFINE TABLE IF NOT EXISTS chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS episode_id ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS start_ms ON chunk TYPE int;
    DEFINE FIELD IF NOT EXISTS end_ms ON chunk TYPE int;
    DEFINE FIELD IF NOT EXISTS text_concat ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS subtitle_line_ids ON chunk TYPE array<string>;
    DEFINE FIELD IF NOT EXISTS embedding ON chunk TYPE option<array<float>>;

    DEFINE INDEX IF NOT EXISTS chunk_episode_start ON chunk FIELDS episode_id, start_ms;
    DEFINE INDEX IF NOT EXISTS chunk_embedding ON chunk FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;

    -- ==========================================================================
    -- CHARACTERS & RELATIONS
    -- ==========================================================================

    DEFINE TABLE IF NOT EXISTS character SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS title_id ON character TYPE string;
    DEFINE FIELD IF NOT EXISTS canonical_name ON character TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON character TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS aliases ON character TYPE array<object> DEFAULT [];  -- [{text, confidence}]
    DEFINE FIELD IF NOT EXISTS aliases.*.text ON character TYPE string;
    DEFINE FIELD IF NOT EXISTS aliases.*.confidence ON character TYPE float;

    DEFINE INDEX IF NOT EXISTS character_title ON character FIELDS title_id;

    DEFINE TABLE IF NOT EXISTS char_relation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS title_id ON char_relation TYPE string;
    DEFINE FIELD IF NOT EXISTS from_character_id ON char_relation TYPE string;
    DEFINE FIELD IF NOT EXISTS to_character_id ON char_relation TYPE string;
    DEFINE FIELD IF NOT EXISTS relation_type ON char_relation TYPE string;
    DEFINE FIELD IF NOT EXISTS is_hypothesis ON char_relation TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS confidence ON char_relation TYPE float DEFAULT 0.5;
    DEFINE FIELD IF NOT EXISTS valid_from_time_ms ON char_relation TYPE int;
    DEFINE FIELD IF NOT EXISTS valid_to_time_ms ON char_relation TYPE option<int>;
    DEFINE FIELD IF NOT EXISTS seq ON char_relation TYPE int DEFAULT 0;

    DEFINE INDEX IF NOT EXISTS relation_title_from ON char_relation FIELDS title_id, valid_from_time_ms;
    DEFINE INDEX IF NOT EXISTS relation_pair ON char_relation FIELDS title_id, from_character_id, to_character_id;

    DEFINE TABLE IF NOT EXISTS relation_evidence SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS relation_id ON relation_evidence TYPE string;
    DEFINE FIELD IF NOT EXISTS episode_id ON relation_evidence TYPE string;
    DEFINE FIELD IF NOT EXISTS representative_time_ms ON relation_evidence TYPE int;
    DEFINE FIELD IF NOT EXISTS summary ON relation_evidence TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS line_ids ON relation_evidence TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS created ON relation_evidence TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS evidence_relation ON relation_evidence FIELDS relation_id, representative_time_ms;

    -- ==========================================================================
    -- CHAT HISTORY
    -- ==========================================================================

    DEFINE TABLE IF NOT EXISTS chat_session SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS title_id ON chat_session TYPE string;
    DEFINE FIELD IF NOT EXISTS episode_id ON chat_session TYPE string;
    DEFINE FIELD IF NOT EXISTS user_id ON chat_session TYPE string;
    DEFINE FIELD IF NOT EXISTS current_time_ms ON chat_session TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS created_at ON chat_session TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS session_key ON chat_session FIELDS title_id, episode_id, user_id;

    DEFINE TABLE IF NOT EXISTS chat_message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS session_id ON chat_message TYPE string;
    DEFINE FIELD IF NOT EXISTS role ON chat_message TYPE string;
    DEFINE FIELD IF NOT EXISTS content ON chat_message TYPE string;
    DEFINE FIELD IF NOT EXISTS current_time_ms ON chat_message TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS model ON chat_message TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS prompt_tokens ON chat_message TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS completion_tokens ON chat_message TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS related_relation_id ON chat_message TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS created_at ON chat_message TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS message_session ON chat_message FIELDS session_id, created_at;
`
