package model

import "encoding/json"

// OperationKind is the closed set of metered operations. Anything outside this
// set is rejected before it reaches the ledger.
type OperationKind string

const (
	OpChat            OperationKind = "chat"
	OpEmbedding       OperationKind = "embedding"
	OpAdminAdjustment OperationKind = "admin_adjustment"
)

func (k OperationKind) Valid() bool {
	switch k {
	case OpChat, OpEmbedding, OpAdminAdjustment:
		return true
	}
	return false
}

// UsageLogEntry is one row of the append-only token audit trail. Delta is
// positive for consumption and negative for an admin grant.
type UsageLogEntry struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	SessionID string          `json:"session_id,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	Delta     int64           `json:"delta"`
	Kind      OperationKind   `json:"kind"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	Ctime     int64           `json:"ctime"`
}

// ChatUsage is the structured metadata attached to OpChat entries.
type ChatUsage struct {
	MessageTokens  int64 `json:"message_tokens"`
	ContextTokens  int64 `json:"context_tokens"`
	ResponseTokens int64 `json:"response_tokens"`
	RAGUsed        bool  `json:"rag_used"`
	ContextCount   int   `json:"context_count"`
}

// EmbeddingUsage is the structured metadata attached to OpEmbedding entries.
type EmbeddingUsage struct {
	DocumentID string `json:"document_id"`
	FileSize   int64  `json:"file_size"`
}

// AdminAdjustment is the structured metadata attached to OpAdminAdjustment
// entries.
type AdminAdjustment struct {
	AdminID string `json:"admin_id"`
	Reason  string `json:"reason"`
}
