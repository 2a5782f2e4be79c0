package model

// Message is one completed chat turn. Rows are append-only; nothing updates a
// message after insert.
type Message struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	SessionID  string      `json:"session_id"`
	Request    string      `json:"request"`
	Response   string      `json:"response"`
	TokensUsed int64       `json:"tokens_used"`
	Meta       MessageMeta `json:"meta"`
	Ctime      int64       `json:"ctime"`
}

// MessageMeta records the accounting-token breakdown for one turn.
type MessageMeta struct {
	MessageTokens  int64 `json:"message_tokens"`
	ContextTokens  int64 `json:"context_tokens"`
	ResponseTokens int64 `json:"response_tokens"`
	RAGUsed        bool  `json:"rag_used"`
	ContextCount   int   `json:"context_count"`
}
