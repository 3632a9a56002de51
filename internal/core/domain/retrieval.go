package domain

// Chunk is a retrievable unit of text with its source metadata and the
// scores attached by successive pipeline stages.
type Chunk struct {
	ID          string         `json:"id,omitempty"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Score       float64        `json:"score,omitempty"`
	RRFScore    float64        `json:"rrf_score,omitempty"`
	RerankScore float64        `json:"rerank_score,omitempty"`
}

// SearchFilter narrows retrieval to a document category.
type SearchFilter struct {
	Category string
}

// QueryRequest is one question entering the pipeline. User is the
// authenticated identity echoed back on the answer. Alpha weights semantic
// against lexical retrieval; zero means pure lexical, and any value outside
// [0,1] (the adapters use -1 for "not supplied") selects the configured
// default.
type QueryRequest struct {
	Query        string
	TopK         int
	Alpha        float64
	UseExpansion bool
	Filter       SearchFilter
	User         string
}

// Answer is the final pipeline response. Warning is set when the grounding
// check scored the answer below threshold; User is the requesting identity.
// GroundingScore and Variants stay off the wire, the adapters feed them to
// metrics.
type Answer struct {
	Answer         string  `json:"answer"`
	Sources        []Chunk `json:"sources"`
	Warning        string  `json:"warning,omitempty"`
	User           string  `json:"user"`
	GroundingScore float64 `json:"-"`
	Variants       int     `json:"-"`
}

// GroundingVerdict is the per-request result of the grounding check. It is
// never persisted.
type GroundingVerdict struct {
	IsGrounded bool    `json:"is_grounded"`
	Score      float64 `json:"score"`
	Reason     string  `json:"reason"`
}
