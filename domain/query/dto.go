package query

// Strategy names accepted on the request and reported in routing.
const (
	StrategySemantic = "semantic"
	StrategyMetadata = "metadata"
	StrategyFulltext = "fulltext"
)

// Request is the body of POST /query and its companion endpoints.
type Request struct {
	Query      string         `json:"query"`
	Collection string         `json:"collection"`
	Strategy   string         `json:"strategy"`
	TopK       int            `json:"topK"`
	MinScore   *float64       `json:"minScore"`
	Filter     map[string]any `json:"filter"`
}

// Result is one ranked match. The ID is the parent document's base id
// joined to the chunk index with a colon.
type Result struct {
	ID              string         `json:"id"`
	Score           float64        `json:"score"`
	Text            string         `json:"text"`
	DocType         string         `json:"docType"`
	Source          string         `json:"source"`
	Path            *string        `json:"path,omitempty"`
	Lang            *string        `json:"lang,omitempty"`
	RepoID          *string        `json:"repoId,omitempty"`
	RepoURL         *string        `json:"repoUrl,omitempty"`
	ItemURL         *string        `json:"itemUrl,omitempty"`
	ChunkIndex      int            `json:"chunkIndex"`
	BaseID          string         `json:"baseId"`
	Collection      string         `json:"collection"`
	Tier1Meta       map[string]any `json:"tier1Meta,omitempty"`
	Tier2Meta       map[string]any `json:"tier2Meta,omitempty"`
	Tier3Meta       map[string]any `json:"tier3Meta,omitempty"`
	Summary         *string        `json:"summary,omitempty"`
	SummaryShort    *string        `json:"summaryShort,omitempty"`
	SummaryMedium   *string        `json:"summaryMedium,omitempty"`
	SummaryLong     *string        `json:"summaryLong,omitempty"`
	PayloadChecksum string         `json:"payloadChecksum"`
}

// Routing describes how the query was dispatched and how long it took.
type Routing struct {
	Strategy   string  `json:"strategy"`
	Method     string  `json:"method"`
	Confidence float64 `json:"confidence"`
	Ms         int64   `json:"ms"`
}

// Response is the body of POST /query.
type Response struct {
	OK      bool     `json:"ok"`
	Results []Result `json:"results"`
	Routing *Routing `json:"routing,omitempty"`
}
