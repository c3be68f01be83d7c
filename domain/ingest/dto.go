package ingest

// Item is one unit of ingestion: either text with a source label, or a
// URL the service fetches itself.
type Item struct {
	Text    string `json:"text,omitempty"`
	URL     string `json:"url,omitempty"`
	Source  string `json:"source,omitempty"`
	BaseID  string `json:"baseId,omitempty"`
	DocType string `json:"docType,omitempty"`
}

// Request is the POST /ingest body.
type Request struct {
	Collection string `json:"collection,omitempty"`
	Items      []Item `json:"items"`
	Enrich     bool   `json:"enrich,omitempty"`
	Overwrite  bool   `json:"overwrite,omitempty"`
}

// ItemError reports one item that could not be ingested. The batch
// continues past it.
type ItemError struct {
	Source  string `json:"source,omitempty"`
	URL     string `json:"url,omitempty"`
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// Response is the POST /ingest reply.
type Response struct {
	OK        bool        `json:"ok"`
	Upserted  int         `json:"upserted"`
	Refreshed int         `json:"refreshed"`
	Chunks    int         `json:"chunks"`
	Enqueued  int         `json:"enqueued"`
	Errors    []ItemError `json:"errors"`
	Warnings  []string    `json:"warnings,omitempty"`
}
