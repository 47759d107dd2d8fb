package model

import "time"

// Entity is a multinational enterprise to be enriched.
type Entity struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// RunStatus represents the current state of an enrichment run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one invocation of the enrichment pipeline over an entity list.
type Run struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Status    RunStatus `json:"status"`
	Entities  int       `json:"entities"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityResult bundles everything the pipeline produced for one entity.
type EntityResult struct {
	Entity    Entity        `json:"entity"`
	Report    *AnnualReport `json:"report,omitempty"`
	Citations []Citation    `json:"citations,omitempty"`
	Facts     []Fact        `json:"facts,omitempty"`
}
