package model

import "time"

// RunState is the lifecycle of a scrape run.
//
//	idle ──► running ──► succeeded
//	             │
//	             └─────► failed
//
// The coordinator returns to idle once a run reaches a terminal state.
type RunState string

const (
	RunIdle      RunState = "idle"
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
)

// Terminal reports whether no further transitions happen from s.
func (s RunState) Terminal() bool { return s == RunSucceeded || s == RunFailed }

// RunParams are the caller's requested knobs for one scrape run.
type RunParams struct {
	SearchTerm    string   `json:"searchTerm" yaml:"search_term"`
	Location      string   `json:"location" yaml:"location"`
	Sources       []string `json:"sources" yaml:"sources" validate:"required,min=1,dive,required"`
	ResultsWanted int      `json:"resultsWanted" yaml:"results_wanted" validate:"min=1,max=1000"`
	HoursOld      int      `json:"hoursOld" yaml:"hours_old" validate:"min=0"`
	Country       string   `json:"country,omitempty" yaml:"country"`
	RedFlags      []string `json:"redFlags,omitempty" yaml:"red_flags"`
}

// AdapterParams projects the run parameters onto what an adapter needs.
func (p RunParams) AdapterParams() AdapterParams {
	return AdapterParams{
		SearchTerm:    p.SearchTerm,
		Location:      p.Location,
		ResultsWanted: p.ResultsWanted,
		HoursOld:      p.HoursOld,
		Country:       p.Country,
	}
}

// AdapterStats records how one adapter fared during a run.
type AdapterStats struct {
	Fetched  int           `json:"fetched"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"durationNs"`
}

// RunStats aggregates a run's adapter outcomes and its ingest result.
type RunStats struct {
	TotalFetched      int                     `json:"totalFetched"`
	Filtered          int                     `json:"filtered"`
	NewAdded          int                     `json:"newAdded"`
	DuplicatesSkipped int                     `json:"duplicatesSkipped"`
	Invalid           int                     `json:"invalid"`
	IngestErrors      []string                `json:"ingestErrors,omitempty"`
	AdapterErrors     map[string]string       `json:"adapterErrors"`
	Adapters          map[string]AdapterStats `json:"adapters"`
}

// ScrapeRun is the status record of one run. Values handed out by the
// coordinator are snapshots and safe to read without locking.
type ScrapeRun struct {
	ID         string     `json:"runId"`
	State      RunState   `json:"state"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Params     RunParams  `json:"params"`
	Stats      RunStats   `json:"stats"`
	Error      string     `json:"error,omitempty"`
}

// Clone returns a deep copy so callers can't race with the coordinator.
func (r *ScrapeRun) Clone() ScrapeRun {
	c := *r
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	c.Params.Sources = append([]string(nil), r.Params.Sources...)
	c.Params.RedFlags = append([]string(nil), r.Params.RedFlags...)
	c.Stats.IngestErrors = append([]string(nil), r.Stats.IngestErrors...)
	c.Stats.AdapterErrors = make(map[string]string, len(r.Stats.AdapterErrors))
	for k, v := range r.Stats.AdapterErrors {
		c.Stats.AdapterErrors[k] = v
	}
	c.Stats.Adapters = make(map[string]AdapterStats, len(r.Stats.Adapters))
	for k, v := range r.Stats.Adapters {
		c.Stats.Adapters[k] = v
	}
	return c
}
