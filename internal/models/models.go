package models

import (
	"time"

	"github.com/hashicorp/go-multierror"
)

// State is an item's position in the pipeline. Transitions are strictly
// sequential; any stage failure moves the item directly to StateFailed.
type State string

const (
	StatePending   State = "pending"
	StateFetched   State = "fetched"
	StateExtracted State = "extracted"
	StateProcessed State = "processed"
	StateExported  State = "exported"
	StateFailed    State = "failed"
)

// Item is one batch unit corresponding to one input URL. It is owned
// exclusively by the orchestrator for its lifetime.
type Item struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	WorkDir      string    `json:"work_dir"`
	ModelPath    string    `json:"model_path,omitempty"`
	TexturePaths []string  `json:"texture_paths,omitempty"`
	OutputDir    string    `json:"output_dir,omitempty"`
	State        State     `json:"state"`
	Err          error     `json:"-"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Fail records the stage error and moves the item to StateFailed.
func (it *Item) Fail(err error) {
	it.State = StateFailed
	it.Err = err
}

// Summary is the outcome of one batch run.
type Summary struct {
	Items     []*Item `json:"items"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
}

// Err combines every failed item's error into one. Returns nil when the
// whole batch succeeded.
func (s *Summary) Err() error {
	var combined *multierror.Error
	for _, it := range s.Items {
		if it.State == StateFailed && it.Err != nil {
			combined = multierror.Append(combined, it.Err)
		}
	}
	return combined.ErrorOrNil()
}
