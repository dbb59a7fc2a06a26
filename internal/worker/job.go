package worker

import (
	"github.com/dandantas/pulse/internal/model"
)

// Job represents a queued fetch run. The job id is already recorded in the ledger.
type Job struct {
	JobID string
	Kind  model.DataKind
	Keys  []string
}
