package history

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/teakit/teakit/internal/scheduler"
)

// RecordResults converts a terminal result snapshot into task records, in the
// given task order. Keys are fingerprinted with hashstructure so runs of the
// same pipeline can be correlated even when keys are compound values.
func RecordResults(order []scheduler.TaskID, results scheduler.Results) ([]TaskRecord, error) {
	records := make([]TaskRecord, 0, len(order))
	for _, id := range order {
		res, ok := results.Get(id)
		if !ok {
			continue
		}
		fingerprint, err := hashstructure.Hash(id.Key, hashstructure.FormatV2, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to fingerprint task key %v: %w", id.Key, err)
		}

		record := TaskRecord{
			Fingerprint: fingerprint,
			Key:         fmt.Sprintf("%v", id.Key),
			Label:       id.Label,
			Status:      res.Status.String(),
			Progress:    res.Progress,
			Context:     res.Context,
		}
		if res.Output != nil {
			record.Output = fmt.Sprintf("%v", res.Output)
		}
		if res.Err != nil {
			record.Error = res.Err.Error()
		}
		records = append(records, record)
	}
	return records, nil
}
