package domain

import "time"

// PipelineStatus summarises embedding pipeline progress.
type PipelineStatus struct {
	// Pending is the number of chunks awaiting embedding.
	Pending int

	// Processing is the number of chunks in the current batch.
	Processing int

	// Completed is the number of chunks embedded since the
	// checkpoint was last reset.
	Completed int

	// Errors is the number of chunks whose retries are exhausted.
	Errors int
}

// Idle reports whether no work remains.
func (s PipelineStatus) Idle() bool {
	return s.Pending == 0 && s.Processing == 0
}

// Checkpoint is the pipeline's persisted resume point. It lives in
// the store rather than process memory so any newly elected leader
// can resume after a crash or tab close.
type Checkpoint struct {
	// Cursor is the opaque store cursor of the last processed chunk.
	// Empty means scan from the beginning.
	Cursor string

	// Completed and Errors mirror the running counters.
	Completed int
	Errors    int

	// FailedChunks lists chunk IDs whose retries are exhausted. Kept
	// in the checkpoint rather than process memory so a newly elected
	// leader still reports them and a reset retries them.
	FailedChunks []string

	// UpdatedAt is when the checkpoint was last written.
	UpdatedAt time.Time
}

// MarkFailed records a chunk whose retries are exhausted and bumps the
// error counter. Recording the same chunk twice is a no-op.
func (c *Checkpoint) MarkFailed(chunkID string) {
	if c.HasFailed(chunkID) {
		return
	}
	c.FailedChunks = append(c.FailedChunks, chunkID)
	c.Errors++
}

// HasFailed reports whether the chunk's retries are exhausted.
func (c *Checkpoint) HasFailed(chunkID string) bool {
	for _, id := range c.FailedChunks {
		if id == chunkID {
			return true
		}
	}
	return false
}

// CascadeStage identifies one stage of the document deletion cascade.
type CascadeStage string

// Cascade stages, attempted in order. Every stage is attempted even
// when an earlier stage fails; failures are aggregated, not rolled
// back.
const (
	CascadeStageEmbeddings CascadeStage = "embeddings"
	CascadeStageChunks     CascadeStage = "chunks"
	CascadeStageDocument   CascadeStage = "document"
)

// StageError records a failure in one cascade stage.
type StageError struct {
	Stage CascadeStage
	Err   error
}

// CascadeError aggregates per-stage failures from a best-effort
// deletion cascade.
type CascadeError struct {
	DocumentID string
	Stages     []StageError
}

// Error implements the error interface.
func (e *CascadeError) Error() string {
	msg := "delete cascade for document " + e.DocumentID + " failed at:"
	for _, s := range e.Stages {
		msg += " " + string(s.Stage) + " (" + s.Err.Error() + ")"
	}
	return msg
}

// Unwrap returns the first stage error so errors.Is still matches
// store sentinels.
func (e *CascadeError) Unwrap() error {
	if len(e.Stages) == 0 {
		return nil
	}
	return e.Stages[0].Err
}
