package ingest

import "time"

// RunReport accumulates counters while an ingestion run is in flight. The
// clock starts at StartRun (immediately before container creation) and stops
// when Finalize is called (immediately after the aggregate query returns).
type RunReport struct {
	started     time.Time
	rowsLoaded  int64
	rowsSkipped int64
	queryResult int64
}

// ReportSnapshot is the immutable result of a completed run.
type ReportSnapshot struct {
	RowsLoaded     int64
	RowsSkipped    int64
	QueryResult    int64
	ElapsedSeconds float64
}

// StartRun begins timing a new report. time.Now carries a monotonic reading,
// so the elapsed figure is immune to wall-clock adjustments.
func StartRun() *RunReport {
	return &RunReport{started: time.Now()}
}

// AddLoaded records rows persisted by a successful batch.
func (r *RunReport) AddLoaded(n int) {
	r.rowsLoaded += int64(n)
}

// AddSkipped records malformed rows dropped by the reader.
func (r *RunReport) AddSkipped(n int) {
	r.rowsSkipped += int64(n)
}

// SetQueryResult captures the aggregate query's scalar result.
func (r *RunReport) SetQueryResult(n int64) {
	r.queryResult = n
}

// Finalize stops the clock and returns the snapshot.
func (r *RunReport) Finalize() ReportSnapshot {
	return ReportSnapshot{
		RowsLoaded:     r.rowsLoaded,
		RowsSkipped:    r.rowsSkipped,
		QueryResult:    r.queryResult,
		ElapsedSeconds: time.Since(r.started).Seconds(),
	}
}
