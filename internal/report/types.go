package report

// Report is the top-level output of a refblend run.
type Report struct {
	Version     int          `json:"version"`
	GeneratedAt string       `json:"generated_at"`
	RunID       string       `json:"run_id"`
	Profile     string       `json:"profile"`
	Params      Params       `json:"params"`
	Frames      []FrameStats `json:"frames"`
	Stats       Stats        `json:"stats"`
	EMA         Range        `json:"ema"`
}

// Params captures the reconstruction parameters of the run.
type Params struct {
	BlockSize   int     `json:"block_size"`
	Blend       float64 `json:"blend"`
	Threshold   float64 `json:"threshold"`
	EMAAlpha    float64 `json:"ema_alpha"`
	Workers     int     `json:"workers"`
	Scale       float64 `json:"scale"`
	Candidates  int     `json:"candidates"`
	MaxVisits   int     `json:"max_visits,omitempty"`
	Mode        string  `json:"mode"`
	Skew        float64 `json:"skew,omitempty"`
	OscPeriodMS int64   `json:"osc_period_ms,omitempty"`
	Format      string  `json:"format"`
}

// FrameStats describes one written output frame.
type FrameStats struct {
	Seq          int    `json:"seq"`
	Name         string `json:"name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Version      uint64 `json:"reference_version"`
	Reindexed    bool   `json:"reindexed,omitempty"`
	Blocks       int    `json:"blocks"`
	Interpolated int    `json:"interpolated"`
	Faults       int    `json:"faults,omitempty"`
	Path         string `json:"path"` // relative to the report
	Size         int64  `json:"size"` // bytes on disk
	Hash         string `json:"hash"` // first 16 hex chars of xxhash64
	Timing       Timing `json:"timing_ms"`
	EMA          Range  `json:"ema"`
}

// Timing is the per-stage wall time in milliseconds.
type Timing struct {
	Inputs       float64 `json:"inputs"`
	Reindex      float64 `json:"reindex"`
	Search       float64 `json:"search"`
	Track        float64 `json:"track"`
	Total        float64 `json:"total"`
	Overhead     float64 `json:"overhead"`
	CrossGap     float64 `json:"cross_gap"`
	OverheadWarn bool    `json:"overhead_warn,omitempty"`
	CrossGapWarn bool    `json:"cross_gap_warn,omitempty"`
}

// Range is a pair of tracked score bounds.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Stats aggregates run metrics.
type Stats struct {
	TotalFrames      int     `json:"total_frames"`
	Dropped          int     `json:"dropped"`
	Reindexes        int     `json:"reindexes"`
	TotalBlocks      int     `json:"total_blocks"`
	Interpolated     int     `json:"interpolated"`
	Faults           int     `json:"faults"`
	TotalOutputBytes int64   `json:"total_output_bytes"`
	MeanFrameMS      float64 `json:"mean_frame_ms"`
	TimingWarnings   int     `json:"timing_warnings"`
}

// SupportedReportVersion is the current schema version.
const SupportedReportVersion = 1
