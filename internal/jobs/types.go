package jobs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage is a job's position in the processing pipeline.
type Stage string

const (
	StageQueued      Stage = "queued"
	StageDownloading Stage = "downloading"
	StageAnalyzing   Stage = "analyzing"
	StageProcessing  Stage = "processing"
	StageCompleted   Stage = "completed"
	StageFailed      Stage = "failed"
)

// validTransitions encodes the only moves a job may make. Every
// working stage can fail; nothing leaves a terminal stage.
var validTransitions = map[Stage][]Stage{
	StageQueued:      {StageDownloading, StageFailed},
	StageDownloading: {StageAnalyzing, StageFailed},
	StageAnalyzing:   {StageProcessing, StageCompleted, StageFailed},
	StageProcessing:  {StageCompleted, StageFailed},
	StageCompleted:   {},
	StageFailed:      {},
}

// CanTransition reports whether the move from s to next is allowed.
func (s Stage) CanTransition(next Stage) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the stage is an end state.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// ErrorKind classifies a job failure for callers that present it.
type ErrorKind string

const (
	ErrKindValidation ErrorKind = "validation"
	ErrKindDownload   ErrorKind = "download"
	ErrKindAnalysis   ErrorKind = "analysis"
	ErrKindRender     ErrorKind = "render"
	ErrKindSystem     ErrorKind = "system"
)

// JobError is the failure a job carries once it reaches StageFailed.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Segment is one clip selected from the source video.
type Segment struct {
	Index         int      `json:"index"`
	Start         float64  `json:"start"`
	End           float64  `json:"end"`
	Score         float64  `json:"score"`
	Reasons       []string `json:"reasons,omitempty"`
	OutputPath    string   `json:"output_path,omitempty"`
	ThumbnailPath string   `json:"thumbnail_path,omitempty"`
	RenderErr     string   `json:"render_err,omitempty"`
}

// Job tracks one video through the pipeline.
type Job struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title,omitempty"`
	Channel      string    `json:"channel,omitempty"`
	ClipDuration int       `json:"clip_duration"`
	ClipCount    int       `json:"clip_count"`
	Stage        Stage     `json:"stage"`
	Progress     int       `json:"progress"` // 0..100
	Message      string    `json:"message"`
	Segments     []Segment `json:"segments,omitempty"`
	Err          *JobError `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewJob creates a queued job for the given URL.
func NewJob(url, videoID string, clipDuration, clipCount int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:           uuid.NewString(),
		URL:          url,
		VideoID:      videoID,
		ClipDuration: clipDuration,
		ClipCount:    clipCount,
		Stage:        StageQueued,
		Message:      "Waiting in queue...",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Advance moves the job to the next stage, rejecting moves the state
// machine forbids.
func (j *Job) Advance(next Stage) error {
	if !j.Stage.CanTransition(next) {
		return fmt.Errorf("invalid transition %s -> %s", j.Stage, next)
	}
	j.Stage = next
	return nil
}

// SetProgress raises the progress percentage. Progress never moves
// backwards, so stale or out-of-order updates are dropped.
func (j *Job) SetProgress(pct int) {
	if pct > 100 {
		pct = 100
	}
	if pct > j.Progress {
		j.Progress = pct
	}
}

// Fail moves the job to StageFailed with the given classified error.
func (j *Job) Fail(kind ErrorKind, message string) error {
	if err := j.Advance(StageFailed); err != nil {
		return err
	}
	j.Err = &JobError{Kind: kind, Message: message}
	j.Message = message
	return nil
}

// Clone returns a deep copy, so store snapshots never alias the
// caller's slices.
func (j *Job) Clone() *Job {
	out := *j
	if j.Segments != nil {
		out.Segments = make([]Segment, len(j.Segments))
		copy(out.Segments, j.Segments)
		for i, seg := range j.Segments {
			if seg.Reasons != nil {
				out.Segments[i].Reasons = append([]string(nil), seg.Reasons...)
			}
		}
	}
	if j.Err != nil {
		e := *j.Err
		out.Err = &e
	}
	return &out
}
