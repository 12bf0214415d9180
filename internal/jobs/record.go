package jobs

import (
	"time"

	"github.com/google/uuid"
)

// Params holds the caller-supplied generation parameters captured at
// submission time. They are stored on the record so the pipeline dispatch
// and any later inspection see exactly what the caller asked for.
type Params struct {
	Topic       string `json:"topic"`
	Domain      string `json:"domain"`
	Goal        string `json:"goal"`
	Background  string `json:"background,omitempty"`
	Focus       string `json:"focus,omitempty"`
	NumChapters int    `json:"num_chapters"`
	Tier        string `json:"tier"`
}

// LogEntry is a single append-only progress log line on a job.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Record is the canonical job record.
//
// Records are mutated exclusively through the Registry; readers always
// receive value copies (see Clone). Once Status is terminal the record
// never changes again.
type Record struct {
	ID              string     `json:"job_id"`
	Status          Stage      `json:"status"`
	Progress        int        `json:"progress"`
	CurrentStage    string     `json:"current_stage"`
	Message         string     `json:"message"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	BookName        string     `json:"book_name,omitempty"`
	ArtifactPath    string     `json:"artifact_path,omitempty"`
	Error           string     `json:"error,omitempty"`
	CancelRequested bool       `json:"cancel_requested,omitempty"`
	Params          Params     `json:"params"`
	Logs            []LogEntry `json:"logs"`
}

// NewRecord allocates a fresh pending record with a new UUIDv4 id.
func NewRecord(params Params) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:           uuid.NewString(),
		Status:       StagePending,
		Progress:     0,
		CurrentStage: string(StagePending),
		Message:      "job accepted, waiting for pipeline",
		CreatedAt:    now,
		UpdatedAt:    now,
		Params:       params,
		Logs:         []LogEntry{},
	}
}

// Clone returns a deep copy of the record. Log entries are copied so the
// caller can never alias the stored slice.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Logs = make([]LogEntry, len(r.Logs))
	copy(cp.Logs, r.Logs)
	return &cp
}

// AppendLog appends a log entry stamped with the given time.
func (r *Record) AppendLog(at time.Time, message string) {
	r.Logs = append(r.Logs, LogEntry{Timestamp: at, Message: message})
}

// ValidateID checks that id is a canonical UUIDv4. The length gate rejects
// the alternate encodings uuid.Parse accepts (urn:uuid:, braced, bare hex).
func ValidateID(id string) error {
	if len(id) != 36 {
		return ErrInvalidID
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return ErrInvalidID
	}
	if u.Version() != 4 {
		return ErrInvalidID
	}
	return nil
}
