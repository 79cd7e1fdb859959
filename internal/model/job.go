package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
)

// Job is a single user-initiated video-processing request, one jobs_new row.
type Job struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	TeamID      *string   `json:"team_id" db:"team_id"`
	Name        string    `json:"name" db:"name"`
	Status      JobStatus `json:"status" db:"status"`
	Stage       JobStage  `json:"stage" db:"stage"`
	Progress    int       `json:"progress" db:"progress"`
	Files       JobFiles  `json:"files" db:"files"`
	StyleID     string    `json:"style_id" db:"style_id"`
	Duration    int       `json:"duration" db:"duration"`
	Watermarked bool      `json:"watermarked" db:"watermarked"`
	PreviewURL  *string   `json:"preview_url" db:"preview_url"`
	OutputURL   *string   `json:"output_url" db:"output_url"`
	Error       *string   `json:"error,omitempty" db:"error"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// MediaFile references an uploaded file attached to a job
type MediaFile struct {
	Name string    `json:"name" validate:"required"`
	Type MediaType `json:"type" validate:"required,oneof=video audio image"`
	URL  string    `json:"url" validate:"required,url"`
	Size int64     `json:"size" validate:"min=0"`
}

// JobFiles is the files JSON blob stored on the job row.
type JobFiles struct {
	Media    []MediaFile `json:"media"`
	Music    string      `json:"music,omitempty"`
	Captions []string    `json:"captions,omitempty"`
}

// OfType returns the media files of the given type.
func (f JobFiles) OfType(t MediaType) []MediaFile {
	var out []MediaFile
	for _, m := range f.Media {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Value implements driver.Valuer so the blob is written as JSON.
func (f JobFiles) Value() (driver.Value, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "marshal job files")
	}
	return string(data), nil
}

// Scan implements sql.Scanner. NULL scans as an empty blob.
func (f *JobFiles) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*f = JobFiles{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Newf("unsupported files type %T", src)
	}
	if len(data) == 0 {
		*f = JobFiles{}
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, f), "unmarshal job files")
}

// JobUpdate is a partial update of a job row. Nil fields are left untouched.
type JobUpdate struct {
	Status     *JobStatus
	Stage      *JobStage
	Progress   *int
	Files      *JobFiles
	PreviewURL *string
	OutputURL  *string
	Error      *string
}

// Apply writes the update onto j. Progress only ever moves forward.
func (u JobUpdate) Apply(j *Job) {
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Stage != nil {
		j.Stage = *u.Stage
	}
	if u.Progress != nil && *u.Progress > j.Progress {
		j.Progress = *u.Progress
	}
	if u.Files != nil {
		j.Files = *u.Files
	}
	if u.PreviewURL != nil {
		j.PreviewURL = u.PreviewURL
	}
	if u.OutputURL != nil {
		j.OutputURL = u.OutputURL
	}
	if u.Error != nil {
		j.Error = u.Error
	}
}

// IsEmpty reports whether the update changes nothing.
func (u JobUpdate) IsEmpty() bool {
	return u.Status == nil && u.Stage == nil && u.Progress == nil && u.Files == nil &&
		u.PreviewURL == nil && u.OutputURL == nil && u.Error == nil
}

// Ptr returns a pointer to v. Handy for building JobUpdate values.
func Ptr[T any](v T) *T {
	return &v
}

// Clone returns a deep copy of j.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Files.Media != nil {
		cp.Files.Media = make([]MediaFile, len(j.Files.Media))
		copy(cp.Files.Media, j.Files.Media)
	}
	if j.Files.Captions != nil {
		cp.Files.Captions = make([]string, len(j.Files.Captions))
		copy(cp.Files.Captions, j.Files.Captions)
	}
	if j.TeamID != nil {
		cp.TeamID = Ptr(*j.TeamID)
	}
	if j.PreviewURL != nil {
		cp.PreviewURL = Ptr(*j.PreviewURL)
	}
	if j.OutputURL != nil {
		cp.OutputURL = Ptr(*j.OutputURL)
	}
	if j.Error != nil {
		cp.Error = Ptr(*j.Error)
	}
	return &cp
}
