package model

import "time"

// MaxUploadSize is the per-file limit for presigned uploads (100MB)
const MaxUploadSize = 100 * 1024 * 1024

// AllowedUploadTypes lists the MIME types accepted for presigned uploads
var AllowedUploadTypes = []string{
	"video/mp4", "video/mov", "video/avi", "video/webm",
	"audio/mp3", "audio/wav", "audio/m4a", "audio/aac",
	"image/jpeg", "image/png", "image/webp", "image/gif",
}

// IsAllowedUploadType reports whether mime may be uploaded
func IsAllowedUploadType(mime string) bool {
	for _, t := range AllowedUploadTypes {
		if t == mime {
			return true
		}
	}
	return false
}

// PresignRequest is the body of POST /api/uploads/presign
type PresignRequest struct {
	FileName string `json:"fileName" validate:"required,max=255"`
	FileType string `json:"fileType" validate:"required"`
	FileSize int64  `json:"fileSize" validate:"required,min=1"`
}

// PresignResponse carries the signed upload URL
type PresignResponse struct {
	Success   bool   `json:"success"`
	UploadURL string `json:"uploadUrl"`
	FilePath  string `json:"filePath"`
	UploadID  string `json:"uploadId,omitempty"`
}

// Upload is one row of the uploads table
type Upload struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Filename  string    `json:"filename" db:"filename"`
	FilePath  string    `json:"file_path" db:"file_path"`
	FileSize  int64     `json:"file_size" db:"file_size"`
	MimeType  string    `json:"mime_type" db:"mime_type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
