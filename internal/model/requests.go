package model

import "time"

// UploadDocumentRequest holds the multipart form fields sent with a document upload
type UploadDocumentRequest struct {
	SourceLanguage string         `form:"sourceLanguage" validate:"required"`
	TargetLanguage string         `form:"targetLanguage" validate:"required"`
	Style          Style          `form:"style" validate:"omitempty,oneof=general formal casual academic business literary technical"`
	Specialization Specialization `form:"specialization" validate:"omitempty,oneof=general legal medical technical finance academic marketing"`
}

// UploadDocumentResponse is returned after a document was stored and its translation started
type UploadDocumentResponse struct {
	Document *Document      `json:"document"`
	Job      *TranslationJob `json:"job"`
}

// RetranslateRequest starts a new translation of an existing document with different settings
type RetranslateRequest struct {
	TargetLanguage string `json:"targetLanguage" validate:"required"`
	Style          Style  `json:"style" validate:"omitempty,oneof=general formal casual academic business literary technical"`
}

// TranslateTextRequest translates a snippet, either inline or through the queue
type TranslateTextRequest struct {
	Text           string          `json:"text" validate:"required,max=20000"`
	SourceLanguage string          `json:"sourceLanguage" validate:"required"`
	TargetLanguage string          `json:"targetLanguage" validate:"required"`
	Style          Style           `json:"style" validate:"omitempty,oneof=general formal casual academic business literary technical"`
	Specialization Specialization  `json:"specialization" validate:"omitempty,oneof=general legal medical technical finance academic marketing"`
	Mode           TranslationMode `json:"mode" validate:"omitempty,oneof=fast queued"`
}

// ImproveTranslationRequest asks the provider to revise an existing translation
type ImproveTranslationRequest struct {
	OriginalText       string          `json:"originalText" validate:"required,max=20000"`
	CurrentTranslation string          `json:"currentTranslation" validate:"required,max=20000"`
	Feedback           string          `json:"feedback" validate:"required,max=2000"`
	SourceLanguage     string          `json:"sourceLanguage" validate:"required"`
	TargetLanguage     string          `json:"targetLanguage" validate:"required"`
	Mode               TranslationMode `json:"mode" validate:"omitempty,oneof=fast queued"`
}

// TranslationResult is the response of the text translation mutation.
// Fast mode carries the text; queued mode carries the job to follow.
type TranslationResult struct {
	Mode           TranslationMode `json:"mode"`
	SubjectID      string          `json:"subjectId,omitempty"`
	TranslatedText string          `json:"translatedText,omitempty"`
	Job            *TranslationJob `json:"job,omitempty"`
}

// ImprovementResult is the response of the improvement mutation
type ImprovementResult struct {
	Mode         TranslationMode `json:"mode"`
	SubjectID    string          `json:"subjectId,omitempty"`
	ImprovedText string          `json:"improvedText,omitempty"`
	Job          *TranslationJob `json:"job,omitempty"`
}

// ReportProgressRequest is the body of the worker-facing progress callback.
// Status COMPLETED finalizes with ResultRef; FAILED uses Step as the error message.
type ReportProgressRequest struct {
	Status    JobStatus `json:"status" validate:"required,oneof=PROCESSING TRANSLATING COMPLETED FAILED"`
	Progress  int       `json:"progress" validate:"min=0,max=100"`
	Step      string    `json:"step" validate:"max=200"`
	ResultRef string    `json:"resultRef"`
}

// CancelJobResponse confirms a cancellation
type CancelJobResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
}

// QueueStat summarizes one asynq queue
type QueueStat struct {
	Queue     string `json:"queue"`
	Size      int    `json:"size"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Completed int    `json:"completed"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Paused    bool   `json:"paused"`
}

// QueueStatsResponse wraps all queue summaries
type QueueStatsResponse struct {
	Queues    []QueueStat `json:"queues"`
	Timestamp time.Time   `json:"timestamp"`
}

// SweepReport summarizes one maintenance pass
type SweepReport struct {
	StalledFailed int `json:"stalledFailed"`
	Deleted       int `json:"deleted"`
}
