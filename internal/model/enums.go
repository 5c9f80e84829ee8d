package model

// Subject types
type SubjectType string

const (
	SubjectDocument    SubjectType = "DOCUMENT"
	SubjectText        SubjectType = "TEXT"
	SubjectImprovement SubjectType = "IMPROVEMENT"
)

// Job status
type JobStatus string

const (
	JobStatusPending     JobStatus = "PENDING"
	JobStatusQueued      JobStatus = "QUEUED"
	JobStatusProcessing  JobStatus = "PROCESSING"
	JobStatusTranslating JobStatus = "TRANSLATING"
	JobStatusCompleted   JobStatus = "COMPLETED"
	JobStatusFailed      JobStatus = "FAILED"
	JobStatusCancelled   JobStatus = "CANCELLED"
)

var ValidJobStatuses = []JobStatus{
	JobStatusPending, JobStatusQueued, JobStatusProcessing, JobStatusTranslating,
	JobStatusCompleted, JobStatusFailed, JobStatusCancelled,
}

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// TerminalStatuses lists the statuses a job never leaves.
var TerminalStatuses = []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}

// Translation styles
type Style string

const (
	StyleGeneral   Style = "general"
	StyleFormal    Style = "formal"
	StyleCasual    Style = "casual"
	StyleAcademic  Style = "academic"
	StyleBusiness  Style = "business"
	StyleLiterary  Style = "literary"
	StyleTechnical Style = "technical"
)

var ValidStyles = []Style{
	StyleGeneral, StyleFormal, StyleCasual, StyleAcademic,
	StyleBusiness, StyleLiterary, StyleTechnical,
}

// Domain specializations
type Specialization string

const (
	SpecializationGeneral   Specialization = "general"
	SpecializationLegal     Specialization = "legal"
	SpecializationMedical   Specialization = "medical"
	SpecializationTechnical Specialization = "technical"
	SpecializationFinance   Specialization = "finance"
	SpecializationAcademic  Specialization = "academic"
	SpecializationMarketing Specialization = "marketing"
)

var ValidSpecializations = []Specialization{
	SpecializationGeneral, SpecializationLegal, SpecializationMedical, SpecializationTechnical,
	SpecializationFinance, SpecializationAcademic, SpecializationMarketing,
}

// Translation modes
type TranslationMode string

const (
	ModeFast   TranslationMode = "fast"
	ModeQueued TranslationMode = "queued"
)
