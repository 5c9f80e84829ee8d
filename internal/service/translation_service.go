package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seekhub/translator/internal/client"
	"github.com/seekhub/translator/internal/keylock"
	"github.com/seekhub/translator/internal/model"
	"github.com/seekhub/translator/internal/queue"
	"github.com/seekhub/translator/internal/store"
	"github.com/seekhub/translator/internal/tracker"
)

// Deps wires a TranslationService.
type Deps struct {
	Jobs       store.JobStore
	Documents  store.DocumentStore
	Storage    client.StorageClient
	Translator client.Translator
	Tracker    *tracker.Tracker
	Dispatcher *Dispatcher
	// Stats may be nil when no asynq queue is configured
	Stats          *queue.Stats
	QueueByDefault bool
	Logger         zerolog.Logger
}

// TranslationService implements the translation mutations and job queries.
type TranslationService struct {
	jobs           store.JobStore
	documents      store.DocumentStore
	storage        client.StorageClient
	translator     client.Translator
	tracker        *tracker.Tracker
	dispatcher     *Dispatcher
	stats          *queue.Stats
	queueByDefault bool
	locks          *keylock.Locker
	logger         zerolog.Logger
}

func NewTranslationService(d Deps) *TranslationService {
	return &TranslationService{
		jobs:           d.Jobs,
		documents:      d.Documents,
		storage:        d.Storage,
		translator:     d.Translator,
		tracker:        d.Tracker,
		dispatcher:     d.Dispatcher,
		stats:          d.Stats,
		queueByDefault: d.QueueByDefault,
		locks:          keylock.New(),
		logger:         d.Logger.With().Str("component", "translation_service").Logger(),
	}
}

// UploadDocument stores the file, registers the document and starts its
// first translation.
func (s *TranslationService) UploadDocument(ctx context.Context, userID, filename string, data []byte, req *model.UploadDocumentRequest) (*model.UploadDocumentResponse, error) {
	if len(data) == 0 {
		return nil, &model.ValidationError{Fields: map[string]string{"file": "is required"}}
	}

	mt := mimetype.Detect(data)
	if !isText(mt) {
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedFormat, mt.String())
	}

	settings := model.TranslationSettings{
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Style:          req.Style,
		Specialization: req.Specialization,
	}
	if settings.Style == "" {
		settings.Style = model.StyleGeneral
	}
	if err := model.ValidateStruct(settings); err != nil {
		return nil, err
	}

	docID := uuid.New().String()
	key := fmt.Sprintf("documents/%s/%s", docID, safeFilename(filename))

	url, err := s.storage.Upload(ctx, key, bytes.NewReader(data), mt.String())
	if err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	doc := &model.Document{
		ID:          docID,
		UserID:      userID,
		Filename:    filename,
		ContentType: mt.String(),
		Size:        int64(len(data)),
		StorageKey:  key,
		URL:         url,
		Settings:    settings,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.documents.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	job, err := s.startDocumentJob(ctx, userID, doc, settings)
	if err != nil {
		return nil, err
	}
	return &model.UploadDocumentResponse{Document: doc, Job: job}, nil
}

// StartTranslation translates an uploaded document with its stored settings.
func (s *TranslationService) StartTranslation(ctx context.Context, userID, documentID string) (*model.TranslationJob, error) {
	doc, err := s.document(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	return s.startDocumentJob(ctx, userID, doc, doc.Settings)
}

// RetranslateDocument starts a new run of a document into another language
// or style. The document's stored settings are left untouched. While a run
// with other settings is still active it returns ErrSettingsConflict.
func (s *TranslationService) RetranslateDocument(ctx context.Context, userID, documentID string, req *model.RetranslateRequest) (*model.TranslationJob, error) {
	doc, err := s.document(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}

	settings := doc.Settings
	settings.TargetLanguage = req.TargetLanguage
	if req.Style != "" {
		settings.Style = req.Style
	}
	return s.startDocumentJob(ctx, userID, doc, settings)
}

// TranslateText translates inline (fast) or through a tracked job (queued).
func (s *TranslationService) TranslateText(ctx context.Context, userID string, req *model.TranslateTextRequest) (*model.TranslationResult, error) {
	settings := model.TranslationSettings{
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Style:          req.Style,
		Specialization: req.Specialization,
	}
	if settings.Style == "" {
		settings.Style = model.StyleGeneral
	}

	if s.mode(req.Mode) == model.ModeFast {
		if err := model.ValidateStruct(settings); err != nil {
			return nil, err
		}
		text, err := s.translator.Translate(ctx, client.TranslateRequest{
			Text:           req.Text,
			SourceLanguage: settings.SourceLanguage,
			TargetLanguage: settings.TargetLanguage,
			Style:          string(settings.Style),
			Specialization: string(settings.Specialization),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrProvider, err)
		}
		return &model.TranslationResult{Mode: model.ModeFast, TranslatedText: text}, nil
	}

	spec := model.JobSpec{
		SubjectID:   uuid.New().String(),
		SubjectType: model.SubjectText,
		UserID:      userID,
		Settings:    settings,
	}
	job, err := s.startJob(ctx, spec, func(job *model.TranslationJob) (string, error) {
		return s.dispatcher.DispatchTextTranslation(ctx, job, req.Text, settings.SourceLanguage, settings.TargetLanguage, settings.Style)
	})
	if err != nil {
		return nil, err
	}
	return &model.TranslationResult{Mode: model.ModeQueued, SubjectID: spec.SubjectID, Job: job}, nil
}

// ImproveTranslation revises a translation using reviewer feedback.
func (s *TranslationService) ImproveTranslation(ctx context.Context, userID string, req *model.ImproveTranslationRequest) (*model.ImprovementResult, error) {
	settings := model.TranslationSettings{
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Style:          model.StyleGeneral,
	}

	if s.mode(req.Mode) == model.ModeFast {
		if err := model.ValidateStruct(settings); err != nil {
			return nil, err
		}
		text, err := s.translator.Improve(ctx, client.ImproveRequest{
			OriginalText:       req.OriginalText,
			CurrentTranslation: req.CurrentTranslation,
			SourceLanguage:     req.SourceLanguage,
			TargetLanguage:     req.TargetLanguage,
			Feedback:           req.Feedback,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrProvider, err)
		}
		return &model.ImprovementResult{Mode: model.ModeFast, ImprovedText: text}, nil
	}

	spec := model.JobSpec{
		SubjectID:   uuid.New().String(),
		SubjectType: model.SubjectImprovement,
		UserID:      userID,
		Settings:    settings,
	}
	job, err := s.startJob(ctx, spec, func(job *model.TranslationJob) (string, error) {
		return s.dispatcher.DispatchImprovement(ctx, job, req.OriginalText, req.CurrentTranslation, req.SourceLanguage, req.TargetLanguage, req.Feedback)
	})
	if err != nil {
		return nil, err
	}
	return &model.ImprovementResult{Mode: model.ModeQueued, SubjectID: spec.SubjectID, Job: job}, nil
}

// GetJob returns a job visible to userID. An empty userID skips the owner check.
func (s *TranslationService) GetJob(ctx context.Context, userID, jobID string) (*model.TranslationJob, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !owns(userID, job.UserID) {
		return nil, model.ErrNotFound
	}
	return job, nil
}

// CancelJob requests cooperative cancellation.
func (s *TranslationService) CancelJob(ctx context.Context, userID, jobID string) (*model.CancelJobResponse, error) {
	if _, err := s.GetJob(ctx, userID, jobID); err != nil {
		return nil, err
	}
	job, err := s.tracker.Cancel(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &model.CancelJobResponse{Success: true, JobID: job.ID, Status: job.Status}, nil
}

// ReportProgress applies a worker callback received over HTTP.
func (s *TranslationService) ReportProgress(ctx context.Context, jobID string, req *model.ReportProgressRequest) (*model.TranslationJob, error) {
	switch req.Status {
	case model.JobStatusCompleted:
		return s.tracker.ReportCompletion(ctx, jobID, req.ResultRef)
	case model.JobStatusFailed:
		return s.tracker.Fail(ctx, jobID, req.Step)
	default:
		return s.tracker.ReportProgress(ctx, jobID, req.Status, req.Progress, req.Step)
	}
}

// ActiveJobForSubject returns the subject's running job, or nil when idle.
func (s *TranslationService) ActiveJobForSubject(ctx context.Context, subjectID string) (*model.TranslationJob, error) {
	active, err := s.jobs.ListActiveJobsForSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}
	return active[0], nil
}

// QueueStats summarizes the asynq queues. Without a queue it reports none.
func (s *TranslationService) QueueStats(ctx context.Context) (*model.QueueStatsResponse, error) {
	if s.stats == nil {
		return &model.QueueStatsResponse{Queues: []model.QueueStat{}, Timestamp: time.Now().UTC()}, nil
	}
	return s.stats.Collect()
}

func (s *TranslationService) startDocumentJob(ctx context.Context, userID string, doc *model.Document, settings model.TranslationSettings) (*model.TranslationJob, error) {
	spec := model.JobSpec{
		SubjectID:   doc.ID,
		SubjectType: model.SubjectDocument,
		UserID:      userID,
		Settings:    settings,
	}
	return s.startJob(ctx, spec, func(job *model.TranslationJob) (string, error) {
		return s.dispatcher.DispatchDocumentTranslation(ctx, job, doc.ID, settings.SourceLanguage, settings.TargetLanguage, settings.Style)
	})
}

// startJob creates and dispatches a job for spec.SubjectID, or returns the
// subject's job that is already running with the same settings. A running
// job with other settings is reported as ErrSettingsConflict.
func (s *TranslationService) startJob(ctx context.Context, spec model.JobSpec, dispatch func(*model.TranslationJob) (string, error)) (*model.TranslationJob, error) {
	unlock := s.locks.Lock(spec.SubjectID)
	defer unlock()

	log := s.logger.With().Str("subject_id", spec.SubjectID).Logger()

	if active, err := s.ActiveJobForSubject(ctx, spec.SubjectID); err != nil {
		return nil, err
	} else if active != nil {
		log.Info().Str("job_id", active.ID).Msg("subject has an active job")
		return reuse(active, spec.Settings)
	}

	job, err := s.jobs.CreateJob(ctx, spec)
	if errors.Is(err, model.ErrActiveJobExists) {
		// another process won the race
		active, lerr := s.ActiveJobForSubject(ctx, spec.SubjectID)
		if lerr != nil {
			return nil, lerr
		}
		if active != nil {
			return reuse(active, spec.Settings)
		}
	}
	if err != nil {
		return nil, err
	}

	correlationID, err := dispatch(job)
	if err != nil {
		return nil, err
	}

	current, err := s.jobs.GetJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if correlationID == "" {
		return nil, &model.DispatchError{JobID: job.ID, Reason: current.ErrorMessage}
	}
	return current, nil
}

func reuse(active *model.TranslationJob, requested model.TranslationSettings) (*model.TranslationJob, error) {
	if active.Settings != requested {
		return nil, fmt.Errorf("%w: job %s targets %s (%s)", model.ErrSettingsConflict,
			active.ID, active.Settings.TargetLanguage, active.Settings.Style)
	}
	return active, nil
}

func (s *TranslationService) document(ctx context.Context, userID, documentID string) (*model.Document, error) {
	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !owns(userID, doc.UserID) {
		return nil, model.ErrDocumentNotFound
	}
	return doc, nil
}

func (s *TranslationService) mode(requested model.TranslationMode) model.TranslationMode {
	if requested != "" {
		return requested
	}
	if s.queueByDefault {
		return model.ModeQueued
	}
	return model.ModeFast
}

func owns(userID, owner string) bool {
	return userID == "" || owner == "" || userID == owner
}

// isText accepts text/plain and anything detected as a descendant of it
// (markdown, csv, html, json, ...).
func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func safeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "document.txt"
	}
	return name
}
