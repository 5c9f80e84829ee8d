package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekhub/translator/internal/client"
	"github.com/seekhub/translator/internal/model"
	"github.com/seekhub/translator/internal/queue"
	"github.com/seekhub/translator/internal/store"
	"github.com/seekhub/translator/internal/tracker"
)

type fakePublisher struct {
	mu    sync.Mutex
	err   error
	calls int
	docs  []queue.DocumentTranslationPayload
	texts []queue.TextTranslationPayload
}

func (p *fakePublisher) next() (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return fmt.Sprintf("msg-%d", p.calls), nil
}

func (p *fakePublisher) PublishDocumentTranslation(ctx context.Context, payload queue.DocumentTranslationPayload) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs = append(p.docs, payload)
	return p.next()
}

func (p *fakePublisher) PublishTextTranslation(ctx context.Context, payload queue.TextTranslationPayload) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, payload)
	return p.next()
}

func (p *fakePublisher) PublishTranslationImprovement(ctx context.Context, payload queue.ImprovementPayload) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next()
}

type fixture struct {
	svc       *TranslationService
	jobs      *store.MemoryStore
	docs      *store.MemoryDocumentStore
	storage   *client.LocalStorage
	tracker   *tracker.Tracker
	publisher *fakePublisher
}

func newFixture(t *testing.T, queueByDefault bool) *fixture {
	t.Helper()

	jobs := store.NewMemoryStore()
	docs := store.NewMemoryDocumentStore()
	storage, err := client.NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	tr := tracker.New(jobs, nil, zerolog.Nop())
	pub := &fakePublisher{}
	svc := NewTranslationService(Deps{
		Jobs:           jobs,
		Documents:      docs,
		Storage:        storage,
		Translator:     &client.MockTranslator{},
		Tracker:        tr,
		Dispatcher:     NewDispatcher(pub, tr, zerolog.Nop()),
		QueueByDefault: queueByDefault,
		Logger:         zerolog.Nop(),
	})
	return &fixture{svc: svc, jobs: jobs, docs: docs, storage: storage, tracker: tr, publisher: pub}
}

func uploadRequest() *model.UploadDocumentRequest {
	return &model.UploadDocumentRequest{SourceLanguage: "en", TargetLanguage: "zh"}
}

func TestDispatcher_Success(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	job, err := f.jobs.CreateJob(ctx, model.JobSpec{
		SubjectID:   "d1",
		SubjectType: model.SubjectDocument,
		Settings:    model.TranslationSettings{SourceLanguage: "en", TargetLanguage: "zh", Style: model.StyleGeneral},
	})
	require.NoError(t, err)

	d := NewDispatcher(f.publisher, f.tracker, zerolog.Nop())
	id, err := d.DispatchDocumentTranslation(ctx, job, "d1", "en", "zh", model.StyleGeneral)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := f.jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, got.Status)
	assert.Equal(t, id, got.CorrelationID)
}

func TestDispatcher_PublishFailureMarksJobFailed(t *testing.T) {
	f := newFixture(t, false)
	f.publisher.err = errors.New("redis: connection refused")
	ctx := context.Background()

	job, err := f.jobs.CreateJob(ctx, model.JobSpec{
		SubjectID:   "t1",
		SubjectType: model.SubjectText,
		Settings:    model.TranslationSettings{SourceLanguage: "en", TargetLanguage: "fr", Style: model.StyleCasual},
	})
	require.NoError(t, err)

	d := NewDispatcher(f.publisher, f.tracker, zerolog.Nop())
	id, err := d.DispatchTextTranslation(ctx, job, "hello", "en", "fr", model.StyleCasual)
	require.NoError(t, err)
	assert.Empty(t, id)

	got, err := f.jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "connection refused")
	assert.Empty(t, got.CorrelationID)
}

func TestUploadDocument(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	resp, err := f.svc.UploadDocument(ctx, "u1", "notes.txt", []byte("Hello world.\n\nSecond paragraph."), uploadRequest())
	require.NoError(t, err)

	assert.Equal(t, "u1", resp.Document.UserID)
	assert.Equal(t, model.StyleGeneral, resp.Document.Settings.Style)
	assert.Contains(t, resp.Document.ContentType, "text/plain")

	data, err := f.storage.Download(ctx, resp.Document.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, "Hello world.\n\nSecond paragraph.", string(data))

	assert.Equal(t, resp.Document.ID, resp.Job.SubjectID)
	assert.Equal(t, model.JobStatusQueued, resp.Job.Status)
	require.Len(t, f.publisher.docs, 1)
	assert.Equal(t, resp.Document.ID, f.publisher.docs[0].DocumentID)
}

func TestUploadDocument_Rejects(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.UploadDocument(ctx, "u1", "empty.txt", nil, uploadRequest())
	assert.ErrorIs(t, err, model.ErrValidation)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	_, err = f.svc.UploadDocument(ctx, "u1", "image.png", png, uploadRequest())
	assert.ErrorIs(t, err, model.ErrUnsupportedFormat)

	_, err = f.svc.UploadDocument(ctx, "u1", "a.txt", []byte("hi"), &model.UploadDocumentRequest{SourceLanguage: "en"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestStartTranslation_ReusesActiveJob(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	resp, err := f.svc.UploadDocument(ctx, "u1", "a.txt", []byte("text"), uploadRequest())
	require.NoError(t, err)

	again, err := f.svc.StartTranslation(ctx, "u1", resp.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Job.ID, again.ID)
	assert.Len(t, f.publisher.docs, 1)

	active, err := f.jobs.ListActiveJobsForSubject(ctx, resp.Document.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestStartTranslation_ConcurrentCallsShareJob(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	resp, err := f.svc.UploadDocument(ctx, "u1", "a.txt", []byte("text"), uploadRequest())
	require.NoError(t, err)
	_, err = f.tracker.Cancel(ctx, resp.Job.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			job, err := f.svc.StartTranslation(ctx, "u1", resp.Document.ID)
			if assert.NoError(t, err) {
				ids[i] = job.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.NotEqual(t, resp.Job.ID, ids[0])
}

func TestStartTranslation_UnknownOrForeignDocument(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.StartTranslation(ctx, "u1", "missing")
	assert.ErrorIs(t, err, model.ErrDocumentNotFound)

	resp, err := f.svc.UploadDocument(ctx, "u1", "a.txt", []byte("text"), uploadRequest())
	require.NoError(t, err)
	_, err = f.svc.StartTranslation(ctx, "u2", resp.Document.ID)
	assert.ErrorIs(t, err, model.ErrDocumentNotFound)
}

func TestStartTranslation_DispatchFailure(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	require.NoError(t, f.docs.SaveDocument(ctx, &model.Document{
		ID:       "d1",
		Settings: model.TranslationSettings{SourceLanguage: "en", TargetLanguage: "zh", Style: model.StyleGeneral},
	}))
	f.publisher.err = errors.New("queue unavailable")

	_, err := f.svc.StartTranslation(ctx, "", "d1")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDispatch)

	var derr *model.DispatchError
	require.True(t, errors.As(err, &derr))

	job, err := f.svc.GetJob(ctx, "", derr.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, "queue unavailable", job.ErrorMessage)

	// a failed job does not block the next attempt
	f.publisher.err = nil
	next, err := f.svc.StartTranslation(ctx, "", "d1")
	require.NoError(t, err)
	assert.NotEqual(t, derr.JobID, next.ID)
}

func TestRetranslateDocument(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	resp, err := f.svc.UploadDocument(ctx, "u1", "a.txt", []byte("text"), uploadRequest())
	require.NoError(t, err)
	_, err = f.tracker.Cancel(ctx, resp.Job.ID)
	require.NoError(t, err)

	job, err := f.svc.RetranslateDocument(ctx, "u1", resp.Document.ID, &model.RetranslateRequest{TargetLanguage: "ja", Style: model.StyleFormal})
	require.NoError(t, err)
	assert.Equal(t, "ja", job.Settings.TargetLanguage)
	assert.Equal(t, model.StyleFormal, job.Settings.Style)
	assert.Equal(t, "en", job.Settings.SourceLanguage)

	doc, err := f.docs.GetDocument(ctx, resp.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, "zh", doc.Settings.TargetLanguage)
}

func TestRetranslateDocument_ActiveJob(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	resp, err := f.svc.UploadDocument(ctx, "u1", "a.txt", []byte("text"), uploadRequest())
	require.NoError(t, err)

	_, err = f.svc.RetranslateDocument(ctx, "u1", resp.Document.ID, &model.RetranslateRequest{TargetLanguage: "ja"})
	assert.ErrorIs(t, err, model.ErrSettingsConflict)

	same, err := f.svc.RetranslateDocument(ctx, "u1", resp.Document.ID, &model.RetranslateRequest{TargetLanguage: "zh"})
	require.NoError(t, err)
	assert.Equal(t, resp.Job.ID, same.ID)
	assert.Len(t, f.publisher.docs, 1)
}

func TestTranslateText_Modes(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	fast, err := f.svc.TranslateText(ctx, "u1", &model.TranslateTextRequest{Text: "hello", SourceLanguage: "en", TargetLanguage: "zh"})
	require.NoError(t, err)
	assert.Equal(t, model.ModeFast, fast.Mode)
	assert.Equal(t, "[zh] hello", fast.TranslatedText)
	assert.Nil(t, fast.Job)
	assert.Empty(t, f.publisher.texts)

	queued, err := f.svc.TranslateText(ctx, "u1", &model.TranslateTextRequest{Text: "hello", SourceLanguage: "en", TargetLanguage: "zh", Mode: model.ModeQueued})
	require.NoError(t, err)
	assert.Equal(t, model.ModeQueued, queued.Mode)
	require.NotNil(t, queued.Job)
	assert.Equal(t, model.SubjectText, queued.Job.SubjectType)
	assert.Equal(t, queued.SubjectID, queued.Job.SubjectID)
	require.Len(t, f.publisher.texts, 1)
	assert.Equal(t, "hello", f.publisher.texts[0].Text)
}

func TestTranslateText_QueueByDefault(t *testing.T) {
	f := newFixture(t, true)

	res, err := f.svc.TranslateText(context.Background(), "", &model.TranslateTextRequest{Text: "x", SourceLanguage: "en", TargetLanguage: "de"})
	require.NoError(t, err)
	assert.Equal(t, model.ModeQueued, res.Mode)
}

func TestTranslateText_ProviderError(t *testing.T) {
	f := newFixture(t, false)
	f.svc.translator = &client.MockTranslator{Err: errors.New("rate limited")}

	_, err := f.svc.TranslateText(context.Background(), "", &model.TranslateTextRequest{Text: "x", SourceLanguage: "en", TargetLanguage: "de"})
	assert.ErrorIs(t, err, model.ErrProvider)
}

func TestImproveTranslation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	req := &model.ImproveTranslationRequest{
		OriginalText:       "hello",
		CurrentTranslation: "hallo ",
		Feedback:           "more formal",
		SourceLanguage:     "en",
		TargetLanguage:     "de",
	}

	fast, err := f.svc.ImproveTranslation(ctx, "", req)
	require.NoError(t, err)
	assert.Equal(t, "[de] hallo", fast.ImprovedText)

	req.Mode = model.ModeQueued
	queued, err := f.svc.ImproveTranslation(ctx, "", req)
	require.NoError(t, err)
	require.NotNil(t, queued.Job)
	assert.Equal(t, model.SubjectImprovement, queued.Job.SubjectType)
	assert.Equal(t, model.JobStatusQueued, queued.Job.Status)
}

func TestGetJob_Ownership(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	resp, err := f.svc.UploadDocument(ctx, "u1", "a.txt", []byte("text"), uploadRequest())
	require.NoError(t, err)

	_, err = f.svc.GetJob(ctx, "u1", resp.Job.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetJob(ctx, "u2", resp.Job.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = f.svc.GetJob(ctx, "u1", "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCancelJob(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	resp, err := f.svc.UploadDocument(ctx, "u1", "a.txt", []byte("text"), uploadRequest())
	require.NoError(t, err)

	out, err := f.svc.CancelJob(ctx, "u1", resp.Job.ID)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, model.JobStatusCancelled, out.Status)

	_, err = f.svc.CancelJob(ctx, "u1", resp.Job.ID)
	assert.ErrorIs(t, err, model.ErrJobTerminal)
}

func TestReportProgress_Routing(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	resp, err := f.svc.UploadDocument(ctx, "", "a.txt", []byte("text"), uploadRequest())
	require.NoError(t, err)
	id := resp.Job.ID

	job, err := f.svc.ReportProgress(ctx, id, &model.ReportProgressRequest{Status: model.JobStatusProcessing, Progress: 40, Step: "parsing"})
	require.NoError(t, err)
	assert.Equal(t, 40, job.Progress)

	job, err = f.svc.ReportProgress(ctx, id, &model.ReportProgressRequest{Status: model.JobStatusTranslating, Progress: 60, Step: "translating"})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusTranslating, job.Status)

	// completion is only accepted from PROCESSING
	job, err = f.svc.ReportProgress(ctx, id, &model.ReportProgressRequest{Status: model.JobStatusCompleted, ResultRef: "too-early"})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusTranslating, job.Status)
	assert.Empty(t, job.ResultRef)

	_, err = f.svc.ReportProgress(ctx, id, &model.ReportProgressRequest{Status: model.JobStatusProcessing, Progress: 90, Step: "rebuilding"})
	require.NoError(t, err)
	job, err = f.svc.ReportProgress(ctx, id, &model.ReportProgressRequest{Status: model.JobStatusCompleted, ResultRef: "translations/x.txt"})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, "translations/x.txt", job.ResultRef)

	other, err := f.svc.TranslateText(ctx, "", &model.TranslateTextRequest{Text: "x", SourceLanguage: "en", TargetLanguage: "de", Mode: model.ModeQueued})
	require.NoError(t, err)
	job, err = f.svc.ReportProgress(ctx, other.Job.ID, &model.ReportProgressRequest{Status: model.JobStatusFailed, Step: "provider timeout"})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, "provider timeout", job.ErrorMessage)
}

func TestActiveJobForSubject(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	job, err := f.svc.ActiveJobForSubject(ctx, "nothing")
	require.NoError(t, err)
	assert.Nil(t, job)

	resp, err := f.svc.UploadDocument(ctx, "", "a.txt", []byte("text"), uploadRequest())
	require.NoError(t, err)
	job, err = f.svc.ActiveJobForSubject(ctx, resp.Document.ID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, resp.Job.ID, job.ID)
}

func TestQueueStats_WithoutQueue(t *testing.T) {
	f := newFixture(t, false)
	stats, err := f.svc.QueueStats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats.Queues)
}

func TestMaintenanceSweep(t *testing.T) {
	ctx := context.Background()
	jobs := store.NewMemoryStore()
	tr := tracker.New(jobs, nil, zerolog.Nop())

	settings := model.TranslationSettings{SourceLanguage: "en", TargetLanguage: "zh", Style: model.StyleGeneral}
	stalled, err := jobs.CreateJob(ctx, model.JobSpec{SubjectID: "s1", SubjectType: model.SubjectText, Settings: settings})
	require.NoError(t, err)
	done, err := jobs.CreateJob(ctx, model.JobSpec{SubjectID: "s2", SubjectType: model.SubjectText, Settings: settings})
	require.NoError(t, err)
	_, err = tr.Cancel(ctx, done.ID)
	require.NoError(t, err)

	later := func() time.Time { return time.Now().Add(2 * time.Hour) }

	// stall pass only
	m := NewMaintenanceService(jobs, tr, time.Minute, 0, zerolog.Nop())
	m.now = later

	report, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.StalledFailed)
	assert.Equal(t, 0, report.Deleted)

	got, err := jobs.GetJob(ctx, stalled.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "stalled")

	// retention pass removes both finished jobs
	m = NewMaintenanceService(jobs, tr, time.Minute, time.Hour, zerolog.Nop())
	m.now = later

	report, err = m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.StalledFailed)
	assert.Equal(t, 2, report.Deleted)

	_, err = jobs.GetJob(ctx, done.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMaintenanceSweep_ZeroStallTimeoutDisablesStallCheck(t *testing.T) {
	ctx := context.Background()
	jobs := store.NewMemoryStore()
	tr := tracker.New(jobs, nil, zerolog.Nop())

	settings := model.TranslationSettings{SourceLanguage: "en", TargetLanguage: "zh", Style: model.StyleGeneral}
	job, err := jobs.CreateJob(ctx, model.JobSpec{SubjectID: "s1", SubjectType: model.SubjectText, Settings: settings})
	require.NoError(t, err)

	m := NewMaintenanceService(jobs, tr, 0, 0, zerolog.Nop())
	m.now = func() time.Time { return time.Now().Add(24 * time.Hour) }

	report, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.StalledFailed)

	got, err := jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, got.Status)
}
