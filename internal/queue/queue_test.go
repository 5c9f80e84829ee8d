package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekhub/translator/internal/model"
	"github.com/seekhub/translator/internal/store"
	"github.com/seekhub/translator/internal/tracker"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)

	info := &asynq.TaskInfo{Type: task.Type(), Payload: task.Payload()}
	for _, o := range opts {
		switch o.Type() {
		case asynq.TaskIDOpt:
			info.ID = o.Value().(string)
		case asynq.QueueOpt:
			info.Queue = o.Value().(string)
		}
	}
	return info, nil
}

func TestAsynqPublisher_Document(t *testing.T) {
	enq := &fakeEnqueuer{}
	p := NewAsynqPublisher(enq, 3)

	id, err := p.PublishDocumentTranslation(context.Background(), DocumentTranslationPayload{
		JobID:          "job-1",
		DocumentID:     "d1",
		SourceLanguage: "en",
		TargetLanguage: "zh",
		Style:          "general",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskTypeDocumentTranslation, enq.tasks[0].Type())

	var payload DocumentTranslationPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, "job-1", payload.JobID)
	assert.Equal(t, "d1", payload.DocumentID)

	var queue string
	var retries int
	for _, o := range enq.opts[0] {
		switch o.Type() {
		case asynq.QueueOpt:
			queue = o.Value().(string)
		case asynq.MaxRetryOpt:
			retries = o.Value().(int)
		}
	}
	assert.Equal(t, QueueTranslation, queue)
	assert.Equal(t, 3, retries)
}

func TestAsynqPublisher_FreshIDPerAttempt(t *testing.T) {
	enq := &fakeEnqueuer{}
	p := NewAsynqPublisher(enq, 0)
	ctx := context.Background()

	first, err := p.PublishTextTranslation(ctx, TextTranslationPayload{JobID: "job-1", Text: "hi"})
	require.NoError(t, err)
	second, err := p.PublishTextTranslation(ctx, TextTranslationPayload{JobID: "job-1", Text: "hi"})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestAsynqPublisher_Error(t *testing.T) {
	enq := &fakeEnqueuer{err: errors.New("redis: connection refused")}
	p := NewAsynqPublisher(enq, 3)

	id, err := p.PublishTranslationImprovement(context.Background(), ImprovementPayload{JobID: "job-1"})
	assert.Error(t, err)
	assert.Empty(t, id)
}

func TestEnqueueSweep(t *testing.T) {
	enq := &fakeEnqueuer{}
	_, err := EnqueueSweep(context.Background(), enq)
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskTypeMaintenanceSweep, enq.tasks[0].Type())
}

func TestNewMaintenanceScheduler_RequiresInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Minute} {
		_, err := NewMaintenanceScheduler(asynq.RedisClientOpt{Addr: "localhost:6379"}, interval, nil)
		assert.Error(t, err, interval.String())
	}
}

func TestSimulatedPublisher_RunsScript(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	tr := tracker.New(st, nil, zerolog.Nop())
	p := NewSimulatedPublisher(tr, time.Millisecond, zerolog.Nop())

	job, err := st.CreateJob(ctx, model.JobSpec{
		SubjectID:   "d1",
		SubjectType: model.SubjectDocument,
		Settings:    model.TranslationSettings{SourceLanguage: "en", TargetLanguage: "zh", Style: model.StyleGeneral},
	})
	require.NoError(t, err)

	id, err := p.PublishDocumentTranslation(ctx, DocumentTranslationPayload{JobID: job.ID})
	require.NoError(t, err)
	assert.Contains(t, id, "sim-")

	_, err = tr.MarkQueued(ctx, job.ID, id)
	require.NoError(t, err)
	p.Wait()

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "simulated/"+job.ID, got.ResultRef)
}

func TestSimulatedPublisher_StopsOnCancel(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	tr := tracker.New(st, nil, zerolog.Nop())
	p := NewSimulatedPublisher(tr, 20*time.Millisecond, zerolog.Nop())

	job, err := st.CreateJob(ctx, model.JobSpec{
		SubjectID:   "t1",
		SubjectType: model.SubjectText,
		Settings:    model.TranslationSettings{SourceLanguage: "en", TargetLanguage: "de", Style: model.StyleFormal},
	})
	require.NoError(t, err)

	id, _ := p.PublishTextTranslation(ctx, TextTranslationPayload{JobID: job.ID})
	_, err = tr.MarkQueued(ctx, job.ID, id)
	require.NoError(t, err)
	_, err = tr.Cancel(ctx, job.ID)
	require.NoError(t, err)
	p.Wait()

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, got.Status)
}

type fakeInspector struct {
	queues []string
	infos  map[string]*asynq.QueueInfo
}

func (f *fakeInspector) Queues() ([]string, error) { return f.queues, nil }

func (f *fakeInspector) GetQueueInfo(q string) (*asynq.QueueInfo, error) {
	info, ok := f.infos[q]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func TestStats_Collect(t *testing.T) {
	s := NewStats(&fakeInspector{
		queues: []string{QueueTranslation, "gone"},
		infos: map[string]*asynq.QueueInfo{
			QueueTranslation: {Queue: QueueTranslation, Size: 4, Pending: 3, Active: 1, Failed: 2},
		},
	})

	resp, err := s.Collect()
	require.NoError(t, err)
	require.Len(t, resp.Queues, 1)
	assert.Equal(t, 3, resp.Queues[0].Pending)
	assert.Equal(t, 2, resp.Queues[0].Failed)
}
