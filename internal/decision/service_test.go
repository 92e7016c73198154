// internal/decision/service_test.go
package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- Test Helpers --

func searchRequest() schemas.DecisionRequest {
	return schemas.DecisionRequest{
		Goal:          "search for funny cat videos",
		Elements:      schemas.ElementMap{9: {Tag: "img", Link: "https://www.google.com/doodles"}, 11: {Tag: "input"}},
		Log:           []string{},
		CurrentURL:    "https://www.google.com/",
		ScreenshotRef: "https://raw.githubusercontent.com/o/r/main/screenshots/1.png",
	}
}

func fenced(payload string) string {
	return "Sure.\n```json\n" + payload + "\n```"
}

const typeReply = `{"briefExplanation":"I'll type into the search bar","nextAction":{"action":"type","element":11,"text":"funny cat videos"}}`

func setupService(t *testing.T, opts ...Option) (*Service, *mocks.MockVisionModel, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	model := new(mocks.MockVisionModel)
	t.Cleanup(func() { model.AssertExpectations(t) })
	return NewService(model, zap.New(core), opts...), model, logs
}

func requireKind(t *testing.T, err error, kind schemas.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	got, ok := schemas.KindOf(err)
	require.True(t, ok, "expected *schemas.Error, got %T: %v", err, err)
	require.Equal(t, kind, got, "unexpected error: %v", err)
}

// -- Scenarios --

func TestDecide_TypeIntoSearchBar(t *testing.T) {
	svc, model, _ := setupService(t)
	req := searchRequest()

	model.On("Invoke", mock.Anything, mock.MatchedBy(func(in schemas.InvocationRequest) bool {
		return in.ImageURL == req.ScreenshotRef &&
			in.MaxOutputTokens == schemas.DefaultMaxOutputTokens &&
			strings.Contains(in.Prompt, "Element 11 is a input") &&
			strings.Contains(in.Prompt, req.Goal)
	})).Return(fenced(typeReply), nil).Once()

	result, err := svc.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "I'll type into the search bar", result.Explanation)
	assert.Equal(t, schemas.TypeAction{Element: 11, Text: "funny cat videos"}, result.Action)
}

func TestDecide_DoneOnEmptyPage(t *testing.T) {
	svc, model, _ := setupService(t)
	req := searchRequest()
	req.Elements = schemas.ElementMap{}
	req.Log = []string{"Typed 'funny cat videos' into element 11", "Clicked element 4"}

	model.On("Invoke", mock.Anything, mock.MatchedBy(func(in schemas.InvocationRequest) bool {
		return strings.Contains(in.Prompt, "(no interactable elements)") &&
			strings.Contains(in.Prompt, "1. Typed 'funny cat videos' into element 11\n2. Clicked element 4")
	})).Return(fenced(`{"briefExplanation":"The results are showing","nextAction":{"action":"done"}}`), nil).Once()

	result, err := svc.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, schemas.DoneAction{}, result.Action)
}

func TestDecide_StaleElementIsRejected(t *testing.T) {
	svc, model, _ := setupService(t)
	model.On("Invoke", mock.Anything, mock.Anything).
		Return(fenced(`{"briefExplanation":"click","nextAction":{"action":"click","element":99}}`), nil).Once()

	result, err := svc.Decide(context.Background(), searchRequest())
	assert.Nil(t, result)
	requireKind(t, err, schemas.ErrKindSchemaViolation)
	assert.ErrorIs(t, err, schemas.ErrSchemaViolation)
}

func TestDecide_NoStructuredPayload(t *testing.T) {
	svc, model, _ := setupService(t)
	model.On("Invoke", mock.Anything, mock.Anything).Return("I would click the search box.", nil).Once()

	result, err := svc.Decide(context.Background(), searchRequest())
	assert.Nil(t, result)
	requireKind(t, err, schemas.ErrKindNoStructuredPayload)
}

func TestDecide_MalformedPayload(t *testing.T) {
	svc, model, _ := setupService(t)
	model.On("Invoke", mock.Anything, mock.Anything).
		Return(fenced(`{'briefExplanation': 'x', 'nextAction': {'action': 'done'}}`), nil).Once()

	result, err := svc.Decide(context.Background(), searchRequest())
	assert.Nil(t, result)
	requireKind(t, err, schemas.ErrKindMalformedPayload)
}

// -- Request validation --

func TestDecide_InvalidRequestNeverCallsModel(t *testing.T) {
	cases := map[string]func(*schemas.DecisionRequest){
		"missing goal":        func(r *schemas.DecisionRequest) { r.Goal = "" },
		"missing elements":    func(r *schemas.DecisionRequest) { r.Elements = nil },
		"missing log":         func(r *schemas.DecisionRequest) { r.Log = nil },
		"missing url":         func(r *schemas.DecisionRequest) { r.CurrentURL = "  " },
		"missing screenshot":  func(r *schemas.DecisionRequest) { r.ScreenshotRef = "" },
		"relative screenshot": func(r *schemas.DecisionRequest) { r.ScreenshotRef = "/tmp/shot.png" },
		"non-http screenshot": func(r *schemas.DecisionRequest) { r.ScreenshotRef = "file:///tmp/shot.png" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			svc, model, _ := setupService(t)
			req := searchRequest()
			mutate(&req)

			result, err := svc.Decide(context.Background(), req)
			assert.Nil(t, result)
			requireKind(t, err, schemas.ErrKindRequestValidation)
			model.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
		})
	}
}

// -- Model invocation failures --

func TestDecide_ModelErrorIsWrapped(t *testing.T) {
	svc, model, _ := setupService(t)
	cause := errors.New("connection reset by peer")
	model.On("Invoke", mock.Anything, mock.Anything).Return("", cause).Once()

	result, err := svc.Decide(context.Background(), searchRequest())
	assert.Nil(t, result)
	requireKind(t, err, schemas.ErrKindModelInvocation)
	assert.ErrorIs(t, err, cause)
}

func TestDecide_ModelErrorAlreadyClassified(t *testing.T) {
	svc, model, _ := setupService(t)
	classified := schemas.NewError(schemas.ErrKindModelInvocation, "gemini request failed", errors.New("quota"))
	model.On("Invoke", mock.Anything, mock.Anything).Return("", classified).Once()

	_, err := svc.Decide(context.Background(), searchRequest())
	assert.Same(t, classified, err)
}

func TestDecide_CallerCancellation(t *testing.T) {
	svc, model, _ := setupService(t)
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	model.On("Invoke", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		close(started)
		<-args.Get(0).(context.Context).Done()
	}).Return("", context.Canceled).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-started
		cancel()
	}()

	result, err := svc.Decide(ctx, searchRequest())
	wg.Wait()

	assert.Nil(t, result, "no partial action after cancellation")
	requireKind(t, err, schemas.ErrKindModelInvocation)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecide_ReplyAfterCancellationIsDiscarded(t *testing.T) {
	svc, model, _ := setupService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model.On("Invoke", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		cancel()
	}).Return(fenced(typeReply), nil).Once()

	result, err := svc.Decide(ctx, searchRequest())
	assert.Nil(t, result)
	requireKind(t, err, schemas.ErrKindModelInvocation)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecide_Timeout(t *testing.T) {
	svc, model, _ := setupService(t, WithTimeout(20*time.Millisecond))
	model.On("Invoke", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline, "invocation carries the per-call deadline")
		<-ctx.Done()
	}).Return("", context.DeadlineExceeded).Once()

	result, err := svc.Decide(context.Background(), searchRequest())
	assert.Nil(t, result)
	requireKind(t, err, schemas.ErrKindModelInvocation)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// -- Statelessness --

func TestDecide_IdenticalRequestsProduceIdenticalResults(t *testing.T) {
	svc, model, _ := setupService(t, WithMaxOutputTokens(120))

	var mu sync.Mutex
	var prompts []string
	model.On("Invoke", mock.Anything, mock.MatchedBy(func(in schemas.InvocationRequest) bool {
		return in.MaxOutputTokens == 120
	})).Run(func(args mock.Arguments) {
		mu.Lock()
		defer mu.Unlock()
		prompts = append(prompts, args.Get(1).(schemas.InvocationRequest).Prompt)
	}).Return(fenced(typeReply), nil).Times(2)

	first, err := svc.Decide(context.Background(), searchRequest())
	require.NoError(t, err)
	second, err := svc.Decide(context.Background(), searchRequest())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, prompts, 2)
	assert.Equal(t, prompts[0], prompts[1], "prompt depends only on the request")
}

// echoModel answers with a done action whose explanation repeats the goal from the prompt.
type echoModel struct{}

func (echoModel) Invoke(_ context.Context, in schemas.InvocationRequest) (string, error) {
	start := strings.Index(in.Prompt, "Goal:\n") + len("Goal:\n")
	goal := in.Prompt[start : start+strings.Index(in.Prompt[start:], "\n")]
	return fenced(fmt.Sprintf(`{"briefExplanation":%q,"nextAction":{"action":"done"}}`, goal)), nil
}

func (echoModel) Close() error { return nil }

func TestDecide_ConcurrentCallsShareNothing(t *testing.T) {
	svc := NewService(echoModel{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := searchRequest()
			req.Goal = fmt.Sprintf("goal number %d", i)
			result, err := svc.Decide(context.Background(), req)
			if assert.NoError(t, err) {
				assert.Equal(t, req.Goal, result.Explanation)
			}
		}(i)
	}
	wg.Wait()
}

// -- Logging --

func TestDecide_LogsWithCallID(t *testing.T) {
	original := uuidNewString
	uuidNewString = func() string { return "call-1234" }
	t.Cleanup(func() { uuidNewString = original })

	svc, model, logs := setupService(t)
	model.On("Invoke", mock.Anything, mock.Anything).Return(fenced(typeReply), nil).Once()

	_, err := svc.Decide(context.Background(), searchRequest())
	require.NoError(t, err)

	entries := logs.FilterMessage("Decided next action").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "call-1234", fields["call_id"])
	assert.Equal(t, "type", fields["action"])
	assert.Equal(t, "decision", entries[0].LoggerName)
}
