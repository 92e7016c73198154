// internal/decision/service.go
package decision

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/extractor"
	"github.com/xkilldash9x/pagepilot/internal/prompt"
)

// Allows for deterministic call ids in tests.
var uuidNewString = uuid.NewString

// Statically assert that Service implements the Decider interface.
var _ schemas.Decider = (*Service)(nil)

// Service turns one page state plus a goal into one validated next action.
// It keeps no state between calls, so a single Service is shared by all callers.
type Service struct {
	model     schemas.VisionModel
	extractor *extractor.Extractor
	logger    *zap.Logger
	maxTokens int
	timeout   time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithMaxOutputTokens caps the model reply length.
func WithMaxOutputTokens(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithTimeout bounds each model invocation. Zero leaves only the caller's deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// NewService creates a decision service around a vision model.
func NewService(model schemas.VisionModel, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		model:     model,
		logger:    logger.Named("decision"),
		maxTokens: schemas.DefaultMaxOutputTokens,
	}
	s.extractor = extractor.New(s.logger)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Decide validates the request, builds the prompt, makes exactly one model call and
// extracts the action from the reply. Any failure yields a nil result and a *schemas.Error.
func (s *Service) Decide(ctx context.Context, req schemas.DecisionRequest) (*schemas.DecisionResult, error) {
	logger := s.logger.With(zap.String("call_id", uuidNewString()))

	if err := req.Validate(); err != nil {
		logger.Info("Rejected decision request", zap.Error(err))
		return nil, err
	}

	text := prompt.ForRequest(req)
	logger.Debug("Prompt composed",
		zap.Int("elements", len(req.Elements)),
		zap.Int("log_entries", len(req.Log)),
		zap.Int("prompt_bytes", len(text)))

	invokeCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		invokeCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	startTime := time.Now()
	reply, err := s.model.Invoke(invokeCtx, schemas.InvocationRequest{
		Prompt:          text,
		ImageURL:        req.ScreenshotRef,
		MaxOutputTokens: s.maxTokens,
	})
	if err == nil {
		// A reply that raced with cancellation is discarded.
		err = invokeCtx.Err()
	}
	if err != nil {
		err = asInvocationError(err)
		logger.Warn("Model invocation failed", zap.Duration("duration", time.Since(startTime)), zap.Error(err))
		return nil, err
	}
	logger.Debug("Model replied", zap.Duration("duration", time.Since(startTime)), zap.Int("reply_bytes", len(reply)))

	result, err := s.extractor.Extract(reply, req.Elements)
	if err != nil {
		return nil, err
	}

	logger.Info("Decided next action",
		zap.String("goal", req.Goal),
		zap.String("action", string(result.Action.Kind())),
		zap.String("explanation", result.Explanation))
	return result, nil
}

// asInvocationError keeps model errors in the shared taxonomy.
func asInvocationError(err error) error {
	var se *schemas.Error
	if errors.As(err, &se) && se.Kind == schemas.ErrKindModelInvocation {
		return err
	}
	return schemas.NewError(schemas.ErrKindModelInvocation, "model call did not complete", err)
}
