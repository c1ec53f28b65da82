package ai

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"calma/backend/pkg/logger"
	"calma/backend/pkg/resilience"
	"calma/backend/shared/observability"
)

// CompanionConfig tunes the remote call policy.
type CompanionConfig struct {
	Timeout        time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// Companion performs every AI call of the app. Each call runs through a
// circuit breaker and a bounded retry on rate limiting; the flavour calls
// then degrade to a fixed fallback instead of failing.
type Companion struct {
	gen     Generator
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryPolicy
	timeout time.Duration
	log     *logger.Logger
	metrics *observability.Instruments
	tracer  trace.Tracer
}

// NewCompanion wraps gen.
func NewCompanion(gen Generator, cfg CompanionConfig, metrics *observability.Instruments, log *logger.Logger) *Companion {
	if log == nil {
		log = logger.Discard()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	c := &Companion{
		gen:     gen,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("ai"), log),
		timeout: cfg.Timeout,
		log:     log,
		metrics: metrics,
		tracer:  otel.Tracer("calma/ai"),
	}
	c.retry = resilience.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		Retryable:   IsRateLimited,
		OnRetry: func(err error, wait time.Duration) {
			c.log.Warn("AI call rate limited, retrying", "wait", wait.String(), "error", err.Error())
		},
	}
	return c
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Companion) Breaker() *resilience.CircuitBreaker { return c.breaker }

// call runs fn under the breaker, the retry policy, a timeout and a span.
// Outcome metrics are recorded by the caller once the fallback decision
// is known.
func (c *Companion) call(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "ai."+op, trace.WithAttributes(attribute.String("ai.op", op)))
	defer span.End()

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
			if c.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, c.timeout)
				defer cancel()
			}
			return fn(ctx)
		})
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			err = &RemoteError{Op: op, Err: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Companion) fallback(ctx context.Context, op string, err error) {
	c.metrics.AICall(ctx, op, observability.OutcomeFallback)
	c.log.Warn("AI call fell back", "op", op, "error", err.Error())
}

func (c *Companion) ok(ctx context.Context, op string) {
	c.metrics.AICall(ctx, op, observability.OutcomeOK)
}

func (c *Companion) text(ctx context.Context, op string, req TextRequest) (string, error) {
	var out string
	err := c.call(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = c.gen.GenerateText(ctx, req)
		return err
	})
	return out, err
}

// shortText runs a flavour text call: errors give fallback, an empty answer
// gives empty.
func (c *Companion) shortText(ctx context.Context, op string, req TextRequest, fallback, empty string) string {
	out, err := c.text(ctx, op, req)
	if err != nil {
		c.fallback(ctx, op, err)
		return fallback
	}
	c.ok(ctx, op)
	if out == "" {
		return empty
	}
	return out
}

// QuickAffirmation returns a short encouragement for mood.
func (c *Companion) QuickAffirmation(ctx context.Context, mood string) string {
	return c.shortText(ctx, "affirmation", TextRequest{Prompt: affirmationPrompt(mood)},
		FallbackAffirmation, EmptyAffirmation)
}

// MoodSupport answers a freshly logged mood.
func (c *Companion) MoodSupport(ctx context.Context, mood, name string) string {
	return c.shortText(ctx, "mood_support", TextRequest{Prompt: moodSupportPrompt(mood, name)},
		FallbackMoodSupport, FallbackMoodSupport)
}

// SimplifiedExplanation explains topic in four sections. It is the one call
// whose failure reaches the caller, as a RemoteError.
func (c *Companion) SimplifiedExplanation(ctx context.Context, topic string) (Explanation, error) {
	const op = "explain"
	out, err := c.text(ctx, op, TextRequest{Prompt: explanationPrompt(topic)})
	if err == nil && out == "" {
		err = &RemoteError{Op: op, Err: ErrEmptyResponse}
	}
	if err != nil {
		c.metrics.AICall(ctx, op, observability.OutcomeError)
		c.log.LogError(err, "explanation failed", "topic", topic)
		var remote *RemoteError
		if !errors.As(err, &remote) {
			err = &RemoteError{Op: op, Err: err}
		}
		return Explanation{}, err
	}
	c.ok(ctx, op)

	exp, perr := ParseExplanation(out)
	if perr != nil {
		c.log.Debug("explanation without sections", "error", perr.Error())
	}
	return exp, nil
}

// MotivationalQuote returns a quote with a hint for the scramble game.
func (c *Companion) MotivationalQuote(ctx context.Context) Quote {
	const op = "quote"
	out, err := c.text(ctx, op, TextRequest{Prompt: quotePrompt, JSON: true, Temperature: float32Ptr(0.9)})
	if err != nil {
		c.fallback(ctx, op, err)
		return DefaultQuote
	}
	q, perr := ParseQuote(out)
	if perr != nil {
		c.fallback(ctx, op, perr)
		return q
	}
	c.ok(ctx, op)
	return q
}

// ReframingScenario returns a negative thought to reframe.
func (c *Companion) ReframingScenario(ctx context.Context) string {
	return c.shortText(ctx, "reframe_scenario",
		TextRequest{Prompt: scenarioPrompt, Temperature: float32Ptr(0.8)},
		FallbackScenario, EmptyScenario)
}

// EvaluateReframing scores how well positive reframes negative.
func (c *Companion) EvaluateReframing(ctx context.Context, negative, positive string) Reframe {
	const op = "reframe_evaluate"
	out, err := c.text(ctx, op, TextRequest{Prompt: reframePrompt(negative, positive), JSON: true})
	if err != nil {
		c.fallback(ctx, op, err)
		return DefaultReframe
	}
	r, perr := ParseReframe(out)
	if perr != nil {
		c.fallback(ctx, op, perr)
		return r
	}
	c.ok(ctx, op)
	return r
}

// MathFeedback comments a finished math round.
func (c *Companion) MathFeedback(ctx context.Context, correct, total int, difficulty string) string {
	return c.shortText(ctx, "math_feedback",
		TextRequest{Prompt: mathFeedbackPrompt(correct, total, difficulty)},
		FallbackMathFeedback, EmptyMathFeedback)
}

// Speech synthesizes text. It reports false when no audio could be made;
// callers simply stay silent then.
func (c *Companion) Speech(ctx context.Context, text string) (Audio, bool) {
	const op = "speech"
	var audio Audio
	err := c.call(ctx, op, func(ctx context.Context) error {
		var err error
		audio, err = c.gen.GenerateSpeech(ctx, text)
		return err
	})
	if err != nil {
		c.fallback(ctx, op, err)
		return Audio{}, false
	}
	c.ok(ctx, op)
	return audio, true
}

// EditArtImage transforms a drawing. It reports false on failure.
func (c *Companion) EditArtImage(ctx context.Context, img Image, prompt string) (Image, bool) {
	const op = "edit_image"
	var out Image
	err := c.call(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = c.gen.EditImage(ctx, img, prompt)
		return err
	})
	if err != nil {
		c.fallback(ctx, op, err)
		return Image{}, false
	}
	c.ok(ctx, op)
	return out, true
}

// Reply answers a chat turn given the earlier history.
func (c *Companion) Reply(ctx context.Context, history []Message, text string) string {
	return c.shortText(ctx, "chat",
		TextRequest{Prompt: text, System: ChatSystemInstruction, History: history},
		FallbackChatReply, EmptyChatReply)
}

func float32Ptr(v float32) *float32 { return &v }
