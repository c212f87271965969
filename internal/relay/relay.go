// Package relay dispatches chat turns to upstream providers and re-emits
// their streamed output in the normalized delta format.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"chatrelay/internal/models"
	"chatrelay/internal/provider"
	"chatrelay/internal/stream"
	"chatrelay/internal/translator"
)

// ErrAPIKeyRequired indicates the provider needs a key and the turn carried none.
var ErrAPIKeyRequired = errors.New("API key required")

const (
	readBufferSize  = 32 * 1024
	maxErrorBody    = 64 * 1024
	maxLoggedFrame  = 256
	defaultBuffer   = 16
	defaultInterval = 250 * time.Millisecond
)

// Options tunes a Relay.
type Options struct {
	// BufferSize is the capacity of the channel between the upstream reader
	// and the downstream writer.
	BufferSize int
	// StreamTimeout bounds a whole turn. Zero disables it.
	StreamTimeout        time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration
	// SystemPrompt is prepended to turns that have no system message.
	SystemPrompt string
	Logger       *slog.Logger
}

// Sink receives the normalized output of one turn.
type Sink interface {
	WriteDelta(text string) error
	WriteDone() error
}

// Route is a resolved turn, ready to be streamed.
type Route struct {
	Turn     models.ChatTurn
	Provider models.ProviderDescriptor
	Variant  provider.Variant
	Request  provider.Request
}

// Relay dispatches turns to the appropriate provider.
type Relay struct {
	registry *provider.Registry
	variants *provider.VariantTable
	client   *http.Client
	opts     Options
	logger   *slog.Logger
	stats    counters
}

// New constructs a relay backed by the provided registry and variant table.
func New(registry *provider.Registry, variants *provider.VariantTable, client *http.Client, opts Options) (*Relay, error) {
	if registry == nil {
		return nil, errors.New("registry must not be nil")
	}
	if variants == nil {
		return nil, errors.New("variant table must not be nil")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBuffer
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = defaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Relay{
		registry: registry,
		variants: variants,
		client:   client,
		opts:     opts,
		logger:   logger,
	}, nil
}

// Providers lists the catalogue the relay routes to.
func (r *Relay) Providers() []models.ProviderDescriptor {
	return r.registry.List()
}

// Resolve looks up the turn's provider and shapes the upstream request.
// Nothing is sent upstream; errors here are reported before any stream starts.
func (r *Relay) Resolve(turn models.ChatTurn) (Route, error) {
	desc, err := r.registry.Lookup(turn.ProviderID)
	if err != nil {
		return Route{}, err
	}

	apiKey := strings.TrimSpace(turn.Config.APIKey)
	if desc.RequiresAPIKey && apiKey == "" {
		return Route{}, fmt.Errorf("%w for provider %s", ErrAPIKeyRequired, desc.ID)
	}

	baseURL := desc.BaseURL
	if override := strings.TrimSpace(turn.Config.BaseURL); override != "" {
		baseURL = strings.TrimRight(override, "/")
	}

	turn.Messages = r.withSystemPrompt(turn.Messages)

	variant := r.variants.Resolve(desc.ID)
	req, err := variant.Shape(turn, provider.Endpoint{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Headers: desc.Headers,
	})
	if err != nil {
		return Route{}, fmt.Errorf("shape %s request: %w", desc.ID, err)
	}

	return Route{
		Turn:     turn,
		Provider: desc,
		Variant:  variant,
		Request:  req,
	}, nil
}

func (r *Relay) withSystemPrompt(msgs []models.Message) []models.Message {
	if r.opts.SystemPrompt == "" {
		return msgs
	}
	for _, msg := range msgs {
		if msg.Role == models.RoleSystem {
			return msgs
		}
	}
	out := make([]models.Message, 0, len(msgs)+1)
	out = append(out, models.Message{Role: models.RoleSystem, Content: r.opts.SystemPrompt})
	return append(out, msgs...)
}

// sinkError marks failures of the downstream writer.
type sinkError struct {
	err error
}

func (e *sinkError) Error() string { return "write downstream: " + e.err.Error() }
func (e *sinkError) Unwrap() error { return e.err }

// Stream relays the upstream response for route into sink. Upstream failures
// are reported in-band as one error delta followed by the terminal sentinel,
// and Stream returns nil. A non-nil error means the downstream is gone or ctx
// was cancelled; in that case nothing more is written to sink.
func (r *Relay) Stream(ctx context.Context, route Route, sink Sink) error {
	r.stats.turns.Add(1)
	logger := r.logger.With("turn", route.Turn.ID, "provider", route.Provider.ID, "model", route.Turn.Model)
	started := time.Now()

	err := r.pump(ctx, route, sink, logger)

	var downstreamErr *sinkError
	switch {
	case ctx.Err() != nil:
		r.stats.failed.Add(1)
		logger.Info("turn cancelled by client", "elapsed", time.Since(started))
		return ctx.Err()
	case errors.As(err, &downstreamErr):
		r.stats.failed.Add(1)
		logger.Info("downstream closed mid-stream", "error", downstreamErr.err)
		return downstreamErr.err
	case err != nil:
		r.stats.failed.Add(1)
		logger.Warn("upstream stream failed", "error", err, "kind", translator.Classify(err).String())
		if werr := sink.WriteDelta(translator.StreamErrorMessage(err)); werr != nil {
			return werr
		}
	default:
		logger.Debug("turn completed", "elapsed", time.Since(started))
	}

	return sink.WriteDone()
}

func (r *Relay) pump(ctx context.Context, route Route, sink Sink, logger *slog.Logger) error {
	if r.opts.StreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.StreamTimeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	deltas := make(chan models.Delta, r.opts.BufferSize)

	g.Go(func() error {
		defer close(deltas)
		return r.produce(gctx, route, deltas, logger)
	})

	g.Go(func() error {
		for delta := range deltas {
			if err := sink.WriteDelta(delta.Text); err != nil {
				return &sinkError{err: err}
			}
		}
		return nil
	})

	err := g.Wait()
	var downstreamErr *sinkError
	if err != nil && !errors.As(err, &downstreamErr) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s stream timed out after %s: %w", route.Provider.ID, r.opts.StreamTimeout, context.DeadlineExceeded)
	}
	return err
}

func (r *Relay) produce(ctx context.Context, route Route, out chan<- models.Delta, logger *slog.Logger) error {
	resp, err := r.open(ctx, route, logger)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	decoder := route.Variant.NewDecoder(r.observer(logger))
	buf := make([]byte, readBufferSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			deltas, done := decoder.Decode(buf[:n])
			if err := send(ctx, out, deltas); err != nil {
				return err
			}
			if done {
				return nil
			}
		}
		if errors.Is(readErr, io.EOF) {
			return send(ctx, out, decoder.Flush())
		}
		if readErr != nil {
			return fmt.Errorf("read %s stream: %w", route.Provider.ID, readErr)
		}
	}
}

func send(ctx context.Context, out chan<- models.Delta, deltas []models.Delta) error {
	for _, delta := range deltas {
		select {
		case out <- delta:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// open sends the shaped request. Transport failures are retried with
// exponential backoff; any HTTP response ends the retry loop.
func (r *Relay) open(ctx context.Context, route Route, logger *slog.Logger) (*http.Response, error) {
	var resp *http.Response

	operation := func() error {
		req, err := route.Request.HTTPRequest(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		res, err := r.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("%s request: %w", route.Provider.ID, redactURLError(err))
		}

		if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
			defer res.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
			return backoff.Permanent(&translator.UpstreamError{
				Provider:   route.Provider.ID,
				StatusCode: res.StatusCode,
				Body:       strings.TrimSpace(string(body)),
			})
		}

		resp = res
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.opts.RetryInitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(r.opts.MaxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		logger.Warn("retrying upstream request", "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return resp, nil
}

// redactURLError drops the query and userinfo from the URL quoted by a
// transport error. Some providers take the API key as a query parameter.
func redactURLError(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	return &url.Error{Op: uerr.Op, URL: redactURL(uerr.URL), Err: uerr.Err}
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func (r *Relay) observer(logger *slog.Logger) stream.Observer {
	return stream.ObserverFunc(func(frame []byte, err error) {
		r.stats.skipped.Add(1)
		if len(frame) > maxLoggedFrame {
			frame = frame[:maxLoggedFrame]
		}
		logger.Debug("skipped upstream frame", "error", err, "frame", string(frame))
	})
}
