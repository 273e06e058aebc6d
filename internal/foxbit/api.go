package foxbit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/danielsussa/foxbit-rest-v3/internal/signer"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL      = "https://api.foxbit.com.br"
	DefaultHeaderPrefix = "X-"

	headerKey       = "ACCESS-KEY"
	headerTimestamp = "ACCESS-TIMESTAMP"
	headerSignature = "ACCESS-SIGNATURE"
	contentTypeJSON = "application/json"
)

type Api struct {
	BaseURL      string
	HeaderPrefix string

	cli    *resty.Client
	creds  signer.Credentials
	now    signer.Clock
	signer *signer.Signer
	logger zerolog.Logger
}

type Option func(a *Api)

// WithHeaderPrefix changes the prefix of the three auth headers
// ("X-FB-" gives X-FB-ACCESS-KEY and friends).
func WithHeaderPrefix(prefix string) Option {
	return func(a *Api) {
		a.HeaderPrefix = prefix
	}
}

// WithHTTPClient swaps the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *Api) {
		a.cli = resty.NewWithClient(hc)
	}
}

func WithClock(now signer.Clock) Option {
	return func(a *Api) {
		a.now = now
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(a *Api) {
		a.logger = l
	}
}

// NewApi fails with a *signer.ConfigurationError when key or secret is empty.
func NewApi(baseURL string, creds signer.Credentials, opts ...Option) (*Api, error) {
	if creds.Key == "" {
		return nil, &signer.ConfigurationError{Name: "API_KEY"}
	}
	if creds.Secret == "" {
		return nil, &signer.ConfigurationError{Name: "API_SECRET"}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	a := &Api{
		BaseURL:      baseURL,
		HeaderPrefix: DefaultHeaderPrefix,
		cli:          resty.New(),
		creds:        creds,
		now:          time.Now,
		logger:       log.Logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.signer = signer.New(a.creds, a.now)

	// one request per call
	a.cli.
		SetBaseURL(a.BaseURL).
		SetRetryCount(0).
		SetAllowGetMethodPayload(true).
		SetLogger(restyLogger{l: a.logger})

	return a, nil
}

// Request signs and sends one call and returns the decoded JSON body
// (nil for an empty body).
func (a *Api) Request(ctx context.Context, method, path string, params map[string]string, body any) (any, error) {
	var result any
	if err := a.Do(ctx, method, path, params, body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Do is Request decoding into result. A nil result discards the body.
func (a *Api) Do(ctx context.Context, method, path string, params map[string]string, body any, result any) error {
	method = strings.ToUpper(method)
	a.logger.Info().Str("method", method).Str("path", path).Msg("requesting")

	env, err := a.signer.Sign(signer.Request{
		Method: method,
		Path:   path,
		Params: params,
		Body:   body,
	})
	if err != nil {
		a.logger.Error().Err(err).Str("path", path).Msg("sign failed")
		return err
	}
	a.logger.Debug().Str("preHash", env.PreHash).Str("signature", env.Signature).Msg("signed")

	req := a.cli.R().
		SetContext(ctx).
		SetHeader(a.HeaderPrefix+headerKey, a.signer.Key()).
		SetHeader(a.HeaderPrefix+headerTimestamp, env.Timestamp).
		SetHeader(a.HeaderPrefix+headerSignature, env.Signature).
		SetHeader("Content-Type", contentTypeJSON).
		SetHeader("Accept", contentTypeJSON)
	if env.Query != "" {
		req.SetQueryString(env.Query)
	}
	if env.Body != nil {
		req.SetBody(env.Body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		reqErr := &RequestError{Method: method, Path: path, Err: err}
		a.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return reqErr
	}

	raw := resp.Body()
	if resp.IsError() {
		httpErr := newHTTPError(resp.StatusCode(), raw)
		a.logger.Error().
			Int("status", resp.StatusCode()).
			Str("body", string(raw)).
			Str("method", method).
			Str("path", path).
			Msg("request rejected")
		return httpErr
	}

	if result != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			a.logger.Error().Err(err).Str("body", string(raw)).Msg("malformed response")
			return &RequestError{Method: method, Path: path, Err: err}
		}
	}

	a.logger.Info().Int("status", resp.StatusCode()).Str("method", method).Str("path", path).Msg("done")
	return nil
}

type restyLogger struct {
	l zerolog.Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) { r.l.Error().Msgf(format, v...) }
func (r restyLogger) Warnf(format string, v ...interface{})  { r.l.Warn().Msgf(format, v...) }
func (r restyLogger) Debugf(format string, v ...interface{}) { r.l.Debug().Msgf(format, v...) }
