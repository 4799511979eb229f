// Package inference submits clips to a hosted emotion recognition endpoint.
package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/garlicgarrison/go-emotion-recorder/emotion"
	"github.com/garlicgarrison/go-emotion-recorder/logging"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultContentType = "audio/wav"

	maxErrorBody = 256
)

var ErrMissingEndpoint = errors.New("inference endpoint is not configured")

// StatusError is returned for any non-2xx response. It only affects the clip
// that was being analyzed.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("inference endpoint responded %s", e.Status)
	}
	return fmt.Sprintf("inference endpoint responded %s: %s", e.Status, e.Body)
}

type Config struct {
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint" validate:"required,url"`
	Token       string        `mapstructure:"token" yaml:"token"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	ContentType string        `mapstructure:"content_type" yaml:"content_type"`
	// Positional VAD slots in array responses, -1 to disable.
	ValenceIndex int `mapstructure:"valence_index" yaml:"valence_index" validate:"gte=-1"`
	ArousalIndex int `mapstructure:"arousal_index" yaml:"arousal_index" validate:"gte=-1"`
}

func DefaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		ContentType:  DefaultContentType,
		ValenceIndex: -1,
		ArousalIndex: -1,
	}
}

type Client struct {
	cfg  Config
	http *resty.Client
	log  logrus.FieldLogger
}

func New(cfg Config, log logrus.FieldLogger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ContentType == "" {
		cfg.ContentType = DefaultContentType
	}

	hc := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", cfg.ContentType)
	if cfg.Token != "" {
		hc.SetAuthToken(cfg.Token)
	}

	return &Client{
		cfg:  cfg,
		http: hc,
		log:  logging.For(log, logging.CategoryInference),
	}, nil
}

// Analyze posts one wav clip and parses the scores. There is no retry: a
// failed clip is simply skipped by the caller.
func (c *Client) Analyze(ctx context.Context, wav []byte) (emotion.Result, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(wav).
		Post(c.cfg.Endpoint)
	if err != nil {
		return emotion.Result{}, fmt.Errorf("post clip: %w", err)
	}

	if !resp.IsSuccess() {
		status := resp.Status()
		if status == "" {
			status = fmt.Sprintf("%d %s", resp.StatusCode(), http.StatusText(resp.StatusCode()))
		}
		return emotion.Result{}, &StatusError{
			StatusCode: resp.StatusCode(),
			Status:     status,
			Body:       truncate(resp.String()),
		}
	}

	r, err := Parse(resp.Body(), ParseOptions{
		ValenceIndex: c.cfg.ValenceIndex,
		ArousalIndex: c.cfg.ArousalIndex,
	})
	if err != nil {
		return emotion.Result{}, fmt.Errorf("%w: %s", err, truncate(resp.String()))
	}

	c.log.WithFields(logrus.Fields{
		"scores":  len(r.Scores),
		"vad":     r.VAD != nil,
		"latency": resp.Time(),
	}).Debug("clip analyzed")
	return r, nil
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
