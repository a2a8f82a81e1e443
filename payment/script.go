package payment

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// SnapScriptID is the DOM id of the snap.js tag; pages must not inject it twice
const SnapScriptID = "midtrans-script"

var ErrScriptUnavailable = errors.New("payment script could not be loaded")

// ScriptLoader makes the hosted widget script available
type ScriptLoader interface {
	Load(ctx context.Context) error
}

// SnapScript checks that snap.js is reachable before anyone tries to open a
// payment window. A success is remembered for the life of the process, a
// failure only for retryAfter.
type SnapScript struct {
	url        string
	clientKey  string
	client     *http.Client
	retryAfter time.Duration
	now        func() time.Time

	mu       sync.Mutex
	loaded   bool
	failedAt time.Time
	lastErr  error
}

func NewSnapScript(cfg MidtransConfig) *SnapScript {
	return &SnapScript{
		url:        cfg.ScriptURL(),
		clientKey:  cfg.ClientKey,
		client:     &http.Client{Timeout: 10 * time.Second},
		retryAfter: time.Minute,
		now:        time.Now,
	}
}

func (s *SnapScript) URL() string {
	return s.url
}

func (s *SnapScript) ClientKey() string {
	return s.clientKey
}

// Tag renders the script element for server rendered pages
func (s *SnapScript) Tag() string {
	return fmt.Sprintf(`<script id="%s" src="%s" data-client-key="%s"></script>`,
		SnapScriptID, html.EscapeString(s.url), html.EscapeString(s.clientKey))
}

func (s *SnapScript) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return nil
	}
	if s.lastErr != nil && s.now().Sub(s.failedAt) < s.retryAfter {
		return s.lastErr
	}

	if err := s.probe(ctx); err != nil {
		s.failedAt = s.now()
		s.lastErr = errors.Wrapf(ErrScriptUnavailable, "%v", err)
		return s.lastErr
	}
	s.loaded = true
	s.lastErr = nil
	return nil
}

func (s *SnapScript) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("GET %s: status %d", s.url, resp.StatusCode)
	}
	return nil
}
