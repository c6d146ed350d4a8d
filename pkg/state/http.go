package state

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
)

// HTTPStore reads a published prior-state feed. The document is fetched on
// first use and kept for the lifetime of the store. A feed that does not
// exist yet reads as empty.
type HTTPStore struct {
	url    string
	client *integrations.Client
	logger *log.Logger

	mu  sync.Mutex
	doc Document
}

// NewHTTPStore returns a store reading url.
func NewHTTPStore(url string, opts integrations.Options) *HTTPStore {
	return &HTTPStore{
		url:    url,
		client: opts.Client("state", nil),
		logger: opts.Log(),
	}
}

func (s *HTTPStore) load(ctx context.Context) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc != nil {
		return s.doc, nil
	}
	doc := Document{}
	if err := s.client.Get(ctx, s.url, &doc); err != nil {
		if !stderrors.Is(err, integrations.ErrNotFound) {
			return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetch prior state %s", s.url)
		}
		s.logger.Warn("no prior state published", "url", s.url)
	}
	s.doc = doc
	return doc, nil
}

// Get returns the published record of app.
func (s *HTTPStore) Get(ctx context.Context, app string) (Record, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return Record{}, err
	}
	return doc[app], nil
}

// Put always fails; the published feed is written by the release job.
func (s *HTTPStore) Put(context.Context, string, Record) error {
	return errors.New(errors.ErrCodeUnsupported, "state: %s is read-only", s.url)
}

// Close is a no-op.
func (s *HTTPStore) Close() error { return nil }

var _ Store = (*HTTPStore)(nil)
