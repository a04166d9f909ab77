package courier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/atalanta-labs/wikibatch/internal/domain"
	"github.com/atalanta-labs/wikibatch/internal/transport"
	"github.com/atalanta-labs/wikibatch/pkg/log"
)

// Default endpoints for entity lookups. MediaInfo entities live on Commons,
// everything else on Wikidata.
const (
	DefaultEntityEndpoint = "https://www.wikidata.org/w/api.php"
	DefaultMediaEndpoint  = "https://commons.wikimedia.org/w/api.php"
)

// schemaTitlePrefix namespaces EntitySchema page titles for action=query.
const schemaTitlePrefix = "EntitySchema:"

// Options configures the batch courier.
type Options struct {
	// BatchThreshold caps identifiers per physical request chunk.
	BatchThreshold int

	// Language and fallback behavior for labels and descriptions.
	Language string

	// EntityProps is the field list requested from wbgetentities.
	EntityProps []string

	// SchemaProps is the field list requested for EntitySchema lookups.
	SchemaProps []string

	EntityEndpoint string
	MediaEndpoint  string
}

// DefaultOptions returns courier options matching the public Wikidata API.
func DefaultOptions() Options {
	return Options{
		BatchThreshold: 50,
		Language:       "en",
		EntityProps: []string{
			"aliases", "claims", "datatype", "descriptions",
			"info", "labels", "sitelinks/urls",
		},
		SchemaProps:    []string{"info", "revisions"},
		EntityEndpoint: DefaultEntityEndpoint,
		MediaEndpoint:  DefaultMediaEndpoint,
	}
}

// Courier converts identifier batches into physical API calls and merges the
// partial responses. It implements ports.Courier.
type Courier struct {
	opts      Options
	transport *transport.Transport
	logger    log.Logger
}

// New creates a courier over the given transport.
func New(opts Options, tr *transport.Transport, logger log.Logger) *Courier {
	if logger == nil {
		logger = log.NewNoop()
	}
	return &Courier{opts: opts, transport: tr, logger: logger}
}

// Fetch retrieves entity data for the given canonical identifiers.
//
// The batch is split into chunks of at most BatchThreshold identifiers.
// Within a chunk, identifiers whose detected kind does not match the
// requested kind are silently dropped, which guards against
// cross-contaminated queues. One GET is issued per chunk, including chunks
// emptied by filtering, and the chunk responses are merged right-biased into
// a single object. A chunk failure aborts the whole fetch.
func (c *Courier) Fetch(ctx context.Context, batch []string, kind domain.Kind) (map[string]any, error) {
	combined := map[string]any{}
	if len(batch) == 0 {
		return combined, nil
	}

	endpoint := c.opts.EntityEndpoint
	if kind == domain.KindMediaInfo {
		endpoint = c.opts.MediaEndpoint
	}
	schema := kind == domain.KindEntitySchema
	props := Join(c.opts.EntityProps, "|")
	if schema {
		props = Join(c.opts.SchemaProps, "|")
	}

	for start := 0; start < len(batch); start += c.opts.BatchThreshold {
		end := min(start+c.opts.BatchThreshold, len(batch))

		chunk := make([]string, 0, end-start)
		for _, id := range batch[start:end] {
			if domain.Identify(id) != kind {
				c.logger.Debug("dropping mismatched identifier",
					log.String("id", id), log.String("kind", kind.String()))
				continue
			}
			if schema {
				id = schemaTitlePrefix + id
			}
			chunk = append(chunk, id)
		}

		params := c.baseParams(schema)
		if schema {
			params.Set("titles", Join(chunk, "|"))
			params.Set("prop", props)
		} else {
			params.Set("ids", Join(chunk, "|"))
			params.Set("props", props)
		}

		resp, err := c.transport.Get(ctx, endpoint, params)
		if err != nil {
			return nil, fmt.Errorf("fetch %s batch: %w", kind, err)
		}

		var data any
		if err := json.Unmarshal(resp.Body, &data); err != nil {
			return nil, fmt.Errorf("parse %s batch response: %w", kind, err)
		}
		obj, ok := data.(map[string]any)
		if !ok {
			continue
		}
		combined = Merge(combined, obj)
	}
	return combined, nil
}

// baseParams builds the fixed locale/format parameter bundle plus the action.
func (c *Courier) baseParams(schema bool) url.Values {
	params := url.Values{}
	params.Set("languages", c.opts.Language)
	params.Set("languagefallback", "1")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("rvslots", "main")
	params.Set("rvprop", "content")
	params.Set("normalize", "1")
	if schema {
		params.Set("action", "query")
	} else {
		params.Set("action", "wbgetentities")
	}
	return params
}

// Join concatenates ids with the separator, "|" being the API's list
// separator. Empty input yields an empty string. No escaping happens here;
// parameter encoding is the transport's responsibility.
func Join(ids []string, separator string) string {
	return strings.Join(ids, separator)
}
