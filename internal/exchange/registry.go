package exchange

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"

	"exchangelink/internal/errs"
	"exchangelink/models"
)

// ClientConfig is what a Constructor needs to build one client.
type ClientConfig struct {
	Credentials models.Credentials
	Sandbox     bool
	BaseURL     string
	HTTPClient  *http.Client
	Transport   TransportOptions
}

// Constructor builds a client for one exchange.
type Constructor func(cfg ClientConfig) (Client, error)

// Endpoint overrides the REST base URLs of one exchange.
type Endpoint struct {
	URL        string
	SandboxURL string
}

// Options configures a Registry.
type Options struct {
	Transport TransportOptions
	Endpoints map[string]Endpoint
}

// Registry is the process-wide catalogue of supported exchanges. It serves
// exchange metadata and builds clients for them.
type Registry struct {
	mu           sync.RWMutex
	descriptors  map[string]Descriptor
	constructors map[string]Constructor
	aliases      map[string]string
	endpoints    map[string]Endpoint
	transport    TransportOptions
	httpClient   *http.Client
}

// NewRegistry returns a registry with the built-in exchanges registered.
func NewRegistry(opts Options) *Registry {
	endpoints := make(map[string]Endpoint, len(opts.Endpoints))
	for k, v := range opts.Endpoints {
		endpoints[strings.ToLower(k)] = v
	}
	r := &Registry{
		descriptors:  make(map[string]Descriptor),
		constructors: make(map[string]Constructor),
		aliases: map[string]string{
			"binance-spot":   "binance",
			"bybit-v5":       "bybit",
			"kucoinfutures":  "kucoin",
			"kucoin-futures": "kucoin",
		},
		endpoints:  endpoints,
		transport:  opts.Transport,
		httpClient: NewHTTPClient(opts.Transport),
	}
	r.Register(binanceDescriptor, newBinanceClient)
	r.Register(bybitDescriptor, newBybitClient)
	r.Register(kucoinDescriptor, newKucoinClient)
	return r
}

// Register adds or replaces an exchange.
func (r *Registry) Register(d Descriptor, ctor Constructor) {
	id := strings.ToLower(d.ID)
	d.ID = id
	r.mu.Lock()
	r.descriptors[id] = d
	r.constructors[id] = ctor
	r.mu.Unlock()
}

// ResolveExchangeID maps a slug or alias to the registry id. Unknown slugs
// are returned lowercased.
func (r *Registry) ResolveExchangeID(slug string) string {
	id := strings.ToLower(strings.TrimSpace(slug))
	r.mu.RLock()
	defer r.mu.RUnlock()
	if alias, ok := r.aliases[id]; ok {
		return alias
	}
	return id
}

// GetExchangeBySlug returns the descriptor for slug or nil.
func (r *Registry) GetExchangeBySlug(slug string) *Descriptor {
	id := r.ResolveExchangeID(slug)
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[id]
	if !ok {
		return nil
	}
	return &d
}

// GetExchangeInfo returns the capability description for slug.
func (r *Registry) GetExchangeInfo(slug string) (Info, error) {
	d := r.GetExchangeBySlug(slug)
	if d == nil {
		return Info{}, errs.NotFound("exchange %q is not supported", slug)
	}
	return d.Info(), nil
}

// Exchanges lists every registered descriptor ordered by id.
func (r *Registry) Exchanges() []Descriptor {
	r.mu.RLock()
	out := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NewClient constructs a rate limited client for slug. No network traffic
// happens here.
func (r *Registry) NewClient(slug string, creds models.Credentials, sandbox bool) (Client, error) {
	id := r.ResolveExchangeID(slug)
	r.mu.RLock()
	d, ok := r.descriptors[id]
	ctor := r.constructors[id]
	ep := r.endpoints[id]
	r.mu.RUnlock()
	if !ok || ctor == nil {
		return nil, errs.NotFound("exchange %q is not supported", slug)
	}
	if sandbox && !d.SupportsSandbox {
		return nil, errs.Validation("%s has no sandbox environment", d.DisplayName)
	}

	baseURL := ep.URL
	if sandbox {
		baseURL = ep.SandboxURL
	}
	client, err := ctor(ClientConfig{
		Credentials: creds,
		Sandbox:     sandbox,
		BaseURL:     baseURL,
		HTTPClient:  r.httpClient,
		Transport:   r.transport,
	})
	if err != nil {
		var classified *errs.Error
		if errors.As(err, &classified) {
			return nil, err
		}
		return nil, errs.Connectivity(err, "%s: building client", id)
	}
	return WithRateLimit(client, d.RateLimitMs), nil
}
