package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	customerrors "github.com/301redirect/redirector/internal/errors"
	"github.com/301redirect/redirector/internal/models"
	"github.com/301redirect/redirector/internal/resolver"
)

type fakeResolver struct {
	mu      sync.Mutex
	names   []string
	answers []resolver.Answer
	err     error
}

func (f *fakeResolver) ResolveCNAME(ctx context.Context, name string) ([]resolver.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	return f.answers, f.err
}

type fakeRepo struct {
	mu        sync.Mutex
	available bool
	records   map[string]*models.Redirect
	err       error
	lookups   int
}

func newFakeRepo(records ...*models.Redirect) *fakeRepo {
	r := &fakeRepo{available: true, records: make(map[string]*models.Redirect)}
	for _, rec := range records {
		r.records[rec.Subdomain] = rec
	}
	return r
}

func (f *fakeRepo) Available() bool { return f.available }

func (f *fakeRepo) FindBySubdomain(ctx context.Context, subdomain string) (*models.Redirect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[subdomain]
	if !ok {
		return nil, customerrors.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRepo) IncrementHits(ctx context.Context, subdomain string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[subdomain]
	if !ok {
		return customerrors.ErrRecordNotFound
	}
	rec.Hits++
	return nil
}

func (f *fakeRepo) ListRedirects(ctx context.Context) ([]models.Redirect, error) {
	return nil, nil
}

func (f *fakeRepo) Lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

type fakeHits struct {
	mu       sync.Mutex
	recorded []string
}

func (f *fakeHits) Record(subdomain string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, subdomain)
	return true
}

func cnames(data ...string) []resolver.Answer {
	answers := make([]resolver.Answer, 0, len(data))
	for _, d := range data {
		answers = append(answers, resolver.Answer{Type: 5, TTL: 300, Data: d})
	}
	return answers
}

func TestResolveFound(t *testing.T) {
	res := &fakeResolver{answers: cnames("blog.apex.com.")}
	repo := newFakeRepo(&models.Redirect{ID: 1, Subdomain: "blog", URL: "https://example.org/blog", Hits: 5})
	hits := &fakeHits{}
	svc := NewResolutionService(res, repo, hits, ResolutionOptions{ApexDomain: "apex.com"}, zaptest.NewLogger(t))

	got, err := svc.Resolve(context.Background(), "WWW.Customer.com:8080")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.URL != "https://example.org/blog" {
		t.Errorf("URL = %q", got.URL)
	}
	if len(res.names) != 1 || res.names[0] != "www.customer.com" {
		t.Errorf("looked up %v, want [www.customer.com]", res.names)
	}
	if len(hits.recorded) != 1 || hits.recorded[0] != "blog" {
		t.Errorf("recorded hits %v, want [blog]", hits.recorded)
	}
}

func TestResolveFixedDomain(t *testing.T) {
	res := &fakeResolver{answers: cnames("blog.apex.com.")}
	repo := newFakeRepo(&models.Redirect{Subdomain: "blog", URL: "https://example.org/blog"})
	svc := NewResolutionService(res, repo, &fakeHits{}, ResolutionOptions{ApexDomain: "apex.com", FixedDomain: "Probe.Example.com"}, zaptest.NewLogger(t))

	if _, err := svc.Resolve(context.Background(), "www.customer.com"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(res.names) != 1 || res.names[0] != "probe.example.com" {
		t.Errorf("looked up %v, want [probe.example.com]", res.names)
	}
}

func TestResolveNotFoundPaths(t *testing.T) {
	record := &models.Redirect{Subdomain: "blog", URL: "https://example.org/blog"}

	tests := []struct {
		name        string
		host        string
		resolver    *fakeResolver
		repo        *fakeRepo
		wantErr     error
		wantLookups int
		wantQueries int
	}{
		{
			name:        "dns transport error",
			host:        "www.customer.com",
			resolver:    &fakeResolver{err: &customerrors.ErrResolveFailed{Domain: "www.customer.com", Reason: "boom"}},
			repo:        newFakeRepo(record),
			wantLookups: 0,
			wantQueries: 1,
		},
		{
			name:        "no answer points at apex",
			host:        "www.customer.com",
			resolver:    &fakeResolver{answers: cnames("edge.cdn.example.net.")},
			repo:        newFakeRepo(record),
			wantErr:     customerrors.ErrNoCNAMEMatch,
			wantLookups: 0,
			wantQueries: 1,
		},
		{
			name:        "no answers at all",
			host:        "www.customer.com",
			resolver:    &fakeResolver{},
			repo:        newFakeRepo(record),
			wantErr:     customerrors.ErrNoCNAMEMatch,
			wantLookups: 0,
			wantQueries: 1,
		},
		{
			name:        "no record",
			host:        "www.customer.com",
			resolver:    &fakeResolver{answers: cnames("shop.apex.com.")},
			repo:        newFakeRepo(record),
			wantErr:     customerrors.ErrRecordNotFound,
			wantLookups: 1,
			wantQueries: 1,
		},
		{
			name:        "store error",
			host:        "www.customer.com",
			resolver:    &fakeResolver{answers: cnames("blog.apex.com.")},
			repo:        &fakeRepo{available: true, err: errors.New("connection reset")},
			wantLookups: 1,
			wantQueries: 1,
		},
		{
			name:        "store unavailable",
			host:        "www.customer.com",
			resolver:    &fakeResolver{answers: cnames("blog.apex.com.")},
			repo:        &fakeRepo{available: false},
			wantErr:     customerrors.ErrStoreUnavailable,
			wantLookups: 0,
			wantQueries: 1,
		},
		{
			name:        "ip host",
			host:        "192.0.2.10:3000",
			resolver:    &fakeResolver{answers: cnames("blog.apex.com.")},
			repo:        newFakeRepo(record),
			wantErr:     customerrors.ErrInvalidHost,
			wantLookups: 0,
			wantQueries: 0,
		},
		{
			name:        "empty host",
			host:        "",
			resolver:    &fakeResolver{answers: cnames("blog.apex.com.")},
			repo:        newFakeRepo(record),
			wantErr:     customerrors.ErrInvalidHost,
			wantLookups: 0,
			wantQueries: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := &fakeHits{}
			svc := NewResolutionService(tt.resolver, tt.repo, hits, ResolutionOptions{ApexDomain: "apex.com"}, zaptest.NewLogger(t))

			got, err := svc.Resolve(context.Background(), tt.host)
			if err == nil {
				t.Fatalf("expected an error, got %+v", got)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if n := tt.repo.Lookups(); n != tt.wantLookups {
				t.Errorf("store lookups = %d, want %d", n, tt.wantLookups)
			}
			if n := len(tt.resolver.names); n != tt.wantQueries {
				t.Errorf("DNS queries = %d, want %d", n, tt.wantQueries)
			}
			if len(hits.recorded) != 0 {
				t.Errorf("hits recorded on a NotFound path: %v", hits.recorded)
			}
		})
	}
}

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		host    string
		want    string
		wantErr bool
	}{
		{host: "www.customer.com", want: "www.customer.com"},
		{host: "WWW.Customer.COM.", want: "www.customer.com"},
		{host: "customer.com:8443", want: "customer.com"},
		{host: "  customer.com ", want: "customer.com"},
		{host: "", wantErr: true},
		{host: "127.0.0.1", wantErr: true},
		{host: "[::1]:80", wantErr: true},
		{host: "bad..name", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got, err := NormalizeHost(tt.host)
			if tt.wantErr {
				if !errors.Is(err, customerrors.ErrInvalidHost) {
					t.Errorf("NormalizeHost(%q) error = %v, want ErrInvalidHost", tt.host, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeHost(%q) error = %v", tt.host, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeHost(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}
