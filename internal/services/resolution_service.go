// Package services contains the redirect resolution logic.
package services

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	customerrors "github.com/301redirect/redirector/internal/errors"
	"github.com/301redirect/redirector/internal/models"
	"github.com/301redirect/redirector/internal/repository"
	"github.com/301redirect/redirector/internal/resolver"
)

// HitRecorder queues a hit for a resolved subdomain without blocking.
type HitRecorder interface {
	Record(subdomain string) bool
}

// ResolutionOptions configures which domain is looked up and which apex it must point at.
type ResolutionOptions struct {
	ApexDomain string
	// FixedDomain, when set, is looked up instead of the inbound host.
	FixedDomain string
}

// ResolutionService turns an inbound host into a redirect record.
// It is safe for concurrent use as long as its collaborators are.
type ResolutionService struct {
	resolver resolver.CNAMEResolver
	repo     repository.RedirectRepository
	hits     HitRecorder
	opts     ResolutionOptions
	log      *zap.Logger
}

// NewResolutionService wires the resolution path together.
func NewResolutionService(r resolver.CNAMEResolver, repo repository.RedirectRepository, hits HitRecorder, opts ResolutionOptions, logger *zap.Logger) *ResolutionService {
	opts.ApexDomain = strings.TrimSuffix(strings.ToLower(opts.ApexDomain), ".")
	opts.FixedDomain = strings.ToLower(opts.FixedDomain)
	return &ResolutionService{
		resolver: r,
		repo:     repo,
		hits:     hits,
		opts:     opts,
		log:      logger.Named("resolution"),
	}
}

// Resolve finds the redirect for host. Any error means the request ends as NotFound:
// the DNS lookup failed, no answer pointed at the apex domain, the store is
// unavailable, or no record exists. On success a hit is queued for the record.
func (s *ResolutionService) Resolve(ctx context.Context, host string) (*models.Redirect, error) {
	subdomain, err := s.Subdomain(ctx, host)
	if err != nil {
		return nil, err
	}

	if !s.repo.Available() {
		s.log.Warn("store unavailable, cannot look up redirect", zap.String("subdomain", subdomain))
		return nil, customerrors.ErrStoreUnavailable
	}

	redirect, err := s.repo.FindBySubdomain(ctx, subdomain)
	if err != nil {
		if customerrors.IsNotFound(err) {
			s.log.Debug("no redirect for subdomain", zap.String("host", host), zap.String("subdomain", subdomain))
		} else {
			s.log.Warn("redirect lookup failed", zap.String("subdomain", subdomain), zap.Error(err))
		}
		return nil, err
	}

	if !s.hits.Record(redirect.Subdomain) {
		s.log.Warn("hit not recorded", zap.String("subdomain", redirect.Subdomain))
	}

	s.log.Info("redirecting", zap.String("host", host), zap.String("subdomain", redirect.Subdomain), zap.String("url", redirect.URL))
	return redirect, nil
}

// Subdomain performs the DNS half of Resolve: it looks up the CNAME answers for
// host (or the fixed domain) and extracts the registered subdomain token.
func (s *ResolutionService) Subdomain(ctx context.Context, host string) (string, error) {
	name, err := s.lookupName(host)
	if err != nil {
		s.log.Debug("host cannot be resolved", zap.String("host", host), zap.Error(err))
		return "", err
	}

	answers, err := s.resolver.ResolveCNAME(ctx, name)
	if err != nil {
		s.log.Warn("CNAME lookup failed", zap.String("name", name), zap.Error(err))
		return "", err
	}

	data := make([]string, 0, len(answers))
	for _, a := range answers {
		data = append(data, a.Data)
	}

	subdomain := ExtractSubdomain(data, s.opts.ApexDomain)
	if subdomain == "" {
		s.log.Debug("no CNAME answer points at the apex domain", zap.String("name", name), zap.Strings("answers", data))
		return "", customerrors.ErrNoCNAMEMatch
	}
	return subdomain, nil
}

func (s *ResolutionService) lookupName(host string) (string, error) {
	if s.opts.FixedDomain != "" {
		return s.opts.FixedDomain, nil
	}
	return NormalizeHost(host)
}

// NormalizeHost strips the port and trailing dot from a Host header and lowercases it.
// IP literals and names that are not valid DNS names are rejected.
func NormalizeHost(host string) (string, error) {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")

	if host == "" {
		return "", fmt.Errorf("%w: empty host", customerrors.ErrInvalidHost)
	}
	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		return "", fmt.Errorf("%w: %s is an IP address", customerrors.ErrInvalidHost, host)
	}
	if _, ok := dns.IsDomainName(host); !ok {
		return "", fmt.Errorf("%w: %q", customerrors.ErrInvalidHost, host)
	}
	return host, nil
}
