package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/caddyserver/certmagic"
)

// CertManager provisions TLS certificates via ACME for a fixed allowlist
// of domains. On-demand requests for anything outside the allowlist are
// refused, so a stray SNI cannot trigger issuance.
type CertManager struct {
	allowed map[string]struct{}
	domains []string
	logger  *slog.Logger
	cfg     *certmagic.Config
}

// NewCertManager builds a CertManager for the configured domains. Unless
// production is set, certificates come from the Let's Encrypt staging CA.
func NewCertManager(domains []string, email string, production bool, logger *slog.Logger) *CertManager {
	certmagic.DefaultACME.Email = email
	certmagic.DefaultACME.Agreed = true
	if !production {
		certmagic.DefaultACME.CA = certmagic.LetsEncryptStagingCA
	}

	allowed := make(map[string]struct{}, len(domains))
	var kept []string
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		allowed[d] = struct{}{}
		kept = append(kept, d)
	}

	cfg := certmagic.NewDefault()
	cm := &CertManager{allowed: allowed, domains: kept, logger: logger, cfg: cfg}

	cfg.OnDemand = &certmagic.OnDemandConfig{
		DecisionFunc: cm.allowCert,
	}

	return cm
}

// allowCert is the on-demand decision function. Only allowlisted domains
// get certificates.
func (cm *CertManager) allowCert(_ context.Context, name string) error {
	if _, ok := cm.allowed[strings.ToLower(name)]; !ok {
		return fmt.Errorf("domain not configured for TLS: %s", name)
	}
	return nil
}

// ListenAndServe pre-provisions certificates for the allowlisted domains
// and serves the handler over TLS on the HTTPS port.
func (cm *CertManager) ListenAndServe(handler http.Handler) error {
	cm.logger.Info("starting TLS server", "domains", cm.domains)

	if len(cm.domains) > 0 {
		if err := cm.cfg.ManageSync(context.Background(), cm.domains); err != nil {
			return fmt.Errorf("manage domains: %w", err)
		}
	}

	tlsCfg := cm.cfg.TLSConfig()
	ln, err := tls.Listen("tcp", fmt.Sprintf(":%d", certmagic.HTTPSPort), tlsCfg)
	if err != nil {
		return fmt.Errorf("tls listen: %w", err)
	}

	cm.logger.Info("serving HTTPS", "port", certmagic.HTTPSPort)
	return http.Serve(ln, handler)
}

// TLSConfig returns the certmagic config for use with custom listeners.
func (cm *CertManager) TLSConfig() *certmagic.Config {
	return cm.cfg
}
