package k8s

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io/fs"
	"os"

	certutil "k8s.io/client-go/util/cert"

	"github.com/giantswarm/kubewire/internal/logging"
)

// systemCertPool is swapped in tests.
var systemCertPool = x509.SystemCertPool

// Trust sources reported by TrustPolicy.Source.
const (
	TrustSourceCAFile = "ca-file"
	TrustSourceSystem = "system"
)

// TrustPolicy is the TLS configuration the connection pool is built with.
type TrustPolicy struct {
	TLSConfig *tls.Config
	Source    string
	// CAFile is the bundle in use when Source is TrustSourceCAFile.
	CAFile string
}

// newTrustPolicy builds the policy from a CA bundle path. An empty path means
// the in-cluster default. Any problem with the bundle falls back to the
// platform trust store and is only logged.
func newTrustPolicy(caFile string, logger Logger) TrustPolicy {
	explicit := caFile != ""
	if !explicit {
		caFile = DefaultCACertPath
	}

	pool, err := loadCABundle(caFile)
	if err == nil {
		return TrustPolicy{
			TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, RootCAs: pool},
			Source:    TrustSourceCAFile,
			CAFile:    caFile,
		}
	}

	if !explicit && errors.Is(err, fs.ErrNotExist) {
		logger.Debug("No in-cluster CA bundle, using system trust store", "path", caFile)
	} else {
		logger.Warn("CA bundle unusable, falling back to system trust store", "path", caFile, logging.Err(err))
	}

	return TrustPolicy{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, RootCAs: systemPool(logger)},
		Source:    TrustSourceSystem,
	}
}

func loadCABundle(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return certutil.NewPoolFromBytes(data)
}

// systemPool returns the platform roots. A nil pool makes crypto/tls use the
// platform verifier directly, which is what we want when the pool cannot be
// loaded (e.g. on Windows).
func systemPool(logger Logger) *x509.CertPool {
	pool, err := systemCertPool()
	if err != nil {
		logger.Debug("System cert pool unavailable, using platform verifier", logging.Err(err))
		return nil
	}
	return pool
}
