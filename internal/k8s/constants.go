package k8s

const (
	// Service account paths - default Kubernetes in-cluster locations
	DefaultServiceAccountPath = "/var/run/secrets/kubernetes.io/serviceaccount"
	DefaultTokenPath          = DefaultServiceAccountPath + "/token"
	DefaultCACertPath         = DefaultServiceAccountPath + "/ca.crt"
	DefaultNamespacePath      = DefaultServiceAccountPath + "/namespace"

	// In-cluster API server discovery
	EnvServiceHost       = "KUBERNETES_SERVICE_HOST"
	EnvServicePort       = "KUBERNETES_SERVICE_PORT"
	DefaultInClusterHost = "kubernetes.default.svc"
	DefaultInClusterPort = "443"

	DefaultNamespace = "default"

	// Default request settings
	DefaultTimeout                  = 30 // seconds
	DefaultGracePeriodSeconds int64 = 30
	DefaultUserAgent                = "kubewire"

	// maxErrorBodyBytes caps how much of a failed response body is kept.
	maxErrorBodyBytes = 1 << 20

	unreadableBody = "<unreadable response body>"
)
