// Package k8s is a typed client for the Kubernetes REST API.
//
// A Client resolves who to talk to and as whom on first use: the API server
// address, a bearer token and a default namespace come from explicit
// configuration, then from the in-cluster service account files and
// environment. The CA bundle is loaded the same way; when it is unusable the
// client logs a warning and falls back to the platform trust store.
//
// Operations are generic over the schema type, so callers bring their own
// structs (k8s.io/api types, Object envelopes or unstructured objects):
//
//	pod, err := k8s.Get[corev1.Pod](ctx, client, k8s.Pods, "", "web-0")
//	if k8s.IsNotFound(err) {
//		...
//	}
//
// Watch and StreamLogs return a Stream that delivers items on a channel
// until the body ends, the caller stops it or the client is closed:
//
//	s, err := k8s.Watch[corev1.Pod](ctx, client, k8s.Pods, "", k8s.WatchOptions{})
//	if err != nil {
//		return err
//	}
//	defer s.Stop()
//	for ev := range s.Items() {
//		fmt.Println(ev.Type, ev.Object.Name)
//	}
//	return s.Err()
//
// Every error returned by the package is one of AuthenticationError,
// NotFoundError, APIError, ClientError or ConfigError; use KindOf or
// errors.As to tell them apart. Nothing is retried or cached.
package k8s
