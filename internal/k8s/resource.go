package k8s

import (
	"net/url"
	"strings"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Resource describes where a kind of object lives in the API.
type Resource struct {
	Group      string
	Version    string
	Plural     string
	Kind       string
	Namespaced bool
}

// GroupVersionResource converts r to its apimachinery form.
func (r Resource) GroupVersionResource() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: r.Group, Version: r.Version, Resource: r.Plural}
}

// APIVersion returns the apiVersion field value, "v1" or "group/version".
func (r Resource) APIVersion() string {
	return schema.GroupVersion{Group: r.Group, Version: r.Version}.String()
}

// Path builds the request path for r. An empty namespace produces the
// all-namespaces form; cluster-scoped resources never get a namespace
// segment. An empty name addresses the collection.
//
//	/api/v1/namespaces/{ns}/{plural}/{name}/{subresource}
//	/apis/{group}/{version}/namespaces/{ns}/{plural}/{name}
func (r Resource) Path(namespace, name string, subresource ...string) string {
	var b strings.Builder
	if r.Group == "" {
		b.WriteString("/api/")
		b.WriteString(url.PathEscape(r.Version))
	} else {
		b.WriteString("/apis/")
		b.WriteString(url.PathEscape(r.Group))
		b.WriteByte('/')
		b.WriteString(url.PathEscape(r.Version))
	}
	if r.Namespaced && namespace != "" {
		b.WriteString("/namespaces/")
		b.WriteString(url.PathEscape(namespace))
	}
	b.WriteByte('/')
	b.WriteString(url.PathEscape(r.Plural))
	if name != "" {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(name))
		for _, s := range subresource {
			b.WriteByte('/')
			b.WriteString(url.PathEscape(s))
		}
	}
	return b.String()
}

// Built-in resource descriptors.
var (
	Pods            = Resource{Version: "v1", Plural: "pods", Kind: "Pod", Namespaced: true}
	Services        = Resource{Version: "v1", Plural: "services", Kind: "Service", Namespaced: true}
	ConfigMaps      = Resource{Version: "v1", Plural: "configmaps", Kind: "ConfigMap", Namespaced: true}
	Secrets         = Resource{Version: "v1", Plural: "secrets", Kind: "Secret", Namespaced: true}
	ResourceQuotas  = Resource{Version: "v1", Plural: "resourcequotas", Kind: "ResourceQuota", Namespaced: true}
	ServiceAccounts = Resource{Version: "v1", Plural: "serviceaccounts", Kind: "ServiceAccount", Namespaced: true}
	Events          = Resource{Version: "v1", Plural: "events", Kind: "Event", Namespaced: true}
	Namespaces      = Resource{Version: "v1", Plural: "namespaces", Kind: "Namespace"}
	Nodes           = Resource{Version: "v1", Plural: "nodes", Kind: "Node"}

	Deployments  = Resource{Group: "apps", Version: "v1", Plural: "deployments", Kind: "Deployment", Namespaced: true}
	ReplicaSets  = Resource{Group: "apps", Version: "v1", Plural: "replicasets", Kind: "ReplicaSet", Namespaced: true}
	StatefulSets = Resource{Group: "apps", Version: "v1", Plural: "statefulsets", Kind: "StatefulSet", Namespaced: true}
	DaemonSets   = Resource{Group: "apps", Version: "v1", Plural: "daemonsets", Kind: "DaemonSet", Namespaced: true}

	Jobs     = Resource{Group: "batch", Version: "v1", Plural: "jobs", Kind: "Job", Namespaced: true}
	CronJobs = Resource{Group: "batch", Version: "v1", Plural: "cronjobs", Kind: "CronJob", Namespaced: true}

	Ingresses = Resource{Group: "networking.k8s.io", Version: "v1", Plural: "ingresses", Kind: "Ingress", Namespaced: true}
)

// builtinResources maps kubectl-style names and short names to descriptors.
var builtinResources = map[string]Resource{
	"pods": Pods, "pod": Pods, "po": Pods,
	"services": Services, "service": Services, "svc": Services,
	"configmaps": ConfigMaps, "configmap": ConfigMaps, "cm": ConfigMaps,
	"secrets": Secrets, "secret": Secrets,
	"resourcequotas": ResourceQuotas, "resourcequota": ResourceQuotas, "quota": ResourceQuotas,
	"serviceaccounts": ServiceAccounts, "serviceaccount": ServiceAccounts, "sa": ServiceAccounts,
	"events": Events, "event": Events, "ev": Events,
	"namespaces": Namespaces, "namespace": Namespaces, "ns": Namespaces,
	"nodes": Nodes, "node": Nodes, "no": Nodes,

	"deployments": Deployments, "deployment": Deployments, "deploy": Deployments,
	"replicasets": ReplicaSets, "replicaset": ReplicaSets, "rs": ReplicaSets,
	"statefulsets": StatefulSets, "statefulset": StatefulSets, "sts": StatefulSets,
	"daemonsets": DaemonSets, "daemonset": DaemonSets, "ds": DaemonSets,

	"jobs": Jobs, "job": Jobs,
	"cronjobs": CronJobs, "cronjob": CronJobs, "cj": CronJobs,

	"ingresses": Ingresses, "ingress": Ingresses, "ing": Ingresses,
}

// LookupResource resolves a plural, singular, short or "plural.group" name
// case-insensitively.
func LookupResource(name string) (Resource, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if r, ok := builtinResources[key]; ok {
		return r, true
	}
	if plural, group, ok := strings.Cut(key, "."); ok {
		if r, ok := builtinResources[plural]; ok && r.Group == group {
			return r, true
		}
	}
	return Resource{}, false
}
