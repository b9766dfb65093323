package output

import (
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

// RedactedValue is the placeholder used for masked secret data.
const RedactedValue = "***REDACTED***"

// sensitiveAnnotations lists annotations that contain sensitive data.
var sensitiveAnnotations = map[string]bool{
	"kubernetes.io/service-account.uid":   true,
	"kubernetes.io/service-account.name":  true,
	"kubernetes.io/service-account-token": true,
}

// IsSecret reports whether kind names a Secret.
func IsSecret(kind string) bool {
	return strings.EqualFold(kind, "Secret")
}

// MaskSecret returns a copy of a Secret with every data and stringData
// value and the sensitive annotations replaced by RedactedValue. Keys and
// the secret type stay visible.
func MaskSecret(obj map[string]any) map[string]any {
	if obj == nil {
		return nil
	}
	result := runtime.DeepCopyJSON(obj)

	for _, field := range []string{"data", "stringData"} {
		values, ok := result[field].(map[string]any)
		if !ok {
			continue
		}
		for key := range values {
			values[key] = RedactedValue
		}
	}

	annotations, found, err := unstructured.NestedStringMap(result, "metadata", "annotations")
	if err != nil || !found {
		return result
	}
	for key := range annotations {
		if sensitiveAnnotations[key] {
			annotations[key] = RedactedValue
		}
	}
	_ = unstructured.SetNestedStringMap(result, annotations, "metadata", "annotations")
	return result
}
