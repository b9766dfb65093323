package output

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

// DefaultExcludedFields returns the fields dropped in slim mode, each as a
// path of map keys.
func DefaultExcludedFields() [][]string {
	return [][]string{
		// Managed fields are verbose and rarely useful for troubleshooting
		{"metadata", "managedFields"},
		// Last-applied-configuration duplicates the entire manifest
		{"metadata", "annotations", "kubectl.kubernetes.io/last-applied-configuration"},
	}
}

// SlimResource returns a copy of obj without the excluded fields. Missing
// fields are ignored.
func SlimResource(obj map[string]any, excludedFields [][]string) map[string]any {
	if obj == nil {
		return nil
	}
	result := runtime.DeepCopyJSON(obj)
	for _, path := range excludedFields {
		unstructured.RemoveNestedField(result, path...)
	}

	// Drop the annotations map if slimming emptied it.
	if annotations, found, _ := unstructured.NestedMap(result, "metadata", "annotations"); found && len(annotations) == 0 {
		unstructured.RemoveNestedField(result, "metadata", "annotations")
	}
	return result
}
