package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/giantswarm/kubewire/internal/k8s"
	"github.com/giantswarm/kubewire/internal/output"
)

// objectName renders obj as "kind/name", the way kubectl -o name does.
// List items usually omit their kind, so the resource's kind is used.
func objectName(res k8s.Resource, obj *unstructured.Unstructured) string {
	kind := obj.GetKind()
	if kind == "" {
		kind = res.Kind
	}
	return qualifiedKind(res, kind) + "/" + obj.GetName()
}

// qualifiedKind lowercases kind and appends the API group, if any.
func qualifiedKind(res k8s.Resource, kind string) string {
	kind = strings.ToLower(kind)
	if res.Group != "" {
		kind += "." + res.Group
	}
	return kind
}

// printObject writes obj in the requested format. JSON output goes through p.
func printObject(w io.Writer, format string, p *output.Processor, res k8s.Resource, obj *unstructured.Unstructured) error {
	if format == outputName {
		_, err := fmt.Fprintln(w, objectName(res, obj))
		return err
	}
	return printJSON(w, p.Process(res.Kind, obj.Object))
}

// printJSON writes v as indented JSON followed by a newline.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
