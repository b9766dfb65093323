package k8s

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/giantswarm/kubewire/internal/instrumentation"
)

// Object is a generic resource envelope for callers that bring their own
// spec and status schemas.
type Object[S, St any] struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   *S  `json:"spec,omitempty"`
	Status *St `json:"status,omitempty"`
}

// ObjectList is a page of a list call. ListMeta.Continue carries the token
// for the next page.
type ObjectList[T any] struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`

	Items []T `json:"items"`
}

// Get fetches one object. An empty namespace means the client's default
// namespace.
func Get[T any](ctx context.Context, c *Client, res Resource, namespace, name string) (T, error) {
	var zero T
	if name == "" {
		return zero, &ConfigError{Field: "name", Reason: "resource name is required"}
	}

	ns, err := c.scope(ctx, res, namespace, false)
	if err != nil {
		return zero, err
	}

	return Execute[T](ctx, c, Request{
		Method:    http.MethodGet,
		Path:      res.Path(ns, name),
		Target:    Target{Resource: res.Plural, Name: name, Namespace: ns},
		Operation: instrumentation.OperationGet,
	})
}

// List fetches one page of objects. The API server omits kind and
// apiVersion on list items; items that carry neither get them from the list
// so that decoders which require a kind, such as unstructured.Unstructured,
// accept them.
func List[T any](ctx context.Context, c *Client, res Resource, namespace string, opts ListOptions) (*ObjectList[T], error) {
	ns, err := c.scope(ctx, res, namespace, opts.AllNamespaces)
	if err != nil {
		return nil, err
	}

	raw, err := Execute[ObjectList[json.RawMessage]](ctx, c, Request{
		Method:    http.MethodGet,
		Path:      res.Path(ns, ""),
		Query:     opts.query(),
		Target:    Target{Resource: res.Plural, Namespace: ns},
		Operation: instrumentation.OperationList,
	})
	if err != nil {
		return nil, err
	}

	itemKind := strings.TrimSuffix(raw.Kind, "List")
	if itemKind == "" {
		itemKind = res.Kind
	}
	apiVersion := raw.APIVersion
	if apiVersion == "" {
		apiVersion = res.APIVersion()
	}

	list := &ObjectList[T]{TypeMeta: raw.TypeMeta, ListMeta: raw.ListMeta}
	if raw.Items != nil {
		list.Items = make([]T, len(raw.Items))
	}
	for i, item := range raw.Items {
		data := withTypeMeta(item, itemKind, apiVersion)
		if err := json.Unmarshal(data, &list.Items[i]); err != nil {
			return nil, &ClientError{Op: "decode response", Err: fmt.Errorf("list item %d: %w", i, err)}
		}
	}
	return list, nil
}

// withTypeMeta splices kind and apiVersion into item when it is a JSON
// object that sets neither. Anything else is returned unchanged.
func withTypeMeta(item json.RawMessage, kind, apiVersion string) []byte {
	var tm metav1.TypeMeta
	if err := json.Unmarshal(item, &tm); err != nil || tm.Kind != "" || tm.APIVersion != "" {
		return item
	}
	body := bytes.TrimSpace(item)
	if len(body) < 2 || body[0] != '{' {
		return item
	}

	head, err := json.Marshal(metav1.TypeMeta{Kind: kind, APIVersion: apiVersion})
	if err != nil || len(head) <= 2 {
		return item
	}
	rest := bytes.TrimSpace(body[1:])
	out := append(head[:len(head)-1:len(head)-1], ',')
	if rest[0] == '}' {
		out = out[:len(out)-1]
	}
	return append(out, rest...)
}

// ListAll follows continue tokens until the server reports no more pages.
// opts.Limit is used as the page size.
func ListAll[T any](ctx context.Context, c *Client, res Resource, namespace string, opts ListOptions) ([]T, error) {
	var items []T
	for {
		page, err := List[T](ctx, c, res, namespace, opts)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if page.Continue == "" {
			return items, nil
		}
		opts.Continue = page.Continue
	}
}

// Create posts obj to the collection and returns what the server stored.
func Create[T any](ctx context.Context, c *Client, res Resource, namespace string, obj T) (T, error) {
	var zero T
	ns, err := c.scope(ctx, res, namespace, false)
	if err != nil {
		return zero, err
	}

	return Execute[T](ctx, c, Request{
		Method:    http.MethodPost,
		Path:      res.Path(ns, ""),
		Body:      &obj,
		Target:    Target{Resource: res.Plural, Namespace: ns},
		Operation: instrumentation.OperationCreate,
	})
}

// Update replaces the named object with obj.
func Update[T any](ctx context.Context, c *Client, res Resource, namespace, name string, obj T) (T, error) {
	var zero T
	if name == "" {
		return zero, &ConfigError{Field: "name", Reason: "resource name is required"}
	}

	ns, err := c.scope(ctx, res, namespace, false)
	if err != nil {
		return zero, err
	}

	return Execute[T](ctx, c, Request{
		Method:    http.MethodPut,
		Path:      res.Path(ns, name),
		Body:      &obj,
		Target:    Target{Resource: res.Plural, Name: name, Namespace: ns},
		Operation: instrumentation.OperationUpdate,
	})
}

// Patch applies patch with the given patch type and returns the result.
func Patch[T any](ctx context.Context, c *Client, res Resource, namespace, name string, pt types.PatchType, patch []byte) (T, error) {
	var zero T
	if name == "" {
		return zero, &ConfigError{Field: "name", Reason: "resource name is required"}
	}
	if pt == "" {
		return zero, &ConfigError{Field: "patchType", Reason: "patch type is required"}
	}

	ns, err := c.scope(ctx, res, namespace, false)
	if err != nil {
		return zero, err
	}

	return Execute[T](ctx, c, Request{
		Method:      http.MethodPatch,
		Path:        res.Path(ns, name),
		Body:        patch,
		ContentType: string(pt),
		Target:      Target{Resource: res.Plural, Name: name, Namespace: ns},
		Operation:   instrumentation.OperationPatch,
	})
}

// Delete removes the named object. The server answers either with a Status
// or with the object as it looks while being deleted; the latter is reported
// as a Success status naming the object.
func Delete(ctx context.Context, c *Client, res Resource, namespace, name string, opts DeleteOptions) (*metav1.Status, error) {
	if name == "" {
		return nil, &ConfigError{Field: "name", Reason: "resource name is required"}
	}

	ns, err := c.scope(ctx, res, namespace, false)
	if err != nil {
		return nil, err
	}

	var status metav1.Status
	err = c.execute(ctx, Request{
		Method:    http.MethodDelete,
		Path:      res.Path(ns, name),
		Query:     opts.query(),
		Target:    Target{Resource: res.Plural, Name: name, Namespace: ns},
		Operation: instrumentation.OperationDelete,
	}, func(data []byte) error {
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		var meta metav1.TypeMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		if meta.Kind != "Status" {
			return nil
		}
		return json.Unmarshal(data, &status)
	})
	if err != nil {
		return nil, err
	}

	if status.Kind != "Status" {
		status = metav1.Status{
			TypeMeta: metav1.TypeMeta{Kind: "Status", APIVersion: "v1"},
			Status:   metav1.StatusSuccess,
			Details: &metav1.StatusDetails{
				Name:  name,
				Group: res.Group,
				Kind:  res.Plural,
			},
		}
	}
	return &status, nil
}
