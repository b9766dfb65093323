package k8s

import (
	"net/url"
	"strconv"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Query is an ordered list of URL query parameters. Parameters are emitted
// in insertion order; empty, false and nil values are never added.
type Query struct {
	params []queryParam
}

type queryParam struct {
	key   string
	value string
}

// NewQuery returns an empty query.
func NewQuery() *Query {
	return &Query{}
}

// Set appends key=value unless value is empty.
func (q *Query) Set(key, value string) *Query {
	if value != "" {
		q.params = append(q.params, queryParam{key: key, value: value})
	}
	return q
}

// Bool appends key=true when v is true.
func (q *Query) Bool(key string, v bool) *Query {
	if v {
		q.params = append(q.params, queryParam{key: key, value: "true"})
	}
	return q
}

// Int64 appends key=*v when v is non-nil. Zero is a meaningful value here
// (tailLines=0) so only nil is omitted.
func (q *Query) Int64(key string, v *int64) *Query {
	if v != nil {
		q.params = append(q.params, queryParam{key: key, value: strconv.FormatInt(*v, 10)})
	}
	return q
}

// Len returns the number of parameters.
func (q *Query) Len() int {
	if q == nil {
		return 0
	}
	return len(q.params)
}

// Encode renders the query without the leading "?". Each key and value is
// escaped on its own before joining.
func (q *Query) Encode() string {
	if q.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range q.params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

// ListOptions filters and pages a list call.
type ListOptions struct {
	LabelSelector   string
	FieldSelector   string
	AllNamespaces   bool
	Limit           int64
	Continue        string
	ResourceVersion string
}

func (o ListOptions) query() *Query {
	q := NewQuery().
		Set("labelSelector", o.LabelSelector).
		Set("fieldSelector", o.FieldSelector).
		Set("resourceVersion", o.ResourceVersion)
	if o.Limit > 0 {
		q.Int64("limit", &o.Limit)
	}
	return q.Set("continue", o.Continue)
}

// WatchOptions configures a watch stream.
type WatchOptions struct {
	AllNamespaces   bool
	LabelSelector   string
	FieldSelector   string
	ResourceVersion string
	// TimeoutSeconds asks the server to end the watch after this long.
	TimeoutSeconds *int64
	AllowBookmarks bool
}

func (o WatchOptions) query() *Query {
	return NewQuery().
		Bool("watch", true).
		Set("labelSelector", o.LabelSelector).
		Set("fieldSelector", o.FieldSelector).
		Set("resourceVersion", o.ResourceVersion).
		Int64("timeoutSeconds", o.TimeoutSeconds).
		Bool("allowWatchBookmarks", o.AllowBookmarks)
}

// DeleteOptions configures a delete call. A nil GracePeriodSeconds means
// DefaultGracePeriodSeconds.
type DeleteOptions struct {
	GracePeriodSeconds *int64
	PropagationPolicy  *metav1.DeletionPropagation
}

func (o DeleteOptions) query() *Query {
	grace := DefaultGracePeriodSeconds
	if o.GracePeriodSeconds != nil {
		grace = *o.GracePeriodSeconds
	}
	q := NewQuery().Int64("gracePeriodSeconds", &grace)
	if o.PropagationPolicy != nil {
		q.Set("propagationPolicy", string(*o.PropagationPolicy))
	}
	return q
}

// LogOptions selects which log lines a log request returns.
type LogOptions struct {
	Container    string
	Follow       bool
	Previous     bool
	SinceSeconds *int64
	TailLines    *int64
	Timestamps   bool
	LimitBytes   *int64
}

// query keeps the parameter order container, follow, previous,
// sinceSeconds, tailLines, timestamps, limitBytes.
func (o LogOptions) query() *Query {
	return NewQuery().
		Set("container", o.Container).
		Bool("follow", o.Follow).
		Bool("previous", o.Previous).
		Int64("sinceSeconds", o.SinceSeconds).
		Int64("tailLines", o.TailLines).
		Bool("timestamps", o.Timestamps).
		Int64("limitBytes", o.LimitBytes)
}
