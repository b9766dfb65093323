// Package cmd provides the command-line interface for kubewire.
//
// This package implements a Cobra-based CLI on top of internal/k8s:
//   - get, list, delete: single request/response calls
//   - watch: concurrent change streams for one or more resource types
//   - logs: print or follow pod logs, optionally for all containers
//   - whoami: show the resolved endpoint, namespace and trust
//   - version, self-update
//
// Command Structure:
//
//	kubewire get RESOURCE NAME [-o json|name]
//	kubewire list RESOURCE [-l selector] [-A] [--limit N] [--all-pages]
//	kubewire delete RESOURCE NAME [--grace-period N] [--cascade policy]
//	kubewire watch RESOURCE... [-l selector] [--bookmarks] [--probe-addr :9090]
//	kubewire logs POD [-c name] [-f] [--all-containers] [--tail N]
//	kubewire whoami
//
// Global flags are bound through viper, so each one can also come from the
// environment with a KUBEWIRE_ prefix and dashes turned into underscores:
//
//	KUBEWIRE_SERVER=https://api.example.com:6443 \
//	KUBEWIRE_TOKEN_FILE=/tmp/token kubewire list pods
//
// Without any connection flags the in-cluster service account is used.
// Long-running commands (watch, logs -f) can expose /healthz, /readyz and
// /metrics through --probe-addr. Errors exit with status 1 and a message
// naming the error kind, e.g. "Error (not-found): ...".
package cmd
