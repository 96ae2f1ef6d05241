// Package metrics defines and registers all custom Prometheus metrics for the
// querynotes API. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation (promauto) and exposed by the /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "querynotes"

// ── Account metrics ───────────────────────────────────────────────────────────

// SignupsTotal counts signup attempts.
// Label:
//   - result: "created", "conflict", "invalid", or "error"
var SignupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signups_total",
		Help:      "Total number of signup attempts, labelled by result.",
	},
	[]string{"result"},
)

// LoginsTotal counts login attempts.
// Label:
//   - result: "success", "rejected", or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, labelled by result.",
	},
	[]string{"result"},
)

// ── Query metrics ─────────────────────────────────────────────────────────────

// QueriesCreatedTotal counts newly stored queries.
var QueriesCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queries_created_total",
		Help:      "Total number of queries created.",
	},
)

// SharesTotal counts share requests that succeeded.
// Label:
//   - result: "minted" (query became public) or "reused" (already public)
var SharesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shares_total",
		Help:      "Total number of successful share requests, by outcome.",
	},
	[]string{"result"},
)

// ShareTokenCollisionsTotal counts minted share tokens rejected by the
// store's uniqueness constraint.
var ShareTokenCollisionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "share_token_collisions_total",
		Help:      "Total number of share token collisions that triggered a retry.",
	},
)

// PublicLookupsTotal counts anonymous share lookups.
// Label:
//   - result: "found" or "not_found"
var PublicLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "public_lookups_total",
		Help:      "Total number of public share lookups, by result.",
	},
	[]string{"result"},
)

// ShareCacheTotal counts share view cache decisions.
// Label:
//   - result: "hit", "miss", or "error"
var ShareCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "share_cache_total",
		Help:      "Total number of share view cache lookups, labelled by result.",
	},
	[]string{"result"},
)
