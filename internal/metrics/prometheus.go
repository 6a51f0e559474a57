package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

const namespace = "camlink"

// Gauge is a value read at scrape time, such as the number of live sessions.
type Gauge struct {
	Name  string
	Help  string
	Value func() float64
}

var labelEscaper = strings.NewReplacer("\\", "\\\\", "\"", "\\\"", "\n", "\\n")

// PrometheusHandler exposes Metrics in Prometheus' text exposition format.
// Every counter becomes its own camlink_<name>_total family. Counters bumped
// with IncKind carry a `kind` label instead of a bare total.
func PrometheusHandler(m *Metrics, gauges ...Gauge) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
			return
		}

		totals := m.Snapshot()
		kinds := m.KindSnapshot()
		names := make([]string, 0, len(totals))
		for name := range totals {
			names = append(names, name)
		}
		sort.Strings(names)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		for _, name := range names {
			family := namespace + "_" + name + "_total"
			writeHeader(w, family, helpFor(name), "counter")
			byKind, ok := kinds[name]
			if !ok {
				_, _ = fmt.Fprintf(w, "%s %d\n", family, totals[name])
				continue
			}
			var labeled uint64
			keys := make([]string, 0, len(byKind))
			for k, v := range byKind {
				keys = append(keys, k)
				labeled += v
			}
			sort.Strings(keys)
			for _, k := range keys {
				_, _ = fmt.Fprintf(w, "%s{kind=\"%s\"} %d\n", family, labelEscaper.Replace(k), byKind[k])
			}
			// Plain Inc calls on a kinded counter land here.
			if rest := totals[name] - labeled; rest > 0 {
				_, _ = fmt.Fprintf(w, "%s{kind=\"other\"} %d\n", family, rest)
			}
		}

		for _, g := range gauges {
			if g.Value == nil {
				continue
			}
			family := namespace + "_" + g.Name
			writeHeader(w, family, g.Help, "gauge")
			_, _ = fmt.Fprintf(w, "%s %g\n", family, g.Value())
		}
	})
}

func writeHeader(w io.Writer, family, text, typ string) {
	if text != "" {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", family, text)
	}
	_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", family, typ)
}

func helpFor(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return "Internal event counter."
}
