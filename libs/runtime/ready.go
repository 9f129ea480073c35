package runtime

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// ReadyCheck is a named dependency probe for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

const readyCheckTimeout = 2 * time.Second

func (rc ReadyCheck) run(ctx context.Context) error {
	if rc.Check == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, readyCheckTimeout)
	defer cancel()
	return rc.Check(ctx)
}

// NewBaseMuxWithReady returns a mux with /healthz (liveness, always ok) and
// /readyz (runs every check, reports each by name, 503 on any failure).
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		lines := make([]string, 0, len(checks))
		ready := true
		for _, check := range checks {
			name := check.Name
			if name == "" {
				name = "dependency"
			}
			if err := check.run(r.Context()); err != nil {
				ready = false
				lines = append(lines, name+": "+err.Error())
			} else {
				lines = append(lines, name+": ok")
			}
		}
		if len(lines) == 0 {
			lines = []string{"ok"}
		}
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_, _ = w.Write([]byte(strings.Join(lines, "\n")))
	})
	return mux
}
