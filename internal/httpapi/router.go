package httpapi

import "net/http"

func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: HealthHandler{}.Health,
	}))

	sh := StatusHandler{Hub: d.Hub, Info: d.Info}
	mux.HandleFunc("/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.Status,
	}))

	lh := LedgerHandler{Ledger: d.Ledger}
	mux.HandleFunc("/applications", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.Applications,
	}))
	mux.HandleFunc("/rejections", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.Rejections,
	}))

	rh := RunHandler{Deps: d}
	mux.HandleFunc("/ingest/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: rh.Ingest,
	}))
	mux.HandleFunc("/reconcile/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: rh.Reconcile,
	}))

	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	return mux
}

// Handler wraps the mux in the standard middleware stack.
func Handler(d Deps) http.Handler {
	return Chain(NewMux(d), RequestID, Recover(d.Log), AccessLog(d.Log))
}
