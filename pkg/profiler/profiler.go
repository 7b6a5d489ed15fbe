// Package profiler exposes net/http/pprof on its own listener, kept
// apart from the gateway's public routes and enabled only on demand.
package profiler

import (
	"log"
	"net/http"
	"net/http/pprof"
	"time"
)

// InitialiseProfiler serves the pprof handlers on a dedicated mux at
// the given address. Errors from the listener end up on stderr; the
// profiler is never worth taking the gateway down for.
func InitialiseProfiler(address string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	go func() {
		server := &http.Server{
			Addr:         address,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		log.Println(server.ListenAndServe())
	}()
}
