// Package feed wires the feed usecase onto the Go 1.22 ServeMux routing the
// rest of the HTTP layer uses: a thin handler per route that extracts path
// values, calls the usecase, and maps its errors onto the proxy's HTTP
// status contract.
package feed

import (
	"net/http"

	"feedproxy/internal/usecase/feed"
	"feedproxy/internal/usecase/opml"
)

// Register mounts the feed proxy's public routes onto mux.
func Register(mux *http.ServeMux, svc *feed.Service, opmlSvc *opml.Service) {
	mux.Handle("GET /v1/feed/{user_id}/{feed_url...}", GetFeedHandler{Service: svc})
	mux.Handle("GET /v1/log/{user_id}/{article_id}/{link_url...}", LogClickHandler{Service: svc})
	mux.Handle("POST /v1/signup/user", RegisterUserHandler{Service: svc})
	mux.Handle("POST /v1/signup/process_opml", ProcessOPMLHandler{Service: svc, OPML: opmlSvc})
	mux.Handle("GET /v1/user/{user_id}/clusters", UserClustersHandler{Service: svc})
}
