// Package restconf maps RESTCONF HTTP requests onto the same engine
// operations the local-socket dispatcher drives (spec §6): GET for
// get-config, PUT/POST/PATCH/DELETE under /data for edit-config
// variants, POST under /operations for named RPCs, plus the
// well-known host-meta document and an error-tag→HTTP-status table.
//
// Grounded on pkg/server.ServeHTTP: a gorilla/mux router, registered
// alongside a dedicated prometheus handler, served by a stdlib
// *http.Server with explicit read/write timeouts.
package restconf

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/sdcio/clixon-engine/internal/errs"
	"github.com/sdcio/clixon-engine/internal/metrics"
	"github.com/sdcio/clixon-engine/internal/plugin"
	"github.com/sdcio/clixon-engine/internal/session"
	"github.com/sdcio/clixon-engine/internal/txn"
	"github.com/sdcio/clixon-engine/internal/xmltree"
)

// Gateway serves the RESTCONF HTTP surface over the same store, engine
// and session registry the socket dispatcher uses.
type Gateway struct {
	Store    *xmltree.Store
	Engine   *txn.Engine
	Sessions *session.Registry
	Metrics  *metrics.Metrics

	// Registry is consulted for an Auth hook before any request under
	// /restconf is served (spec §4.D auth(request)). Nil means no
	// authenticator is wired and every request is treated as
	// authenticated (spec §1 Non-goals).
	Registry *plugin.Registry

	// Operations maps a named RPC (POST /restconf/operations/<name>) to
	// its handler. Populated by the application; empty by default.
	Operations map[string]func(body []byte) ([]byte, *errs.Record)
}

// NewRouter builds the mux.Router serving /restconf/*, /.well-known/
// host-meta, and (if g.Metrics is set) /metrics, matching
// pkg/server's single-router-multiple-handlers layout.
func (g *Gateway) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(g.authMiddleware)
	r.HandleFunc("/.well-known/host-meta", g.handleHostMeta).Methods(http.MethodGet)
	r.HandleFunc("/restconf/operations/{name}", g.handleOperation).Methods(http.MethodPost)
	r.PathPrefix("/restconf/data/").HandlerFunc(g.handleData)
	if g.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(g.Metrics.Registry, promhttp.HandlerOpts{}))
	}
	return r
}

// Server wraps r in an *http.Server with the same fixed read/write
// timeouts pkg/server.ServeHTTP sets.
func Server(addr string, r *mux.Router) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}
}

// authMiddleware runs the wired Auth hook, if any, ahead of every
// request except the unauthenticated discovery/metrics endpoints (spec
// §4.D auth(request), §6 401-vs-403 distinction).
func (g *Gateway) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.Registry == nil || r.URL.Path == "/.well-known/host-meta" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		authenticated, err := g.Registry.RunAuth(r.Context(), r)
		if err != nil {
			writeError(w, errs.New(errs.TypeApplication, errs.TagOperationFailed, "", "authentication error: "+err.Error()), http.StatusInternalServerError)
			return
		}
		if !authenticated {
			writeError(w, errs.Unauthenticated(r.URL.Path, "authentication required"), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) handleHostMeta(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/xrd+xml")
	w.Write([]byte(`<XRD xmlns="http://docs.oasis-open.org/ns/xri/xrd-1.0"><Link rel="restconf" href="/restconf"/></XRD>`))
}

func (g *Gateway) handleData(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/restconf/data/"), "/")

	switch r.Method {
	case http.MethodGet:
		accept := negotiateMediaType(r.Header.Get("Accept"))
		if accept == "" {
			writeError(w, errs.New(errs.TypeProtocol, errs.TagOperationNotSupp, "", "unsupported Accept media type"), http.StatusUnsupportedMediaType)
			return
		}
		g.getData(w, path, accept)
	case http.MethodPut:
		g.editData(w, r, path, xmltree.OpReplace)
	case http.MethodPost:
		g.editData(w, r, path, xmltree.OpCreate)
	case http.MethodPatch:
		g.editData(w, r, path, xmltree.OpMerge)
	case http.MethodDelete:
		g.deleteData(w, r, path)
	default:
		w.Header().Set("Allow", "GET, PUT, POST, PATCH, DELETE")
		writeError(w, errs.New(errs.TypeProtocol, errs.TagOperationNotSupp, path, "method not supported"), http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) getData(w http.ResponseWriter, path, accept string) {
	t, err := g.Store.Get("running", path)
	if err != nil {
		writeError(w, err, statusForRecord(err))
		return
	}
	writeTree(w, t, accept)
}

func (g *Gateway) editData(w http.ResponseWriter, r *http.Request, path string, op xmltree.EditOp) {
	body, ioErr := io.ReadAll(r.Body)
	if ioErr != nil {
		writeError(w, errs.New(errs.TypeProtocol, errs.TagMalformedMessage, path, ioErr.Error()), http.StatusBadRequest)
		return
	}

	edit, err := parseBody(r.Header.Get("Content-Type"), body)
	if err != nil {
		writeError(w, err, http.StatusUnsupportedMediaType)
		return
	}
	xmltree.Annotate(edit, g.Engine.Schema().Hints())

	if err := g.Store.Copy("running", "candidate"); err != nil {
		writeError(w, err, statusForRecord(err))
		return
	}

	user := "restconf"
	if errList := g.Store.Put("candidate", op, edit, user); errList.HasErrors() {
		writeErrors(w, errList)
		return
	}

	outcome, errList := g.Engine.Commit(r.Context(), "candidate", "running", nil)
	if outcome != txn.OutcomeOK {
		writeErrors(w, errList)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) deleteData(w http.ResponseWriter, r *http.Request, path string) {
	if err := g.Store.Copy("running", "candidate"); err != nil {
		writeError(w, err, statusForRecord(err))
		return
	}

	edit := buildPathEdit(path, xmltree.OpDelete)
	if errList := g.Store.Put("candidate", xmltree.OpNone, edit, "restconf"); errList.HasErrors() {
		writeErrors(w, errList)
		return
	}
	outcome, errList := g.Engine.Commit(r.Context(), "candidate", "running", nil)
	if outcome != txn.OutcomeOK {
		writeErrors(w, errList)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleOperation(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	handler, ok := g.Operations[name]
	if !ok {
		writeError(w, errs.New(errs.TypeRPC, errs.TagOperationNotSupp, name, "unknown operation"), http.StatusNotFound)
		return
	}
	body, _ := io.ReadAll(r.Body)
	resp, err := handler(body)
	if err != nil {
		writeError(w, err, statusForRecord(err))
		return
	}
	w.Header().Set("Content-Type", "application/yang-data+json")
	w.Write(resp)
}

// buildPathEdit builds a chain of placeholder nodes down to path's last
// segment, tagged with leafOp, so Put can target a single resource for
// delete without disturbing the rest of the tree (spec §6 DELETE→
// delete via edit-config).
func buildPathEdit(path string, leafOp xmltree.EditOp) *xmltree.Tree {
	t := xmltree.New()
	parent := t.Root()
	var leaf xmltree.ID
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		leaf = t.NewChild(parent, "", seg)
		t.Node(leaf).DefaultOp = xmltree.OpNone
		parent = leaf
	}
	if leaf != 0 {
		t.Node(leaf).DefaultOp = leafOp
	}
	return t
}

// negotiateMediaType returns "json" or "xml" for accept, defaulting to
// json for an empty accept or "*/*" (spec §6: "Accept: */* defaults to
// JSON"), or "" if a non-empty accept names neither.
func negotiateMediaType(accept string) string {
	if accept == "" || strings.Contains(accept, "*/*") || strings.Contains(accept, "json") {
		return "json"
	}
	if strings.Contains(accept, "xml") {
		return "xml"
	}
	return ""
}

func parseBody(contentType string, body []byte) (*xmltree.Tree, *errs.Record) {
	switch {
	case strings.Contains(contentType, "xml"):
		t, err := xmltree.ParseXML(body)
		if err != nil {
			return nil, errs.New(errs.TypeProtocol, errs.TagMalformedMessage, "", err.Error())
		}
		return t, nil
	case contentType == "" || strings.Contains(contentType, "json"):
		t, err := xmltree.FromJSON(body)
		if err != nil {
			return nil, errs.New(errs.TypeProtocol, errs.TagMalformedMessage, "", err.Error())
		}
		return t, nil
	default:
		return nil, errs.New(errs.TypeProtocol, errs.TagOperationNotSupp, "", "unsupported Content-Type "+contentType)
	}
}

func writeTree(w http.ResponseWriter, t *xmltree.Tree, accept string) {
	if accept == "xml" {
		w.Header().Set("Content-Type", "application/yang-data+xml")
		s, err := xmltree.SerializeXML(t)
		if err != nil {
			writeError(w, errs.Internal(err.Error()), http.StatusInternalServerError)
			return
		}
		w.Write([]byte(s))
		return
	}
	w.Header().Set("Content-Type", "application/yang-data+json")
	b, err := xmltree.ToJSON(t)
	if err != nil {
		writeError(w, errs.Internal(err.Error()), http.StatusInternalServerError)
		return
	}
	w.Write(b)
}

// statusForRecord implements spec §6's error-tag→HTTP-status table,
// including the access-denied split between 401 (e.Unauthenticated) and
// 403 (an established identity lacking permission).
func statusForRecord(e *errs.Record) int {
	switch e.Tag {
	case errs.TagInvalidValue, errs.TagMissingElement, errs.TagBadElement, errs.TagMissingAttribute, errs.TagBadAttribute, errs.TagUnknownElement, errs.TagUnknownAttribute, errs.TagMalformedMessage:
		return http.StatusBadRequest
	case errs.TagAccessDenied:
		if e.Unauthenticated {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case errs.TagLockDenied, errs.TagResourceDenied, errs.TagInUse, errs.TagDataExists, errs.TagDataMissing:
		return http.StatusConflict
	case errs.TagOperationNotSupp:
		return http.StatusMethodNotAllowed
	case errs.TagPartialOperation, errs.TagOperationFailed, errs.TagRollbackFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, e *errs.Record, status int) {
	w.Header().Set("Content-Type", "application/yang-data+json")
	w.WriteHeader(status)
	body, _ := json.Marshal(map[string]any{
		"ietf-restconf:errors": map[string]any{
			"error": []map[string]any{{
				"error-type":    string(e.Type),
				"error-tag":     string(e.Tag),
				"error-message": e.Message,
			}},
		},
	})
	w.Write(body)
	log.WithFields(log.Fields{"tag": e.Tag, "status": status}).Debug("restconf request failed")
}

func writeErrors(w http.ResponseWriter, list errs.List) {
	if len(list) == 0 {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeError(w, list[0], statusForRecord(list[0]))
}
