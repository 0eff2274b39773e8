package rpcsock

import (
	"context"

	"github.com/beevik/etree"
	log "github.com/sirupsen/logrus"

	"github.com/sdcio/clixon-engine/internal/session"
)

// Interceptor wraps a single Dispatch call, in the same ordered-chain
// style as grpc-middleware's UnaryServerInterceptor chaining (the
// pattern, not the package — this dispatcher's transport is a local
// socket, not gRPC, so there is nothing to chain onto).
type Interceptor func(ctx context.Context, sess *session.Session, req *etree.Element, next DispatchFunc) *etree.Element

// DispatchFunc is the shape an Interceptor calls to continue the chain.
type DispatchFunc func(ctx context.Context, sess *session.Session, req *etree.Element) *etree.Element

// Chain composes interceptors in the given order into a single
// DispatchFunc terminating in final.
func Chain(interceptors []Interceptor, final DispatchFunc) DispatchFunc {
	for i := len(interceptors) - 1; i >= 0; i-- {
		ic := interceptors[i]
		next := final
		final = func(ctx context.Context, sess *session.Session, req *etree.Element) *etree.Element {
			return ic(ctx, sess, req, next)
		}
	}
	return final
}

// LoggingInterceptor logs every dispatched verb and whether the reply
// carried an rpc-error, matching pkg/server's per-RPC logrus.Debugf at
// the top of each handler.
func LoggingInterceptor(ctx context.Context, sess *session.Session, req *etree.Element, next DispatchFunc) *etree.Element {
	verb := "unknown"
	if children := req.ChildElements(); len(children) > 0 {
		verb = children[0].Tag
	}
	reply := next(ctx, sess, req)
	fields := log.Fields{"session": sess.ID, "verb": verb}
	if reply.SelectElement("rpc-error") != nil {
		log.WithFields(fields).Warn("rpc failed")
	} else {
		log.WithFields(fields).Debug("rpc ok")
	}
	return reply
}
