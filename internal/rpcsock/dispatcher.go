package rpcsock

import (
	"context"
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	log "github.com/sirupsen/logrus"

	"github.com/sdcio/clixon-engine/internal/errs"
	"github.com/sdcio/clixon-engine/internal/persist"
	"github.com/sdcio/clixon-engine/internal/plugin"
	"github.com/sdcio/clixon-engine/internal/session"
	"github.com/sdcio/clixon-engine/internal/txn"
	"github.com/sdcio/clixon-engine/internal/xmltree"
)

// Autolock controls whether edit-config implicitly acquires and
// releases a datastore lock (spec §4.G: "otherwise dispatcher
// acquires/releases implicitly"), mirroring the original's
// CLICON_AUTOLOCK configuration variable.
type Autolock bool

const (
	AutolockOff Autolock = false
	AutolockOn  Autolock = true
)

// Dispatcher routes parsed <rpc> requests to the engine, tree store,
// and session registry, building the matching <rpc-reply>.
//
// Grounded on pkg/server.Server: one receiver holding
// every collaborator a handler method needs, with each RPC verb as its
// own method rather than a generic switch buried in one function.
type Dispatcher struct {
	Store    *xmltree.Store
	Engine   *txn.Engine
	Sessions *session.Registry
	Persist  *persist.Store
	Autolock Autolock

	// Registry is consulted for an Auth hook before any verb is
	// dispatched (spec §4.D auth(request)). Nil means no authenticator
	// is wired and every request is treated as authenticated (spec §1
	// Non-goals).
	Registry *plugin.Registry
}

// Handler builds a DispatchFunc that runs interceptors, in order,
// around d.Dispatch. Use this as the connection loop's entry point
// instead of calling Dispatch directly when logging/auth interceptors
// are configured.
func (d *Dispatcher) Handler(interceptors ...Interceptor) DispatchFunc {
	return Chain(interceptors, d.Dispatch)
}

// Dispatch handles req, the parsed <rpc> element (framing already
// removed) whose first child element names the operation, and returns
// the <rpc-reply> element.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, req *etree.Element) *etree.Element {
	messageID := req.SelectAttrValue("message-id", "")
	reply := newReply(messageID)

	if d.Registry != nil {
		authenticated, err := d.Registry.RunAuth(ctx, req)
		if err != nil {
			appendError(reply, errs.New(errs.TypeApplication, errs.TagOperationFailed, "", "authentication error: "+err.Error()))
			return reply
		}
		if !authenticated {
			appendError(reply, errs.Unauthenticated("", "authentication required"))
			return reply
		}
	}

	op := req.ChildElements()
	if len(op) == 0 {
		appendError(reply, errs.New(errs.TypeProtocol, errs.TagMalformedMessage, "", "rpc element has no operation child"))
		return reply
	}
	verb := op[0]

	var errList errs.List
	switch verb.Tag {
	case "get-config":
		errList = d.handleGetConfig(reply, verb)
	case "edit-config":
		errList = d.handleEditConfig(ctx, sess, reply, verb)
	case "copy-config":
		errList = d.handleCopyConfig(verb)
	case "delete-config":
		errList = d.handleDeleteConfig(verb)
	case "validate":
		errList = d.handleValidate(ctx, verb)
	case "commit":
		errList = d.handleCommit(ctx)
	case "discard-changes":
		errList = d.handleDiscardChanges()
	case "lock":
		errList = d.handleLock(sess, verb)
	case "unlock":
		errList = d.handleUnlock(sess, verb)
	case "close-session":
		errList = d.handleCloseSession(sess)
	case "kill-session":
		errList = d.handleKillSession(sess, verb)
	case "create-subscription":
		errList = d.handleCreateSubscription(sess, verb)
	case "debug":
		errList = d.handleDebug(verb)
	default:
		errList = errs.List{errs.New(errs.TypeRPC, errs.TagOperationNotSupp, "", fmt.Sprintf("unknown operation %q", verb.Tag))}
	}

	if errList.HasErrors() {
		for _, e := range errList {
			appendError(reply, e)
		}
	} else {
		reply.CreateElement("ok")
	}
	return reply
}

func newReply(messageID string) *etree.Element {
	reply := etree.NewElement("rpc-reply")
	if messageID != "" {
		reply.CreateAttr("message-id", messageID)
	}
	return reply
}

func appendError(reply *etree.Element, e *errs.Record) {
	el := reply.CreateElement("rpc-error")
	el.CreateElement("error-type").SetText(string(e.Type))
	el.CreateElement("error-tag").SetText(string(e.Tag))
	if e.Path != "" {
		el.CreateElement("error-path").SetText(e.Path)
	}
	if e.Message != "" {
		el.CreateElement("error-message").SetText(e.Message)
	}
}

func (d *Dispatcher) handleGetConfig(reply *etree.Element, verb *etree.Element) errs.List {
	source := verb.SelectAttrValue("source", "running")
	xpath := ""
	if filter := verb.SelectElement("filter"); filter != nil {
		xpath = filter.Text()
	}
	tree, err := d.Store.Get(source, xpath)
	if err != nil {
		return errs.List{err}
	}
	data := reply.CreateElement("data")
	xmltree.AppendChildren(data, tree)
	return nil
}

func (d *Dispatcher) handleEditConfig(ctx context.Context, sess *session.Session, reply *etree.Element, verb *etree.Element) errs.List {
	target := verb.SelectAttrValue("target", "candidate")

	if d.Autolock == AutolockOff {
		if err := d.Sessions.RequireUnlockedOrOwned(sess.ID, target); err != nil {
			return errs.List{err}
		}
	} else {
		if err := d.Sessions.Lock(sess.ID, target); err != nil {
			return errs.List{err}
		}
		defer d.Sessions.Unlock(sess.ID, target)
	}

	op := xmltree.EditOp(verb.SelectAttrValue("default-operation", string(xmltree.OpMerge)))
	configEl := verb.SelectElement("config")
	edit := xmltree.FromElement(configEl)
	xmltree.Annotate(edit, d.Engine.Schema().Hints())

	return d.Store.Put(target, op, edit, sess.ID)
}

func (d *Dispatcher) handleCopyConfig(verb *etree.Element) errs.List {
	src := verb.SelectAttrValue("source", "")
	dst := verb.SelectAttrValue("target", "")
	if src == "" || dst == "" {
		return errs.List{errs.New(errs.TypeRPC, errs.TagMissingAttribute, "", "copy-config requires source and target")}
	}
	if err := d.Store.Copy(src, dst); err != nil {
		return errs.List{err}
	}
	return nil
}

func (d *Dispatcher) handleDeleteConfig(verb *etree.Element) errs.List {
	target := verb.SelectAttrValue("target", "")
	if target == "" || target == "running" {
		return errs.List{errs.New(errs.TypeRPC, errs.TagOperationNotSupp, target, "running may not be deleted directly")}
	}
	d.Store.Delete(target)
	return nil
}

func (d *Dispatcher) handleValidate(ctx context.Context, verb *etree.Element) errs.List {
	source := verb.SelectAttrValue("source", "candidate")
	cand := d.Store.Snapshot(source)
	if cand == nil {
		return errs.List{errs.New(errs.TypeApplication, errs.TagMissingElement, source, "no such datastore")}
	}
	return d.Engine.ValidateOnly(ctx, cand)
}

func (d *Dispatcher) handleCommit(ctx context.Context) errs.List {
	outcome, errList := d.Engine.Commit(ctx, "candidate", "running", nil)
	if outcome != txn.OutcomeOK {
		return errList
	}
	return nil
}

func (d *Dispatcher) handleDiscardChanges() errs.List {
	if err := d.Store.Copy("running", "candidate"); err != nil {
		return errs.List{err}
	}
	return nil
}

func (d *Dispatcher) handleLock(sess *session.Session, verb *etree.Element) errs.List {
	target := verb.SelectAttrValue("target", "")
	if err := d.Sessions.Lock(sess.ID, target); err != nil {
		return errs.List{err}
	}
	return nil
}

func (d *Dispatcher) handleUnlock(sess *session.Session, verb *etree.Element) errs.List {
	target := verb.SelectAttrValue("target", "")
	if err := d.Sessions.Unlock(sess.ID, target); err != nil {
		return errs.List{err}
	}
	return nil
}

func (d *Dispatcher) handleCloseSession(sess *session.Session) errs.List {
	d.Sessions.Close(sess.ID)
	return nil
}

func (d *Dispatcher) handleKillSession(sess *session.Session, verb *etree.Element) errs.List {
	targetID := verb.SelectAttrValue("session-id", "")
	if targetID == "" {
		return errs.List{errs.New(errs.TypeRPC, errs.TagMissingAttribute, "", "kill-session requires session-id")}
	}
	if err := d.Sessions.Kill(sess.ID, targetID); err != nil {
		return errs.List{err}
	}
	log.WithFields(log.Fields{"by": sess.ID, "target": targetID}).Warn("session killed")
	return nil
}

func (d *Dispatcher) handleCreateSubscription(sess *session.Session, verb *etree.Element) errs.List {
	stream := verb.SelectAttrValue("stream", "NETCONF")
	sess.Subscribed = append(sess.Subscribed, stream)
	return nil
}

// handleDebug implements debug(level) (spec §4.G, §6 "-D <level>"):
// adjusts the process's logrus level at runtime without a restart.
func (d *Dispatcher) handleDebug(verb *etree.Element) errs.List {
	raw := verb.SelectAttrValue("level", "0")
	level, err := strconv.Atoi(raw)
	if err != nil {
		return errs.List{errs.New(errs.TypeRPC, errs.TagInvalidValue, "", "debug level must be an integer: "+err.Error())}
	}
	log.SetLevel(levelForDebug(level))
	log.WithField("level", level).Info("debug level changed")
	return nil
}

// levelForDebug maps clixon's integer debug level onto a logrus.Level:
// 0 is normal operation, 1 is verbose, 2 and above is fully verbose
// (spec §6 "-D <level> debug" gives no further structure to the scale).
func levelForDebug(level int) log.Level {
	switch {
	case level <= 0:
		return log.InfoLevel
	case level == 1:
		return log.DebugLevel
	default:
		return log.TraceLevel
	}
}
