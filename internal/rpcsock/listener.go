package rpcsock

import (
	"context"
	"net"

	"github.com/beevik/etree"
	log "github.com/sirupsen/logrus"

	"github.com/sdcio/clixon-engine/internal/session"
)

// Serve accepts connections on ln and runs handle over each one until
// ctx is cancelled, the way pkg/server.Server.Serve
// accepts gRPC connections on a net.Listener and hands each off to the
// generated server loop. Every connection gets its own session, opened
// privileged if priv is true — callers listen on a second, more
// restrictively permissioned socket for the privileged case (spec §4.G,
// mirroring original_source's group-restricted CLICON_SOCK).
func Serve(ctx context.Context, ln net.Listener, sessions *session.Registry, mode FrameMode, priv bool, handle DispatchFunc) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go serveConn(ctx, conn, sessions, mode, priv, handle)
	}
}

func serveConn(ctx context.Context, conn net.Conn, sessions *session.Registry, mode FrameMode, priv bool, handle DispatchFunc) {
	defer conn.Close()

	sess := sessions.Open(priv)
	defer sessions.Close(sess.ID)
	sessions.SetCloser(sess.ID, func() { conn.Close() })

	framer := NewFramer(conn, mode)
	for {
		payload, err := framer.ReadMessage()
		if err != nil {
			log.WithField("session", sess.ID).WithError(err).Debug("rpcsock connection closed")
			return
		}

		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(payload); err != nil {
			log.WithField("session", sess.ID).WithError(err).Warn("rpcsock discarding malformed frame")
			continue
		}
		req := doc.Root()
		if req == nil {
			continue
		}

		reply := handle(ctx, sess, req)

		replyDoc := etree.NewDocument()
		replyDoc.SetRoot(reply)
		out, err := replyDoc.WriteToBytes()
		if err != nil {
			log.WithField("session", sess.ID).WithError(err).Error("rpcsock failed to serialize reply")
			return
		}
		if err := framer.WriteMessage(out); err != nil {
			log.WithField("session", sess.ID).WithError(err).Debug("rpcsock write failed")
			return
		}
	}
}
