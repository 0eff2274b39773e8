/*
Copyright © 2024 Nokia
*/
package cmd

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/sdcio/clixon-engine/internal/rpcsock"
	"github.com/sdcio/clixon-engine/internal/xmltree"
)

// dial opens a framed connection to the dispatcher socket, mirroring
// createDataClient's per-command dial but over the local rpcsock transport
// instead of a grpc.ClientConn.
func dial(ctx context.Context, address string) (*rpcsock.Framer, net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	network := "unix"
	if _, _, err := net.SplitHostPort(address); err == nil {
		network = "tcp"
	}

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return rpcsock.NewFramer(conn, rpcsock.FrameLengthPrefixed), conn, nil
}

// sendRPC wraps verb in an <rpc> envelope, sends it over addr, and
// returns the parsed <rpc-reply>.
func sendRPC(ctx context.Context, address string, verb *etree.Element) (*etree.Element, error) {
	framer, conn, err := dial(ctx, address)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := etree.NewElement("rpc")
	req.CreateAttr("message-id", uuid.NewString())
	req.AddChild(verb)

	doc := etree.NewDocument()
	doc.SetRoot(req)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	if err := framer.WriteMessage(out); err != nil {
		return nil, err
	}

	replyBytes, err := framer.ReadMessage()
	if err != nil {
		return nil, err
	}
	replyDoc := etree.NewDocument()
	if err := replyDoc.ReadFromBytes(replyBytes); err != nil {
		return nil, err
	}
	return replyDoc.Root(), nil
}

// printReply renders reply per the --format flag, and returns an error
// if it carries any rpc-error children.
func printReply(reply *etree.Element) error {
	if rpcErrs := reply.SelectElements("rpc-error"); len(rpcErrs) > 0 {
		for _, e := range rpcErrs {
			tag := e.SelectElement("error-tag")
			msg := e.SelectElement("error-message")
			tagText, msgText := "", ""
			if tag != nil {
				tagText = tag.Text()
			}
			if msg != nil {
				msgText = msg.Text()
			}
			fmt.Printf("error: %s: %s\n", tagText, msgText)
		}
		return fmt.Errorf("rpc failed")
	}

	if data := reply.SelectElement("data"); data != nil {
		t := xmltree.FromElement(data)
		if format == "json" {
			b, err := xmltree.ToJSON(t)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		}
		s, err := xmltree.SerializeXML(t)
		if err != nil {
			return err
		}
		fmt.Println(s)
		return nil
	}

	fmt.Println("ok")
	return nil
}
