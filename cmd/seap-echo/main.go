// Command seap-echo runs the echo-MSG-over-fd-pair scenario as a small,
// runnable demonstration of the SEAP core: a client and a server context
// connected by a socketpair-like fd pair, exchanging one ping/pong round
// trip.
package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/openscap-probes/seap/seap"
	"github.com/openscap-probes/seap/seap/packet"
	"github.com/openscap-probes/seap/sexp"
)

type options struct {
	Verbose bool `short:"v" long:"verbose" description:"enable debug logging"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "seap-echo:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	client, err := seap.NewContext(seap.Config{})
	if err != nil {
		return err
	}
	defer client.Free()

	server, err := seap.NewContext(seap.Config{})
	if err != nil {
		return err
	}
	defer server.Free()

	if opts.Verbose {
		client.SetLogProvider(nil)
		server.SetLogProvider(nil)
	}

	r1, w1, err := os.Pipe()
	if err != nil {
		return err
	}
	r2, w2, err := os.Pipe()
	if err != nil {
		return err
	}

	clientSD, err := client.OpenFDPair(r1, w2, 0)
	if err != nil {
		return err
	}
	serverSD, err := server.OpenFDPair(r2, w1, 0)
	if err != nil {
		return err
	}

	if err := client.SendSexp(clientSD, sexp.NewList(sexp.NewString("ping"))); err != nil {
		return err
	}

	req, err := server.RecvMsg(serverSD)
	if err != nil {
		return err
	}
	fmt.Printf("server received id=%d payload=%s\n", req.ID, req.Payload)

	rep := &packet.Msg{Payload: sexp.NewList(sexp.NewString("pong"))}
	if err := server.Reply(serverSD, rep, req); err != nil {
		return err
	}

	reply, err := client.RecvMsg(clientSD)
	if err != nil {
		return err
	}
	fmt.Printf("client received payload=%s\n", reply.Payload)

	if err := client.Close(clientSD); err != nil {
		return err
	}
	return server.Close(serverSD)
}
