package cmd

import (
	"context"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/calliope-io/herald/cli/render"
	"github.com/calliope-io/herald/ipc"
)

// handshakeTimeout bounds the whole diagnostic attempt.
const handshakeTimeout = 30 * time.Second

// HandshakeResponse is the response for the handshake command.
type HandshakeResponse struct {
	ClientID   string   `json:"client_id"`
	Connected  bool     `json:"connected"`
	Error      string   `json:"error,omitempty"`
	Candidates []string `json:"candidates"`
}

// HandshakeCommand returns the handshake command.
// It performs one connect and handshake against the presence channel and
// reports the result. Diagnostic only: no activity is published.
func HandshakeCommand() *cli.Command {
	return &cli.Command{
		Name:  "handshake",
		Usage: "Probe the presence channel with a single handshake",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "client-id",
				Usage:    "Presence application client ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "Presence channel endpoint (default: probe platform candidates)",
			},
			&cli.IntFlag{
				Name:  "attempts",
				Usage: "Connect attempts before giving up",
				Value: 1,
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Delay between connect attempts",
			},
		}, ReadOnlyFlags()...),
		Action: handshakeAction,
	}
}

func handshakeAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	endpoint := c.String("endpoint")
	connector := &ipc.Connector{
		Dialer:     ipc.DefaultDialer(endpoint),
		ClientID:   c.String("client-id"),
		PID:        os.Getpid(),
		Attempts:   c.Int("attempts"),
		RetryDelay: c.Duration("retry-delay"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()

	resp := HandshakeResponse{
		ClientID:   connector.ClientID,
		Candidates: ipc.EndpointCandidates(endpoint),
	}

	conn, err := connector.Connect(ctx)
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Connected = true
		_ = conn.Close()
	}

	if renderErr := r.Render(resp); renderErr != nil {
		return renderErr
	}
	if err != nil {
		return cli.Exit("", exitRunError)
	}
	return nil
}
