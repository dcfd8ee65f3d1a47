package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SWAI-Ltd/multipass/internal/codec"
	"github.com/SWAI-Ltd/multipass/internal/connector"
	"github.com/SWAI-Ltd/multipass/internal/group"
	"github.com/SWAI-Ltd/multipass/internal/proto"
	"github.com/SWAI-Ltd/multipass/internal/roster"
	"github.com/SWAI-Ltd/multipass/internal/wire"
)

func watchCmd() *cobra.Command {
	var relay, session, secret string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Join a group session and validate every message it carries",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := newCodecs()
			if err != nil {
				return err
			}
			w := newWatcher(reg, cmd.OutOrStdout())
			c, err := group.NewConnector(w, group.Config{
				RelayAddr: relay,
				Session:   session,
				Secret:    secret,
				Logger:    zap.NewNop(),
			})
			if err != nil {
				return err
			}
			c.Start()
			fmt.Fprintf(cmd.OutOrStdout(), "Watching session %q on %s\n", session, relay)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			<-ctx.Done()
			c.Stop()
			ok, failed := w.counts()
			fmt.Fprintf(cmd.OutOrStdout(), "\nDone. Valid: %d, Invalid: %d\n", ok, failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&relay, "relay", "localhost:6121", "relay address")
	cmd.Flags().StringVar(&session, "session", "", "group session to watch")
	cmd.Flags().StringVar(&secret, "secret", "", "session secret, if payloads are sealed")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

// watcher is a connector.Host that inspects messages instead of routing them.
type watcher struct {
	id  uuid.UUID
	reg *codec.Registry
	out io.Writer

	mu         sync.Mutex
	ok, failed int
}

var _ connector.Host = (*watcher)(nil)

func newWatcher(reg *codec.Registry, out io.Writer) *watcher {
	return &watcher{id: uuid.New(), reg: reg, out: out}
}

func (w *watcher) LocalID() uuid.UUID { return w.id }

func (w *watcher) Receive(data []byte, _ connector.Connector, _ func(roster.Participant)) {
	r := inspect(w.reg, data)
	w.mu.Lock()
	defer w.mu.Unlock()
	if r.Err != nil {
		w.failed++
	} else {
		w.ok++
	}
	fmt.Fprintf(w.out, "[%s] %s\n", time.Now().Format("15:04:05"), r)
}

func (w *watcher) AddManaged(roster.Participant)    {}
func (w *watcher) RemoveManaged(roster.Participant) {}
func (w *watcher) RemoveRemote(roster.Participant)  {}

// HelloMessage announces an empty roster so the watcher never shows up as a
// participant on the other members.
func (w *watcher) HelloMessage(bool) ([]byte, error) {
	return wire.Encode(codec.JSON(), proto.ParticipantList{Participants: []uuid.UUID{}}, w.id)
}

func (w *watcher) counts() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ok, w.failed
}
