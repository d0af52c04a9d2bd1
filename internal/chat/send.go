package chat

import (
	"context"
	"strings"
	"time"

	"promai/internal/manager"
	"promai/pkg/types"
)

// Reply is one in-flight assistant answer.
type Reply struct {
	ConversationID string
	// Message is the user turn as stored, attachments included.
	Message string

	cancel  *types.CancelFlag
	stream  *manager.Stream
	done    chan struct{}
	outcome manager.Outcome
	err     error
}

// Cancel asks the generation to stop at the next chunk boundary.
func (r *Reply) Cancel() { r.cancel.Cancel() }

// Done is closed once the reply reached a terminal state and was stored.
func (r *Reply) Done() <-chan struct{} { return r.done }

// Wait blocks until the reply is finished and returns its outcome. Err is
// set when the assistant turn could not be stored.
func (r *Reply) Wait() (manager.Outcome, error) {
	<-r.done
	return r.outcome, r.err
}

// Send composes text and attachments into a user turn, starts a generation
// over the recent history and streams its chunks to the presenter. The user
// turn is stored once the generation is admitted, so a busy or unloaded
// model leaves the conversation untouched. A send made before the previous
// answer is stored fails with manager.ErrBusy. Only completed answers are
// stored; cancelled or failed ones stay with the presenter. cancel may be
// nil, in which case Reply.Cancel still works.
func (c *Controller) Send(ctx context.Context, convID, text string, attachments []string, cancel *types.CancelFlag) (*Reply, error) {
	msg := ComposeMessage(c.extractor, text, attachments)
	if strings.TrimSpace(msg) == "" {
		return nil, ErrEmptyMessage
	}
	// A reply stays in flight until its answer is stored, so the history
	// below always includes it.
	if prev := c.previous(); prev != nil {
		select {
		case <-prev.done:
		default:
			c.presenter.OnError(errorKind(manager.ErrBusy), manager.ErrBusy.Error())
			return nil, manager.ErrBusy
		}
	}
	conv, err := c.store.Load(convID)
	if err != nil {
		c.presenter.OnError(KindStore, err.Error())
		return nil, err
	}
	history := lastTurns(conv.Turns, c.cfg.HistoryTurns)
	prompt := c.template.Render(c.cfg.SystemPrompt, history, msg)

	if cancel == nil {
		cancel = types.NewCancelFlag()
	}
	st, err := c.mgr.Generate(ctx, c.mgr.Current(), types.GenerationRequest{
		Prompt:  prompt,
		Context: history,
		Cancel:  cancel,
	})
	if err != nil {
		c.presenter.OnError(errorKind(err), err.Error())
		return nil, err
	}
	if err := c.store.Append(convID, types.Turn{Role: types.RoleUser, Content: msg, Timestamp: time.Now().UTC()}); err != nil {
		st.Close()
		c.presenter.OnError(KindStore, err.Error())
		return nil, err
	}

	r := &Reply{ConversationID: convID, Message: msg, cancel: cancel, stream: st, done: make(chan struct{})}
	c.mu.Lock()
	c.last = r
	c.mu.Unlock()
	c.wg.Add(1)
	go c.pump(r)
	return r, nil
}

func (c *Controller) previous() *Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// pump forwards chunks in production order and settles the reply.
func (c *Controller) pump(r *Reply) {
	defer c.wg.Done()
	defer close(r.done)
	for chunk := range r.stream.All() {
		c.presenter.OnChunk(chunk.Text, chunk.Final)
	}
	out := r.stream.Outcome()
	r.outcome = out
	switch out.State {
	case manager.StreamCompleted:
		answer := strings.TrimSpace(out.Text)
		if answer == "" {
			c.log.Debug().Str("id", r.ConversationID).Msg("empty answer not stored")
			return
		}
		err := c.store.Append(r.ConversationID, types.Turn{Role: types.RoleAssistant, Content: answer, Timestamp: time.Now().UTC()})
		if err != nil {
			r.err = err
			c.presenter.OnError(KindStore, err.Error())
		}
	case manager.StreamFailed:
		if out.Err != nil {
			c.presenter.OnError(errorKind(out.Err), out.Err.Error())
		}
	case manager.StreamCancelled:
		c.log.Info().Str("id", r.ConversationID).Int("chunks", out.Chunks).Msg("generation stopped")
	}
}
