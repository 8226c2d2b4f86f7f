package gateway

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/scurry-works/poll-bot/pkg/poll"
)

// Handler processes one inbound event into a render instruction.
type Handler func(ctx context.Context, evt Event) (*RenderInstruction, error)

// Router maps inbound events to registry operations. It is stateless:
// all poll state lives behind the registry. The routing table is built
// once at construction and handlers are looked up by event kind.
type Router struct {
	registry *poll.Registry
	logger   *zap.Logger
	handlers map[EventKind]Handler
}

// NewRouter creates a router with the default handlers registered.
func NewRouter(registry *poll.Registry, logger *zap.Logger) *Router {
	r := &Router{
		registry: registry,
		logger:   logger,
		handlers: make(map[EventKind]Handler),
	}

	r.Register(EventCreatePoll, r.handleCreate)
	r.Register(EventPublishPoll, r.handlePublish)
	r.Register(EventButtonClick, r.handleClick)
	r.Register(EventClosePoll, r.handleClose)

	return r
}

// Register binds a handler to an event kind, replacing any existing one.
func (r *Router) Register(kind EventKind, h Handler) {
	r.handlers[kind] = h
}

// Dispatch routes the event to its handler. On failure the returned
// render instruction always carries a user-visible message; no failure
// is swallowed silently.
func (r *Router) Dispatch(ctx context.Context, evt Event) (*RenderInstruction, error) {
	h, ok := r.handlers[evt.EventKind()]
	if !ok {
		err := fmt.Errorf("%w: no handler for event kind %q", poll.ErrInvalidArguments, evt.EventKind())
		return &RenderInstruction{Ephemeral: true, Ack: UserMessage(err)}, err
	}

	render, err := h(ctx, evt)
	if err != nil {
		r.logger.Debug("Event rejected",
			zap.String("kind", string(evt.EventKind())),
			zap.Error(err))
		return &RenderInstruction{Ephemeral: true, Ack: UserMessage(err)}, err
	}

	return render, nil
}

func (r *Router) handleCreate(ctx context.Context, evt Event) (*RenderInstruction, error) {
	cmd, ok := evt.(CreatePollCommand)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected payload for create command", poll.ErrInvalidArguments)
	}

	id, err := r.registry.CreatePoll(poll.CreateRequest{
		Title:     cmd.Title,
		Options:   cmd.Options,
		Emojis:    cmd.Emojis,
		CreatorID: cmd.CreatorID,
		Expiry:    cmd.Expiry,
	}, cmd.Timestamp)
	if err != nil {
		return nil, err
	}

	return r.draftRender(id)
}

// draftRender builds the ephemeral draft preview with a publish button;
// the public vote message goes out on the ready click.
func (r *Router) draftRender(id string) (*RenderInstruction, error) {
	snap, ok := r.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", poll.ErrPollNotFound, id)
	}

	render := renderSnapshot(snap, snap.Tally)
	render.Ephemeral = true
	render.Buttons = []Button{{
		CustomID: ReadyCustomID(id),
		Label:    "Post",
		Enabled:  true,
	}}
	return render, nil
}

func (r *Router) handlePublish(ctx context.Context, evt Event) (*RenderInstruction, error) {
	cmd, ok := evt.(PublishPollCommand)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected payload for publish command", poll.ErrInvalidArguments)
	}
	return r.publicRender(cmd.PollID, "")
}

func (r *Router) handleClick(ctx context.Context, evt Event) (*RenderInstruction, error) {
	click, ok := evt.(ButtonClickEvent)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected payload for button click", poll.ErrInvalidArguments)
	}
	if click.VoterID == "" {
		return nil, fmt.Errorf("%w: interaction missing member id", poll.ErrInvalidArguments)
	}

	action, pollID, option, err := parseCustomID(click.CustomID)
	if err != nil {
		return nil, err
	}

	switch action {
	case actionVote:
		return r.vote(pollID, click.VoterID, option, click)
	case actionReady:
		return r.publicRender(pollID, "Poll has been posted!")
	case actionEnd:
		summary, err := r.registry.Close(pollID, click.VoterID, click.Timestamp)
		if err != nil {
			return nil, err
		}
		return r.closedRender(pollID, summary)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", poll.ErrInvalidArguments, action)
	}
}

func (r *Router) handleClose(ctx context.Context, evt Event) (*RenderInstruction, error) {
	cmd, ok := evt.(ClosePollCommand)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected payload for close command", poll.ErrInvalidArguments)
	}

	summary, err := r.registry.Close(cmd.PollID, cmd.ActorID, cmd.Timestamp)
	if err != nil {
		return nil, err
	}
	return r.closedRender(cmd.PollID, summary)
}

func (r *Router) vote(pollID, voterID string, option int, click ButtonClickEvent) (*RenderInstruction, error) {
	outcome, err := r.registry.Vote(pollID, voterID, option, click.Timestamp)
	if err != nil {
		return nil, err
	}

	snap, ok := r.registry.Get(pollID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", poll.ErrPollNotFound, pollID)
	}

	render := renderSnapshot(snap, outcome.Tally)
	render.Ack = voteAck(snap, outcome)
	return render, nil
}

func (r *Router) publicRender(pollID, ack string) (*RenderInstruction, error) {
	snap, ok := r.registry.Get(pollID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", poll.ErrPollNotFound, pollID)
	}
	render := renderSnapshot(snap, snap.Tally)
	render.Ack = ack
	return render, nil
}

func (r *Router) closedRender(pollID string, summary poll.ClosedSummary) (*RenderInstruction, error) {
	snap, ok := r.registry.Get(pollID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", poll.ErrPollNotFound, pollID)
	}
	// Render the tally frozen at close time, not whatever the registry
	// holds by the time this runs.
	return renderSnapshot(snap, summary.Tally), nil
}

// renderSnapshot builds the render instruction for a poll using the
// supplied tally. Buttons are enabled only while the poll is open.
func renderSnapshot(snap poll.Snapshot, tally map[int]int) *RenderInstruction {
	open := snap.Status == poll.StatusOpen

	total := 0
	for _, count := range tally {
		total += count
	}

	lines := make([]OptionLine, len(snap.Options))
	buttons := make([]Button, 0, len(snap.Options)+1)
	for i, opt := range snap.Options {
		count := tally[opt.Index]
		percent := 0.0
		if total > 0 {
			percent = float64(count) / float64(total) * 100
		}
		lines[i] = OptionLine{
			Index:   opt.Index,
			Label:   opt.Label,
			Emoji:   opt.Emoji,
			Count:   count,
			Percent: percent,
		}
		buttons = append(buttons, Button{
			CustomID: VoteCustomID(snap.ID, opt.Index),
			Emoji:    opt.Emoji,
			Enabled:  open,
		})
	}
	buttons = append(buttons, Button{
		CustomID: EndCustomID(snap.ID),
		Label:    "End Poll",
		Enabled:  open,
	})

	return &RenderInstruction{
		PollID:     snap.ID,
		Title:      snap.Title,
		Status:     snap.Status,
		Lines:      lines,
		Buttons:    buttons,
		TotalVotes: total,
		ExpiresAt:  snap.ExpiresAt,
	}
}

func voteAck(snap poll.Snapshot, outcome poll.VoteOutcome) string {
	label := func(i int) string {
		if i >= 0 && i < len(snap.Options) {
			return snap.Options[i].Label
		}
		return "?"
	}

	if outcome.HasPrevious && outcome.PreviousChoice != outcome.Option {
		return fmt.Sprintf("Changed your vote from %s to %s.",
			label(outcome.PreviousChoice), label(outcome.Option))
	}
	return fmt.Sprintf("You voted for %s.", label(outcome.Option))
}

// UserMessage maps a registry failure to the message shown to the user.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, poll.ErrInvalidArguments):
		return err.Error()
	case errors.Is(err, poll.ErrInvalidOption):
		return "That option doesn't exist on this poll."
	case errors.Is(err, poll.ErrPollNotFound):
		return "Oops, looks like this poll has ended!"
	case errors.Is(err, poll.ErrPollExpired):
		return "Oops, looks like this poll has expired!"
	case errors.Is(err, poll.ErrPollClosed), errors.Is(err, poll.ErrAlreadyClosed):
		return "This poll is already closed."
	case errors.Is(err, poll.ErrNotAuthorized):
		return "Oops, looks like this poll was created by someone else!"
	case errors.Is(err, poll.ErrCreationFailed):
		return "Couldn't create your poll, please try again."
	default:
		return "Something went wrong, please try again."
	}
}
