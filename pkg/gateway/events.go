// Package gateway translates inbound transport events into poll
// registry operations and produces render instructions for the
// transport to send back.
package gateway

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/scurry-works/poll-bot/pkg/poll"
)

// EventKind identifies the type of an inbound event.
type EventKind string

const (
	EventCreatePoll  EventKind = "create_poll"
	EventPublishPoll EventKind = "publish_poll"
	EventButtonClick EventKind = "button_click"
	EventClosePoll   EventKind = "close_poll"
)

// Event is an inbound user action delivered by the transport.
type Event interface {
	EventKind() EventKind
	When() time.Time
}

// CreatePollCommand is a typed poll-creation command.
type CreatePollCommand struct {
	Title     string
	Options   []string
	Emojis    []string
	Expiry    time.Duration
	CreatorID string
	Timestamp time.Time
}

func (CreatePollCommand) EventKind() EventKind { return EventCreatePoll }
func (c CreatePollCommand) When() time.Time    { return c.Timestamp }

// PublishPollCommand posts a drafted poll publicly.
type PublishPollCommand struct {
	PollID    string
	ActorID   string
	Timestamp time.Time
}

func (PublishPollCommand) EventKind() EventKind { return EventPublishPoll }
func (c PublishPollCommand) When() time.Time    { return c.Timestamp }

// ButtonClickEvent is a raw component interaction. CustomID is
// untrusted transport input and decoded by the router.
type ButtonClickEvent struct {
	CustomID  string
	VoterID   string
	Timestamp time.Time
}

func (ButtonClickEvent) EventKind() EventKind { return EventButtonClick }
func (e ButtonClickEvent) When() time.Time    { return e.Timestamp }

// ClosePollCommand is a typed close command.
type ClosePollCommand struct {
	PollID    string
	ActorID   string
	Timestamp time.Time
}

func (ClosePollCommand) EventKind() EventKind { return EventClosePoll }
func (c ClosePollCommand) When() time.Time    { return c.Timestamp }

// TokenSeparator joins the fields of a button custom ID.
const TokenSeparator = "::"

// Button custom ID actions.
const (
	actionVote  = "vote"
	actionEnd   = "end"
	actionReady = "ready"
)

// VoteCustomID builds the custom ID for an option's vote button.
func VoteCustomID(pollID string, option int) string {
	return strings.Join([]string{actionVote, pollID, strconv.Itoa(option)}, TokenSeparator)
}

// EndCustomID builds the custom ID for a poll's end button.
func EndCustomID(pollID string) string {
	return strings.Join([]string{actionEnd, pollID}, TokenSeparator)
}

// ReadyCustomID builds the custom ID for a drafted poll's publish button.
func ReadyCustomID(pollID string) string {
	return strings.Join([]string{actionReady, pollID}, TokenSeparator)
}

// parseCustomID decodes an inbound custom ID, treating every field as
// untrusted. The option is only meaningful for vote actions.
func parseCustomID(customID string) (action, pollID string, option int, err error) {
	parts := strings.Split(customID, TokenSeparator)
	if len(parts) < 2 || parts[1] == "" {
		return "", "", 0, fmt.Errorf("%w: malformed custom id %q", poll.ErrInvalidArguments, customID)
	}

	switch parts[0] {
	case actionVote:
		if len(parts) != 3 {
			return "", "", 0, fmt.Errorf("%w: malformed vote id %q", poll.ErrInvalidArguments, customID)
		}
		option, err = strconv.Atoi(parts[2])
		if err != nil {
			return "", "", 0, fmt.Errorf("%w: bad option index %q", poll.ErrInvalidOption, parts[2])
		}
		return actionVote, parts[1], option, nil
	case actionEnd, actionReady:
		if len(parts) != 2 {
			return "", "", 0, fmt.Errorf("%w: malformed custom id %q", poll.ErrInvalidArguments, customID)
		}
		return parts[0], parts[1], 0, nil
	default:
		return "", "", 0, fmt.Errorf("%w: unknown action %q", poll.ErrInvalidArguments, parts[0])
	}
}

// Button is one rendered interactive button.
type Button struct {
	CustomID string
	Label    string
	Emoji    string
	Enabled  bool
}

// OptionLine is one rendered option row with its live count.
type OptionLine struct {
	Index   int
	Label   string
	Emoji   string
	Count   int
	Percent float64
}

// RenderInstruction tells the transport what to show. Ack carries an
// optional per-user ephemeral acknowledgment.
type RenderInstruction struct {
	PollID     string
	Title      string
	Status     poll.Status
	Lines      []OptionLine
	Buttons    []Button
	TotalVotes int
	ExpiresAt  time.Time
	Ephemeral  bool
	Ack        string
}
