package inbox

import (
	"sort"

	"github.com/shinyyama/rental-backend/internal/model"
)

type State int

const (
	StateLoading State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ok"
	case StateFailed:
		return "error"
	default:
		return "loading"
	}
}

type EventKind int

const (
	EventLoaded EventKind = iota + 1
	EventInserted
	EventFailed
)

// Event is the input of the view reducers. Loaded carries a full fetch
// result, Inserted a single live message, Failed a fetch error.
type Event struct {
	Kind     EventKind
	Messages []model.Message
	Message  model.Message
	Err      error
}

func Loaded(msgs []model.Message) Event { return Event{Kind: EventLoaded, Messages: msgs} }

func Inserted(m model.Message) Event { return Event{Kind: EventInserted, Message: m} }

func Failed(err error) Event { return Event{Kind: EventFailed, Err: err} }

// ThreadView is the ordered, de-duplicated message list of one item.
type ThreadView struct {
	ItemID   uint64
	State    State
	Err      error
	Messages []model.Message
}

func NewThreadView(itemID uint64) ThreadView {
	return ThreadView{ItemID: itemID}
}

// Apply returns the view after ev together with the messages ev added.
// Applying a fetch and live inserts in any order converges to the same
// Messages.
func (v ThreadView) Apply(ev Event) (ThreadView, []model.Message) {
	switch ev.Kind {
	case EventLoaded:
		next, added := v.merge(ev.Messages)
		next.State = StateReady
		next.Err = nil
		return next, added
	case EventInserted:
		if v.ItemID != 0 && ev.Message.ItemID != v.ItemID {
			return v, nil
		}
		return v.merge([]model.Message{ev.Message})
	case EventFailed:
		v.State = StateFailed
		v.Err = ev.Err
		return v, nil
	}
	return v, nil
}

func (v ThreadView) merge(incoming []model.Message) (ThreadView, []model.Message) {
	seen := make(map[uint64]struct{}, len(v.Messages)+len(incoming))
	for _, m := range v.Messages {
		seen[m.ID] = struct{}{}
	}
	var added []model.Message
	for _, m := range incoming {
		if v.ItemID != 0 && m.ItemID != v.ItemID {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		added = append(added, m)
	}
	if len(added) == 0 {
		return v, nil
	}
	msgs := make([]model.Message, 0, len(v.Messages)+len(added))
	msgs = append(msgs, v.Messages...)
	msgs = append(msgs, added...)
	sortAscending(msgs)
	sortAscending(added)
	v.Messages = msgs
	return v, added
}

// InboxView is the conversation list of one user plus the de-duplicated
// messages it was computed from.
type InboxView struct {
	SelfID    string
	State     State
	Err       error
	Messages  []model.Message
	Summaries []Summary
}

func NewInboxView(selfID string) InboxView {
	return InboxView{SelfID: selfID, Summaries: []Summary{}}
}

// Apply folds ev into the view. Live inserts take the incremental Merge
// path, which yields the same summaries as Summarize over all messages.
func (v InboxView) Apply(ev Event) InboxView {
	switch ev.Kind {
	case EventLoaded:
		seen := make(map[uint64]struct{}, len(v.Messages)+len(ev.Messages))
		msgs := make([]model.Message, 0, len(v.Messages)+len(ev.Messages))
		for _, m := range append(append([]model.Message(nil), v.Messages...), ev.Messages...) {
			if !v.involves(m) {
				continue
			}
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			msgs = append(msgs, m)
		}
		v.Messages = msgs
		v.Summaries = Summarize(msgs, v.SelfID)
		v.State = StateReady
		v.Err = nil
		return v
	case EventInserted:
		m := ev.Message
		if !v.involves(m) {
			return v
		}
		for _, existing := range v.Messages {
			if existing.ID == m.ID {
				return v
			}
		}
		msgs := make([]model.Message, 0, len(v.Messages)+1)
		msgs = append(msgs, v.Messages...)
		v.Messages = append(msgs, m)
		v.Summaries = Merge(v.Summaries, m, v.SelfID)
		return v
	case EventFailed:
		v.State = StateFailed
		v.Err = ev.Err
		return v
	}
	return v
}

func (v InboxView) involves(m model.Message) bool {
	return m.SenderUID == v.SelfID || m.ReceiverUID == v.SelfID
}

func sortAscending(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[j].NewerThan(msgs[i])
	})
}
