// Package inbox reduces a user's flat message history into per-counterpart
// conversations and keeps thread and inbox views in sync with live inserts.
//
// Everything here is pure except Decorate, which calls the profile lookup.
package inbox

import (
	"context"
	"net/url"
	"sort"
	"time"

	"github.com/shinyyama/rental-backend/internal/model"
)

const UnknownUserName = "Unknown User"

type Profile struct {
	UID         string
	DisplayName string
	AvatarURL   string
}

// ProfileLookup resolves the public identity of a user.
type ProfileLookup interface {
	Lookup(ctx context.Context, uid string) (Profile, error)
}

// Placeholder is the deterministic identity used whenever a lookup fails.
func Placeholder(uid string) Profile {
	return Profile{
		UID:         uid,
		DisplayName: UnknownUserName,
		AvatarURL:   PlaceholderAvatar(uid),
	}
}

func PlaceholderAvatar(name string) string {
	if name == "" {
		name = "User"
	}
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random"
}

// Summary is the pure, profile-free part of a conversation row.
type Summary struct {
	CounterpartID string
	Last          model.Message
	Unread        bool
}

type Conversation struct {
	CounterpartID string    `json:"counterpartId"`
	Name          string    `json:"name"`
	AvatarURL     string    `json:"avatarUrl"`
	ItemID        uint64    `json:"itemId"`
	LastMessageID uint64    `json:"lastMessageId"`
	LastMessage   string    `json:"lastMessage"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	Unread        bool      `json:"unread"`
	TimeLabel     string    `json:"timeLabel"`
}

// Summarize groups msgs by counterpart of selfID and keeps the newest message
// of each group. The result does not depend on the order of msgs and is
// sorted newest first.
func Summarize(msgs []model.Message, selfID string) []Summary {
	latest := make(map[string]model.Message, len(msgs))
	for _, m := range msgs {
		cp := m.Counterpart(selfID)
		if cur, ok := latest[cp]; !ok || m.NewerThan(cur) {
			latest[cp] = m
		}
	}
	out := make([]Summary, 0, len(latest))
	for cp, m := range latest {
		out = append(out, newSummary(cp, m, selfID))
	}
	sortSummaries(out)
	return out
}

// Merge folds a single message into summaries without recomputing the
// whole set. The returned slice is new; summaries is not modified.
func Merge(summaries []Summary, m model.Message, selfID string) []Summary {
	out := make([]Summary, len(summaries), len(summaries)+1)
	copy(out, summaries)
	cp := m.Counterpart(selfID)
	for i := range out {
		if out[i].CounterpartID != cp {
			continue
		}
		if !m.NewerThan(out[i].Last) {
			return out
		}
		out[i] = newSummary(cp, m, selfID)
		sortSummaries(out)
		return out
	}
	out = append(out, newSummary(cp, m, selfID))
	sortSummaries(out)
	return out
}

// Aggregate is Summarize followed by Decorate.
func Aggregate(ctx context.Context, msgs []model.Message, selfID string, profiles ProfileLookup, now time.Time) []Conversation {
	return Decorate(ctx, Summarize(msgs, selfID), profiles, now)
}

// Decorate attaches counterpart profiles and relative time labels. Lookup
// failures never surface; the placeholder identity is used instead.
func Decorate(ctx context.Context, summaries []Summary, profiles ProfileLookup, now time.Time) []Conversation {
	out := make([]Conversation, 0, len(summaries))
	for _, s := range summaries {
		p := resolve(ctx, profiles, s.CounterpartID)
		out = append(out, Conversation{
			CounterpartID: s.CounterpartID,
			Name:          p.DisplayName,
			AvatarURL:     p.AvatarURL,
			ItemID:        s.Last.ItemID,
			LastMessageID: s.Last.ID,
			LastMessage:   s.Last.Body,
			LastMessageAt: s.Last.CreatedAt,
			Unread:        s.Unread,
			TimeLabel:     FormatRelative(s.Last.CreatedAt, now),
		})
	}
	return out
}

func resolve(ctx context.Context, profiles ProfileLookup, uid string) Profile {
	fallback := Placeholder(uid)
	if profiles == nil {
		return fallback
	}
	p, err := profiles.Lookup(ctx, uid)
	if err != nil {
		return fallback
	}
	p.UID = uid
	if p.DisplayName == "" {
		p.DisplayName = fallback.DisplayName
	}
	if p.AvatarURL == "" {
		p.AvatarURL = fallback.AvatarURL
	}
	return p
}

func newSummary(cp string, m model.Message, selfID string) Summary {
	return Summary{
		CounterpartID: cp,
		Last:          m,
		Unread:        m.ReceiverUID == selfID && !m.Read,
	}
}

func sortSummaries(s []Summary) {
	sort.SliceStable(s, func(i, j int) bool {
		a, b := s[i].Last, s[j].Last
		if a.NewerThan(b) {
			return true
		}
		if b.NewerThan(a) {
			return false
		}
		return s[i].CounterpartID < s[j].CounterpartID
	})
}
