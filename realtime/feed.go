// Package realtime delivers row-change notifications for battle tables.
package realtime

import (
	"sync"
)

type Table string

const (
	TableBattles      Table = "battles"
	TableParticipants Table = "battle_participants"
	TableSpectators   Table = "battle_spectators"
	TableVotes        Table = "battle_votes"
	TableRoasts       Table = "roasts"
	TablePresence     Table = "battle_presence"
)

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	// OpResync is published after the underlying feed reconnects; it matches every subscription.
	OpResync Op = "RESYNC"
)

type Change struct {
	Table    Table  `json:"table"`
	Op       Op     `json:"op"`
	BattleID string `json:"battle_id"`
}

// Subscription must be released with Unsubscribe.
type Subscription interface {
	Unsubscribe()
}

// Feed is the subscribe half of the change feed.
type Feed interface {
	Subscribe(table Table, battleID string, fn func(Change)) Subscription
}

// Publisher is the publish half; stores that know about their own writes use it.
type Publisher interface {
	Publish(change Change)
}

type subscriber struct {
	table    Table
	battleID string
	fn       func(Change)
}

func (s subscriber) matches(c Change) bool {
	if c.Op == OpResync {
		return true
	}
	if s.table != c.Table {
		return false
	}
	return s.battleID == "" || s.battleID == c.BattleID
}

// Hub is an in-process fan-out of changes to subscribers.
type Hub struct {
	subs   map[int64]subscriber
	nextID int64
	mutex  sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int64]subscriber)}
}

var (
	_ Feed      = (*Hub)(nil)
	_ Publisher = (*Hub)(nil)
)

// Subscribe registers fn for changes on table. An empty battleID matches every battle.
func (h *Hub) Subscribe(table Table, battleID string, fn func(Change)) Subscription {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.nextID++
	id := h.nextID
	h.subs[id] = subscriber{table: table, battleID: battleID, fn: fn}
	return &hubSubscription{hub: h, id: id}
}

// Publish calls matching subscribers synchronously, outside the hub lock.
func (h *Hub) Publish(c Change) {
	h.mutex.RLock()
	matched := make([]func(Change), 0, len(h.subs))
	for _, s := range h.subs {
		if s.matches(c) {
			matched = append(matched, s.fn)
		}
	}
	h.mutex.RUnlock()

	for _, fn := range matched {
		fn(c)
	}
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.subs)
}

type hubSubscription struct {
	hub  *Hub
	id   int64
	once sync.Once
}

func (s *hubSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.mutex.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mutex.Unlock()
	})
}
