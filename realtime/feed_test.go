package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHub_FiltersByTableAndBattle(t *testing.T) {
	hub := NewHub()
	var got []Change
	hub.Subscribe(TableParticipants, "b1", func(c Change) { got = append(got, c) })

	hub.Publish(Change{Table: TableParticipants, Op: OpInsert, BattleID: "b1"})
	hub.Publish(Change{Table: TableParticipants, Op: OpInsert, BattleID: "b2"})
	hub.Publish(Change{Table: TableSpectators, Op: OpInsert, BattleID: "b1"})

	assert.Equal(t, []Change{{Table: TableParticipants, Op: OpInsert, BattleID: "b1"}}, got)
}

func TestHub_EmptyBattleMatchesAll(t *testing.T) {
	hub := NewHub()
	count := 0
	hub.Subscribe(TableVotes, "", func(Change) { count++ })

	hub.Publish(Change{Table: TableVotes, BattleID: "b1"})
	hub.Publish(Change{Table: TableVotes, BattleID: "b2"})
	assert.Equal(t, 2, count)
}

func TestHub_ResyncReachesEverySubscriber(t *testing.T) {
	hub := NewHub()
	count := 0
	hub.Subscribe(TableVotes, "b1", func(Change) { count++ })
	hub.Subscribe(TableBattles, "b2", func(Change) { count++ })

	hub.Publish(Change{Op: OpResync})
	assert.Equal(t, 2, count)
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub()
	count := 0
	sub := hub.Subscribe(TableBattles, "b1", func(Change) { count++ })
	assert.Equal(t, 1, hub.Len())

	sub.Unsubscribe()
	sub.Unsubscribe()
	hub.Publish(Change{Table: TableBattles, BattleID: "b1"})

	assert.Equal(t, 0, count)
	assert.Equal(t, 0, hub.Len())
}
