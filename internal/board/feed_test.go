package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
)

func dateEvent(d domain.Date, id int64) domain.ChangeEvent {
	return domain.ChangeEvent{Date: &d, Dates: []domain.Date{d}, Entity: domain.EntitySlot, EntityID: id, Type: domain.UpdateAssignment}
}

func TestFeed_SequencesArePerDate(t *testing.T) {
	feed := NewFeed(100, nil, zap.NewNop())
	other := day.AddDays(1)

	out := feed.Publish(dateEvent(day, 1), dateEvent(other, 2), dateEvent(day, 3))
	require.Len(t, out, 3)
	assert.Equal(t, uint64(101), out[0].Seq)
	assert.Equal(t, uint64(101), out[1].Seq)
	assert.Equal(t, uint64(102), out[2].Seq)
	assert.NotEqual(t, out[0].ID, out[2].ID)

	global := feed.Publish(domain.ChangeEvent{Entity: domain.EntityDriver, EntityID: 1, Type: domain.UpdateResource})
	assert.Equal(t, uint64(101), global[0].Seq)
	assert.Equal(t, uint64(102), feed.LastSeq(day))
	assert.Equal(t, uint64(100), feed.LastSeq(domain.MustDate("2030-01-01")))
}

func TestFeed_DeliversInOrder(t *testing.T) {
	feed := NewFeed(0, nil, zap.NewNop())
	sub := feed.Subscribe(10)
	defer sub.Close()

	feed.Publish(dateEvent(day, 1), dateEvent(day, 2))

	first := <-sub.Events()
	second := <-sub.Events()
	assert.Equal(t, int64(1), first.EntityID)
	assert.Equal(t, int64(2), second.EntityID)
	assert.Less(t, first.Seq, second.Seq)
}

func TestFeed_SlowSubscriberIsClosed(t *testing.T) {
	feed := NewFeed(0, nil, zap.NewNop())
	slow := feed.Subscribe(1)
	fast := feed.Subscribe(10)
	defer fast.Close()

	feed.Publish(dateEvent(day, 1), dateEvent(day, 2))

	<-slow.Events()
	_, open := <-slow.Events()
	assert.False(t, open)
	assert.Len(t, fast.Events(), 2)
	assert.Equal(t, 1, feed.SubscriberCount())

	slow.Close()
}
