package app

import (
	"context"
	"fmt"
	"testing"

	"ritual_notification_bot/internal/domain/activity"
	"ritual_notification_bot/internal/domain/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_BothChannelsSucceed(t *testing.T) {
	push := &fakeChannel{}
	inApp := &fakeChannel{}
	log := newMemActivityRepo()
	d := NewDispatcher(push, inApp, log, testLogger(), nil)

	delivered := d.Dispatch(context.Background(), morningConfig(), DueInstance{Kind: workflow.KindMorning, Date: testDate})

	assert.True(t, delivered)
	assert.Equal(t, 1, push.sentCount())
	assert.Equal(t, 1, inApp.sentCount())
	assert.Equal(t, 1, log.countAction(activity.ActionNotificationSent))
}

func TestDispatch_OneChannelFailure_StillDelivered(t *testing.T) {
	push := &fakeChannel{err: fmt.Errorf("push gateway down")}
	inApp := &fakeChannel{}
	log := newMemActivityRepo()
	d := NewDispatcher(push, inApp, log, testLogger(), nil)

	delivered := d.Dispatch(context.Background(), morningConfig(), DueInstance{Kind: workflow.KindMorning, Date: testDate})

	assert.True(t, delivered, "either channel succeeding counts as delivered")
	assert.Equal(t, 1, inApp.sentCount())
	assert.Equal(t, 1, log.countAction(activity.ActionNotificationSent))
}

func TestDispatch_AllChannelsFail(t *testing.T) {
	push := &fakeChannel{err: fmt.Errorf("push gateway down")}
	inApp := &fakeChannel{err: fmt.Errorf("chat service down")}
	log := newMemActivityRepo()
	d := NewDispatcher(push, inApp, log, testLogger(), nil)

	delivered := d.Dispatch(context.Background(), morningConfig(), DueInstance{Kind: workflow.KindMorning, Date: testDate})

	assert.False(t, delivered)
	assert.Equal(t, 1, log.countAction(activity.ActionNotificationFailed))
}

func TestDispatch_MessageEncodesActionsAndKey(t *testing.T) {
	push := &fakeChannel{}
	inApp := &fakeChannel{}
	d := NewDispatcher(push, inApp, newMemActivityRepo(), testLogger(), []int{15, 30, 60})

	d.Dispatch(context.Background(), morningConfig(), DueInstance{Kind: workflow.KindMorning, Date: testDate})

	require.Equal(t, 1, push.sentCount())
	msg := push.sent[0]
	assert.Equal(t, "1001", msg.ChannelID)
	assert.Equal(t, "morning", msg.Kind)
	assert.Equal(t, testDate, msg.Date)

	var actions []string
	for _, a := range msg.Actions {
		actions = append(actions, a.Action+a.Param)
	}
	assert.Equal(t, []string{"start", "snooze15", "snooze30", "snooze60", "cancel"}, actions)
}
