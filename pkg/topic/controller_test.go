package topic

import (
	"testing"

	"github.com/aretw0/topical/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_SingleTransition(t *testing.T) {
	rec := &domain.Instance{ID: "1", TopicName: "t"}

	c := newController[string](rec, domain.BehaviorReceive)
	require.NoError(t, c.Complete("done"))
	assert.Equal(t, domain.VerbComplete, c.Verb())
	assert.Equal(t, "done", c.transition.Payload)
	assert.NoError(t, c.Err())
}

func TestController_MutualExclusion(t *testing.T) {
	rec := &domain.Instance{ID: "1", TopicName: "t"}

	c := newController[string](rec, domain.BehaviorNext)
	require.NoError(t, c.Advance())

	err := c.Complete("late")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProtocolViolation)

	var perr *domain.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "1", perr.InstanceID)
	assert.Equal(t, domain.BehaviorNext, perr.Behavior)

	assert.Equal(t, domain.VerbNone, c.Verb(), "no transition is applied after a violation")

	// Further requests keep failing with the same violation.
	assert.Same(t, err, c.Advance())
}

func TestController_SameVerbTwiceIsViolation(t *testing.T) {
	c := newController[int](&domain.Instance{ID: "1"}, domain.BehaviorNext)
	require.NoError(t, c.Advance())
	assert.ErrorIs(t, c.Advance(), domain.ErrProtocolViolation)
}

func TestController_DispatchOnlyFromInit(t *testing.T) {
	rec := &domain.Instance{ID: "1", TopicName: "t"}

	initCtl := newController[int](rec, domain.BehaviorInit)
	assert.NoError(t, initCtl.Dispatch())

	for _, b := range []domain.Behavior{domain.BehaviorNext, domain.BehaviorReceive, domain.BehaviorComplete} {
		c := newController[int](rec, b)
		assert.ErrorIs(t, c.Dispatch(), domain.ErrProtocolViolation, "behavior %s", b)
	}
}
