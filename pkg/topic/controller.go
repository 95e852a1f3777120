package topic

import (
	"fmt"

	"github.com/aretw0/topical/pkg/domain"
)

// Controller records the lifecycle transition requested by one behavior
// invocation. A behavior may request at most one of Advance, Dispatch or
// Complete; a second request is a protocol violation and cancels the first.
type Controller[R any] struct {
	behavior   domain.Behavior
	instanceID string
	topicName  string

	transition domain.Transition
	violation  error
}

func newController[R any](rec *domain.Instance, behavior domain.Behavior) *Controller[R] {
	return &Controller[R]{
		behavior:   behavior,
		instanceID: rec.ID,
		topicName:  rec.TopicName,
	}
}

// Advance runs the topic's next behavior once this invocation returns.
func (c *Controller[R]) Advance() error {
	return c.request(domain.Advance())
}

// Dispatch runs the topic's receive behavior against the event that caused
// the instance to be created. Only valid from init.
func (c *Controller[R]) Dispatch() error {
	return c.request(domain.Dispatch())
}

// Complete finishes the instance and hands payload to the parent's completion handler.
func (c *Controller[R]) Complete(payload R) error {
	return c.request(domain.Complete(payload))
}

// Verb returns the transition requested so far.
func (c *Controller[R]) Verb() domain.Verb {
	return c.transition.Verb
}

// Err returns the recorded protocol violation, if any.
func (c *Controller[R]) Err() error {
	return c.violation
}

func (c *Controller[R]) request(t domain.Transition) error {
	if c.violation != nil {
		return c.violation
	}
	if !t.Verb.Allowed(c.behavior) {
		return c.fail(fmt.Sprintf("%s cannot be requested from %s", t.Verb, c.behavior))
	}
	if c.transition.Verb != domain.VerbNone {
		return c.fail(fmt.Sprintf("%s requested after %s in the same invocation", t.Verb, c.transition.Verb))
	}
	c.transition = t
	return nil
}

func (c *Controller[R]) fail(reason string) error {
	c.transition = domain.Stay()
	c.violation = &domain.ProtocolError{
		InstanceID: c.instanceID,
		TopicName:  c.topicName,
		Behavior:   c.behavior,
		Reason:     reason,
	}
	return c.violation
}
