package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/topical/pkg/prompts"
	"github.com/aretw0/topical/pkg/topic"
)

// ProfileTopic is the name of the demo dialog used by chat and serve.
const ProfileTopic = "profile"

type profileState struct {
	Form string `json:"form,omitempty"`
}

// profileFields are asked in order by the demo dialog.
var profileFields = []prompts.Field{
	{Name: "name", Prompt: "What's your **name**?"},
	{Name: "email", Prompt: "Which **email** should we use?"},
	{Name: "color", Prompt: "And your favourite **color**?"},
}

// Profile greets the user, collects a small profile through a prompts.Form
// and completes with the answers.
var Profile = newProfile()

func newProfile() *topic.Topic[profileState, struct{}, map[string]string] {
	profile := topic.New[profileState, struct{}, map[string]string](ProfileTopic).
		OnInit(func(ctx context.Context, turn topic.Turn, inst *topic.Instance[profileState], _ struct{}, c *topic.Controller[map[string]string]) error {
			turn.Reply("Hi! Let's set up your profile. Type `exit` at any time to leave.")
			id, err := prompts.Form.Create(ctx, turn, prompts.FormArgs{Fields: profileFields}, inst.ID)
			inst.State.Form = id
			return err
		}).
		OnReceive(func(ctx context.Context, turn topic.Turn, inst *topic.Instance[profileState], c *topic.Controller[map[string]string]) error {
			turn.Dispatch(inst.State.Form)
			return nil
		})

	return topic.OnComplete(profile, prompts.Form, func(ctx context.Context, turn topic.Turn, inst *topic.Instance[profileState], done topic.Completion[map[string]string], c *topic.Controller[map[string]string]) error {
		p := done.Payload
		turn.Reply(fmt.Sprintf("Thanks, %s! We'll write to %s about all things %s.",
			p["name"], p["email"], strings.ToLower(p["color"])))
		inst.State.Form = ""
		return c.Complete(p)
	})
}

// RegisterDemo adds the demo dialog and the prompts it relies on.
func RegisterDemo(reg *topic.Registry) error {
	if err := prompts.Register(reg); err != nil {
		return err
	}
	_, err := reg.Register(Profile, topic.Singleton)
	return err
}
