// Package prompts provides reusable topics for collecting user input.
//
// Text asks a single question and completes with the next message. Form
// walks an ordered list of fields, asking each one through a child Text
// prompt, and completes with every answer.
package prompts

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/topical/pkg/topic"
)

// Topic names, as stored in instance records.
const (
	TextTopic = "text_prompt"
	FormTopic = "form"
)

// ErrNoActivePrompt is returned when a form receives a message while no
// field prompt is open.
var ErrNoActivePrompt = errors.New("form has no active prompt")

// TextArgs configures a Text prompt.
type TextArgs struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// Answer is the completion payload of a Text prompt.
type Answer struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type textState struct {
	Name string `json:"name"`
}

// Field is one entry of a form schema.
type Field struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// FormArgs configures a Form.
type FormArgs struct {
	Fields []Field `json:"fields"`
}

type formState struct {
	Fields []Field           `json:"fields"`
	Values map[string]string `json:"values"`
	Prompt string            `json:"prompt,omitempty"`
}

// Text asks args.Prompt and completes with the text of the next message.
var Text = topic.New[textState, TextArgs, Answer](TextTopic).
	OnInit(func(ctx context.Context, turn topic.Turn, inst *topic.Instance[textState], args TextArgs, c *topic.Controller[Answer]) error {
		inst.State.Name = args.Name
		turn.Reply(args.Prompt)
		return nil
	}).
	OnReceive(func(ctx context.Context, turn topic.Turn, inst *topic.Instance[textState], c *topic.Controller[Answer]) error {
		return c.Complete(Answer{Name: inst.State.Name, Value: turn.Event().Text})
	})

// Form asks each field in order and completes with the answers keyed by
// field name. Empty answers are asked again.
var Form = newForm()

func newForm() *topic.Topic[formState, FormArgs, map[string]string] {
	form := topic.New[formState, FormArgs, map[string]string](FormTopic).
		OnInit(func(ctx context.Context, turn topic.Turn, inst *topic.Instance[formState], args FormArgs, c *topic.Controller[map[string]string]) error {
			inst.State.Fields = args.Fields
			inst.State.Values = make(map[string]string, len(args.Fields))
			return c.Advance()
		}).
		OnNext(func(ctx context.Context, turn topic.Turn, inst *topic.Instance[formState], c *topic.Controller[map[string]string]) error {
			for _, f := range inst.State.Fields {
				if inst.State.Values[f.Name] != "" {
					continue
				}
				id, err := Text.Create(ctx, turn, TextArgs{Name: f.Name, Prompt: f.Prompt}, inst.ID)
				if err != nil {
					return fmt.Errorf("ask %s: %w", f.Name, err)
				}
				inst.State.Prompt = id
				return nil
			}
			return c.Complete(inst.State.Values)
		}).
		OnReceive(func(ctx context.Context, turn topic.Turn, inst *topic.Instance[formState], c *topic.Controller[map[string]string]) error {
			if inst.State.Prompt == "" {
				return ErrNoActivePrompt
			}
			turn.Dispatch(inst.State.Prompt)
			return nil
		})

	return topic.OnComplete(form, Text, func(ctx context.Context, turn topic.Turn, inst *topic.Instance[formState], done topic.Completion[Answer], c *topic.Controller[map[string]string]) error {
		if inst.State.Values == nil {
			inst.State.Values = make(map[string]string)
		}
		inst.State.Values[done.Payload.Name] = done.Payload.Value
		inst.State.Prompt = ""
		return c.Advance()
	})
}

// Register adds Text and Form to reg. Both use the Singleton policy so that
// several packages may register them without coordinating.
func Register(reg *topic.Registry) error {
	if _, err := reg.Register(Text, topic.Singleton); err != nil {
		return err
	}
	_, err := reg.Register(Form, topic.Singleton)
	return err
}
