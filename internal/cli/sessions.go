package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/topical/internal/presentation/graph"
	"github.com/aretw0/topical/pkg/ports"
	"github.com/aretw0/topical/pkg/topic"
)

// ListConversations prints the stored conversation ids.
func ListConversations(ctx context.Context, eng ports.ConversationEngine, w io.Writer) error {
	ids, err := eng.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing conversations: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No conversations found.")
		return nil
	}
	fmt.Fprintln(w, "Conversations:")
	for _, id := range ids {
		fmt.Fprintln(w, "- "+id)
	}
	return nil
}

// InspectConversation prints a conversation as indented JSON.
func InspectConversation(ctx context.Context, eng ports.ConversationEngine, id string, w io.Writer) error {
	conv, err := eng.Inspect(ctx, id)
	if err != nil {
		return fmt.Errorf("error loading conversation '%s': %w", id, err)
	}
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling conversation: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// RemoveConversations deletes every id, reporting each outcome.
func RemoveConversations(ctx context.Context, eng ports.ConversationEngine, ids []string, w io.Writer) error {
	var errs []error
	for _, id := range ids {
		if err := eng.Reset(ctx, id); err != nil {
			fmt.Fprintf(w, "Error removing '%s': %v\n", id, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "Removed conversation '%s'\n", id)
	}
	return errors.Join(errs...)
}

// ListTopics prints the registered topic names.
func ListTopics(eng ports.ConversationEngine, w io.Writer) {
	for _, name := range eng.Topics() {
		fmt.Fprintln(w, name)
	}
}

// GraphConversation prints the instance tree of a conversation as Mermaid.
func GraphConversation(ctx context.Context, eng ports.ConversationEngine, id string, w io.Writer) error {
	conv, err := eng.Inspect(ctx, id)
	if err != nil {
		return fmt.Errorf("error loading conversation '%s': %w", id, err)
	}
	_, err = fmt.Fprint(w, graph.GenerateInstanceMermaid(conv))
	return err
}

// GraphTopics prints the completion handlers of reg as Mermaid.
func GraphTopics(reg *topic.Registry, w io.Writer) {
	fmt.Fprint(w, graph.GenerateTopicMermaid(reg.Names(), func(name string) []string {
		if def, ok := reg.Lookup(name); ok {
			return def.Children()
		}
		return nil
	}))
}
