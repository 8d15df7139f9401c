// Package usersink forwards report builder activity into a go-users
// activity sink.
package usersink

import (
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/goliatone/go-report-builder/pkg/activity"
	"github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Sink is the subset of a go-users activity sink the hook needs.
type Sink interface {
	Log(ctx context.Context, record types.ActivityRecord) error
}

// Hook adapts activity events to types.ActivityRecord.
type Hook struct {
	Sink Sink
}

var _ activity.Hook = Hook{}

// Notify maps event onto an activity record. Identifiers that are not UUIDs
// are kept in the record data instead.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return errors.New("usersink: sink is nil")
	}
	event = activity.NormalizeEvent(event)
	if event.Verb == "" {
		return nil
	}
	data := map[string]any{}
	if event.Metadata != nil {
		data = maps.Clone(event.Metadata)
	}
	if event.DefinitionCode != "" {
		data["definition_code"] = event.DefinitionCode
	}
	if len(event.Recipients) > 0 {
		data["recipients"] = slices.Clone(event.Recipients)
	}
	record := types.ActivityRecord{
		ActorID:    parseID(event.ActorID, "actor_id", data),
		UserID:     parseID(event.UserID, "user_id", data),
		TenantID:   parseID(event.TenantID, "tenant_id", data),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	}
	return h.Sink.Log(ctx, record)
}

func parseID(raw, key string, data map[string]any) uuid.UUID {
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		data[key] = raw
		return uuid.Nil
	}
	return id
}
