package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

func TestNewEventEnvelope(t *testing.T) {
	e := NewEvent(EventPhaseFinished, PhaseData{AttemptID: 7, Phase: models.Phase2}).
		WithMetadata("attempt_id", uint(7))

	_, err := uuid.Parse(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "exam-attempt-service", e.Source)
	assert.Equal(t, "1.0", e.Version)
	assert.Equal(t, uint(7), e.Metadata["attempt_id"])
	assert.NotEqual(t, e.ID, NewEvent(EventPhaseFinished, nil).ID)
}

func TestNewMessageCarriesMetadata(t *testing.T) {
	e := NewEvent(EventAttemptFinalized, AttemptFinalizedData{AttemptID: 3, FinalScore: 80}).
		WithMetadata("attempt_id", uint(3))

	msg, err := NewMessage(context.Background(), e)
	require.NoError(t, err)

	assert.Equal(t, e.ID, msg.UUID)
	assert.Equal(t, "attempt.finalized", msg.Metadata.Get("event_type"))
	assert.Equal(t, "3", msg.Metadata.Get("partition_key"))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	assert.Equal(t, "attempt.finalized", decoded["type"])
	data := decoded["data"].(map[string]interface{})
	assert.Equal(t, 80.0, data["final_score"])
}

func TestMockEventPublisher(t *testing.T) {
	pub := NewMockEventPublisher(nil)

	require.NoError(t, pub.Publish(context.Background(), NewEvent(EventAttemptStarted, nil)))
	require.NoError(t, pub.Publish(context.Background(), NewEvent(EventPhaseStarted, nil)))
	require.NoError(t, pub.Publish(context.Background(), NewEvent(EventPhaseStarted, nil)))

	assert.Len(t, pub.GetPublishedEvents(), 3)
	assert.Len(t, pub.EventsOfType(EventPhaseStarted), 2)

	pub.ClearEvents()
	assert.Empty(t, pub.GetPublishedEvents())
	assert.NoError(t, pub.Close())
}
