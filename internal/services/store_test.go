package services

import (
	"encoding/json"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketQRPayloadCarriesSavedID(t *testing.T) {
	collection := core.NewBaseCollection("tickets")
	record := core.NewRecord(collection)

	// Records have no id until saved, so the QR payload is only built
	// once the id exists.
	assert.Empty(t, record.Id)

	record.Id = "tkt_8f2c91"
	payload := ticketQRPayload(record.Id, "E1", "user_1", "AB12CD34")

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, "tkt_8f2c91", decoded["ticket_id"])
	assert.Equal(t, "E1", decoded["event_id"])
	assert.Equal(t, "user_1", decoded["user_id"])
	assert.Equal(t, "AB12CD34", decoded["code"])
}
