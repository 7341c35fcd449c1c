package push

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	n, err := decodePayload([]byte(`{"message_id":"m-1","title":"Pix recebido","body":"R$ 10,00"}`))
	require.NoError(t, err)
	assert.Equal(t, "m-1", n.ProviderID)
	assert.Equal(t, "Pix recebido", n.Title)
	assert.Equal(t, "R$ 10,00", n.Body)
}

func TestDecodePayload_missingIDIsAllowed(t *testing.T) {
	n, err := decodePayload([]byte(`{"title":"t","body":"b"}`))
	require.NoError(t, err)
	assert.Empty(t, n.ProviderID)
}

func TestDecodePayload_rejectsEmptyContent(t *testing.T) {
	_, err := decodePayload([]byte(`{"message_id":"m-1"}`))
	assert.Error(t, err)

	_, err = decodePayload([]byte(`{"title":"  ","body":""}`))
	assert.Error(t, err)
}

func TestDecodePayload_rejectsInvalidJSON(t *testing.T) {
	_, err := decodePayload([]byte(`{broken`))
	assert.Error(t, err)
}
