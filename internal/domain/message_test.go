package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeEmailMessage(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		payload := []byte(`{"recipient":"u@e.com","subject":"s","body":"b","attempts":2}`)

		msg, err := DecodeEmailMessage(payload)

		assert.NoError(t, err)
		assert.Equal(t, "u@e.com", msg.Recipient)
		assert.Equal(t, "s", msg.Subject)
		assert.Equal(t, "b", msg.Body)
		assert.Equal(t, 2, msg.Attempts)
	})

	t.Run("invalid json", func(t *testing.T) {
		msg, err := DecodeEmailMessage([]byte("not json"))

		assert.ErrorIs(t, err, ErrMalformedMessage)
		assert.Nil(t, msg)
	})

	t.Run("missing recipient", func(t *testing.T) {
		msg, err := DecodeEmailMessage([]byte(`{"subject":"s","body":"b","attempts":0}`))

		assert.ErrorIs(t, err, ErrMalformedMessage)
		assert.Nil(t, msg)
	})

	t.Run("round trip", func(t *testing.T) {
		original := &EmailMessage{Recipient: "u@e.com", Subject: "s", Body: "b", Attempts: 1}

		payload, err := original.Encode()
		assert.NoError(t, err)

		decoded, err := DecodeEmailMessage(payload)
		assert.NoError(t, err)
		assert.Equal(t, original, decoded)
	})
}

func TestScrubControlSequences(t *testing.T) {
	t.Run("strips ansi escapes", func(t *testing.T) {
		assert.Equal(t, "red text", ScrubControlSequences("\x1b[31mred\x1b[0m text"))
	})

	t.Run("plain text unchanged", func(t *testing.T) {
		assert.Equal(t, "video not found", ScrubControlSequences("video not found"))
	})
}

func TestNewResolutionError(t *testing.T) {
	err := NewResolutionError(SourceYouTube, "\x1b[1mboom\x1b[0m", true)

	assert.Equal(t, "boom", err.Message)
	assert.True(t, err.Retryable)
	assert.Contains(t, err.Error(), "youtube")
}
