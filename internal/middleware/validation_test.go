package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateQuestion(t *testing.T) {
	assert.NoError(t, ValidateQuestion("What are the office hours?"))
	assert.Error(t, ValidateQuestion(""))
	assert.Error(t, ValidateQuestion(strings.Repeat("a", maxQuestionLength+1)))
	assert.Error(t, ValidateQuestion(string([]byte{0xff, 0xfe})))
}

func TestValidateIDs(t *testing.T) {
	valid := "0191e7a8-0000-7000-8000-000000000000"

	assert.NoError(t, ValidateConversationID(valid))
	assert.NoError(t, ValidateMessageID(valid))
	assert.NoError(t, ValidateDocumentID(valid))

	assert.Error(t, ValidateConversationID("not-a-uuid"))
	assert.Error(t, ValidateMessageID(""))
	assert.Error(t, ValidateDocumentID("123"))
}
