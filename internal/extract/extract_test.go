package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtension(t *testing.T) {
	assert.Equal(t, "txt", Extension("notes.txt"))
	assert.Equal(t, "md", Extension("README.MD"))
	assert.Equal(t, "", Extension("Makefile"))
	assert.Equal(t, "txt", Extension("archive.tar.txt"))
}

func TestPlainTextSupports(t *testing.T) {
	e := NewPlainText()
	assert.True(t, e.Supports("txt"))
	assert.True(t, e.Supports("md"))
	assert.True(t, e.Supports("markdown"))
	assert.False(t, e.Supports("pdf"))
	assert.False(t, e.Supports(""))
}

func TestPlainTextExtract(t *testing.T) {
	e := NewPlainText()

	text, err := e.Extract("doc.txt", []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestPlainTextStripsBOM(t *testing.T) {
	e := NewPlainText()

	text, err := e.Extract("doc.txt", []byte("\xef\xbb\xbfcontent"))
	require.NoError(t, err)
	assert.Equal(t, "content", text)
}

func TestPlainTextNormalizesLineEndings(t *testing.T) {
	e := NewPlainText()

	text, err := e.Extract("doc.txt", []byte("line one\r\nline two"))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", text)
}

func TestPlainTextRejectsInvalidUTF8(t *testing.T) {
	e := NewPlainText()

	_, err := e.Extract("doc.txt", []byte{0xff, 0xfe, 0x41})
	assert.Error(t, err)
}
