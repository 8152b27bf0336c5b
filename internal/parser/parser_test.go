package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-chat/internal/parser"
)

func TestExtractTextPlainText(t *testing.T) {
	text, err := parser.ExtractText("notes.txt", []byte("some plain text"))
	require.NoError(t, err)
	assert.Equal(t, "some plain text", text)
}

func TestExtractTextInvalidUTF8(t *testing.T) {
	_, err := parser.ExtractText("broken.txt", []byte{0xff, 0xfe, 0xfd})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid UTF-8")
}

func TestExtractTextUnsupportedExtension(t *testing.T) {
	_, err := parser.ExtractText("slides.pptx", []byte("whatever"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
}

func TestExtractTextCaseInsensitiveExtension(t *testing.T) {
	text, err := parser.ExtractText("NOTES.TXT", []byte("upper case name"))
	require.NoError(t, err)
	assert.Equal(t, "upper case name", text)
}

func TestExtractTextCorruptPDF(t *testing.T) {
	_, err := parser.ExtractText("broken.pdf", []byte("this is not a pdf"))
	require.Error(t, err)
}
