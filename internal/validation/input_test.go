package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLength(t *testing.T) {
	assert.NoError(t, ValidateLength("название", "Помыть окна", 1, 20))
	assert.Error(t, ValidateLength("название", "", 1, 20))
	assert.Error(t, ValidateLength("название", strings.Repeat("я", 21), 1, 20))
	assert.NoError(t, ValidateLength("название", strings.Repeat("я", 20), 1, 20), "считаются символы, не байты")
}

func TestValidateLink(t *testing.T) {
	assert.NoError(t, ValidateLink("https://cdn.example/p/1.jpg"))
	assert.NoError(t, ValidateLink(" http://example.com "))
	assert.Error(t, ValidateLink(""))
	assert.Error(t, ValidateLink("ftp://example.com/x"))
	assert.Error(t, ValidateLink("https://"))
	assert.Error(t, ValidateLink("https://example.com/"+strings.Repeat("a", MaxLinkLength)))
}
