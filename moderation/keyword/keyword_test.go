package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeText(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		out  []string
	}{
		{text: "", out: []string{}},
		{text: "Hello, World!", out: []string{"hello", "world"}},
		{text: "Gdańsk", out: []string{"gdansk"}},
		{text: "visit CASINO.biz now", out: []string{"visit", "casino", "biz", "now"}},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, TokenizeText(fix.text))
	}
}

func TestSlugify(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("", Slugify(""))
	assert.Equal("casino", Slugify("C-a.s*i~n o"))
	assert.Equal("привет123", Slugify("Привет, 123!"))
}
