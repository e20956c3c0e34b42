package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yuin/goldmark"
)

func testChannel() *Channel {
	return &Channel{md: goldmark.New()}
}

func TestSessionID(t *testing.T) {
	assert.Equal(t, "tg-12345", SessionID(12345))
	assert.Equal(t, "tg--7", SessionID(-7))
}

func TestRenderHTML(t *testing.T) {
	c := testChannel()

	out := c.renderHTML("Here are 2 matches:\n\n1. **OG Tumbler**\n2. **Corak Mug**")
	assert.NotContains(t, out, "<p>")
	assert.NotContains(t, out, "<li>")
	assert.NotContains(t, out, "<strong>")
	assert.Contains(t, out, "<b>OG Tumbler</b>")

	out = c.renderHTML("price < RM 50 & more")
	assert.Contains(t, out, "&lt;")
	assert.Contains(t, out, "&amp;")
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "OG Tumbler at RM 79", stripTags("<b>OG Tumbler</b> at RM 79"))
	assert.Equal(t, "a < b & c", stripTags("a &lt; b &amp; c"))
}
