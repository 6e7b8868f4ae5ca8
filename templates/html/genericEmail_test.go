package templates_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	templates "github.com/linesmerrill/primecare-chat/templates/html"
)

func TestRenderGenericEmail_EscapesBody(t *testing.T) {
	out := templates.RenderGenericEmail("Hi <there>", "line one\n<script>x</script>")

	assert.Contains(t, out, "Hi &lt;there&gt;")
	assert.Contains(t, out, "line one<br>&lt;script&gt;")
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "Open chat")
}

func TestRenderUnreadReplyEmail(t *testing.T) {
	out := templates.RenderUnreadReplyEmail("Sarah", "Your results are in", "https://app.primecare.health/chat?c=1&x=2")

	assert.Contains(t, out, "Hello Sarah")
	assert.Contains(t, out, "Your results are in")
	assert.Contains(t, out, `href="https://app.primecare.health/chat?c=1&amp;x=2"`)
}

func TestRenderUnreadReplyEmail_NoName(t *testing.T) {
	out := templates.RenderUnreadReplyEmail("  ", "hi", "")

	assert.Contains(t, out, "Hello,")
	assert.NotContains(t, out, "Open chat")
}
