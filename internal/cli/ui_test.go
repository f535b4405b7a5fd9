package cli

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestStatus_PlainWhenColorDisabled(t *testing.T) {
	prev := noColor
	noColor = true
	t.Cleanup(func() { noColor = prev })

	var buf bytes.Buffer
	success(&buf, "%d offers", 3)
	failure(&buf, "%s", "timeout")

	assert.Equal(t, "✓ 3 offers\n✗ timeout\n", buf.String())
}

func TestStatus_Colored(t *testing.T) {
	prevNo, prevGlobal := noColor, color.NoColor
	noColor, color.NoColor = false, false
	t.Cleanup(func() { noColor, color.NoColor = prevNo, prevGlobal })

	var buf bytes.Buffer
	warning(&buf, "Which one do you mean?")

	assert.Contains(t, buf.String(), "⚠ Which one do you mean?")
	assert.Contains(t, buf.String(), "\x1b[33m")
}
