package printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"docchain/pkg/domain"
)

func TestMessagesCarryPrefixes(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	Success(&buf, "done %d\n", 3)
	Success(&buf, "✓ already\n")
	Warning(&buf, "careful\n")
	Step(&buf, "next\n")
	assert.Equal(t, "✓ done 3\n✓ already\n⚠️  careful\n→ next\n", buf.String())
}

func TestErrorListsSuggestions(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	err := Error(&buf, "Nothing to apply", "no ids given", "pass ids", "use --all")
	assert.EqualError(t, err, "Nothing to apply")
	assert.Contains(t, buf.String(), "Either:\n  1. pass ids\n  2. use --all\n")

	buf.Reset()
	_ = Error(&buf, "Oops", "", "retry")
	assert.Equal(t, "Oops\n\n\nretry\n", buf.String())
}

func TestStateRendersPlainWithoutColor(t *testing.T) {
	color.NoColor = true
	assert.Equal(t, "pending", State(domain.StatePending))
	assert.Equal(t, "other", State(domain.MigrationState("other")))
}
