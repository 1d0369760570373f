package publisher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/dealwatch/internal/publisher"
)

func TestBuildCaption(t *testing.T) {
	rec := pendingRecord(440, 100.00, 25)

	caption := publisher.BuildCaption(rec, "Great Game", "A very good game.", []string{"Studio A", "Studio B"})

	assert.Contains(t, caption, "<b>Great Game</b>")
	assert.Contains(t, caption, "<i>Studio A, Studio B</i>")
	assert.Contains(t, caption, "A very good game.")
	assert.Contains(t, caption, "<s>100.00</s> -25% → 75.00")
}

func TestBuildCaption_EscapesHTML(t *testing.T) {
	rec := pendingRecord(1, 10.00, 0)

	caption := publisher.BuildCaption(rec, "Tom & Jerry <3", "", []string{"A&B"})

	assert.Contains(t, caption, "<b>Tom &amp; Jerry &lt;3</b>")
	assert.Contains(t, caption, "<i>A&amp;B</i>")
	assert.NotContains(t, caption, "<3")
}

func TestBuildCaption_OmitsEmptySections(t *testing.T) {
	rec := pendingRecord(2, 50.00, 10)

	caption := publisher.BuildCaption(rec, "Bare", "", nil)

	assert.NotContains(t, caption, "<i>")
	assert.Contains(t, caption, "<s>50.00</s> -10% → 45.00")
}
