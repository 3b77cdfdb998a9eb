package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyInput(t *testing.T) {
	c := New(500)

	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\n\t  "))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	c := New(500)

	chunks := c.Split("Office hours are 9 AM to 6 PM on weekdays.")

	require.Len(t, chunks, 1)
	assert.Equal(t, "Office hours are 9 AM to 6 PM on weekdays.", chunks[0])
}

func TestSplitOnNumberedSections(t *testing.T) {
	text := "COMPANY POLICY:\n" +
		"1. Employees must arrive by 9 AM.\n" +
		"2. Lunch break is one hour.\n" +
		"3. Remote work requires approval."

	c := New(40)
	chunks := c.Split(text)

	require.NotEmpty(t, chunks)
	// Each numbered item starts its own structural unit, so no chunk may
	// begin mid-sentence.
	for _, chunk := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(chunk))
		assert.Contains(t, text, strings.Split(chunk, "\n")[0])
	}
	// Content ordering is preserved across chunks.
	joined := strings.Join(chunks, "\n")
	idx1 := strings.Index(joined, "1. Employees")
	idx3 := strings.Index(joined, "3. Remote work")
	assert.True(t, idx1 >= 0 && idx3 > idx1)
}

func TestSplitKeepsAllContent(t *testing.T) {
	text := "LEAVE POLICY:\n" +
		"* Annual leave is 20 days.\n" +
		"* Sick leave requires a certificate.\n" +
		"- Carry-over is capped at 5 days.\n" +
		"1. Apply through the portal.\n" +
		"2. Manager approval within 48 hours."

	c := New(60)
	chunks := c.Split(text)

	require.NotEmpty(t, chunks)
	joined := strings.Join(chunks, "\n")
	for _, line := range strings.Split(text, "\n") {
		assert.Contains(t, joined, strings.TrimSpace(line))
	}
}

func TestSplitSmallSectionsAccumulate(t *testing.T) {
	text := "1. One.\n2. Two.\n3. Three."

	c := New(500)
	chunks := c.Split(text)

	// All sections fit well under the target, so they share one chunk.
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "1. One.")
	assert.Contains(t, chunks[0], "3. Three.")
}

func TestSplitOversizedSectionParagraphOverlap(t *testing.T) {
	para1 := strings.Repeat("alpha ", 20)
	para2 := strings.Repeat("bravo ", 20)
	para3 := strings.Repeat("charlie ", 20)
	text := para1 + "\n\n" + para2 + "\n\n" + para3

	c := New(150)
	chunks := c.Split(text)

	require.GreaterOrEqual(t, len(chunks), 2)
	// The trailing paragraph of each chunk reappears at the head of the next.
	assert.Contains(t, chunks[0], "alpha")
	assert.Contains(t, chunks[1], "alpha")
	assert.Contains(t, chunks[1], "bravo")
	assert.Contains(t, chunks[len(chunks)-1], "charlie")
}

func TestSplitIsDeterministic(t *testing.T) {
	text := "HOURS:\n1. Open at 9 AM.\n2. Close at 6 PM.\n\n" +
		strings.Repeat("Details about the schedule follow. ", 30)

	c := New(200)
	first := c.Split(text)
	second := c.Split(text)

	assert.Equal(t, first, second)
}
