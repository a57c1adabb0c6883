package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentRendersBlocksSeparatedByBlankLines(t *testing.T) {
	doc := New().
		Heading(2, "Transaction Compliance Analysis").
		Fields(F("Transaction ID", "TX123"), F("Analysis Time", "2025-03-15 10:00:00")).
		Heading(3, "Identified Issues").
		List("", Bullet(KV("Documentation", "Missing verification"), Bullet("Recommendation: Request docs")), Bullet("second")).
		Paragraph("Summary text").
		List("Required Actions", Bullets("a", "b")...).
		Rule()

	want := "## Transaction Compliance Analysis\n\n" +
		"**Transaction ID**: TX123\n**Analysis Time**: 2025-03-15 10:00:00\n\n" +
		"### Identified Issues\n\n" +
		"- **Documentation**: Missing verification\n  - Recommendation: Request docs\n- second\n\n" +
		"Summary text\n\n" +
		"**Required Actions**:\n- a\n- b\n\n" +
		"---\n"
	assert.Equal(t, want, doc.String())
}

func TestEmptyBlocksAreSkipped(t *testing.T) {
	doc := New().
		Heading(2, "Title").
		Fields().
		List("Label").
		Paragraph("")

	assert.Len(t, doc.Blocks(), 1)
	assert.Equal(t, "## Title\n", doc.String())
}

func TestEmptyHeadingStillRenders(t *testing.T) {
	doc := New().Heading(3, "").Paragraph("body")
	assert.Equal(t, "### \n\nbody\n", doc.String())
}

func TestEmptyDocument(t *testing.T) {
	assert.Equal(t, "", New().String())
}

func TestNestedItemsIndent(t *testing.T) {
	doc := New().List("", Bullet("a", Bullet("b", Bullet("c"))))
	assert.Equal(t, "- a\n  - b\n    - c\n", doc.String())
}

func TestBlocksExposeStructure(t *testing.T) {
	doc := New().Heading(2, "H").Fields(F("k", "v")).Rule()
	blocks := doc.Blocks()
	assert.Equal(t, Heading{Level: 2, Text: "H"}, blocks[0])
	assert.Equal(t, Fields{{Key: "k", Value: "v"}}, blocks[1])
	assert.Equal(t, Rule{}, blocks[2])
}
