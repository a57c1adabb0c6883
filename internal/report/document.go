// Package report builds markdown-like text reports from ordered blocks.
package report

import "strings"

// Block is one section node of a document.
type Block interface {
	write(sb *strings.Builder)
	empty() bool
}

// Heading is a markdown heading of the given level.
type Heading struct {
	Level int
	Text  string
}

// Field is a bold key and its value, rendered as "**Key**: Value".
type Field struct {
	Key   string
	Value string
}

// Fields renders one Field per line.
type Fields []Field

// List is a bullet list with an optional bold label line above it.
type List struct {
	Label string
	Items []Item
}

// Item is a bullet with optional nested bullets.
type Item struct {
	Text     string
	Children []Item
}

// Paragraph is a block of free text.
type Paragraph string

// Rule is a horizontal rule ("---").
type Rule struct{}

// Document is an ordered sequence of blocks.
type Document struct {
	blocks []Block
}

func New() *Document { return &Document{} }

func (d *Document) Add(b Block) *Document {
	d.blocks = append(d.blocks, b)
	return d
}

func (d *Document) Heading(level int, text string) *Document {
	return d.Add(Heading{Level: level, Text: text})
}

func (d *Document) Fields(fields ...Field) *Document {
	return d.Add(Fields(fields))
}

func (d *Document) List(label string, items ...Item) *Document {
	return d.Add(List{Label: label, Items: items})
}

func (d *Document) Paragraph(text string) *Document {
	return d.Add(Paragraph(text))
}

func (d *Document) Rule() *Document {
	return d.Add(Rule{})
}

// Blocks returns the non-empty blocks in order.
func (d *Document) Blocks() []Block {
	out := make([]Block, 0, len(d.blocks))
	for _, b := range d.blocks {
		if !b.empty() {
			out = append(out, b)
		}
	}
	return out
}

// String renders the document: blocks separated by a blank line, ending with a newline.
func (d *Document) String() string {
	var sb strings.Builder
	for i, b := range d.Blocks() {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		b.write(&sb)
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	return sb.String()
}

// F is shorthand for a Field.
func F(key, value string) Field { return Field{Key: key, Value: value} }

// Bullet builds a list item with optional nested items.
func Bullet(text string, children ...Item) Item {
	return Item{Text: text, Children: children}
}

// Bullets turns plain strings into flat items.
func Bullets(texts ...string) []Item {
	items := make([]Item, 0, len(texts))
	for _, t := range texts {
		items = append(items, Item{Text: t})
	}
	return items
}

// KV formats "**key**: value" for use inside bullets.
func KV(key, value string) string {
	return "**" + key + "**: " + value
}

func (h Heading) write(sb *strings.Builder) {
	level := h.Level
	if level < 1 {
		level = 1
	}
	sb.WriteString(strings.Repeat("#", level))
	sb.WriteString(" ")
	sb.WriteString(h.Text)
}

// A heading always renders, even with empty text.
func (h Heading) empty() bool { return false }

func (f Fields) write(sb *strings.Builder) {
	for i, field := range f {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(KV(field.Key, field.Value))
	}
}

func (f Fields) empty() bool { return len(f) == 0 }

func (l List) write(sb *strings.Builder) {
	if l.Label != "" {
		sb.WriteString("**" + l.Label + "**:\n")
	}
	writeItems(sb, l.Items, 0)
}

func (l List) empty() bool { return len(l.Items) == 0 }

func writeItems(sb *strings.Builder, items []Item, depth int) {
	for i, it := range items {
		if depth > 0 || i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString("- ")
		sb.WriteString(it.Text)
		writeItems(sb, it.Children, depth+1)
	}
}

func (p Paragraph) write(sb *strings.Builder) { sb.WriteString(string(p)) }

func (p Paragraph) empty() bool { return p == "" }

func (Rule) write(sb *strings.Builder) { sb.WriteString("---") }

func (Rule) empty() bool { return false }
