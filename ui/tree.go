// Package ui holds the box drawing helpers used for console output.
package ui

import (
	"strings"
	"unicode/utf8"
)

// Tree hierarchy symbols using box drawing characters
const (
	TreeBranch     = "├── "
	TreeLastBranch = "└── "
	TreeContinue   = "│   " // parent has more siblings below
	TreeIndent     = "    " // parent was last

	BoxTopLeft     = "┌"
	BoxTopRight    = "┐"
	BoxBottomLeft  = "└"
	BoxBottomRight = "┘"
	BoxVertical    = "│"
	BoxHorizontal  = "─"
	BoxTeeRight    = "├"
	BoxTeeLeft     = "┤"
)

// BuildTreePrefix returns the connector for an entry at depth. parentIsLast[i] tells whether
// the ancestor at depth i+1 was the last of its siblings.
func BuildTreePrefix(depth int, isLast bool, parentIsLast []bool) string {
	if depth == 0 {
		return ""
	}

	var prefix strings.Builder
	for i := 0; i < depth-1; i++ {
		if i < len(parentIsLast) && parentIsLast[i] {
			prefix.WriteString(TreeIndent)
		} else {
			prefix.WriteString(TreeContinue)
		}
	}
	if isLast {
		prefix.WriteString(TreeLastBranch)
	} else {
		prefix.WriteString(TreeBranch)
	}
	return prefix.String()
}

// BuildBoxHeader creates a box header with the given title and width
func BuildBoxHeader(title string, width int) string {
	titleLen := utf8.RuneCountInString(title)
	if width < titleLen+4 { // borders and padding
		width = titleLen + 4
	}
	padding := width - 4 - titleLen

	return BoxTopLeft + repeatString(BoxHorizontal, width-2) + BoxTopRight + "\n" +
		BoxVertical + " " + title + repeatString(" ", padding+1) + BoxVertical + "\n" +
		BoxTeeRight + repeatString(BoxHorizontal, width-2) + BoxTeeLeft + "\n"
}

// BuildBoxFooter creates a box footer with the given width
func BuildBoxFooter(width int) string {
	return BoxBottomLeft + repeatString(BoxHorizontal, width-2) + BoxBottomRight + "\n"
}

// BuildBoxLine creates a content line within a box, truncating content that does not fit
func BuildBoxLine(content string, width int) string {
	contentLen := utf8.RuneCountInString(content)
	maxContentLen := width - 4

	if contentLen > maxContentLen {
		runes := []rune(content)
		content = string(runes[:maxContentLen-3]) + "..."
		contentLen = maxContentLen
	}

	padding := maxContentLen - contentLen
	return BoxVertical + " " + content + repeatString(" ", padding+1) + BoxVertical + "\n"
}

// BuildBox renders a titled box around lines. The box is wide enough for the title and the
// longest line, up to maxWidth; longer lines are truncated.
func BuildBox(title string, lines []string, maxWidth int) string {
	width := utf8.RuneCountInString(title) + 4
	for _, line := range lines {
		if w := utf8.RuneCountInString(line) + 4; w > width {
			width = w
		}
	}
	if maxWidth > 0 && width > maxWidth {
		width = max(maxWidth, utf8.RuneCountInString(title)+4)
	}

	var b strings.Builder
	b.WriteString(BuildBoxHeader(title, width))
	for _, line := range lines {
		b.WriteString(BuildBoxLine(line, width))
	}
	b.WriteString(BuildBoxFooter(width))
	return b.String()
}

func repeatString(s string, n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(s, n)
}
