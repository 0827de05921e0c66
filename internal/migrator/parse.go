// Package migrator implements the one-shot import of a legacy markdown
// checklist into the item model, per spec §4.8. The grammar it accepts is a
// narrow, spec-defined subset of markdown (area headings, nested checkbox
// list items, inline tag/priority tokens) — a hand-rolled line scanner is a
// better fit than a general markdown parser, the same call the teacher makes
// for its own structured-text parsing.
package migrator

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/chkdhq/chkd/models"
)

var (
	headingRe        = regexp.MustCompile(`^##\s+(\S+)`)
	recognizedAreaRe = regexp.MustCompile(`^(SD|FE|BE|FUT)$`)
	listItemRe       = regexp.MustCompile(`^(\s*)-\s*\[(.)\]\s*(.*)$`)
	priorityRe       = regexp.MustCompile(`(?i)^\[(P1|P2|P3)\]\s*`)
	tagTokenRe       = regexp.MustCompile(`#[A-Za-z0-9][A-Za-z0-9_-]*`)
	boldRe           = regexp.MustCompile(`\*\*(.*?)\*\*`)
)

// parsedItem is one checklist line, before displayId assignment.
type parsedItem struct {
	depth       int
	done        bool
	priority    models.ItemPriority
	title       string
	description string
	tags        []string
	area        models.AreaCode
	children    []*parsedItem
}

// parseChecklist scans r line by line, grouping checkbox items under their
// nearest area heading and building a depth-based tree (top level, children,
// grandchildren) per item's leading indentation.
func parseChecklist(r io.Reader) []*parsedItem {
	scanner := bufio.NewScanner(r)
	var top []*parsedItem
	var area models.AreaCode
	// stack[d] holds the last item seen at depth d, so a deeper line can be
	// attached as its child.
	stack := map[int]*parsedItem{}

	for scanner.Scan() {
		line := scanner.Text()

		if m := headingRe.FindStringSubmatch(line); m != nil {
			if recognizedAreaRe.MatchString(m[1]) {
				area = models.AreaCode(m[1])
			} else {
				area = ""
			}
			stack = map[int]*parsedItem{}
			continue
		}

		m := listItemRe.FindStringSubmatch(line)
		if m == nil || area == "" {
			continue
		}
		indent, check, rest := m[1], m[2], m[3]
		depth := indentDepth(indent)

		item := parseItemLine(check, rest)
		item.depth = depth
		item.area = area
		stack[depth] = item
		for d := range stack {
			if d > depth {
				delete(stack, d)
			}
		}

		if depth == 0 {
			top = append(top, item)
			continue
		}
		parent, ok := stack[depth-1]
		if !ok {
			// orphaned nesting (no parent at depth-1): treat as top-level.
			top = append(top, item)
			continue
		}
		parent.children = append(parent.children, item)
	}
	return top
}

func indentDepth(indent string) int {
	spaces := strings.ReplaceAll(indent, "\t", "  ")
	return len(spaces) / 2
}

func parseItemLine(check, rest string) *parsedItem {
	item := &parsedItem{
		done:     strings.EqualFold(strings.TrimSpace(check), "x"),
		priority: models.PriorityMedium,
	}

	rest = strings.TrimSpace(rest)
	if m := priorityRe.FindStringSubmatch(rest); m != nil {
		switch strings.ToUpper(m[1]) {
		case "P1":
			item.priority = models.PriorityCritical
		case "P2":
			item.priority = models.PriorityHigh
		case "P3":
			item.priority = models.PriorityMedium
		}
		rest = strings.TrimSpace(rest[len(m[0]):])
	}

	titlePart, descPart, hasDesc := strings.Cut(rest, " - ")
	if hasDesc {
		item.description = strings.TrimSpace(descPart)
	}

	for _, tag := range tagTokenRe.FindAllString(titlePart, -1) {
		item.tags = append(item.tags, strings.ToLower(strings.TrimPrefix(tag, "#")))
	}
	titlePart = tagTokenRe.ReplaceAllString(titlePart, "")
	titlePart = boldRe.ReplaceAllString(titlePart, "$1")
	item.title = strings.TrimSpace(titlePart)

	return item
}
