// Package markdown splits and parses the research document format: `##`
// top-level sections containing `#### Name (Location)` company blocks.
package markdown

import (
	"regexp"
	"strings"
)

// Section is one named top-level block, keeping its original header line
// so unchanged sections reassemble bit-for-bit.
type Section struct {
	Name   string
	Header string
	Body   string
}

// Document is a sectionized markdown document. Order preserves the
// sequence the sections appeared in; Preamble is everything before the
// first section header.
type Document struct {
	Preamble string
	Order    []string
	Sections map[string]Section

	duplicates []string
}

// Get returns a section body and whether the section exists.
func (d *Document) Get(name string) (string, bool) {
	s, ok := d.Sections[name]
	return s.Body, ok
}

// DuplicateNames returns section names that appear more than once, in
// first-seen order. Duplicates are a structural defect the caller
// reports; the later occurrence wins in the map.
func (d *Document) DuplicateNames() []string {
	return d.duplicates
}

// Split sectionizes a document on second-level headings.
func Split(content string) *Document {
	doc := &Document{Sections: make(map[string]Section)}

	var (
		current  string
		header   string
		body     []string
		preamble []string
		started  bool
	)
	flush := func() {
		if current == "" {
			return
		}
		if _, seen := doc.Sections[current]; seen {
			doc.duplicates = append(doc.duplicates, current)
		} else {
			doc.Order = append(doc.Order, current)
		}
		doc.Sections[current] = Section{Name: current, Header: header, Body: strings.Join(body, "\n")}
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
			current = strings.TrimSpace(line[3:])
			header = line
			body = body[:0:0]
			started = true
			continue
		}
		if started {
			body = append(body, line)
		} else {
			preamble = append(preamble, line)
		}
	}
	flush()

	doc.Preamble = strings.Join(preamble, "\n")
	return doc
}

// Bodies returns just the name→body map, the shape the diff engine
// consumes.
func (d *Document) Bodies() map[string]string {
	out := make(map[string]string, len(d.Sections))
	for name, s := range d.Sections {
		out[name] = s.Body
	}
	return out
}

// companyHeaderRe matches `#### Name (Location)`. The name stops at the
// first open paren so descriptions with parentheses after the location
// do not swallow it.
var companyHeaderRe = regexp.MustCompile(`(?m)^####\s+([^(\n]+?)\s*\(([^)\n]+)\)`)

// nextBlockRe finds the next level-3 or level-4 heading, which terminates
// a company block.
var nextBlockRe = regexp.MustCompile(`\n(?:####|###)\s`)

// CompanyBlock is one company sub-entry inside a section, spanning from
// its header line to the next heading of equal or higher level.
type CompanyBlock struct {
	Name     string
	Location string
	Content  string
}

// CompanyBlocks extracts the company sub-entries of a section body. The
// returned order slice preserves document order; blocks with no trailing
// content are kept with just their header line.
func CompanyBlocks(sectionBody string) (map[string]CompanyBlock, []string) {
	blocks := make(map[string]CompanyBlock)
	var order []string

	for _, loc := range companyHeaderRe.FindAllStringSubmatchIndex(sectionBody, -1) {
		name := strings.TrimSpace(sectionBody[loc[2]:loc[3]])
		location := strings.TrimSpace(sectionBody[loc[4]:loc[5]])

		end := len(sectionBody)
		if next := nextBlockRe.FindStringIndex(sectionBody[loc[1]:]); next != nil {
			end = loc[1] + next[0]
		}

		if _, seen := blocks[name]; !seen {
			order = append(order, name)
		}
		blocks[name] = CompanyBlock{
			Name:     name,
			Location: location,
			Content:  sectionBody[loc[0]:end],
		}
	}
	return blocks, order
}
