package hardening

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// CatalogRule is one high-paranoia SecRule block from the rule set shipped
// with the inspection layer.
type CatalogRule struct {
	ID            string
	ParanoiaLevel int
	Raw           string
}

// Catalog holds the paranoia-level-3/4 rules eligible for promotion. Rules at
// lower levels are already enforced and never pass through the engine.
type Catalog struct {
	rules map[string]CatalogRule
}

var (
	paranoiaTagRe = regexp.MustCompile(`tag:'paranoia-level/([34])'`)
	ruleIDRe      = regexp.MustCompile(`id\s*:\s*(\d+)`)
)

// LoadCatalog parses SecRule blocks out of the given rule files. A block
// starts at a line beginning with "SecRule" and runs until the next one;
// only blocks tagged paranoia-level/3 or /4 with a numeric id are kept.
func LoadCatalog(paths []string) (*Catalog, error) {
	c := &Catalog{rules: make(map[string]CatalogRule)}
	for _, path := range paths {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open rule file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var block []string
	flush := func() {
		if len(block) > 0 {
			c.addBlock(strings.Join(block, "\n"))
			block = nil
		}
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "SecRule") {
			flush()
		}
		if strings.HasPrefix(line, "SecRule") || len(block) > 0 {
			block = append(block, line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read rule file %s: %w", path, err)
	}
	return nil
}

func (c *Catalog) addBlock(block string) {
	tag := paranoiaTagRe.FindStringSubmatch(block)
	if tag == nil {
		return
	}
	id := ruleIDRe.FindStringSubmatch(block)
	if id == nil {
		return
	}

	level := 3
	if tag[1] == "4" {
		level = 4
	}
	c.rules[id[1]] = CatalogRule{ID: id[1], ParanoiaLevel: level, Raw: block}
}

func (c *Catalog) Rule(id string) (CatalogRule, bool) {
	r, ok := c.rules[id]
	return r, ok
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.rules[id]
	return ok
}

func (c *Catalog) Len() int {
	return len(c.rules)
}

func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.rules))
	for id := range c.rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
