// ABOUTME: Category tree helpers shared by the public filters and the admin categories page.
// ABOUTME: Flattens nested children depth-first and looks categories up by id.

package backend

import (
	"strconv"
	"strings"
)

// FlatCategory is a category placed in a flattened tree.
type FlatCategory struct {
	Category
	Depth      int
	ParentName string
}

// FlattenCategories walks the tree depth-first, parents before children.
// Categories that arrive flat with parent ids get their parent's name filled
// in when the parent is in the list.
func FlattenCategories(tree []Category) []FlatCategory {
	var out []FlatCategory
	var walk func(nodes []Category, depth int, parent string)
	walk = func(nodes []Category, depth int, parent string) {
		for _, n := range nodes {
			out = append(out, FlatCategory{Category: n, Depth: depth, ParentName: parent})
			if len(n.Children) > 0 {
				walk(n.Children, depth+1, n.Name)
			}
		}
	}
	walk(tree, 0, "")

	names := make(map[FlexString]string, len(out))
	for _, c := range out {
		names[c.ID] = c.Name
	}
	for i := range out {
		if out[i].ParentName == "" && out[i].ParentID != "" {
			out[i].ParentName = names[out[i].ParentID]
		}
	}
	return out
}

// FindCategory returns the category with id anywhere in the tree.
func FindCategory(tree []Category, id string) (Category, bool) {
	for _, c := range tree {
		if c.ID.String() == id {
			return c, true
		}
		if found, ok := FindCategory(c.Children, id); ok {
			return found, true
		}
	}
	return Category{}, false
}

// Matches reports whether the category's name, slug, description, parent
// name or service count contains q, ignoring case. An empty q matches.
func (c FlatCategory) Matches(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	for _, field := range []string{c.Name, c.Slug, c.Description, c.ParentName, strconv.Itoa(int(c.ServiceCount))} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
