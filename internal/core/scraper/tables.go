package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TableSpec names a list table by the words around it. Exclude drops
// tables whose title also matches, e.g. cancelled documents when looking
// for documents.
type TableSpec struct {
	Keywords []string
	Exclude  []string
}

// TableLocator returns the title text it used to pick table, or "".
type TableLocator func(table *goquery.Selection) string

// DefaultLocators tries caption, then header row, then preceding sibling.
var DefaultLocators = []TableLocator{captionTitle, headerTitle, siblingTitle}

var (
	interestedTable = TableSpec{Keywords: []string{"interessados"}}
	movementsTable  = TableSpec{Keywords: []string{"movimentacoes", "tramitacoes"}}
	documentsTable  = TableSpec{Keywords: []string{"documentos"}, Exclude: []string{"cancelad"}}
	incidentsTable  = TableSpec{Keywords: []string{"cancelad"}}
)

// FindTable picks the first table a locator ties to want. Locators are
// tried in priority order across the whole page.
func FindTable(doc *goquery.Document, locators []TableLocator, want TableSpec) *goquery.Selection {
	tables := doc.Find("table")
	for _, locate := range locators {
		var found *goquery.Selection
		tables.EachWithBreak(func(_ int, t *goquery.Selection) bool {
			title := fold(locate(t))
			if title == "" || !containsAny(title, want.Keywords) || containsAny(title, want.Exclude) {
				return true
			}
			found = t
			return false
		})
		if found != nil {
			return found
		}
	}
	return nil
}

func captionTitle(t *goquery.Selection) string {
	return t.ChildrenFiltered("caption").First().Text()
}

// headerTitle reads a title row: a first row with a single cell spanning
// the table, which the portal uses instead of <caption>.
func headerTitle(t *goquery.Selection) string {
	first := rows(t).First()
	cells := first.ChildrenFiltered("th, td")
	if cells.Length() != 1 {
		return ""
	}
	if cells.Find("table").Length() > 0 {
		return ""
	}
	return cells.Text()
}

// siblingTitle reads the nearest non-empty element before the table, or
// before its wrapper when the table is alone in one.
func siblingTitle(t *goquery.Selection) string {
	for cur, depth := t, 0; cur.Length() > 0 && depth < 2; cur, depth = cur.Parent(), depth+1 {
		prev := cur.Prev()
		for i := 0; i < 2 && prev.Length() > 0; i++ {
			if prev.Is("table") {
				break
			}
			if text := clean(prev.Text()); text != "" {
				return text
			}
			prev = prev.Prev()
		}
		if cur.Parent().Children().Length() != 1 {
			break
		}
	}
	return ""
}

// rows returns the table's own rows, not those of nested tables.
func rows(t *goquery.Selection) *goquery.Selection {
	return t.ChildrenFiltered("tr").AddSelection(t.ChildrenFiltered("thead, tbody, tfoot").ChildrenFiltered("tr"))
}

// column describes one field of a list table: the header words that
// identify its column.
type column struct {
	field    string
	keywords []string
}

// parsedTable is a list table as header-keyed rows.
type parsedTable struct {
	index map[string]int // field -> cell index
	rows  []*goquery.Selection
}

// parseTable maps header cells to fields and collects data rows. Columns
// are matched in the order given, and each header is claimed by the first
// field that fits it, so specific keywords must come before generic ones.
func parseTable(t *goquery.Selection, columns []column) parsedTable {
	pt := parsedTable{index: map[string]int{}}
	if t == nil {
		return pt
	}

	all := rows(t)
	headerAt := -1
	all.EachWithBreak(func(i int, tr *goquery.Selection) bool {
		cells := tr.ChildrenFiltered("th, td")
		if cells.Length() < 2 {
			return true
		}
		mapped := map[string]int{}
		cells.Each(func(ci int, cell *goquery.Selection) {
			h := fold(cell.Text())
			if h == "" {
				return
			}
			for _, col := range columns {
				if _, taken := mapped[col.field]; taken {
					continue
				}
				if containsAny(h, col.keywords) {
					mapped[col.field] = ci
					return
				}
			}
		})
		if len(mapped) >= 2 || (len(mapped) == 1 && tr.ChildrenFiltered("th").Length() > 0) {
			pt.index = mapped
			headerAt = i
			return false
		}
		return true
	})
	if headerAt < 0 {
		return pt
	}

	all.Each(func(i int, tr *goquery.Selection) {
		if i <= headerAt {
			return
		}
		cells := tr.ChildrenFiltered("td")
		if cells.Length() < 2 || tr.ChildrenFiltered("th").Length() > 0 {
			return
		}
		pt.rows = append(pt.rows, tr)
	})
	return pt
}

func (pt parsedTable) cell(tr *goquery.Selection, field string) string {
	i, ok := pt.index[field]
	if !ok {
		return ""
	}
	return clean(tr.ChildrenFiltered("td").Eq(i).Text())
}

func (pt parsedTable) cellSel(tr *goquery.Selection, field string) *goquery.Selection {
	i, ok := pt.index[field]
	if !ok {
		return nil
	}
	return tr.ChildrenFiltered("td").Eq(i)
}

func isYes(s string) bool {
	f := fold(s)
	return f == "sim" || f == "s" || strings.Contains(f, "urgente")
}
