package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/bookx/internal/models"
)

var (
	_ list.Item = listTypeItem{}
	_ list.Item = bookItem{}
)

// listTypeItem wraps [models.ListType] to implement [list.Item].
type listTypeItem struct {
	listType models.ListType
	count    int
}

func (i listTypeItem) FilterValue() string { return i.listType.Label() }
func (i listTypeItem) Title() string       { return i.listType.Label() }
func (i listTypeItem) Description() string {
	if i.count < 0 {
		return "not synced yet"
	}
	return fmt.Sprintf("%d books cached", i.count)
}

// bookItem wraps [models.Book] to implement [list.Item].
type bookItem struct {
	book models.Book
}

func (i bookItem) FilterValue() string { return i.book.Title + " " + i.book.Author }
func (i bookItem) Title() string       { return i.book.Title }
func (i bookItem) Description() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{i.book.Author, i.book.Publisher, i.book.ISBN} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " • ")
}
