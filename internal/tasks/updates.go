package tasks

import (
	"fmt"

	"github.com/desertthunder/bookx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchList Phase = iota
	StoreList
	EnrichBooks
	ExportList
)

func (p Phase) String() string {
	switch p {
	case FetchList:
		return "fetch_list"
	case StoreList:
		return "store_list"
	case EnrichBooks:
		return "enrich_books"
	case ExportList:
		return "export_list"
	default:
		return ""
	}
}

func fetchingListUpdate(listType models.ListType) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchList,
		Message: fmt.Sprintf("Fetching %s from Calil...", listType.Label()),
	}
}

func fetchedPageUpdate(fetched, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchList,
		Step:    fetched,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] books fetched", fetched, total),
	}
}

func storedListUpdate(listType models.ListType, books []models.Book) ProgressUpdate {
	return ProgressUpdate{
		Phase:   StoreList,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Cached %d books (%s)", len(books), listType.Label()),
		Data:    books,
	}
}

func enrichUpdate(step, total int, isbn string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnrichBooks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Looking up %s on NDL...", step, total, isbn),
	}
}

func exportingListUpdate(step, total int, listType models.ListType) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportList,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, listType.Label()),
	}
}

func exportCompletedUpdate(step, total int, listType models.ListType, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportList,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, listType.Label(), filesCount),
	}
}

func exportFailedUpdate(step, total int, listType models.ListType, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportList,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, listType.Label(), err),
	}
}
