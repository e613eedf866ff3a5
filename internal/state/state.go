// internal/state/state.go
package state

import "github.com/user/foliochat/internal/types"

// DefaultPageSize is used for both collections unless configured otherwise.
const DefaultPageSize = 50

// Viewport breakpoints in CSS pixels.
const (
	MobileMaxWidth = 640
	TabletMaxWidth = 950
)

// Pagination mirrors the backend page envelope for one collection.
type Pagination struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	TotalPages  int  `json:"total_pages"`
	TotalCount  int  `json:"total_count"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

func firstPage(pageSize int) Pagination {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Pagination{Page: 1, PageSize: pageSize}
}

func paginationOf[T any](p *types.Page[T]) Pagination {
	return Pagination{
		Page:        p.Page,
		PageSize:    p.PageSize,
		TotalPages:  p.TotalPages,
		TotalCount:  p.TotalCount,
		HasNext:     p.HasNext,
		HasPrevious: p.HasPrevious,
	}
}

type Loading struct {
	Sessions bool `json:"sessions"`
	Messages bool `json:"messages"`
}

type Errors struct {
	Sessions string `json:"sessions,omitempty"`
	Messages string `json:"messages,omitempty"`
}

type Responsive struct {
	Width  int  `json:"width"`
	Tablet bool `json:"tablet"`
	Mobile bool `json:"mobile"`
}

// Small reports whether navigation should default to collapsed.
func (r Responsive) Small() bool { return r.Tablet || r.Mobile }

func responsiveFor(width int) Responsive {
	return Responsive{
		Width:  width,
		Mobile: width < MobileMaxWidth,
		Tablet: width >= MobileMaxWidth && width < TabletMaxWidth,
	}
}

// State is an immutable snapshot of the chat cache. Slices are never
// mutated in place once a State has been returned from Reduce.
type State struct {
	User               *types.User     `json:"user"`
	Sessions           []types.Session `json:"sessions"`
	SessionsPagination Pagination      `json:"sessions_pagination"`

	Current            *types.Session  `json:"current_session"`
	Messages           []types.Message `json:"messages"`
	MessagesPagination Pagination      `json:"messages_pagination"`
	// MessagesEpoch changes whenever the message list is reset. Message
	// results carrying another epoch are stale and dropped.
	MessagesEpoch uint64 `json:"-"`

	SessionNotFound bool       `json:"session_not_found"`
	Responsive      Responsive `json:"responsive"`
	NavCollapsed    bool       `json:"nav_collapsed"`
	Loading         Loading    `json:"loading"`
	Errors          Errors     `json:"errors"`
}

// Initial returns the empty state with page-1 pagination for both lists.
func Initial(pageSize int) State {
	return State{
		SessionsPagination: firstPage(pageSize),
		MessagesPagination: firstPage(pageSize),
		Responsive:         responsiveFor(TabletMaxWidth),
	}
}
