// Package payload holds response shapes shared by several handlers. Define
// a response next to its handler first and move it here once it is reused.
package payload

// MaxPageSize caps page_size on list endpoints.
const MaxPageSize = 100

// ListResp is one page of rows and the total count of matching rows.
type ListResp[T any] struct {
	Rows  []T   `json:"rows"`
	Count int64 `json:"count"`
}

// ClampPageSize bounds a requested page size to (0, MaxPageSize]. Zero and
// negative values are passed on as zero so the store applies its default.
func ClampPageSize(size int) int {
	switch {
	case size <= 0:
		return 0
	case size > MaxPageSize:
		return MaxPageSize
	default:
		return size
	}
}
