package viewmodel

// Pagination places a list page within its collection. StartIndex and EndIndex are
// 1-based and inclusive; both are zero for an empty collection.
type Pagination struct {
	Page       int
	TotalPages int
	TotalCount int

	StartIndex int
	EndIndex   int

	HasPrev bool
	PrevURL string
	HasNext bool
	NextURL string
}
