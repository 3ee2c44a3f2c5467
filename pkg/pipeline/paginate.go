package pipeline

// Page is 1-indexed pagination state with a fixed page size.
type Page struct {
	Number int
	Size   int
}

// DefaultPageSize matches the dashboard table default.
const DefaultPageSize = 25

// NewPage returns page 1 with the given size (DefaultPageSize if size <= 0).
func NewPage(size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	return Page{Number: 1, Size: size}
}

// TotalPages returns ceil(total/size); a non-empty collection always has at
// least one page.
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	pages := (total + size - 1) / size
	if pages < 1 {
		return 1
	}
	return pages
}

// SetSize changes the page size and resets to page 1.
func (p *Page) SetSize(size int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	p.Size = size
	p.Number = 1
}

// Clamp pins the page number into [1, TotalPages(total, p.Size)].
func (p *Page) Clamp(total int) {
	last := TotalPages(total, p.Size)
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Number > last {
		p.Number = last
	}
}

// Next advances one page, clamped to the last page.
func (p *Page) Next(total int) {
	p.Number++
	p.Clamp(total)
}

// Prev moves back one page, clamped to page 1.
func (p *Page) Prev(total int) {
	p.Number--
	p.Clamp(total)
}

// Paginate returns the slice of items on the requested page. Out-of-range
// page numbers are clamped rather than returning an empty page.
func Paginate[T any](items []T, p Page) []T {
	if p.Size <= 0 {
		return items
	}
	p.Clamp(len(items))
	start := (p.Number - 1) * p.Size
	if start >= len(items) {
		return nil
	}
	end := start + p.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
