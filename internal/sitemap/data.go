package sitemap

// Walk limits. Sitemap trees are attacker-controlled input; without a
// cap a pathological index could stall a worker indefinitely.
const (
	// MaxDepth bounds index-of-index nesting.
	MaxDepth = 5
	// MaxURLs bounds the total leaf yield per walk.
	MaxURLs = 50000
)

// task is one sitemap document queued for expansion.
type task struct {
	loc   string
	depth int
}
