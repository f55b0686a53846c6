package models

// RecentPostsCap bounds the recent-post-title projection on a category.
const RecentPostsCap = 5

// Category groups posts by name. Posts reference the category by name, not
// id, so PostCount is maintained by the integrity coordinator rather than
// derived from a live query.
type Category struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PostCount   int      `json:"postCount"`
	RecentPosts []string `json:"recentPosts,omitempty"`
}

// PushRecent prepends a post title to the recent-posts projection, evicting
// the oldest entry beyond the cap.
func (c *Category) PushRecent(title string) {
	c.RecentPosts = append([]string{title}, c.RecentPosts...)
	if len(c.RecentPosts) > RecentPostsCap {
		c.RecentPosts = c.RecentPosts[:RecentPostsCap]
	}
}
