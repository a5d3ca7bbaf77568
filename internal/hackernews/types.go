package hackernews

// ItemType is the kind of a Hacker News item.
type ItemType string

// Item types published by the API.
const (
	TypeJob     ItemType = "job"
	TypeStory   ItemType = "story"
	TypeComment ItemType = "comment"
	TypePoll    ItemType = "poll"
	TypePollOpt ItemType = "pollopt"
)

// Item is the raw record served under /item/<id>.json.
type Item struct {
	ID          int64    `json:"id"`
	Deleted     bool     `json:"deleted,omitempty"`
	Type        ItemType `json:"type"`
	By          string   `json:"by,omitempty"`
	Time        int64    `json:"time"`
	Text        string   `json:"text,omitempty"`
	Dead        bool     `json:"dead,omitempty"`
	Parent      *int64   `json:"parent,omitempty"`
	Poll        *int64   `json:"poll,omitempty"`
	Kids        []int64  `json:"kids,omitempty"`
	URL         string   `json:"url,omitempty"`
	Score       int      `json:"score,omitempty"`
	Title       string   `json:"title,omitempty"`
	Parts       []int64  `json:"parts,omitempty"`
	Descendants *int     `json:"descendants,omitempty"`
}

// Story is the subset of an item rendered in story lists.
type Story struct {
	ID          int64    `json:"id"`
	Type        ItemType `json:"type"`
	By          string   `json:"by"`
	Time        int64    `json:"time"`
	Kids        []int64  `json:"kids"`
	URL         *string  `json:"url"`
	Score       int      `json:"score"`
	Title       string   `json:"title"`
	Descendants *int     `json:"descendants"`
}

// Comment is a reply attached to a story or another comment. Text is HTML.
type Comment struct {
	ID     int64    `json:"id"`
	Type   ItemType `json:"type"`
	By     *string  `json:"by"`
	Kids   []int64  `json:"kids"`
	Parent *int64   `json:"parent"`
	Text   *string  `json:"text"`
	Time   int64    `json:"time"`
}

func (it Item) story() Story {
	s := Story{
		ID:          it.ID,
		Type:        it.Type,
		By:          it.By,
		Time:        it.Time,
		Kids:        it.Kids,
		Score:       it.Score,
		Title:       it.Title,
		Descendants: it.Descendants,
	}
	if it.URL != "" {
		u := it.URL
		s.URL = &u
	}
	return s
}

func (it Item) comment() Comment {
	c := Comment{
		ID:     it.ID,
		Type:   it.Type,
		Kids:   it.Kids,
		Parent: it.Parent,
		Time:   it.Time,
	}
	if it.By != "" {
		by := it.By
		c.By = &by
	}
	if it.Text != "" {
		text := it.Text
		c.Text = &text
	}
	return c
}
