package model

import "strings"

// Category is the closed set of event labels used by the calendar.
type Category string

const (
	CategoryMeeting  Category = "미팅"
	CategoryWork     Category = "업무"
	CategoryPersonal Category = "개인"
	CategoryOther    Category = "기타"
)

// Style is the presentation derived from a Category.
type Style struct {
	Icon string
	// Color is the pastel background used for alert rows.
	Color string
	// TagColor is the saturated color used for calendar badges.
	TagColor string
}

// ParseCategory maps a raw label to a Category. Korean labels and their
// English names are accepted; anything else degrades to CategoryOther.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(CategoryMeeting), "meeting":
		return CategoryMeeting
	case string(CategoryWork), "work":
		return CategoryWork
	case string(CategoryPersonal), "personal":
		return CategoryPersonal
	default:
		return CategoryOther
	}
}

func (c Category) Style() Style {
	switch c {
	case CategoryMeeting:
		return Style{Icon: "🤝", Color: "#f0eff8", TagColor: "#ad46ff"}
	case CategoryWork:
		return Style{Icon: "💼", Color: "#95b8ff", TagColor: "#2b7fff"}
	case CategoryPersonal:
		return Style{Icon: "🎁", Color: "#95d4a8", TagColor: "#00c950"}
	default:
		return Style{Icon: "📅", Color: "#b8bcc5", TagColor: "#9ca3af"}
	}
}
