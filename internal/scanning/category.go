package scanning

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// CategoryOther is assigned when no keyword matches.
const CategoryOther = "other"

// Category is a category label with the keywords that select it
type Category struct {
	Label    string
	Keywords []string
}

// DefaultCategories is the fixed category list; earlier entries win when several match.
var DefaultCategories = []Category{
	{Label: "food", Keywords: []string{"ข้าว", "แกง", "ผัด", "ต้ม", "ยำ", "ลาบ", "น้ำพริก", "ปลา", "ไก่", "หมู", "เนื้อ", "ไข่", "ขนม", "pizza", "burger", "sandwich", "bread", "snack"}},
	{Label: "beverage", Keywords: []string{"น้ำ", "กาแฟ", "ชา", "นม", "เบียร์", "โซดา", "coffee", "tea", "milk", "beer", "coke", "pepsi", "water", "juice"}},
	{Label: "household", Keywords: []string{"สบู่", "ยาสีฟัน", "แชมพู", "กระดาษ", "soap", "shampoo", "tissue", "toothpaste", "detergent"}},
	{Label: "clothing", Keywords: []string{"เสื้อ", "กางเกง", "กระโปรง", "รองเท้า", "shirt", "pants", "shoes", "socks"}},
	{Label: "medicine", Keywords: []string{"ยา", "วิตามิน", "medicine", "vitamin", "paracetamol"}},
	{Label: "cosmetics", Keywords: []string{"ครีม", "โลชั่น", "ลิปสติก", "cream", "lotion", "lipstick"}},
}

// CategoryClassifier maps item names to category labels by keyword
type CategoryClassifier struct {
	matcher *ahocorasick.Matcher
	labels  []string
	rank    []int // rank[i] is the category index of keyword i
}

// NewCategoryClassifier builds a classifier over categories, in priority order
func NewCategoryClassifier(categories []Category) *CategoryClassifier {
	c := &CategoryClassifier{}
	seen := make(map[string]int)
	var keywords []string
	for idx, cat := range categories {
		c.labels = append(c.labels, cat.Label)
		for _, kw := range cat.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if _, ok := seen[kw]; ok {
				// Keep the earlier category for duplicated keywords
				continue
			}
			seen[kw] = len(keywords)
			keywords = append(keywords, kw)
			c.rank = append(c.rank, idx)
		}
	}
	if len(keywords) > 0 {
		c.matcher = ahocorasick.NewStringMatcher(keywords)
	}
	return c
}

// Classify returns the first category whose keywords occur in name, or CategoryOther
func (c *CategoryClassifier) Classify(name string) string {
	if c == nil || c.matcher == nil {
		return CategoryOther
	}
	hits := c.matcher.MatchThreadSafe([]byte(strings.ToLower(name)))
	best := -1
	for _, idx := range hits {
		if idx < 0 || idx >= len(c.rank) {
			continue
		}
		if best == -1 || c.rank[idx] < best {
			best = c.rank[idx]
		}
	}
	if best == -1 {
		return CategoryOther
	}
	return c.labels[best]
}

// Known reports whether label is one of the classifier's categories or CategoryOther
func (c *CategoryClassifier) Known(label string) bool {
	if label == CategoryOther {
		return true
	}
	for _, l := range c.labels {
		if l == label {
			return true
		}
	}
	return false
}
