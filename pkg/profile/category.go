package profile

// Category is a profile-wide classification of frames. Subcategory 0 is
// always "Other".
type Category struct {
	Name          string   `yaml:"name"`
	Color         string   `yaml:"color"`
	Subcategories []string `yaml:"subcategories"`
}

// DefaultCategories is used when a profile does not carry its own list.
var DefaultCategories = []Category{
	{Name: "Other", Color: "grey", Subcategories: []string{"Other"}},
	{Name: "Idle", Color: "transparent", Subcategories: []string{"Other"}},
	{Name: "JavaScript", Color: "yellow", Subcategories: []string{"Other"}},
	{Name: "Native", Color: "blue", Subcategories: []string{"Other"}},
	{Name: "GC / CC", Color: "orange", Subcategories: []string{"Other"}},
}

// ReconcileCategory merges the category of a stack into the category
// already assigned to a deduplicated entry. Equal pairs are kept, a
// subcategory mismatch falls back to subcategory 0 ("Other"), and a
// category mismatch falls back to the default category.
func ReconcileCategory(category, subcategory, otherCategory, otherSubcategory, defaultCategory int32) (int32, int32) {
	if category != otherCategory {
		return defaultCategory, 0
	}
	if subcategory != otherSubcategory {
		return category, 0
	}
	return category, subcategory
}

// ComputeStackCategories fills the Category and Subcategory columns of the
// stack table from the frame table. Frames with a Null category inherit
// the category of their parent stack; root stacks without one get the
// default category.
func ComputeStackCategories(stacks *StackTable, frames *FrameTable, defaultCategory int32) {
	n := stacks.Len()
	stacks.Category = resize(stacks.Category, n)
	stacks.Subcategory = resize(stacks.Subcategory, n)
	for i := 0; i < n; i++ {
		frame := stacks.Frame[i]
		category := frames.Category[frame]
		subcategory := frames.Subcategory[frame]
		if category == Null {
			if prefix := stacks.Prefix[i]; prefix != Null {
				category = stacks.Category[prefix]
				subcategory = stacks.Subcategory[prefix]
			} else {
				category = defaultCategory
				subcategory = 0
			}
		} else if subcategory == Null {
			subcategory = 0
		}
		stacks.Category[i] = category
		stacks.Subcategory[i] = subcategory
	}
}

func resize(s []int32, n int) []int32 {
	if cap(s) < n {
		return make([]int32, n)
	}
	return s[:n]
}
