package models

// Categories is the fixed set of post categories, in display order.
var Categories = []string{
	"Social",
	"Politics",
	"Economy",
	"Finance",
	"Business",
	"Labor",
	"Entertainment",
	"Police",
	"Courts",
	"Sports",
	"Science",
	"Religion",
	"Education",
	"Health",
	"Home",
	"Lifestyle",
	"Environment",
	"Law",
	"Waste",
	"Problems",
	"Lost and Found",
	"Water",
	"Electricity",
	"Internet",
}

var categorySet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Categories))
	for _, c := range Categories {
		m[c] = struct{}{}
	}
	return m
}()

// IsValidCategory reports whether name is one of Categories.
func IsValidCategory(name string) bool {
	_, ok := categorySet[name]
	return ok
}
