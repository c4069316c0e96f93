package domain

import "strings"

// Category groups template images by the UI role they play on screen
type Category string

const (
	CategoryMainMenu     Category = "main_menu"
	CategoryGameWorld    Category = "game_world"
	CategoryPlayButtons  Category = "play_buttons"
	CategoryCloseButtons Category = "close_buttons"
	CategoryGeneric      Category = "generic_elements"
)

// TemplateGroup is one titled section of the catalog
type TemplateGroup struct {
	Category Category
	Title    string
	Files    []string
}

// TemplateSpec describes a single template file and the groups referencing it
type TemplateSpec struct {
	Filename   string
	Categories []Category
}

// catalog is ordered: detection and clicking try files in this order.
var catalog = []TemplateGroup{
	{
		Category: CategoryMainMenu,
		Title:    "Main Menu Indicators",
		Files:    []string{"game_launcher.png"},
	},
	{
		Category: CategoryGameWorld,
		Title:    "Game World Indicators",
		Files:    []string{"world.png", "world_icon.png", "town_icon.png", "game_icon.png"},
	},
	{
		Category: CategoryPlayButtons,
		Title:    "Play Buttons",
		Files:    []string{"game_launcher.png", "deploy_button.png", "play.png", "start.png"},
	},
	{
		Category: CategoryCloseButtons,
		Title:    "Close Buttons",
		Files:    []string{"close_x.png", "close_x2.png", "close_x3.png", "close_x4.png", "close_x5.png"},
	},
	{
		Category: CategoryGeneric,
		Title:    "Generic Elements",
		Files:    []string{"deploy_button.png", "search_button.png", "details_button.png"},
	},
}

// LauncherTemplate is tapped again when the game drops back to the launcher while loading
const LauncherTemplate = "game_launcher.png"

// Groups returns a copy of the catalog
func Groups() []TemplateGroup {
	groups := make([]TemplateGroup, len(catalog))
	for i, g := range catalog {
		groups[i] = TemplateGroup{
			Category: g.Category,
			Title:    g.Title,
			Files:    append([]string(nil), g.Files...),
		}
	}
	return groups
}

// Categories returns all categories in catalog order
func Categories() []Category {
	cats := make([]Category, len(catalog))
	for i, g := range catalog {
		cats[i] = g.Category
	}
	return cats
}

// Files returns the ordered filenames of a category, nil for unknown categories
func Files(c Category) []string {
	for _, g := range catalog {
		if g.Category == c {
			return append([]string(nil), g.Files...)
		}
	}
	return nil
}

// Title returns the display title of a category
func (c Category) Title() string {
	for _, g := range catalog {
		if g.Category == c {
			return g.Title
		}
	}
	return string(c)
}

// ParseCategory accepts either the identifier or the display title
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, g := range catalog {
		if string(g.Category) == s || strings.ToLower(g.Title) == s {
			return g.Category, true
		}
	}
	return "", false
}

// AllFiles returns every distinct template filename in first-seen order
func AllFiles() []string {
	seen := make(map[string]bool)
	var files []string
	for _, g := range catalog {
		for _, f := range g.Files {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return files
}

// CategoriesOf returns the categories that reference filename
func CategoriesOf(filename string) []Category {
	var cats []Category
	for _, g := range catalog {
		for _, f := range g.Files {
			if f == filename {
				cats = append(cats, g.Category)
				break
			}
		}
	}
	return cats
}

// IsKnownTemplate reports whether filename is part of the catalog
func IsKnownTemplate(filename string) bool {
	return len(CategoriesOf(filename)) > 0
}

// Specs returns one TemplateSpec per distinct filename
func Specs() []TemplateSpec {
	files := AllFiles()
	specs := make([]TemplateSpec, len(files))
	for i, f := range files {
		specs[i] = TemplateSpec{Filename: f, Categories: CategoriesOf(f)}
	}
	return specs
}
