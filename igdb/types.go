package igdb

// PCPlatformID is the IGDB platform id for "PC (Microsoft Windows)"
const PCPlatformID = 6

// Game mirrors the fields requested by Search
type Game struct {
	ID                int64             `json:"id"`
	Cover             *Cover            `json:"cover,omitempty"`
	FirstReleaseDate  *int64            `json:"first_release_date,omitempty"`
	InvolvedCompanies []InvolvedCompany `json:"involved_companies,omitempty"`
	Name              string            `json:"name"`
	Platforms         []Platform        `json:"platforms,omitempty"`
	ReleaseDates      []ReleaseDate     `json:"release_dates,omitempty"`
	TotalRating       *float64          `json:"total_rating,omitempty"`
}

type Cover struct {
	ID      int64  `json:"id"`
	ImageID string `json:"image_id"`
}

type InvolvedCompany struct {
	ID        int64   `json:"id"`
	Company   Company `json:"company"`
	Developer bool    `json:"developer"`
	Publisher bool    `json:"publisher"`
}

type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Platform struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	PlatformFamily *int64 `json:"platform_family,omitempty"`
	Slug           string `json:"slug"`
}

type ReleaseDate struct {
	ID       int64    `json:"id"`
	Date     *int64   `json:"date,omitempty"`
	Human    string   `json:"human"`
	Platform Platform `json:"platform"`
}

// PCReleaseDate returns the release date on PC as unix seconds, or 0 when unknown
func (g Game) PCReleaseDate() int64 {
	for _, date := range g.ReleaseDates {
		if date.Platform.ID == PCPlatformID {
			if date.Date == nil {
				return 0
			}
			return *date.Date
		}
	}
	return 0
}

// CoverImageID returns the cover image id, or "" when the game has no cover
func (g Game) CoverImageID() string {
	if g.Cover == nil {
		return ""
	}
	return g.Cover.ImageID
}

// Developers lists the names of developing companies
func (g Game) Developers() []string {
	var names []string
	for _, ic := range g.InvolvedCompanies {
		if ic.Developer {
			names = append(names, ic.Company.Name)
		}
	}
	return names
}
